package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"git.home.luguber.info/inful/dexbuilder/internal/assemble"
	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
	"git.home.luguber.info/inful/dexbuilder/internal/fetch"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

// imageRef is one unique image source referenced by the batch.
type imageRef struct {
	Key string
	URL string
}

// collectImageRefs deduplicates image references across all entries by source
// key, preserving first-seen order. The first URL observed for a key wins;
// keys are derived from the upstream path, so colliding keys name the same
// source.
func collectImageRefs(entries []*catalog.Entry) []imageRef {
	seen := make(map[string]struct{})
	var refs []imageRef
	for _, e := range entries {
		for _, ref := range e.Images {
			if ref.SourceKey == "" || ref.SourceURL == "" {
				continue
			}
			if _, ok := seen[ref.SourceKey]; ok {
				continue
			}
			seen[ref.SourceKey] = struct{}{}
			refs = append(refs, imageRef{Key: ref.SourceKey, URL: ref.SourceURL})
		}
	}
	return refs
}

// stageBuildImages downloads every referenced image source and builds the
// tier's artifacts, reusing recorded artifacts from previous runs. Fetch
// workers feed decoded payloads to encode workers so network wait and CPU
// work overlap. Every failure degrades to a warning; affected entries render
// without that image.
func stageBuildImages(ctx context.Context, rs *RunState) error {
	r := rs.Runner
	tier := string(r.cfg.Images.Quality)

	refs := collectImageRefs(rs.Entries)
	rs.Outputs = make(map[string]string, len(refs))
	if len(refs) == 0 {
		return nil
	}

	fetchWorkers := r.cfg.Fetch.Workers
	if fetchWorkers > len(refs) {
		fetchWorkers = len(refs)
	}
	if fetchWorkers < 1 {
		fetchWorkers = 1
	}
	encodeWorkers := r.cfg.Images.EncodeWorkers
	if encodeWorkers <= 0 {
		encodeWorkers = runtime.NumCPU()
	}
	if encodeWorkers > len(refs) {
		encodeWorkers = len(refs)
	}
	r.log.Info("building images",
		logfields.Count(len(refs)), logfields.Tier(tier),
		"fetch_workers", fetchWorkers, "encode_workers", encodeWorkers)

	type encodeTask struct {
		key  string
		data []byte
	}

	var (
		fwg, ewg sync.WaitGroup
		mu       sync.Mutex
		failed   int
	)
	fetchTasks := make(chan imageRef)
	encodeTasks := make(chan encodeTask, encodeWorkers)

	fetchWorker := func() {
		defer fwg.Done()
		for ref := range fetchTasks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			t0 := time.Now()
			data, cached, err := r.client.GetOrigin(ctx, ref.URL, fetch.ProfileImage)
			r.recorder.ObserveFetchDuration(metrics.FetchKindImage, time.Since(t0), cached)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.recorder.IncFetchResult(metrics.FetchKindImage, fetchOutcome(err))
				r.recorder.IncImageResult(tier, "failed")
				mu.Lock()
				failed++
				rs.Report.ImagesFailed++
				rs.Report.AddIssue(report.IssueImageFailure, string(StageBuildImages), report.SeverityWarning,
					fmt.Sprintf("fetch %s (%s): %v", ref.URL, ref.Key, err), retryableFetch(err), nil)
				mu.Unlock()
				r.log.Warn("image fetch failed", logfields.CacheKey(ref.Key), logfields.URL(ref.URL), logfields.Error(err))
				continue
			}
			r.recorder.IncFetchResult(metrics.FetchKindImage, fetchSuccess(cached))
			select {
			case encodeTasks <- encodeTask{key: ref.Key, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}

	encodeWorker := func() {
		defer ewg.Done()
		for task := range encodeTasks {
			info, reused, err := r.images.Build(ctx, task.key, task.data)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.recorder.IncImageResult(tier, "failed")
				mu.Lock()
				failed++
				rs.Report.ImagesFailed++
				rs.Report.AddIssue(report.IssueImageFailure, string(StageBuildImages), report.SeverityWarning,
					fmt.Sprintf("build %s: %v", task.key, err), false, nil)
				mu.Unlock()
				r.log.Warn("image build failed", logfields.CacheKey(task.key), logfields.Error(err))
				continue
			}
			outcome := "built"
			if reused {
				outcome = "reused"
			}
			r.recorder.IncImageResult(tier, outcome)
			mu.Lock()
			rs.Outputs[task.key] = info.Name
			rs.Images = append(rs.Images, assemble.Image{Name: info.Name, Path: info.Path})
			if reused {
				rs.Report.ImagesReused++
			} else {
				rs.Report.ImagesBuilt++
			}
			mu.Unlock()
		}
	}

	fwg.Add(fetchWorkers)
	for i := 0; i < fetchWorkers; i++ {
		go fetchWorker()
	}
	ewg.Add(encodeWorkers)
	for i := 0; i < encodeWorkers; i++ {
		go encodeWorker()
	}

	for _, ref := range refs {
		select {
		case <-ctx.Done():
		case fetchTasks <- ref:
			continue
		}
		break
	}
	close(fetchTasks)
	fwg.Wait()
	close(encodeTasks)
	ewg.Wait()

	if ctx.Err() != nil {
		return newCanceledStageError(StageBuildImages, ctx.Err())
	}
	if failed > 0 {
		return newWarnStageError(StageBuildImages, fmt.Errorf("%w: %d of %d images failed", ErrImages, failed, len(refs)))
	}
	return nil
}

// retryableFetch reports whether err is a retryable fetch failure, for the
// issue's transient hint.
func retryableFetch(err error) bool {
	var fe *fetch.Error
	return errors.As(err, &fe) && fe.Retryable()
}
