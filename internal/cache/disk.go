package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
)

const (
	pagesDir  = "pages"
	imagesDir = "images"
	lockFile  = ".lock"
)

// DiskStore is the file-backed Store implementation. Blobs live directly on
// disk; artifact identity lives in a sqlite manifest next to them. A file
// lock on the cache root serializes whole processes so two builds never
// interleave writes.
type DiskStore struct {
	root     string
	manifest *manifest
	lock     *flock.Flock
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-key write serialization
}

// Open prepares the cache directory, acquires the process lock and opens the
// manifest. Callers must Close the store to release the lock.
func Open(root string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, pagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, imagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	fl := flock.New(filepath.Join(root, lockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cache directory %s is locked by another process", root)
	}

	m, err := openManifest(filepath.Join(root, "manifest.db"))
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	return &DiskStore{
		root:     root,
		manifest: m,
		lock:     fl,
		logger:   slog.Default().With("component", "cache"),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the manifest and the process lock.
func (s *DiskStore) Close() error {
	err := s.manifest.close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// Root returns the cache root directory.
func (s *DiskStore) Root() string { return s.root }

// keyLock returns the mutex serializing writes for one relative path.
func (s *DiskStore) keyLock(rel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[rel]
	if !ok {
		l = &sync.Mutex{}
		s.locks[rel] = l
	}
	return l
}

// validKey rejects empty keys and keys that would escape their namespace.
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty cache key")
	}
	if strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return fmt.Errorf("cache key %q contains path separators", key)
	}
	return nil
}

func (s *DiskStore) ReadPage(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, pagesDir, key))
	if os.IsNotExist(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cached page: %w", err)
	}
	return data, nil
}

func (s *DiskStore) WritePage(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}
	rel := filepath.Join(pagesDir, key)
	l := s.keyLock(rel)
	l.Lock()
	defer l.Unlock()
	if err := s.writeAtomic(rel, data); err != nil {
		return err
	}
	s.logger.Debug("page cached", logfields.CacheKey(key), logfields.Count(len(data)))
	return nil
}

func (s *DiskStore) LookupArtifact(ctx context.Context, sourceHash, tier string) (ArtifactInfo, bool, error) {
	row, ok, err := s.manifest.lookup(ctx, sourceHash, tier)
	if err != nil || !ok {
		return ArtifactInfo{}, false, err
	}
	path := filepath.Join(s.root, imagesDir, tier, row.name)
	st, err := os.Stat(path)
	if err != nil {
		// Manifest row without blob: treat as a miss so the caller
		// re-encodes and heals the store.
		return ArtifactInfo{}, false, nil
	}
	return ArtifactInfo{Name: row.name, Path: path, Size: st.Size()}, true, nil
}

func (s *DiskStore) StoreArtifact(ctx context.Context, art Artifact) (ArtifactInfo, error) {
	if err := ctx.Err(); err != nil {
		return ArtifactInfo{}, err
	}
	if err := validKey(art.Name); err != nil {
		return ArtifactInfo{}, err
	}
	if art.SourceHash == "" || art.Tier == "" {
		return ArtifactInfo{}, fmt.Errorf("artifact %s missing source hash or tier", art.Name)
	}

	rel := filepath.Join(imagesDir, art.Tier, art.Name)
	l := s.keyLock(rel)
	l.Lock()
	defer l.Unlock()

	if err := s.writeAtomic(rel, art.Data); err != nil {
		return ArtifactInfo{}, err
	}
	if err := s.manifest.record(ctx, art.SourceHash, art.Tier, art.Name, int64(len(art.Data))); err != nil {
		return ArtifactInfo{}, err
	}
	s.logger.Debug("artifact cached",
		logfields.Tier(art.Tier), logfields.CacheKey(art.Name), logfields.Count(len(art.Data)))
	return ArtifactInfo{
		Name: art.Name,
		Path: filepath.Join(s.root, rel),
		Size: int64(len(art.Data)),
	}, nil
}

// writeAtomic writes data to rel via a temp file in the same directory plus
// rename, so readers never observe partial content.
func (s *DiskStore) writeAtomic(rel string, data []byte) error {
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create cache subdirectory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize cache entry: %w", err)
	}
	return nil
}

func (s *DiskStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Artifacts:     make(map[string]int),
		ArtifactBytes: make(map[string]int64),
	}

	pageEntries, err := os.ReadDir(filepath.Join(s.root, pagesDir))
	if err != nil && !os.IsNotExist(err) {
		return Stats{}, fmt.Errorf("scan page cache: %w", err)
	}
	for _, e := range pageEntries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.Pages++
		st.PageBytes += info.Size()
	}

	tiers, err := os.ReadDir(filepath.Join(s.root, imagesDir))
	if err != nil && !os.IsNotExist(err) {
		return Stats{}, fmt.Errorf("scan artifact cache: %w", err)
	}
	for _, tier := range tiers {
		if !tier.IsDir() {
			continue
		}
		blobs, err := os.ReadDir(filepath.Join(s.root, imagesDir, tier.Name()))
		if err != nil {
			continue
		}
		for _, b := range blobs {
			if b.IsDir() {
				continue
			}
			info, err := b.Info()
			if err != nil {
				continue
			}
			st.Artifacts[tier.Name()]++
			st.ArtifactBytes[tier.Name()] += info.Size()
		}
	}

	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *DiskStore) Clear(ctx context.Context, namespace string) error {
	switch namespace {
	case "":
		if err := os.RemoveAll(filepath.Join(s.root, pagesDir)); err != nil {
			return fmt.Errorf("clear page cache: %w", err)
		}
		if err := os.RemoveAll(filepath.Join(s.root, imagesDir)); err != nil {
			return fmt.Errorf("clear artifact cache: %w", err)
		}
		if err := s.manifest.clear(ctx, ""); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(s.root, pagesDir), 0o755); err != nil {
			return err
		}
		return os.MkdirAll(filepath.Join(s.root, imagesDir), 0o755)
	case pagesDir:
		if err := os.RemoveAll(filepath.Join(s.root, pagesDir)); err != nil {
			return fmt.Errorf("clear page cache: %w", err)
		}
		return os.MkdirAll(filepath.Join(s.root, pagesDir), 0o755)
	default:
		// Tier namespace.
		if err := os.RemoveAll(filepath.Join(s.root, imagesDir, namespace)); err != nil {
			return fmt.Errorf("clear tier %s: %w", namespace, err)
		}
		return s.manifest.clear(ctx, namespace)
	}
}
