package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dexbuilder/internal/assemble"
	"git.home.luguber.info/inful/dexbuilder/internal/cache"
	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

// pageSpec describes one fixture entry page served by the catalog server.
type pageSpec struct {
	id          int
	name        string
	ja          string
	category    string
	prev, next  int    // 0 = no such relation
	image       string // artwork file under /media/upload/a/b/, "" = none
	caption     string
	brokenImage bool // reference the artwork but serve no file for it
	malformed   bool // serve a page without the info box
}

func (s pageSpec) path() string { return "/wiki/" + s.name + "_(mon)" }

func indexPage(specs []pageSpec) string {
	var b strings.Builder
	b.WriteString("<html><body><table class=\"roster\"><tbody>\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "<tr><td>#%04d</td><td><a href=\"%s\">%s</a></td></tr>\n", s.id, s.path(), s.name)
	}
	b.WriteString("</tbody></table></body></html>\n")
	return b.String()
}

func relationRow(class string, target int, names map[int]string) string {
	name, ok := names[target]
	if !ok {
		name = fmt.Sprintf("Entry%d", target)
	}
	return fmt.Sprintf("<tr class=%q data-target=\"#%04d\"><td><a href=\"/wiki/%s_(mon)\">%s</a></td></tr>\n",
		class, target, name, name)
}

func entryPage(s pageSpec, names map[int]string) string {
	if s.malformed {
		return "<html><body><p>wiki maintenance page</p></body></html>\n"
	}
	var b strings.Builder
	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<div class=\"entry-id\">#%04d</div>\n", s.id)

	b.WriteString("<table class=\"infobox\"><tbody>\n")
	fmt.Fprintf(&b, "<tr><td><big>%s</big></td></tr>\n", s.name)
	if s.category != "" {
		fmt.Fprintf(&b, "<tr><td><span class=\"category\">%s</span></td></tr>\n", s.category)
	}
	if s.ja != "" {
		fmt.Fprintf(&b, "<tr><td><span lang=\"ja\">%s</span></td></tr>\n", s.ja)
	}
	if s.image != "" {
		fmt.Fprintf(&b, "<tr class=\"artwork\"><td><img src=\"/media/upload/a/b/%s\" alt=\"%s artwork\" width=\"250\" />", s.image, s.name)
		if s.caption != "" {
			fmt.Fprintf(&b, "<small>%s</small>", s.caption)
		}
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("<tr class=\"stat\" data-stat=\"height\"><th>Height</th><td class=\"stat-value\">0.7 m</td></tr>\n")
	b.WriteString("<tr class=\"stat\" data-stat=\"hp\"><th>HP</th><td class=\"stat-value\">45</td></tr>\n")
	b.WriteString("</tbody></table>\n")

	if s.prev > 0 || s.next > 0 {
		b.WriteString("<table class=\"family-nav\"><tbody>\n")
		if s.prev > 0 {
			b.WriteString(relationRow("evo-prev", s.prev, names))
		}
		if s.next > 0 {
			b.WriteString(relationRow("evo-next", s.next, names))
		}
		b.WriteString("</tbody></table>\n")
	}

	b.WriteString("<div class=\"page-content\">\n")
	fmt.Fprintf(&b, "<p>%s is a seed creature.</p>\n", s.name)
	b.WriteString("<div id=\"toc\">contents</div>\n")
	b.WriteString("<h2>Biology</h2>\n<p>It carries a bulb on its back.</p>\n")
	b.WriteString("</div>\n</body></html>\n")
	return b.String()
}

// catalogServer serves a fixture wiki: the roster index, one page per entry
// and the referenced artwork uploads. requests counts every hit so tests can
// prove later runs were served from the durable cache.
type catalogServer struct {
	*httptest.Server
	requests atomic.Int64
}

func newCatalogServer(t *testing.T, specs []pageSpec, pngData []byte) *catalogServer {
	t.Helper()
	names := make(map[int]string, len(specs))
	for _, s := range specs {
		names[s.id] = s.name
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/index", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, indexPage(specs))
	})
	for _, s := range specs {
		s := s // the handler closures outlive the iteration
		mux.HandleFunc(s.path(), func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, entryPage(s, names))
		})
		if s.image != "" && !s.brokenImage {
			mux.HandleFunc("/media/upload/a/b/"+s.image, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write(pngData)
			})
		}
	}

	cs := &catalogServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

// testPNG returns a small fully opaque PNG, which the fast tier re-encodes
// as JPEG.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Source.IndexURL = baseURL + "/index"
	cfg.Source.SiteRoot = baseURL
	cfg.Fetch.Workers = 4
	cfg.Fetch.Timeout = "5s"
	cfg.Images.Quality = config.QualityFast
	cfg.Images.EncodeWorkers = 2
	cfg.Render.MaxBodySections = 2
	cfg.Output.Directory = filepath.Join(t.TempDir(), "dict")
	return cfg
}

func openStore(t *testing.T, dir string) *cache.DiskStore {
	t.Helper()
	store, err := cache.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func issuesWithCode(rep *report.RunReport, code report.IssueCode) []report.Issue {
	var out []report.Issue
	for _, is := range rep.Issues {
		if is.Code == code {
			out = append(out, is)
		}
	}
	return out
}

func readDocument(t *testing.T, rep *report.RunReport) string {
	t.Helper()
	raw, err := os.ReadFile(rep.DocumentPath)
	require.NoError(t, err)
	return string(raw)
}

func TestRunBuildsBundle(t *testing.T) {
	specs := []pageSpec{
		{id: 1, name: "Bulbasaur", ja: "フシギダネ", category: "Seed", next: 2, image: "Bulba.png", caption: "Original artwork"},
		{id: 2, name: "Ivysaur", ja: "フシギソウ", category: "Seed", prev: 1, next: 3, image: "Ivy.png"},
		{id: 3, name: "Venusaur", ja: "フシギバナ", category: "Seed", prev: 2, image: "Venus.png"},
	}
	srv := newCatalogServer(t, specs, testPNG(t))
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, report.OutcomeSuccess, rep.OutcomeT)
	require.Empty(t, rep.Issues)
	require.Equal(t, 3, rep.IndexEntries)
	require.Equal(t, 3, rep.ParsedEntries)
	require.Zero(t, rep.FailedEntries)
	require.Equal(t, 3, rep.ImagesBuilt)
	require.Zero(t, rep.ImagesReused)
	require.Equal(t, 3, rep.Rendered)

	require.Equal(t, filepath.Join(cfg.Output.Directory, assemble.DocumentName), rep.DocumentPath)
	doc := readDocument(t, rep)
	require.Contains(t, doc, `<d:entry id="dex-1" d:title="Bulbasaur">`)
	require.Contains(t, doc, `id="dex-2"`)
	require.Contains(t, doc, `id="dex-3"`)
	require.Contains(t, doc, `<d:index d:value="フシギダネ" />`)
	require.Contains(t, doc, `<a href="x-dictionary:r:dex-2">Ivysaur</a>`)
	require.Contains(t, doc, `src="images/Bulba-b-a.jpg"`)
	require.Contains(t, doc, `id="artwork-0"`)
	require.Contains(t, doc, "<tr><th>Height</th><td>0.7 m</td></tr>")
	require.Contains(t, doc, `<h2 class="section-heading">Biology</h2>`)
	require.Contains(t, doc, "<p>Bulbasaur is a seed creature.</p>")

	for _, name := range []string{"Bulba-b-a.jpg", "Ivy-b-a.jpg", "Venus-b-a.jpg"} {
		_, err := os.Stat(filepath.Join(cfg.Output.Directory, "images", name))
		require.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(cfg.Output.Directory, "run-report.json"))
	require.NoError(t, err)
}

func TestRunSkipsMalformedEntryPage(t *testing.T) {
	specs := []pageSpec{
		{id: 1, name: "Sprout", ja: "ハナ", next: 2},
		{id: 2, name: "Bloom", malformed: true},
	}
	srv := newCatalogServer(t, specs, nil)
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(cfg, store).Run(context.Background())
	require.NoError(t, err, "a single bad page must not fail the build")
	require.Equal(t, report.OutcomeWarning, rep.OutcomeT)
	require.Equal(t, 2, rep.IndexEntries)
	require.Equal(t, 1, rep.ParsedEntries)
	require.Equal(t, 1, rep.FailedEntries)

	parseIssues := issuesWithCode(rep, report.IssueParseFailure)
	require.Len(t, parseIssues, 1)
	require.Equal(t, "#0002", parseIssues[0].Entry)

	// Entry 1's successor points at the skipped entry, so the resolver
	// reports it dangling and the link is not rendered.
	require.Len(t, issuesWithCode(rep, report.IssueDanglingReference), 1)
	require.Len(t, rep.Warnings, 2, "fetch rollup plus dangling reference")
	doc := readDocument(t, rep)
	require.Contains(t, doc, `id="dex-1"`)
	require.NotContains(t, doc, "dex-2")
}

func TestRunDanglingReference(t *testing.T) {
	specs := []pageSpec{
		{id: 1, name: "Sprout", ja: "ハナ", next: 2},
		{id: 2, name: "Bloom", ja: "ハナビ", prev: 1, next: 999},
	}
	srv := newCatalogServer(t, specs, nil)
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, report.OutcomeWarning, rep.OutcomeT)

	dangling := issuesWithCode(rep, report.IssueDanglingReference)
	require.Len(t, dangling, 1)
	require.Equal(t, "#0002", dangling[0].Entry)
	require.Equal(t, string(StageResolveRefs), dangling[0].Stage)
	require.Len(t, rep.Warnings, 1)

	doc := readDocument(t, rep)
	require.Contains(t, doc, `<a href="x-dictionary:r:dex-1">Sprout</a>`)
	require.NotContains(t, doc, "dex-999")
}

func TestRunTierArtifacts(t *testing.T) {
	specs := []pageSpec{{id: 1, name: "Glow", ja: "ヒカリ", image: "Glow.png"}}
	srv := newCatalogServer(t, specs, testPNG(t))
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(testConfig(t, srv.URL), store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.ImagesBuilt)
	require.Zero(t, rep.ImagesReused)
	afterFirst := srv.requests.Load()

	// A different tier is a different artifact: the high run re-encodes
	// from the cached source without touching the network.
	cfgHigh := testConfig(t, srv.URL)
	cfgHigh.Images.Quality = config.QualityHigh
	rep, err = NewRunner(cfgHigh, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.ImagesBuilt)
	require.Zero(t, rep.ImagesReused)

	// Back on the fast tier everything is recorded already.
	rep, err = NewRunner(testConfig(t, srv.URL), store).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, rep.ImagesBuilt)
	require.Equal(t, 1, rep.ImagesReused)

	require.Equal(t, afterFirst, srv.requests.Load(), "repeat runs must be served from the cache")
}

func TestRunImageFailure(t *testing.T) {
	specs := []pageSpec{{id: 1, name: "Shade", ja: "カゲ", image: "Shade.png", brokenImage: true}}
	srv := newCatalogServer(t, specs, nil)
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(cfg, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, report.OutcomeWarning, rep.OutcomeT)
	require.Equal(t, 1, rep.ImagesFailed)
	require.Zero(t, rep.ImagesBuilt)

	// One issue for the image itself, one for the stage rollup.
	imgIssues := issuesWithCode(rep, report.IssueImageFailure)
	require.Len(t, imgIssues, 2)
	require.False(t, imgIssues[0].Transient, "a 404 upload is not transient")
	require.Len(t, rep.Warnings, 1)
	require.ErrorIs(t, rep.Warnings[0], ErrImages)

	// The entry still renders, just without its artwork.
	doc := readDocument(t, rep)
	require.Contains(t, doc, `id="dex-1"`)
	require.NotContains(t, doc, "<img")
}

func TestRunCanceled(t *testing.T) {
	srv := newCatalogServer(t, []pageSpec{{id: 1, name: "Sprout"}}, nil)
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := NewRunner(cfg, store).Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, report.OutcomeCanceled, rep.OutcomeT)
	require.Len(t, rep.Issues, 1)
	require.Equal(t, report.IssueCanceled, rep.Issues[0].Code)
	require.Equal(t, "canceled", rep.StageErrorKinds[string(StageFetchPages)])
	require.Empty(t, rep.StageDurations, "no stage ran")

	_, statErr := os.Stat(filepath.Join(cfg.Output.Directory, assemble.DocumentName))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunIndexFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	cfg := testConfig(t, srv.URL)
	store := openStore(t, filepath.Join(t.TempDir(), "cache"))

	rep, err := NewRunner(cfg, store).Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "HTTP 500")
	require.Equal(t, report.OutcomeFailed, rep.OutcomeT)
	require.Len(t, rep.Errors, 1)

	fetchIssues := issuesWithCode(rep, report.IssueFetchFailure)
	require.Len(t, fetchIssues, 1)
	require.Equal(t, report.SeverityError, fetchIssues[0].Severity)
	require.Equal(t, string(StageFetchPages), fetchIssues[0].Stage)
	require.Len(t, rep.StageDurations, 1, "later stages never ran")

	// The report is persisted even for failed runs; no bundle is promoted.
	_, err = os.Stat(filepath.Join(cfg.Output.Directory, "run-report.json"))
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(cfg.Output.Directory, assemble.DocumentName))
	require.True(t, os.IsNotExist(statErr))
}
