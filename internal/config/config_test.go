package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dexbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  index_url: https://dex.example.org/wiki/Catalog_index\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Fetch.Workers)
	require.Equal(t, RetryBackoffExponential, cfg.Fetch.RetryBackoff)
	require.Equal(t, "500ms", cfg.Fetch.RetryInitialDelay)
	require.Equal(t, 3, cfg.Fetch.MaxRetries)
	require.Equal(t, QualityFast, cfg.Images.Quality)
	require.Equal(t, 1, cfg.Render.MaxBodySections)
	require.Equal(t, "./cache", cfg.Cache.Dir)
	require.Equal(t, "./dict", cfg.Output.Directory)
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoad_MissingIndexURLFails(t *testing.T) {
	path := writeConfig(t, "output:\n  directory: ./out\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "index_url")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
source:
  index_url: https://dex.example.org/wiki/Catalog_index
fetch:
  politeness_delay: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "politeness_delay")
}

func TestLoad_NormalizesQuality(t *testing.T) {
	path := writeConfig(t, `
source:
  index_url: https://dex.example.org/wiki/Catalog_index
images:
  quality: " HIGH "
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, QualityHigh, cfg.Images.Quality)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DEX_INDEX", "https://dex.example.org/wiki/Catalog_index")
	path := writeConfig(t, "source:\n  index_url: ${DEX_INDEX}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://dex.example.org/wiki/Catalog_index", cfg.Source.IndexURL)
}

func TestLoad_EventsRequireURL(t *testing.T) {
	path := writeConfig(t, `
source:
  index_url: https://dex.example.org/wiki/Catalog_index
events:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "events.url")
}

func TestInit_WritesLoadableExample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dexbuilder.yaml")

	require.NoError(t, Init(path, false))
	// Second init without force must refuse to clobber.
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, QualityFast, cfg.Images.Quality)
}

func TestSnapshot_TracksBuildAffectingFieldsOnly(t *testing.T) {
	path := writeConfig(t, "source:\n  index_url: https://dex.example.org/wiki/Catalog_index\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	base := cfg.Snapshot()
	require.NotEmpty(t, base)

	cfg.Logging.Level = LogLevelDebug
	require.Equal(t, base, cfg.Snapshot(), "logging changes must not alter the snapshot")

	cfg.Images.Quality = QualityHigh
	require.NotEqual(t, base, cfg.Snapshot(), "quality tier is build-affecting")
}
