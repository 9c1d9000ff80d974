package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of build-affecting normalized configuration
// fields. It is intentionally narrower than full serialization so that knobs
// with no bearing on the produced dictionary (logging, metrics, events) do not
// change the snapshot. Callers SHOULD load through Load (defaults applied)
// before computing a snapshot to ensure canonical field values.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("source.index_url", c.Source.IndexURL)
	w("source.site_root", c.Source.SiteRoot)
	w("images.quality", string(c.Images.Quality))
	w("render.max_body_sections", strconv.Itoa(c.Render.MaxBodySections))
	w("output.directory", c.Output.Directory)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
