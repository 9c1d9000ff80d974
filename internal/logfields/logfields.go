package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyEntry      = "entry"
	KeyEntryName  = "entry_name"
	KeyURL        = "url"
	KeyCacheKey   = "cache_key"
	KeyTier       = "tier"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyPath       = "path"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Entry(id string) slog.Attr       { return slog.String(KeyEntry, id) }
func EntryName(n string) slog.Attr    { return slog.String(KeyEntryName, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func CacheKey(k string) slog.Attr     { return slog.String(KeyCacheKey, k) }
func Tier(t string) slog.Attr         { return slog.String(KeyTier, t) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
