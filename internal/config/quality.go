package config

import "strings"

// QualityTier selects the image pipeline preset: fast favors encode speed and
// small artifacts for iteration builds, high favors fidelity for release
// builds.
type QualityTier string

const (
	QualityFast QualityTier = "fast"
	QualityHigh QualityTier = "high"
)

// NormalizeQualityTier canonicalizes user input returning empty string if unknown.
func NormalizeQualityTier(raw string) QualityTier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(QualityFast):
		return QualityFast
	case string(QualityHigh):
		return QualityHigh
	default:
		return ""
	}
}
