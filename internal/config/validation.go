package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

// newConfigurationValidator creates a comprehensive configuration validator.
func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	if err := cv.validateSource(); err != nil {
		return err
	}
	if err := cv.validateFetch(); err != nil {
		return err
	}
	if err := cv.validateImages(); err != nil {
		return err
	}
	if err := cv.validateEvents(); err != nil {
		return err
	}
	return nil
}

// validateSource checks the upstream catalog locators.
func (cv *configurationValidator) validateSource() error {
	src := cv.config.Source
	if src.IndexURL == "" {
		return errors.New("source.index_url must be configured")
	}
	u, err := url.Parse(src.IndexURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.index_url is not an absolute URL: %q", src.IndexURL)
	}
	if src.SiteRoot != "" {
		r, err := url.Parse(src.SiteRoot)
		if err != nil || r.Scheme == "" || r.Host == "" {
			return fmt.Errorf("source.site_root is not an absolute URL: %q", src.SiteRoot)
		}
	}
	return nil
}

// validateFetch checks worker counts and duration strings.
func (cv *configurationValidator) validateFetch() error {
	f := cv.config.Fetch
	if f.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be positive, got %d", f.Workers)
	}
	for name, raw := range map[string]string{
		"fetch.timeout":             f.Timeout,
		"fetch.politeness_delay":    f.PolitenessDelay,
		"fetch.retry_initial_delay": f.RetryInitialDelay,
		"fetch.retry_max_delay":     f.RetryMaxDelay,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
		}
	}
	return nil
}

// validateImages checks the quality tier.
func (cv *configurationValidator) validateImages() error {
	if NormalizeQualityTier(string(cv.config.Images.Quality)) == "" {
		return fmt.Errorf("images.quality must be one of fast|high, got %q", cv.config.Images.Quality)
	}
	return nil
}

// validateEvents requires a URL when publication is enabled.
func (cv *configurationValidator) validateEvents() error {
	ev := cv.config.Events
	if ev.Enabled && ev.URL == "" {
		return errors.New("events.url must be configured when events.enabled is true")
	}
	return nil
}

// Duration parses one of the config's duration strings, falling back to the
// given default when the field is empty. Validation has already rejected
// malformed values, so parse errors surface only for programmer mistakes.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
