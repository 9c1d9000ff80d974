package config

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// FetchDefaultApplier handles fetch configuration defaults.
type FetchDefaultApplier struct{}

func (f *FetchDefaultApplier) Domain() string { return "fetch" }

func (f *FetchDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Fetch.Workers <= 0 {
		cfg.Fetch.Workers = 4
	}
	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = "30s"
	}
	if cfg.Fetch.PolitenessDelay == "" {
		cfg.Fetch.PolitenessDelay = "500ms"
	}

	if cfg.Fetch.MaxRetries < 0 {
		cfg.Fetch.MaxRetries = 0
	}
	if cfg.Fetch.MaxRetries == 0 { // default 3 retries (4 total attempts) unless explicitly set >0
		cfg.Fetch.MaxRetries = 3
	}

	if cfg.Fetch.RetryBackoff == "" {
		cfg.Fetch.RetryBackoff = RetryBackoffExponential
	} else {
		// normalize any user-provided raw string
		cfg.Fetch.RetryBackoff = NormalizeRetryBackoff(string(cfg.Fetch.RetryBackoff))
		if cfg.Fetch.RetryBackoff == "" { // fallback to default if unknown
			cfg.Fetch.RetryBackoff = RetryBackoffExponential
		}
	}

	if cfg.Fetch.RetryInitialDelay == "" {
		cfg.Fetch.RetryInitialDelay = "500ms"
	}
	if cfg.Fetch.RetryMaxDelay == "" {
		cfg.Fetch.RetryMaxDelay = "30s"
	}
}

// ImagesDefaultApplier handles image pipeline defaults.
type ImagesDefaultApplier struct{}

func (i *ImagesDefaultApplier) Domain() string { return "images" }

func (i *ImagesDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Images.Quality == "" {
		cfg.Images.Quality = QualityFast
	} else {
		q := NormalizeQualityTier(string(cfg.Images.Quality))
		if q == "" {
			cfg.Images.Quality = QualityFast
		} else {
			cfg.Images.Quality = q
		}
	}
	// EncodeWorkers <= 0 means one per CPU; resolved at pool construction.
	if cfg.Images.EncodeWorkers < 0 {
		cfg.Images.EncodeWorkers = 0
	}
}

// RenderDefaultApplier handles rendering defaults.
type RenderDefaultApplier struct{}

func (r *RenderDefaultApplier) Domain() string { return "render" }

func (r *RenderDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Render.MaxBodySections <= 0 {
		cfg.Render.MaxBodySections = 1
	}
}

// PathsDefaultApplier handles cache and output locations.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "./cache"
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./dict"
	}
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	} else {
		lv := NormalizeLogLevel(string(cfg.Logging.Level))
		if lv == "" {
			cfg.Logging.Level = LogLevelInfo
		} else {
			cfg.Logging.Level = lv
		}
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	} else {
		f := NormalizeLogFormat(string(cfg.Logging.Format))
		if f == "" {
			cfg.Logging.Format = LogFormatText
		} else {
			cfg.Logging.Format = f
		}
	}
}

// EventsDefaultApplier handles event publication defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "dexbuilder"
	}
}

// defaultAppliers lists all domain appliers in application order.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&FetchDefaultApplier{},
		&ImagesDefaultApplier{},
		&RenderDefaultApplier{},
		&PathsDefaultApplier{},
		&LoggingDefaultApplier{},
		&EventsDefaultApplier{},
	}
}

// applyDefaults runs every domain applier over the configuration.
func applyDefaults(cfg *Config) {
	for _, a := range defaultAppliers() {
		a.ApplyDefaults(cfg)
	}
}
