package orchestrator

import "time"

// Config holds every tunable the orchestrator recognizes (spec §6).
type Config struct {
	MaxConcurrent           int           `yaml:"maxConcurrent"`
	DefaultToolTimeout      time.Duration `yaml:"defaultToolTimeout"`
	MaxRetries              int           `yaml:"maxRetries"`
	AutoReconnect           bool          `yaml:"autoReconnect"`
	KeepaliveInterval       time.Duration `yaml:"keepaliveInterval"`
	MaxParallel             int           `yaml:"maxParallel"`
	ParallelTimeout         time.Duration `yaml:"parallelTimeout"` // zero means "none"
	CancelOnCritical        bool          `yaml:"cancelOnCritical"`
	BreakerFailureThreshold int           `yaml:"breakerFailureThreshold"`
	BreakerOpenDuration     time.Duration `yaml:"breakerOpenDuration"`
	BreakerHalfOpenRequired int           `yaml:"breakerHalfOpenRequired"`
}

// DefaultConfig returns the documented defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:           10,
		DefaultToolTimeout:      30 * time.Second,
		MaxRetries:              3,
		AutoReconnect:           true,
		KeepaliveInterval:       30 * time.Second,
		MaxParallel:             10,
		ParallelTimeout:         0,
		CancelOnCritical:        false,
		BreakerFailureThreshold: 5,
		BreakerOpenDuration:     60 * time.Second,
		BreakerHalfOpenRequired: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.DefaultToolTimeout <= 0 {
		c.DefaultToolTimeout = d.DefaultToolTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = d.MaxParallel
	}
	if c.MaxParallel > c.MaxConcurrent {
		c.MaxParallel = c.MaxConcurrent
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if c.BreakerOpenDuration <= 0 {
		c.BreakerOpenDuration = d.BreakerOpenDuration
	}
	if c.BreakerHalfOpenRequired <= 0 {
		c.BreakerHalfOpenRequired = d.BreakerHalfOpenRequired
	}
	return c
}
