package recovery

import "time"

// Config holds every tunable the recovery loop recognizes (spec §6).
type Config struct {
	MaxRetryAttempts      int           `yaml:"maxRetryAttempts"`
	ImmediateRetryEnabled bool          `yaml:"immediateRetryEnabled"`
	BackoffEnabled        bool          `yaml:"backoffEnabled"`
	QualityFallbackEnabled bool         `yaml:"qualityFallbackEnabled"`
	BackoffBase           time.Duration `yaml:"backoffBaseSec"`
	BackoffMultiplier     float64       `yaml:"backoffMultiplier"`
	BackoffMax            time.Duration `yaml:"backoffMaxSec"`
	ResultDeadline        time.Duration `yaml:"resultDeadlineSec"`
}

// DefaultConfig returns reasonable defaults for an unconfigured loop.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts:       5,
		ImmediateRetryEnabled:  true,
		BackoffEnabled:         true,
		QualityFallbackEnabled: true,
		BackoffBase:            30 * time.Second,
		BackoffMultiplier:      2.0,
		BackoffMax:             10 * time.Minute,
		ResultDeadline:         5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetryAttempts < 0 {
		c.MaxRetryAttempts = d.MaxRetryAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.ResultDeadline <= 0 {
		c.ResultDeadline = d.ResultDeadline
	}
	return c
}

// maxQualityDowngrades bounds how many times QualityFallback may lower the
// quality tier for a single download before recovery falls back to
// AlternativeSearch.
const maxQualityDowngrades = 2
