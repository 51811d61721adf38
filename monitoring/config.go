package monitoring

import "time"

// Config holds every tunable the monitoring loop recognizes (spec §6).
type Config struct {
	PollInterval                  time.Duration `yaml:"pollIntervalSec"`
	FailureDetectionEnabled       bool          `yaml:"failureDetectionEnabled"`
	PatternRecognitionEnabled     bool          `yaml:"patternRecognitionEnabled"`
	AlertThrottleWindow           time.Duration `yaml:"alertThrottleWindowSec"`
	PatternWindow                 time.Duration `yaml:"patternWindowSec"`
	PatternThreshold              int           `yaml:"patternThreshold"`
	ConsecutivePollFailureThreshold int         `yaml:"consecutivePollFailureThreshold"`
}

// DefaultConfig returns reasonable defaults for an unconfigured loop.
func DefaultConfig() Config {
	return Config{
		PollInterval:                    30 * time.Second,
		FailureDetectionEnabled:         true,
		PatternRecognitionEnabled:       true,
		AlertThrottleWindow:             5 * time.Minute,
		PatternWindow:                   15 * time.Minute,
		PatternThreshold:                3,
		ConsecutivePollFailureThreshold: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.AlertThrottleWindow <= 0 {
		c.AlertThrottleWindow = d.AlertThrottleWindow
	}
	if c.PatternWindow <= 0 {
		c.PatternWindow = d.PatternWindow
	}
	if c.PatternThreshold <= 0 {
		c.PatternThreshold = d.PatternThreshold
	}
	if c.ConsecutivePollFailureThreshold <= 0 {
		c.ConsecutivePollFailureThreshold = d.ConsecutivePollFailureThreshold
	}
	return c
}
