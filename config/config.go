// Package config loads the gateway's YAML configuration (spec.md §6) into
// the typed records each subsystem constructs from, in the style of
// CirtusX-ctrl-ai-v1's internal/config package: Load/validate/applyDefaults,
// gopkg.in/yaml.v3, strict decoding so an unrecognized key is a load error
// instead of being silently ignored.
//
// The YAML schema uses the literal option names from spec.md §6 (durations
// as "...Sec" integers); Load converts each into the time.Duration-typed
// Config a component actually constructs from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mediabridge/gatewayd/eventbus"
	"github.com/mediabridge/gatewayd/monitoring"
	"github.com/mediabridge/gatewayd/observe"
	"github.com/mediabridge/gatewayd/orchestrator"
	"github.com/mediabridge/gatewayd/recovery"
	"github.com/mediabridge/gatewayd/upstream"
)

// Config is the root of config.yaml.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
	EventBus     EventBusConfig     `yaml:"eventBus"`
	Observe      ObserveConfig      `yaml:"observe"`
	Upstreams    []UpstreamConfig   `yaml:"upstreams"`
}

// OrchestratorConfig is the YAML wire shape of spec.md §6's Orchestrator
// option group.
type OrchestratorConfig struct {
	MaxConcurrent           int  `yaml:"maxConcurrent"`
	DefaultToolTimeoutSec   int  `yaml:"defaultToolTimeoutSec"`
	MaxRetries              int  `yaml:"maxRetries"`
	AutoReconnect           bool `yaml:"autoReconnect"`
	KeepaliveIntervalSec    int  `yaml:"keepaliveIntervalSec"`
	MaxParallel             int  `yaml:"maxParallel"`
	ParallelTimeoutSec      int  `yaml:"parallelTimeoutSec"`
	CancelOnCritical        bool `yaml:"cancelOnCritical"`
	BreakerFailureThreshold int  `yaml:"breakerFailureThreshold"`
	BreakerOpenDurationSec  int  `yaml:"breakerOpenDurationSec"`
	BreakerHalfOpenRequired int  `yaml:"breakerHalfOpenRequired"`
}

func (c OrchestratorConfig) toDomain() orchestrator.Config {
	return orchestrator.Config{
		MaxConcurrent:           c.MaxConcurrent,
		DefaultToolTimeout:      time.Duration(c.DefaultToolTimeoutSec) * time.Second,
		MaxRetries:              c.MaxRetries,
		AutoReconnect:           c.AutoReconnect,
		KeepaliveInterval:       time.Duration(c.KeepaliveIntervalSec) * time.Second,
		MaxParallel:             c.MaxParallel,
		ParallelTimeout:         time.Duration(c.ParallelTimeoutSec) * time.Second,
		CancelOnCritical:        c.CancelOnCritical,
		BreakerFailureThreshold: c.BreakerFailureThreshold,
		BreakerOpenDuration:     time.Duration(c.BreakerOpenDurationSec) * time.Second,
		BreakerHalfOpenRequired: c.BreakerHalfOpenRequired,
	}
}

// MonitoringConfig is the YAML wire shape of spec.md §6's Monitoring
// option group.
type MonitoringConfig struct {
	PollIntervalSec                 int  `yaml:"pollIntervalSec"`
	FailureDetectionEnabled         bool `yaml:"failureDetectionEnabled"`
	PatternRecognitionEnabled       bool `yaml:"patternRecognitionEnabled"`
	AlertThrottleWindowSec          int  `yaml:"alertThrottleWindowSec"`
	PatternWindowSec                int  `yaml:"patternWindowSec"`
	PatternThreshold                int  `yaml:"patternThreshold"`
	ConsecutivePollFailureThreshold int  `yaml:"consecutivePollFailureThreshold"`
}

func (c MonitoringConfig) toDomain() monitoring.Config {
	return monitoring.Config{
		PollInterval:                    time.Duration(c.PollIntervalSec) * time.Second,
		FailureDetectionEnabled:         c.FailureDetectionEnabled,
		PatternRecognitionEnabled:       c.PatternRecognitionEnabled,
		AlertThrottleWindow:             time.Duration(c.AlertThrottleWindowSec) * time.Second,
		PatternWindow:                   time.Duration(c.PatternWindowSec) * time.Second,
		PatternThreshold:                c.PatternThreshold,
		ConsecutivePollFailureThreshold: c.ConsecutivePollFailureThreshold,
	}
}

// RecoveryConfig is the YAML wire shape of spec.md §6's Recovery option
// group.
type RecoveryConfig struct {
	MaxRetryAttempts       int     `yaml:"maxRetryAttempts"`
	ImmediateRetryEnabled  bool    `yaml:"immediateRetryEnabled"`
	BackoffEnabled         bool    `yaml:"backoffEnabled"`
	QualityFallbackEnabled bool    `yaml:"qualityFallbackEnabled"`
	BackoffBaseSec         int     `yaml:"backoffBaseSec"`
	BackoffMultiplier      float64 `yaml:"backoffMultiplier"`
	BackoffMaxSec          int     `yaml:"backoffMaxSec"`
	ResultDeadlineSec      int     `yaml:"resultDeadlineSec"`
}

func (c RecoveryConfig) toDomain() recovery.Config {
	return recovery.Config{
		MaxRetryAttempts:       c.MaxRetryAttempts,
		ImmediateRetryEnabled:  c.ImmediateRetryEnabled,
		BackoffEnabled:         c.BackoffEnabled,
		QualityFallbackEnabled: c.QualityFallbackEnabled,
		BackoffBase:            time.Duration(c.BackoffBaseSec) * time.Second,
		BackoffMultiplier:      c.BackoffMultiplier,
		BackoffMax:             time.Duration(c.BackoffMaxSec) * time.Second,
		ResultDeadline:         time.Duration(c.ResultDeadlineSec) * time.Second,
	}
}

// EventBusConfig is the YAML wire shape of spec.md §6's Event Bus option
// group.
type EventBusConfig struct {
	MaxHistorySize int `yaml:"maxHistorySize"`
}

func (c EventBusConfig) toDomain() eventbus.Config {
	return eventbus.Config{MaxHistorySize: c.MaxHistorySize}
}

// ObserveConfig is the YAML wire shape of the ambient telemetry stack
// (SPEC_FULL.md §2 C10), adapted from observe.Config.
type ObserveConfig struct {
	ServiceName string `yaml:"serviceName"`
	Version     string `yaml:"version"`
	Tracing     struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"samplePct"`
	} `yaml:"tracing"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
	Logging struct {
		Enabled bool   `yaml:"enabled"`
		Level   string `yaml:"level"`
	} `yaml:"logging"`
}

func (c ObserveConfig) toDomain() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Enabled,
			Exporter:  c.Tracing.Exporter,
			SamplePct: c.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Exporter: c.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Logging.Enabled,
			Level:   c.Logging.Level,
		},
	}
}

// UpstreamConfig is the YAML wire shape of one entry in spec.md §3's
// UpstreamConfig: { kind, base URL, credential, timeout, max retries,
// enabled }. Credential is a literal (with "${VAR}" environment expansion) or
// a "secretref:provider:ref" string, resolved through secret.Resolver at
// adapter construction time.
type UpstreamConfig struct {
	Kind       string `yaml:"kind"`
	BaseURL    string `yaml:"baseUrl"`
	Credential string `yaml:"credential"`
	TimeoutSec int    `yaml:"timeoutSec"`
	MaxRetries int     `yaml:"maxRetries"`
	Enabled    bool   `yaml:"enabled"`
}

func (c UpstreamConfig) toDomain() (upstream.Config, error) {
	kind, ok := upstream.ParseKind(c.Kind)
	if !ok {
		return upstream.Config{}, fmt.Errorf("config: unknown upstream kind %q", c.Kind)
	}
	return upstream.Config{
		Kind:       kind,
		BaseURL:    c.BaseURL,
		Credential: upstream.CredentialRef(c.Credential),
		Timeout:    time.Duration(c.TimeoutSec) * time.Second,
		MaxRetries: c.MaxRetries,
		Enabled:    c.Enabled,
	}, nil
}

// Loaded is the fully-typed configuration every component is constructed
// from, after wire-format conversion. Load applies no defaults of its own;
// zero values are passed through to the component constructors.
type Loaded struct {
	Orchestrator orchestrator.Config
	Monitoring   monitoring.Config
	Recovery     recovery.Config
	EventBus     eventbus.Config
	Observe      observe.Config
	Upstreams    []upstream.Config
}

// Load reads and strictly decodes config.yaml from path, then converts it
// into Loaded. Unlike the teacher's config.Load, a missing file is an error
// here: the gateway has no safe "run with defaults and no upstreams"
// behavior worth defining implicitly.
func Load(path string) (Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Loaded{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg.toLoaded()
}

func (c Config) toLoaded() (Loaded, error) {
	upstreams := make([]upstream.Config, 0, len(c.Upstreams))
	seen := make(map[upstream.Kind]bool, len(c.Upstreams))
	for _, u := range c.Upstreams {
		uc, err := u.toDomain()
		if err != nil {
			return Loaded{}, err
		}
		if seen[uc.Kind] {
			return Loaded{}, fmt.Errorf("config: duplicate upstream kind %q (at most one Adapter per UpstreamKind)", u.Kind)
		}
		seen[uc.Kind] = true
		upstreams = append(upstreams, uc)
	}

	return Loaded{
		Orchestrator: c.Orchestrator.toDomain(),
		Monitoring:   c.Monitoring.toDomain(),
		Recovery:     c.Recovery.toDomain(),
		EventBus:     c.EventBus.toDomain(),
		Observe:      c.Observe.toDomain(),
		Upstreams:    upstreams,
	}, nil
}

// SettingsRepository models spec.md §6's getServiceSettings(kind) contract:
// the out-of-scope persistence layer this core consumes but never owns.
type SettingsRepository interface {
	GetServiceSettings(kind upstream.Kind) (ServiceSettings, error)
}

// ServiceSettings is one upstream's persisted settings, as the repository
// contract returns them.
type ServiceSettings struct {
	Enabled    bool
	URL        string
	Credential string
}

// StaticSettingsRepository is the default, concrete, in-tree
// SettingsRepository: it serves the settings baked into Loaded.Upstreams at
// Load time. cmd/gatewayd uses this when no external settings store is
// configured.
type StaticSettingsRepository struct {
	byKind map[upstream.Kind]ServiceSettings
}

// NewStaticSettingsRepository builds a repository view over the upstream
// configs decoded from config.yaml.
func NewStaticSettingsRepository(upstreams []upstream.Config) *StaticSettingsRepository {
	byKind := make(map[upstream.Kind]ServiceSettings, len(upstreams))
	for _, u := range upstreams {
		byKind[u.Kind] = ServiceSettings{
			Enabled:    u.Enabled,
			URL:        u.BaseURL,
			Credential: string(u.Credential),
		}
	}
	return &StaticSettingsRepository{byKind: byKind}
}

func (r *StaticSettingsRepository) GetServiceSettings(kind upstream.Kind) (ServiceSettings, error) {
	s, ok := r.byKind[kind]
	if !ok {
		return ServiceSettings{}, fmt.Errorf("config: no settings for upstream %s", kind)
	}
	return s, nil
}
