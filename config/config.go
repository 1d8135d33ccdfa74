package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway decision core configuration
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway" json:"gateway"`
	Trust     TrustConfig     `yaml:"trust" json:"trust"`
	Policy    PolicyConfig    `yaml:"policy" json:"policy"`
	Firewall  FirewallConfig  `yaml:"firewall" json:"firewall"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
}

// GatewayConfig defines the gateway instance metadata
type GatewayConfig struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// TrustConfig defines trust assessment configuration
type TrustConfig struct {
	BlockedCountries []string `yaml:"blocked_countries" json:"blocked_countries"`
}

// PolicyConfig defines the baseline policy rule set configuration
type PolicyConfig struct {
	LowTrustThreshold  float64 `yaml:"low_trust_threshold" json:"low_trust_threshold"`   // deny below, default 0.3
	HighTrustThreshold float64 `yaml:"high_trust_threshold" json:"high_trust_threshold"` // allow at or above, default 0.8
	WorkdayStartHour   int     `yaml:"workday_start_hour" json:"workday_start_hour"`
	WorkdayEndHour     int     `yaml:"workday_end_hour" json:"workday_end_hour"`
	UTCOffset          int     `yaml:"utc_offset" json:"utc_offset"`
}

// FirewallConfig defines packet rule store configuration
type FirewallConfig struct {
	RuleFile string `yaml:"rule_file" json:"rule_file"`
}

// SessionConfig defines session monitor thresholds
type SessionConfig struct {
	WindowSize      int   `yaml:"window_size" json:"window_size"`
	BytesThreshold  int64 `yaml:"bytes_threshold" json:"bytes_threshold"`
	UniqueDstWindow int   `yaml:"unique_dst_window" json:"unique_dst_window"`
	UniqueDstLimit  int   `yaml:"unique_dst_limit" json:"unique_dst_limit"`
	QuarantineLimit int   `yaml:"quarantine_limit" json:"quarantine_limit"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" json:"format"`           // json, text
	Output     string `yaml:"output" json:"output"`           // stdout, file
	ActionFile string `yaml:"action_file" json:"action_file"` // append-only action log path
}

// TransportConfig defines transport layer configuration
type TransportConfig struct {
	HTTPAddr     string        `yaml:"http_addr" json:"http_addr"`
	GRPCAddr     string        `yaml:"grpc_addr" json:"grpc_addr"`
	EnableGRPC   bool          `yaml:"enable_grpc" json:"enable_grpc"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// Loader provides configuration loading functionality
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses configuration from file
func (l *Loader) Load(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine format by extension
	ext := filepath.Ext(path)

	var config Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	// Validate configuration
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Set defaults
	l.setDefaults(&config)

	return &config, nil
}

// Validate checks configuration validity
func (l *Loader) Validate(config *Config) error {
	// Validate required fields
	if config.Gateway.ID == "" {
		return fmt.Errorf("gateway.id is required")
	}

	// Validate logging level
	switch config.Logging.Level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	// Validate logging format
	switch config.Logging.Format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("invalid logging format: %s", config.Logging.Format)
	}

	// Validate policy thresholds
	if config.Policy.LowTrustThreshold < 0 || config.Policy.LowTrustThreshold > 1 {
		return fmt.Errorf("policy.low_trust_threshold must be in [0,1]")
	}
	if config.Policy.HighTrustThreshold < 0 || config.Policy.HighTrustThreshold > 1 {
		return fmt.Errorf("policy.high_trust_threshold must be in [0,1]")
	}
	if config.Policy.LowTrustThreshold != 0 && config.Policy.HighTrustThreshold != 0 &&
		config.Policy.LowTrustThreshold >= config.Policy.HighTrustThreshold {
		return fmt.Errorf("policy.low_trust_threshold must be below high_trust_threshold")
	}

	// Validate workday window
	if config.Policy.WorkdayStartHour < 0 || config.Policy.WorkdayStartHour > 23 {
		return fmt.Errorf("policy.workday_start_hour must be in [0,23]")
	}
	if config.Policy.WorkdayEndHour < 0 || config.Policy.WorkdayEndHour > 24 {
		return fmt.Errorf("policy.workday_end_hour must be in [0,24]")
	}

	// Validate session thresholds
	if config.Session.WindowSize < 0 {
		return fmt.Errorf("session.window_size must not be negative")
	}
	if config.Session.BytesThreshold < 0 {
		return fmt.Errorf("session.bytes_threshold must not be negative")
	}

	return nil
}

// setDefaults sets default values for optional fields
func (l *Loader) setDefaults(config *Config) {
	// Gateway defaults
	if config.Gateway.Version == "" {
		config.Gateway.Version = "v1.0.0"
	}

	// Policy defaults
	if config.Policy.LowTrustThreshold == 0 {
		config.Policy.LowTrustThreshold = 0.3
	}
	if config.Policy.HighTrustThreshold == 0 {
		config.Policy.HighTrustThreshold = 0.8
	}
	if config.Policy.WorkdayStartHour == 0 {
		config.Policy.WorkdayStartHour = 7
	}
	if config.Policy.WorkdayEndHour == 0 {
		config.Policy.WorkdayEndHour = 20
	}

	// Firewall defaults
	if config.Firewall.RuleFile == "" {
		config.Firewall.RuleFile = "data/rules.json"
	}

	// Session defaults
	if config.Session.WindowSize == 0 {
		config.Session.WindowSize = 500
	}
	if config.Session.BytesThreshold == 0 {
		config.Session.BytesThreshold = 100 * 1024 * 1024
	}
	if config.Session.UniqueDstWindow == 0 {
		config.Session.UniqueDstWindow = 50
	}
	if config.Session.UniqueDstLimit == 0 {
		config.Session.UniqueDstLimit = 20
	}
	if config.Session.QuarantineLimit == 0 {
		config.Session.QuarantineLimit = 2
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
	if config.Logging.ActionFile == "" {
		config.Logging.ActionFile = "data/actions.log"
	}

	// Transport defaults
	if config.Transport.HTTPAddr == "" {
		config.Transport.HTTPAddr = ":8080"
	}
	if config.Transport.GRPCAddr == "" {
		config.Transport.GRPCAddr = ":8081"
	}
	if config.Transport.ReadTimeout == 0 {
		config.Transport.ReadTimeout = 15 * time.Second
	}
	if config.Transport.WriteTimeout == 0 {
		config.Transport.WriteTimeout = 15 * time.Second
	}
	if config.Transport.IdleTimeout == 0 {
		config.Transport.IdleTimeout = 60 * time.Second
	}
}
