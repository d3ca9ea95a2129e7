package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"runtime-observer/src/models"
	"runtime-observer/src/normalizer/core"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file.
const (
	EnvLogLevel     = "OBSERVER_LOG_LEVEL"
	EnvPort         = "OBSERVER_PORT"
	EnvDBPath       = "OBSERVER_DB_PATH"
	EnvDBConnection = "OBSERVER_DB_CONNECTION"
	EnvNatsURL      = "OBSERVER_NATS_URL"
	EnvTimezone     = "OBSERVER_TIMEZONE"
	EnvLocale       = "OBSERVER_LOCALE"
)

var logLevels = map[string]struct{}{"DEBUG": {}, "INFO": {}, "WARNING": {}, "ERROR": {}}

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Environment (.env is optional)
	_ = godotenv.Load()
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	config.applyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides file values with any OBSERVER_* variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not a port number", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvDBPath); ok && v != "" {
		c.Storage.DBPath = v
	}
	if v, ok := lookup(EnvDBConnection); ok && v != "" {
		c.Storage.DBConnectionString = v
	}
	if v, ok := lookup(EnvNatsURL); ok && v != "" {
		c.Nats.Servers = strings.Split(v, ",")
	}
	if v, ok := lookup(EnvTimezone); ok && v != "" {
		c.Display.Timezone = v
	}
	if v, ok := lookup(EnvLocale); ok && v != "" {
		c.Display.Locale = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
	if c.Network.RequestsPerSecond == 0 {
		c.Network.RequestsPerSecond = 5
	}
	if c.Cache.ViewTTLSeconds == 0 {
		c.Cache.ViewTTLSeconds = 600
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = "runtime.snapshots"
	}
	for i := range c.Sources {
		if c.Sources[i].Type == "" {
			c.Sources[i].Type = models.SourceTypeHTTP
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if _, ok := logLevels[strings.ToUpper(c.LogLevel)]; !ok {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "":
		return fmt.Errorf("database type cannot be empty")
	default:
		return fmt.Errorf("unsupported database type %q", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}

	// Validate Sources
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one snapshot source must be configured")
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d must have a name", i)
		}
		switch src.Type {
		case models.SourceTypeHTTP:
			if src.Endpoint == "" {
				return fmt.Errorf("source '%s' must have an endpoint", src.Name)
			}
			if len(src.Strategies) == 0 {
				return fmt.Errorf("source '%s' must poll at least one strategy", src.Name)
			}
			if src.UpdateIntervalSeconds <= 0 {
				return fmt.Errorf("source '%s' update interval must be greater than 0", src.Name)
			}
		case models.SourceTypeNATS:
			if len(c.Nats.Servers) == 0 {
				return fmt.Errorf("source '%s' needs nats servers", src.Name)
			}
		default:
			return fmt.Errorf("source '%s' has unknown type %q", src.Name, src.Type)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// DisplaySettings builds the normalizer settings. Unknown zones and locales
// fall back to UTC and English.
func (c *Config) DisplaySettings() core.Settings {
	d := c.Display
	return core.NewSettings(d.Timezone, d.Locale, d.TimeLayout, d.YesLabel, d.NoLabel)
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
