package config

import (
	"fmt"
	"os"

	"visits-observer/src/helpers"
	"visits-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

const (
	TransportMemory   = "memory"
	TransportPostgres = "postgres"

	DefaultCapacity = 15
	DefaultChannel  = "visitorsCount"
	DefaultEvent    = "addNumber"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:      "visits-observer",
		Host:      "127.0.0.1",
		Port:      9000,
		LogLevel:  "INFO",
		GrpcHost:  "127.0.0.1",
		GrpcPort:  9001,
		PublicDir: "public",
		Series: models.MSeriesConfig{
			Capacity: DefaultCapacity,
		},
		Transport: models.MTransportConfig{
			Type:           TransportMemory,
			Channel:        DefaultChannel,
			Event:          DefaultEvent,
			ConnectRetries: 3,
		},
		Trigger: models.MTriggerConfig{
			URL:            "http://127.0.0.1:9100/simulate",
			TimeoutSeconds: 5,
		},
		Simulator: models.MSimulatorConfig{
			Host:       "127.0.0.1",
			Port:       9100,
			TargetURL:  "http://127.0.0.1:9000",
			IntervalMs: 2500,
			MaxValue:   100,
		},
		Render: models.MRenderConfig{
			Width:  800,
			Height: 400,
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file layered over Default()
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
	}

	// 2. Unmarshal over the defaults so omitted keys keep their values
	config := Default()
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 {
		if c.GrpcPort <= 1024 || c.GrpcPort > 65535 {
			return fmt.Errorf("invalid grpc port number: %d (must be 0 or between 1025 and 65535)", c.GrpcPort)
		}
		if c.GrpcPort == c.Port && c.GrpcHost == c.Host {
			return fmt.Errorf("grpc port %d collides with server port", c.GrpcPort)
		}
	}

	// Series
	if c.Series.Capacity <= 0 {
		return fmt.Errorf("series capacity must be greater than 0")
	}

	// Transport
	switch c.Transport.Type {
	case TransportMemory:
	case TransportPostgres:
		if c.Transport.DBConnectionString == "" {
			return fmt.Errorf("db connection string cannot be empty for postgres transport")
		}
	default:
		return fmt.Errorf("unsupported transport type: %q", c.Transport.Type)
	}
	if c.Transport.Channel == "" || c.Transport.Event == "" {
		return fmt.Errorf("transport channel and event cannot be empty")
	}
	if c.Transport.ConnectRetries < 0 {
		return fmt.Errorf("connect retries cannot be negative")
	}

	// Trigger (empty URL disables it)
	if c.Trigger.URL != "" && c.Trigger.TimeoutSeconds <= 0 {
		return fmt.Errorf("trigger timeout must be greater than 0")
	}

	// Simulator process
	if c.Simulator.Port <= 1024 || c.Simulator.Port > 65535 {
		return fmt.Errorf("invalid simulator port number: %d (must be between 1025 and 65535)", c.Simulator.Port)
	}
	if c.Simulator.IntervalMs <= 0 {
		return fmt.Errorf("simulator interval must be greater than 0")
	}
	if c.Simulator.MaxValue <= 0 {
		return fmt.Errorf("simulator max value must be greater than 0")
	}

	// Render
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render width and height must be greater than 0")
	}

	return nil
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
