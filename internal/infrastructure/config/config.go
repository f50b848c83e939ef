package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all kernel daemon configuration.
type Config struct {
	Server    ServerConfig
	Kernel    KernelConfig
	Boot      BootConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// KernelConfig holds the fixed kernel limits: process slots, queue depths,
// and the grant allocation budget.
type KernelConfig struct {
	MaxProcs         int    `envconfig:"KERNEL_MAX_PROCS" default:"8"`
	TaskQueueDepth   int    `envconfig:"KERNEL_TASK_QUEUE_DEPTH" default:"10"`
	UpcallQueueDepth int    `envconfig:"KERNEL_UPCALL_QUEUE_DEPTH" default:"10"`
	ProcMemBytes     uint32 `envconfig:"KERNEL_PROC_MEM_BYTES" default:"65536"`
	GrantBudget      int    `envconfig:"KERNEL_GRANT_BUDGET" default:"0"`
}

// BootConfig holds the board manifest location.
type BootConfig struct {
	ManifestPath string `envconfig:"BOOT_MANIFEST" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Kernel: KernelConfig{
			MaxProcs:         8,
			TaskQueueDepth:   10,
			UpcallQueueDepth: 10,
			ProcMemBytes:     65536,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
