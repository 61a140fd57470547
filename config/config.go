package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`
	WaifuWar      WaifuWarConfig      `yaml:"waifu_war"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis configuration. Only used by the redis onboarding store.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	// MetricsAddress serves /metrics on its own listener. Empty mounts
	// /metrics on the ops server instead.
	MetricsAddress string `yaml:"metrics_address"`
	OpsAddress     string `yaml:"ops_address"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
}

// Onboarding store backends.
const (
	OnboardingStoreMemory = "memory"
	OnboardingStoreRedis  = "redis"
)

// WaifuWarConfig holds the bracket voting module settings.
type WaifuWarConfig struct {
	CommandPrefix     string `yaml:"command_prefix"`
	CommandsPerMinute int    `yaml:"commands_per_minute"`
	CommandBurst      int    `yaml:"command_burst"`
	// OnboardingStore is "memory" or "redis".
	OnboardingStore string        `yaml:"onboarding_store"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	// SessionSnapshot is a file the memory store is saved to on shutdown
	// and restored from on start. Empty disables snapshots.
	SessionSnapshot  string `yaml:"session_snapshot"`
	SchedulerEnabled bool   `yaml:"scheduler_enabled"`
}

// LoadConfig loads the configuration from a YAML file. A .env file in the
// working directory is loaded into the environment first, when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg.NATS.URL = os.Getenv("NATS_URL")
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("OPS_ADDRESS"); v != "" {
		cfg.Observability.OpsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("COMMANDS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMMANDS_PER_MINUTE value: %v", err)
		}
		cfg.WaifuWar.CommandsPerMinute = n
	}
	if v := os.Getenv("ONBOARDING_STORE"); v != "" {
		cfg.WaifuWar.OnboardingStore = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.WaifuWar.SchedulerEnabled = v == "true"
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Observability.OpsAddress == "" {
		cfg.Observability.OpsAddress = ":8080"
	}
	if cfg.Observability.Environment == "" {
		cfg.Observability.Environment = "development"
	}
	if cfg.WaifuWar.CommandPrefix == "" {
		cfg.WaifuWar.CommandPrefix = "%ww"
	}
	if cfg.WaifuWar.CommandBurst == 0 {
		cfg.WaifuWar.CommandBurst = 5
	}
	if cfg.WaifuWar.OnboardingStore == "" {
		cfg.WaifuWar.OnboardingStore = OnboardingStoreMemory
	}
	if cfg.WaifuWar.SessionTTL == 0 {
		cfg.WaifuWar.SessionTTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch c.WaifuWar.OnboardingStore {
	case OnboardingStoreMemory:
	case OnboardingStoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("onboarding store %q requires REDIS_URL", OnboardingStoreRedis)
		}
	default:
		return fmt.Errorf("unknown onboarding store %q", c.WaifuWar.OnboardingStore)
	}
	return nil
}
