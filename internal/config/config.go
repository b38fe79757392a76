package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Store types.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDatabase = "database"
)

// Auth modes. Authenticated requires the admin password on every admin
// request; open performs no check at all.
const (
	AuthAuthenticated = "authenticated"
	AuthOpen          = "open"
)

// DefaultAdminPassword is used when no password is configured.
const DefaultAdminPassword = "admin123"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	PublicDir string `yaml:"public_dir"`
}

// RedisConfig holds the redis connection used by the redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// StoreConfig selects and configures the key store backing.
type StoreConfig struct {
	Type     string         `yaml:"type"`
	Path     string         `yaml:"path"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

// AuthConfig holds the admin credential settings.
type AuthConfig struct {
	Mode     string `yaml:"mode"`
	Password string `yaml:"password"`
}

// KeygenConfig selects the key generation strategy.
type KeygenConfig struct {
	Strategy string `yaml:"strategy"`
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	StatsInterval string `yaml:"stats_interval"`
}

// Config holds the configuration for the key service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Keygen    KeygenConfig    `yaml:"keygen"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Port      int             `yaml:"port"`
	Debug     bool            `yaml:"debug"`
	LogFormat string          `yaml:"log_format"`
}

// LoadConfig reads and parses the configuration file. It returns the config and a potential warning message.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config
	var warnings []string

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	// A .env file is optional; variables may come straight from the environment.
	_ = godotenv.Load()

	if err := applyEnv(&config); err != nil {
		return nil, "", err
	}

	if config.Port == 0 {
		config.Port = 3000
	}
	if config.Server.PublicDir == "" {
		config.Server.PublicDir = "public"
	}
	if config.Store.Type == "" {
		config.Store.Type = StoreFile
	}
	if config.Store.Path == "" {
		config.Store.Path = "keys.json"
	}
	if config.Store.Redis.Addr == "" {
		config.Store.Redis.Addr = "127.0.0.1:6379"
	}
	if config.Store.Redis.Key == "" {
		config.Store.Redis.Key = "keygate:keys"
	}
	if config.Store.Database.Type == "" {
		config.Store.Database.Type = "sqlite"
	}
	if config.Store.Database.DSN == "" {
		config.Store.Database.DSN = "keygate.db"
	}
	if config.Auth.Mode == "" {
		config.Auth.Mode = AuthAuthenticated
	}
	if config.Auth.Mode == AuthAuthenticated && config.Auth.Password == "" {
		config.Auth.Password = DefaultAdminPassword
		warnings = append(warnings, "auth.password not set, using the default admin password")
	}
	if config.Keygen.Strategy == "" {
		config.Keygen.Strategy = "hex"
	}
	if config.LogFormat == "" {
		config.LogFormat = "json"
	}
	if config.Scheduler.StatsInterval == "" {
		config.Scheduler.StatsInterval = "@every 1h"
	}

	if err := config.validate(); err != nil {
		return nil, "", err
	}
	return &config, strings.Join(warnings, "; "), nil
}

func applyEnv(config *Config) error {
	// PORT is honoured for platforms that inject it; KEYGATE_PORT wins.
	for _, name := range []string{"PORT", "KEYGATE_PORT"} {
		if v := os.Getenv(name); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			config.Port = port
		}
	}
	if debug := os.Getenv("KEYGATE_DEBUG"); debug != "" {
		config.Debug = (debug == "true")
	}
	overrides := map[string]*string{
		"KEYGATE_LOG_FORMAT":      &config.LogFormat,
		"KEYGATE_PUBLIC_DIR":      &config.Server.PublicDir,
		"KEYGATE_STORE_TYPE":      &config.Store.Type,
		"KEYGATE_STORE_PATH":      &config.Store.Path,
		"KEYGATE_REDIS_ADDR":      &config.Store.Redis.Addr,
		"KEYGATE_REDIS_PASSWORD":  &config.Store.Redis.Password,
		"KEYGATE_DATABASE_TYPE":   &config.Store.Database.Type,
		"KEYGATE_DATABASE_DSN":    &config.Store.Database.DSN,
		"KEYGATE_AUTH_MODE":       &config.Auth.Mode,
		"KEYGATE_ADMIN_PASSWORD":  &config.Auth.Password,
		"KEYGATE_KEYGEN_STRATEGY": &config.Keygen.Strategy,
		"KEYGATE_SCHEDULER_STATS": &config.Scheduler.StatsInterval,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Type {
	case StoreFile, StoreMemory, StoreRedis, StoreDatabase:
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
	switch c.Auth.Mode {
	case AuthAuthenticated:
		if c.Auth.Password == "" {
			return fmt.Errorf("auth.password must be set in %s mode", AuthAuthenticated)
		}
	case AuthOpen:
	default:
		return fmt.Errorf("unsupported auth mode: %s", c.Auth.Mode)
	}
	switch c.Keygen.Strategy {
	case "hex", "base36":
	default:
		return fmt.Errorf("unsupported keygen strategy: %s", c.Keygen.Strategy)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
