// Package config loads server settings from an optional YAML file, an
// optional .env file and the process environment, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default file locations, relative to the working directory.
const (
	ConfigPath = "config.yaml"
	DotEnvPath = ".env"
)

// Config is the full server configuration.
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// DataPath is the SQLite file backing Local Mode.
	DataPath string `yaml:"dataPath"`

	// Remote Mode is used when RedisAddr is set and answers PING.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisPrefix   string `yaml:"redisPrefix"`

	BuilderEmail    string `yaml:"builderEmail"`
	BuilderPassword string `yaml:"builderPassword"`
	JWTSecret       string `yaml:"jwtSecret"`

	GeminiAPIKey  string        `yaml:"geminiAPIKey"`
	GeminiModel   string        `yaml:"geminiModel"`
	DeliveryDelay time.Duration `yaml:"deliveryDelay"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:          8080,
		LogLevel:      "info",
		LogFormat:     "text",
		DataPath:      "data/apfiles.db",
		RedisPrefix:   "apfiles",
		DeliveryDelay: 2 * time.Second,
	}
}

// Load builds the configuration. An empty path means ConfigPath, which
// may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if _, err := os.Stat(DotEnvPath); err == nil {
		if err := godotenv.Load(DotEnvPath); err != nil {
			return cfg, fmt.Errorf("load %s: %w", DotEnvPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	if v := os.Getenv("BUILDER_EMAIL"); v != "" {
		cfg.BuilderEmail = v
	}
	if v := os.Getenv("BUILDER_PASSWORD"); v != "" {
		cfg.BuilderPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("DELIVERY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid DELIVERY_DELAY %q", v)
		}
		cfg.DeliveryDelay = d
	}
	return nil
}

// RemoteEnabled reports whether a Redis address is configured.
func (c Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func validateConfig(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return errors.New("config: port must be between 1 and 65535")
	}
	if len(cfg.JWTSecret) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set in config.yaml or JWT_SECRET)")
	}
	if !cfg.RemoteEnabled() && strings.TrimSpace(cfg.DataPath) == "" {
		return errors.New("config: dataPath is required when redisAddr is not set")
	}
	if cfg.DeliveryDelay < 0 {
		return errors.New("config: deliveryDelay must be >= 0")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: logFormat must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
