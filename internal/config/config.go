// Package config loads server configuration.
//
// CONFIGURATION LAYERS (lowest to highest precedence):
// 1. Built-in defaults (viper.SetDefault below)
// 2. An optional config.yaml next to the binary or under ./configs
// 3. Environment variables (LIBRARY_PORT, LIBRARY_DB_PATH, ...)
// 4. A .env file in the working directory, loaded into the environment
//    first via godotenv — convenient for local development so you don't
//    have to export variables in every shell
//
// Secrets (JWT_SECRET) only come from the environment, never from a
// config file that might get committed.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "LIBRARY"

// Config is everything the server needs to start, already validated.
type Config struct {
	Port int `mapstructure:"port"`

	// DBPath is the SQLite database file. ":memory:" gives an ephemeral
	// database, handy for demos and tests.
	DBPath string `mapstructure:"db_path"`

	// FlushDelay is how long writes are debounced before the WAL is
	// checkpointed back into the main database file.
	FlushDelay time.Duration `mapstructure:"flush_delay"`

	// JWTSecret signs session tokens. Required — there is no safe default.
	JWTSecret string `mapstructure:"jwt_secret"`

	// BcryptCost is the password hashing work factor.
	BcryptCost int `mapstructure:"bcrypt_cost"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address in the form ":8080".
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load builds the Config from defaults, an optional config file, and the
// environment. Returns an error if a required value is missing or invalid.
func Load() (*Config, error) {
	// Load .env into the process environment if present. Ignore the error:
	// a missing .env file just means the variables are set some other way.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/library.db")
	v.SetDefault("flush_delay", "300ms")
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("read_timeout", "15s")
	v.SetDefault("write_timeout", "30s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// The config file is optional — defaults plus environment variables
	// are a complete configuration.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	// LIBRARY_DB_PATH overrides db_path, and so on. The replacer maps the
	// dots viper uses internally onto underscores in variable names.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The secret is conventionally named JWT_SECRET, without the prefix.
	_ = v.BindEnv("jwt_secret", "JWT_SECRET", "LIBRARY_JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: db_path must not be empty")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.FlushDelay < 0 {
		return fmt.Errorf("config: flush_delay must not be negative, got %s", c.FlushDelay)
	}
	return nil
}
