package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL              string        `env:"API_BASE_URL" envDefault:"http://localhost:3000/api"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	Platform             string        `env:"PLATFORM" envDefault:"web"`
	DataFile             string        `env:"DATA_FILE" envDefault:"geminichatui.db"`
	PageSize             int           `env:"PAGE_SIZE" envDefault:"20"`
	SimulatedStreamDelay time.Duration `env:"SIMULATED_STREAM_DELAY" envDefault:"50ms"`
	TokenRefreshInterval time.Duration `env:"TOKEN_REFRESH_INTERVAL" envDefault:"20m"`
	Model                string        `env:"MODEL"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"warn"`
}

// Load reads envFile (if it exists) into the process environment and parses the config from it.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.TokenRefreshInterval <= 0 {
		return fmt.Errorf("TOKEN_REFRESH_INTERVAL must be positive, got %s", c.TokenRefreshInterval)
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return level
}
