package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"`
		DevTokens bool   `yaml:"dev_tokens"`
	} `yaml:"server"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Feed struct {
		DefaultPageSize int           `yaml:"default_page_size"`
		MaxPageSize     int           `yaml:"max_page_size"`
		LoaderWait      time.Duration `yaml:"loader_wait"`
	} `yaml:"feed"`
	Preview struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"preview"`
	Thumbnails struct {
		Enabled bool          `yaml:"enabled"`
		Bucket  string        `yaml:"bucket"`
		Region  string        `yaml:"region"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"thumbnails"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Feed.DefaultPageSize = 20
	cfg.Feed.MaxPageSize = 100
	cfg.Feed.LoaderWait = 2 * time.Millisecond
	cfg.Preview.Timeout = 3 * time.Second
	cfg.Thumbnails.Bucket = "comet-thumbs"
	cfg.Thumbnails.Region = "us-east-1"
	cfg.Thumbnails.Timeout = 10 * time.Second
	return cfg
}

// Load читает YAML-файл поверх значений по умолчанию и применяет переменные
// окружения. Отсутствующий файл не считается ошибкой.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("THUMBS_BUCKET"); v != "" {
		c.Thumbnails.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Thumbnails.Region = v
	}
	if v, err := strconv.ParseBool(os.Getenv("THUMBNAILS_ENABLED")); err == nil {
		c.Thumbnails.Enabled = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Feed.DefaultPageSize <= 0 || c.Feed.MaxPageSize < c.Feed.DefaultPageSize {
		return fmt.Errorf("invalid feed page sizes: default=%d max=%d", c.Feed.DefaultPageSize, c.Feed.MaxPageSize)
	}
	if c.Preview.Timeout <= 0 {
		return errors.New("preview.timeout must be positive")
	}
	if c.Thumbnails.Enabled && c.Thumbnails.Bucket == "" {
		return errors.New("thumbnails.bucket is required when thumbnails are enabled")
	}
	return nil
}
