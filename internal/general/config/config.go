package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
		Name     string `yaml:"database" validate:"required"`
		MaxConns int32  `yaml:"max_conns" validate:"gt=0"`
		MinConns int32  `yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
	} `yaml:"rabbitmq"`

	Directions struct {
		BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
		TimeoutMS int    `yaml:"timeout_ms" validate:"gte=0"`
	} `yaml:"directions"`

	Tracking struct {
		TickIntervalMS    int     `yaml:"tick_interval_ms" validate:"gt=0"`
		ArrivalEpsilonDeg float64 `yaml:"arrival_epsilon_deg" validate:"gte=0"`
		JitterDeg         float64 `yaml:"jitter_deg" validate:"gte=0"`
		FallbackOrigin    struct {
			Latitude  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
			Longitude float64 `yaml:"lng" validate:"gte=-180,lte=180"`
		} `yaml:"fallback_origin"`
	} `yaml:"tracking"`

	Services struct {
		TrackingServicePort int `yaml:"tracking_service" validate:"gt=0,lte=65535"`
	} `yaml:"services"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// TickInterval returns the configured tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Tracking.TickIntervalMS) * time.Millisecond
}

// DirectionsTimeout returns the directions client timeout as a duration.
func (c *Config) DirectionsTimeout() time.Duration {
	return time.Duration(c.Directions.TimeoutMS) * time.Millisecond
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Directions
	if cfg.Directions.TimeoutMS == 0 {
		cfg.Directions.TimeoutMS = 5000
	}

	// Tracking
	if cfg.Tracking.TickIntervalMS == 0 {
		cfg.Tracking.TickIntervalMS = 3000
	}
	if cfg.Tracking.ArrivalEpsilonDeg == 0 {
		cfg.Tracking.ArrivalEpsilonDeg = 0.001
	}
	if cfg.Tracking.JitterDeg == 0 {
		cfg.Tracking.JitterDeg = 0.0002
	}
	if cfg.Tracking.FallbackOrigin.Latitude == 0 && cfg.Tracking.FallbackOrigin.Longitude == 0 {
		// Quebec City downtown
		cfg.Tracking.FallbackOrigin.Latitude = 46.8139
		cfg.Tracking.FallbackOrigin.Longitude = -71.2082
	}

	// Services
	if cfg.Services.TrackingServicePort == 0 {
		cfg.Services.TrackingServicePort = 3000
	}

	// JWT
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}
