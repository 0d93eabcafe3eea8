// Package config handles application configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mbd888/precog/internal/decision"
	"github.com/mbd888/precog/internal/logging"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string `validate:"required,numeric"`
	Env       string `validate:"oneof=development staging production"`
	LogLevel  string
	LogFormat string `validate:"oneof=text json"`

	// Per client IP on the login endpoints; 0 disables limiting
	RateLimitRPM   int `validate:"min=0"`
	RateLimitBurst int `validate:"min=1"`

	// Scoring API
	APIKey         string `validate:"required"`
	APIVersion     string `validate:"required"`
	APIURL         string `validate:"required,url"`
	AuthUserName   string `validate:"required"`
	AuthPassword   string `validate:"required"`
	ClientLogLevel string // threshold for the decision client, NONE by default

	// Tracing
	OTLPEndpoint string

	// ConfigFile is the YAML file the values were read from, if any.
	ConfigFile string
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultClientLogLevel = "NONE"
	DefaultRateLimitBurst = 20
)

// envNames maps struct fields to the variables that set them, for errors.
var envNames = map[string]string{
	"Port":           "PORT",
	"Env":            "ENV",
	"LogFormat":      "LOG_FORMAT",
	"RateLimitRPM":   "RATE_LIMIT_RPM",
	"RateLimitBurst": "RATE_LIMIT_BURST",
	"APIKey":         "PRECOG_API_KEY",
	"APIVersion":     "PRECOG_API_VERSION",
	"APIURL":         "PRECOG_API_URL",
	"AuthUserName":   "PRECOG_AUTH_USERNAME",
	"AuthPassword":   "PRECOG_AUTH_PASSWORD",
}

var validate = validator.New()

// fileConfig is the YAML layout. Scoring API settings sit at the top level
// under the same names the client options use.
type fileConfig struct {
	APIKey  string `yaml:"apiKey"`
	Version string `yaml:"version"`
	APIURL  string `yaml:"apiUrl"`
	Auth    struct {
		UserName string `yaml:"userName"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
	LogLevel string `yaml:"logLevel"`

	Server struct {
		Port           string `yaml:"port"`
		Env            string `yaml:"env"`
		LogLevel       string `yaml:"logLevel"`
		LogFormat      string `yaml:"logFormat"`
		OTLPEndpoint   string `yaml:"otlpEndpoint"`
		RateLimitRPM   *int   `yaml:"rateLimitRpm"`
		RateLimitBurst *int   `yaml:"rateLimitBurst"`
	} `yaml:"server"`
}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development), then the YAML file
// named by CONFIG_FILE if set. Environment variables win over the file.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and the environment, in that order.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		Port:           DefaultPort,
		Env:            DefaultEnv,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		APIVersion:     decision.DefaultVersion,
		APIURL:         decision.DefaultAPIURL,
		ClientLogLevel: DefaultClientLogLevel,
		RateLimitBurst: DefaultRateLimitBurst,
		ConfigFile:     path,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setIfNotEmpty(&c.APIKey, fc.APIKey)
	setIfNotEmpty(&c.APIVersion, fc.Version)
	setIfNotEmpty(&c.APIURL, fc.APIURL)
	setIfNotEmpty(&c.AuthUserName, fc.Auth.UserName)
	setIfNotEmpty(&c.AuthPassword, fc.Auth.Password)
	setIfNotEmpty(&c.ClientLogLevel, fc.LogLevel)
	setIfNotEmpty(&c.Port, fc.Server.Port)
	setIfNotEmpty(&c.Env, fc.Server.Env)
	setIfNotEmpty(&c.LogLevel, fc.Server.LogLevel)
	setIfNotEmpty(&c.LogFormat, fc.Server.LogFormat)
	setIfNotEmpty(&c.OTLPEndpoint, fc.Server.OTLPEndpoint)
	if fc.Server.RateLimitRPM != nil {
		c.RateLimitRPM = *fc.Server.RateLimitRPM
	}
	if fc.Server.RateLimitBurst != nil {
		c.RateLimitBurst = *fc.Server.RateLimitBurst
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.APIKey = getEnv("PRECOG_API_KEY", c.APIKey)
	c.APIVersion = getEnv("PRECOG_API_VERSION", c.APIVersion)
	c.APIURL = getEnv("PRECOG_API_URL", c.APIURL)
	c.AuthUserName = getEnv("PRECOG_AUTH_USERNAME", c.AuthUserName)
	c.AuthPassword = getEnv("PRECOG_AUTH_PASSWORD", c.AuthPassword)
	c.ClientLogLevel = getEnv("PRECOG_LOG_LEVEL", c.ClientLogLevel)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", c.RateLimitRPM)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			name := envNames[fe.Field()]
			if name == "" {
				name = fe.Field()
			}
			if fe.Tag() == "required" {
				return fmt.Errorf("%s is required", name)
			}
			return fmt.Errorf("%s is invalid: %v fails %s", name, fe.Value(), fe.Tag())
		}
		return err
	}

	if _, err := logging.ParseLevel(c.ClientLogLevel); err != nil {
		return fmt.Errorf("PRECOG_LOG_LEVEL is invalid: %w", err)
	}

	return nil
}

// ClientConfig converts the scoring API settings into decision client
// options. logger may be nil, in which case the client builds its own from
// ClientLogLevel.
func (c *Config) ClientConfig(logger *slog.Logger) decision.ClientConfig {
	return decision.ClientConfig{
		APIKey:  c.APIKey,
		Version: c.APIVersion,
		APIURL:  c.APIURL,
		Auth: decision.BasicAuth{
			UserName: c.AuthUserName,
			Password: c.AuthPassword,
		},
		Logger:   logger,
		LogLevel: strings.ToUpper(c.ClientLogLevel),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
