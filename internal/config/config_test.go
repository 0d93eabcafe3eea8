package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/precog/internal/decision"
	"github.com/mbd888/precog/internal/logging"
)

var allEnv = []string{
	"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT",
	"PRECOG_API_KEY", "PRECOG_API_VERSION", "PRECOG_API_URL",
	"PRECOG_AUTH_USERNAME", "PRECOG_AUTH_PASSWORD", "PRECOG_LOG_LEVEL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "CONFIG_FILE",
	"RATE_LIMIT_RPM", "RATE_LIMIT_BURST",
}

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PRECOG_API_KEY", "pk_live_123")
	t.Setenv("PRECOG_AUTH_USERNAME", "svc")
	t.Setenv("PRECOG_AUTH_PASSWORD", "s3cret")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_WithValidConfig(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "pk_live_123", cfg.APIKey)
	assert.Equal(t, decision.DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, decision.DefaultVersion, cfg.APIVersion)
	assert.Equal(t, DefaultClientLogLevel, cfg.ClientLogLevel)
	assert.Equal(t, 0, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_RateLimitFromEnv(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRECOG_AUTH_USERNAME", "svc")
	t.Setenv("PRECOG_AUTH_PASSWORD", "s3cret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRECOG_API_KEY is required")
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRECOG_API_KEY", "k")
	t.Setenv("PRECOG_AUTH_USERNAME", "svc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRECOG_AUTH_PASSWORD is required")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:           "8080",
			Env:            "production",
			LogFormat:      "json",
			APIKey:         "k",
			APIVersion:     "v1",
			APIURL:         "https://api.precognitive.io",
			AuthUserName:   "u",
			AuthPassword:   "p",
			ClientLogLevel: "WARN",
			RateLimitBurst: 20,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.APIURL = "::nope" }, "PRECOG_API_URL is invalid"},
		{"bad env", func(c *Config) { c.Env = "qa" }, "ENV is invalid"},
		{"bad port", func(c *Config) { c.Port = "http" }, "PORT is invalid"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT is invalid"},
		{"bad client level", func(c *Config) { c.ClientLogLevel = "LOUD" }, "PRECOG_LOG_LEVEL is invalid"},
		{"missing version", func(c *Config) { c.APIVersion = "" }, "PRECOG_API_VERSION is required"},
		{"negative rate", func(c *Config) { c.RateLimitRPM = -1 }, "RATE_LIMIT_RPM is invalid"},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, "RATE_LIMIT_BURST is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

const sampleYAML = `
apiKey: pk_from_file
version: v1
apiUrl: https://scoring.example.com
auth:
  userName: file-user
  password: file-pass
logLevel: WARN
server:
  port: "7070"
  env: staging
  logFormat: json
  rateLimitRpm: 300
  rateLimitBurst: 5
`

func TestLoadFile_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "precog.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "pk_from_file", cfg.APIKey)
	assert.Equal(t, "https://scoring.example.com", cfg.APIURL)
	assert.Equal(t, "file-user", cfg.AuthUserName)
	assert.Equal(t, "file-pass", cfg.AuthPassword)
	assert.Equal(t, "WARN", cfg.ClientLogLevel)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 300, cfg.RateLimitRPM)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRECOG_API_KEY", "pk_from_env")
	path := filepath.Join(t.TempDir(), "precog.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pk_from_env", cfg.APIKey)
	assert.Equal(t, "file-user", cfg.AuthUserName)
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "apiKey: [unterminated")
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestConfig_ClientConfig(t *testing.T) {
	cfg := &Config{
		APIKey:         "k",
		APIVersion:     "v1",
		APIURL:         "https://scoring.example.com",
		AuthUserName:   "u",
		AuthPassword:   "p",
		ClientLogLevel: "warn",
	}

	cc := cfg.ClientConfig(nil)
	assert.Equal(t, "k", cc.APIKey)
	assert.Equal(t, "v1", cc.Version)
	assert.Equal(t, "https://scoring.example.com", cc.APIURL)
	assert.Equal(t, decision.BasicAuth{UserName: "u", Password: "p"}, cc.Auth)
	assert.Equal(t, "WARN", cc.LogLevel)
	assert.Nil(t, cc.Logger)

	c, err := decision.NewClient(cc)
	require.NoError(t, err)
	assert.Equal(t, "https://scoring.example.com/v1/decision/login", c.Endpoint())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "precog.yaml")
	writeFile(t, path, sampleYAML)

	w := NewWatcher(path, logging.Discard())
	reloaded := make(chan *Config, 4)
	w.OnChange(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, sampleYAML+"\n# rotated\n")

	select {
	case c := <-reloaded:
		assert.Equal(t, "pk_from_file", c.APIKey)
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload after write")
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "precog.yaml")
	writeFile(t, path, sampleYAML)

	w := NewWatcher(path, logging.Discard())
	called := false
	w.OnChange(func(*Config) { called = true })

	writeFile(t, path, "apiKey: \"\"\n")
	w.reload()
	assert.False(t, called)
}
