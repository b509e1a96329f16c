// Package config loads, validates and persists the tweetsync YAML file.
//
// PRECEDENCE:
//
//	defaults  <  YAML file  <  TWEETSYNC_* environment variables
//
// Environment overrides are applied on Load only. Update re-reads the raw
// file, so secrets that came from the environment are never written back.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/tweetsync/internal/apperror"
)

// Config is the whole application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Twitter  Twitter        `yaml:"twitter"`
	Sync     SyncConfig     `yaml:"sync"`
	Admin    AdminConfig    `yaml:"admin"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL is the public URL of this service; the OAuth callback is built from it.
	BaseURL      string `yaml:"baseURL"`
	SecureCookie bool   `yaml:"secureCookie"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Twitter is the endpoint configuration read by every sync pass.
type Twitter struct {
	// Endpoints are fetched in order. Each may carry its own query string and
	// is either absolute or relative to APIHost.
	Endpoints         []string `yaml:"endpoints"`
	APIHost           string   `yaml:"apiHost"`
	ConsumerKey       string   `yaml:"consumerKey"`
	ConsumerSecret    string   `yaml:"consumerSecret"`
	AccessToken       string   `yaml:"accessToken"`
	AccessTokenSecret string   `yaml:"accessTokenSecret"`
	AutoApprove       bool     `yaml:"autoApprove"`

	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

type SyncConfig struct {
	// Schedule is a robfig/cron spec. Empty disables periodic syncing.
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
	JWTSecret    string `yaml:"jwtSecret"`
}

type EventsConfig struct {
	// NATSURL enables the NATS sink when set.
	NATSURL string `yaml:"natsURL"`
	Subject string `yaml:"subject"`
	// Log enables the slog sink.
	Log bool `yaml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a configuration that runs locally without a file.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080", BaseURL: "http://localhost:8080"},
		Database: DatabaseConfig{Path: "data/tweetsync.db"},
		Twitter: Twitter{
			APIHost:           "https://api.twitter.com/1.1/",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 1,
			Burst:             5,
		},
		Sync:   SyncConfig{Schedule: "@every 5m", Timeout: 2 * time.Minute},
		Admin:  AdminConfig{Username: "admin"},
		Events: EventsConfig{Subject: "tweetsync.tweets", Log: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Configured reports whether consumer credentials are present, which is the
// minimum a sync pass needs.
func (t Twitter) Configured() bool {
	return t.ConsumerKey != "" && t.ConsumerSecret != ""
}

// Validate checks the credential pairs and a few required fields.
func (c Config) Validate() error {
	t := c.Twitter
	if (t.ConsumerKey == "") != (t.ConsumerSecret == "") {
		return apperror.NotConfigured("twitter consumerKey and consumerSecret must be set together")
	}
	if t.AccessToken != "" && t.AccessTokenSecret == "" {
		return apperror.NotConfigured("twitter accessToken requires accessTokenSecret")
	}
	if t.AccessToken != "" && !t.Configured() {
		return apperror.NotConfigured("twitter accessToken requires consumer credentials")
	}
	for i, e := range t.Endpoints {
		if strings.TrimSpace(e) == "" {
			return apperror.ValidationFailed("twitter.endpoints", fmt.Sprintf("endpoint %d is empty", i))
		}
	}
	if t.RequestsPerSecond < 0 {
		return apperror.ValidationFailed("twitter.requestsPerSecond", "must not be negative")
	}
	if c.Database.Path == "" {
		return apperror.ValidationFailed("database.path", "database path is required")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return apperror.ValidationFailed("log.format", fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}

// ResolveEnv applies TWEETSYNC_* overrides.
func (c *Config) ResolveEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("TWEETSYNC_" + key); ok {
			*dst = v
		}
	}
	str("ADDR", &c.Server.Addr)
	str("BASE_URL", &c.Server.BaseURL)
	str("DB_PATH", &c.Database.Path)
	str("API_HOST", &c.Twitter.APIHost)
	str("CONSUMER_KEY", &c.Twitter.ConsumerKey)
	str("CONSUMER_SECRET", &c.Twitter.ConsumerSecret)
	str("ACCESS_TOKEN", &c.Twitter.AccessToken)
	str("ACCESS_TOKEN_SECRET", &c.Twitter.AccessTokenSecret)
	str("SYNC_SCHEDULE", &c.Sync.Schedule)
	str("ADMIN_USERNAME", &c.Admin.Username)
	str("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)
	str("JWT_SECRET", &c.Admin.JWTSecret)
	str("NATS_URL", &c.Events.NATSURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := os.LookupEnv("TWEETSYNC_AUTO_APPROVE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Twitter.AutoApprove = b
		}
	}
	if v, ok := os.LookupEnv("TWEETSYNC_ENDPOINTS"); ok {
		c.Twitter.Endpoints = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the YAML file at path over Default() and applies env overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

func readFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename), creating
// directories as needed. The file may hold secrets, so it is 0600.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("config: empty path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tweetsync-*.yaml")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("config: writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: replacing %s: %w", path, err)
	}
	return nil
}

// Update applies fn to the file's own contents (no env overrides) and saves
// the result.
func Update(path string, fn func(*Config)) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	fn(&cfg)
	return Save(path, cfg)
}
