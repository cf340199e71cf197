package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Driver names accepted by database.driver. They match the cache package's
// registered sql drivers.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Lock backends accepted by lock.backend.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config is the complete actsync configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Lock     LockConfig     `yaml:"lock"`
	Remote   RemoteConfig   `yaml:"remote"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig sizes the activity store.
type StoreConfig struct {
	PageSize         int `yaml:"page_size"`
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// DatabaseConfig selects the local cache file and driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// LockConfig selects the per-site lock implementation.
type LockConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"-"`
	TTLRaw  string        `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when lock.backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RemoteConfig points at the activity API.
type RemoteConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			PageSize:         10,
			SubscriberBuffer: 64,
		},
		Database: DatabaseConfig{
			Driver: DriverCgo,
			Path:   "actsync.db",
		},
		Lock: LockConfig{
			Backend: LockLocal,
			TTL:     30 * time.Second,
			TTLRaw:  "30s",
		},
		Remote: RemoteConfig{
			Timeout:    30 * time.Second,
			TimeoutRaw: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path.
//
// A .env file next to it is loaded first when present, without overriding
// variables already set. ${VAR} references are then expanded, the result is
// checked against the embedded schema and decoded over Default(). An empty
// path loads .env from the working directory and returns the defaults.
func Load(path string) (*Config, error) {
	envDir := "."
	if path != "" {
		envDir = filepath.Dir(path)
	}
	if err := loadDotEnv(filepath.Join(envDir, ".env")); err != nil {
		return nil, err
	}

	if path == "" {
		cfg := Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data. See Load.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	if err := validateSchema(expanded); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the empty
// string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// validateSchema checks the raw document against #Config. Null values are
// treated as absent so that an unset ${VAR} leaves the default in place.
func validateSchema(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	dropNulls(raw)

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

func dropNulls(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			dropNulls(val)
		}
	}
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Lock.TTLRaw != "" {
		cfg.Lock.TTL, err = time.ParseDuration(cfg.Lock.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing lock.ttl %q: %w", cfg.Lock.TTLRaw, err)
		}
	}

	if cfg.Remote.TimeoutRaw != "" {
		cfg.Remote.Timeout, err = time.ParseDuration(cfg.Remote.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing remote.timeout %q: %w", cfg.Remote.TimeoutRaw, err)
		}
	}

	return nil
}

// Validate checks cross-field rules the schema cannot express, and guards
// configs built in code rather than loaded from a file.
func (c *Config) Validate() error {
	if c.Store.PageSize <= 0 {
		return fmt.Errorf("store.page_size must be positive, got %d", c.Store.PageSize)
	}
	if c.Store.SubscriberBuffer < 0 {
		return fmt.Errorf("store.subscriber_buffer must not be negative, got %d", c.Store.SubscriberBuffer)
	}

	switch c.Database.Driver {
	case DriverCgo, DriverPureGo:
	default:
		return fmt.Errorf("database.driver %q is not one of %q, %q", c.Database.Driver, DriverCgo, DriverPureGo)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if c.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock.redis.addr is required when lock.backend is redis")
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("lock.ttl must be positive")
		}
	default:
		return fmt.Errorf("lock.backend %q is not one of %q, %q", c.Lock.Backend, LockLocal, LockRedis)
	}

	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of \"text\", \"json\"", c.Logging.Format)
	}
	return nil
}

// SlogLevel maps logging.level onto a slog level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", l.Level, err)
	}
	return level, nil
}
