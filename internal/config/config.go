// Package config handles the XDG configuration directory, config.yaml and
// the files stored next to it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "taskmate"

	// ConfigFile is the settings filename.
	ConfigFile = "config.yaml"

	// SessionFile is the stored sign-in session filename.
	SessionFile = "session.json"

	// EnvPrefix prefixes environment overrides, e.g. TASKMATE_FIREBASE_API_KEY.
	EnvPrefix = "TASKMATE"
)

// Backend names accepted in config.yaml.
const (
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
	BackendAzTables  = "aztables"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `mapstructure:"-"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"-"`

	// Quiet suppresses informational output.
	Quiet bool `mapstructure:"-"`

	// Backend selects the remote task store.
	Backend string `mapstructure:"backend"`

	Firebase FirebaseConfig `mapstructure:"firebase"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AzTables AzTablesConfig `mapstructure:"aztables"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

// FirebaseConfig configures Firebase Authentication and Firestore.
type FirebaseConfig struct {
	APIKey    string `mapstructure:"api_key"`
	ProjectID string `mapstructure:"project_id"`

	// VerifyTokens checks ID token signatures against Google's JWKS.
	VerifyTokens bool `mapstructure:"verify_tokens"`

	// FirestoreEndpoint and AuthEndpoint override the Google endpoints,
	// e.g. to point at the local emulators.
	FirestoreEndpoint string `mapstructure:"firestore_endpoint"`
	AuthEndpoint      string `mapstructure:"auth_endpoint"`
}

// RedisConfig configures the Redis task store.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// AzTablesConfig configures the Azure Table Storage task store.
type AzTablesConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Table            string `mapstructure:"table"`
}

// ServeConfig configures the local HTTP API.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`

	// AllowedOrigins lists the browser origins that may call the API.
	// Empty means same-origin and non-browser clients only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// defaults lists every key viper should know about, so environment
// overrides apply even when config.yaml omits the key.
var defaults = map[string]any{
	"backend":                     BackendFirestore,
	"firebase.api_key":            "",
	"firebase.project_id":         "",
	"firebase.verify_tokens":      false,
	"firebase.firestore_endpoint": "",
	"firebase.auth_endpoint":      "",
	"redis.url":                   "redis://localhost:6379/0",
	"aztables.connection_string":  "",
	"aztables.table":              "tasks",
	"serve.addr":                  "127.0.0.1:8787",
	"serve.allowed_origins":       []string{},
}

// New creates a Config with the default or specified config directory and
// default settings. It does not read config.yaml; see Load.
// If configDir is empty, uses XDG_CONFIG_HOME/taskmate or $HOME/.config/taskmate.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:      dir,
		Backend:  BackendFirestore,
		Redis:    RedisConfig{URL: defaults["redis.url"].(string)},
		AzTables: AzTablesConfig{Table: defaults["aztables.table"].(string)},
		Serve:    ServeConfig{Addr: defaults["serve.addr"].(string)},
	}, nil
}

// Load creates a Config for configDir and merges config.yaml (when present)
// and TASKMATE_* environment variables over the defaults.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := cfg.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend name.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFirestore, BackendRedis, BackendAzTables:
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
}

// ValidateBackend checks that the selected backend has the settings it
// needs to open a store.
func (c *Config) ValidateBackend() error {
	switch c.Backend {
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			return errors.New("firebase.project_id is not set in config.yaml")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is not set in config.yaml")
		}
	case BackendAzTables:
		if c.AzTables.ConnectionString == "" {
			return errors.New("aztables.connection_string is not set in config.yaml")
		}
		if c.AzTables.Table == "" {
			return errors.New("aztables.table is not set in config.yaml")
		}
	default:
		return c.Validate()
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path to config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the stored session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
