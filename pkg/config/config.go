package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for ekaya-dbclient.
// Values come from config.yaml with environment variable overrides; when the
// file is absent, environment variables and defaults alone are used.
// Secrets (the credentials key) only come from the environment.
type Config struct {
	// Local API server. Binds to loopback by default; the API exposes saved credentials.
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"4780"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds HTTP drain plus connection cleanup on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Manager ManagerConfig `yaml:"manager"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ManagerConfig holds connection manager limits and timer defaults.
// Per-connection overrides on a saved connection take precedence.
type ManagerConfig struct {
	MaxConnections      int           `yaml:"max_connections" env:"MANAGER_MAX_CONNECTIONS" env-default:"10"`
	QueryTimeout        time.Duration `yaml:"query_timeout" env:"MANAGER_QUERY_TIMEOUT" env-default:"30s"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" env:"MANAGER_IDLE_TIMEOUT" env-default:"5m"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"MANAGER_HEALTH_CHECK_INTERVAL" env-default:"30s"`
	// ConnectRetries is how many times a transient network failure during connect is retried.
	ConnectRetries int `yaml:"connect_retries" env:"MANAGER_CONNECT_RETRIES" env-default:"2"`
}

// StorageConfig holds the credential store location and key handling.
type StorageConfig struct {
	// DataDir defaults to <user config dir>/ekaya-dbclient.
	DataDir         string `yaml:"data_dir" env:"DBCLIENT_DATA_DIR" env-default:""`
	ConnectionsFile string `yaml:"connections_file" env:"DBCLIENT_CONNECTIONS_FILE" env-default:"connections.json"`
	KeyFile         string `yaml:"key_file" env:"DBCLIENT_KEY_FILE" env-default:"encryption.key"`
	UseKeyring      bool   `yaml:"use_keyring" env:"DBCLIENT_USE_KEYRING" env-default:"true"`
	KeyringService  string `yaml:"keyring_service" env:"DBCLIENT_KEYRING_SERVICE" env-default:"ekaya-dbclient"`

	// CredentialsKey overrides the keyring and key file. Base64 32-byte key or passphrase.
	CredentialsKey string `yaml:"-" env:"DBCLIENT_CREDENTIALS_KEY"` // Secret - not in YAML
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	// ToFile enables the rotating log file. File defaults to <data dir>/logs/ekaya-dbclient.log.
	ToFile     bool   `yaml:"to_file" env:"LOG_TO_FILE" env-default:"true"`
	File       string `yaml:"file" env:"LOG_FILE" env-default:""`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
	Compress   bool   `yaml:"compress" env:"LOG_COMPRESS" env-default:"false"`
}

// Load reads DefaultConfigFile from the working directory with environment overrides.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigFile, version)
}

// LoadFrom reads the given YAML file with environment overrides. A missing
// file is not an error; defaults and environment variables are used instead.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.Storage.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to determine user config dir (set DBCLIENT_DATA_DIR): %w", err)
		}
		c.Storage.DataDir = filepath.Join(base, "ekaya-dbclient")
	}
	if c.Log.ToFile && c.Log.File == "" {
		c.Log.File = filepath.Join(c.Storage.DataDir, "logs", "ekaya-dbclient.log")
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Port)
	}
	if c.Manager.MaxConnections <= 0 {
		return fmt.Errorf("manager.max_connections must be positive, got %d", c.Manager.MaxConnections)
	}
	if c.Manager.QueryTimeout <= 0 || c.Manager.IdleTimeout <= 0 || c.Manager.HealthCheckInterval <= 0 {
		return errors.New("manager timeouts must be positive")
	}
	if c.Manager.ConnectRetries < 0 {
		return fmt.Errorf("manager.connect_retries must not be negative, got %d", c.Manager.ConnectRetries)
	}
	return nil
}

// ListenAddr returns the host:port the API server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// ConnectionsPath returns the absolute path of the saved-connections file.
func (s *StorageConfig) ConnectionsPath() string {
	return s.resolve(s.ConnectionsFile)
}

// KeyPath returns the absolute path of the fallback master key file.
func (s *StorageConfig) KeyPath() string {
	return s.resolve(s.KeyFile)
}

func (s *StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

// LoggingOptions converts the log section into logger options.
func (l *LogConfig) LoggingOptions() logging.Options {
	opts := logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
	if l.ToFile {
		opts.File = l.File
	}
	return opts
}
