package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // "postgres" or "sqlite"
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Path     string `mapstructure:"path"` // SQLite database file path
}

// DSN returns the postgres connection URL. Credentials are escaped, so they
// may contain any character.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {"disable"}, "TimeZone": {"UTC"}}.Encode(),
	}
	return u.String()
}

// HTTPConfig contains REST/WebSocket server settings.
type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `mapstructure:"address"` // gRPC health listener (e.g., ":50051")
}

// ServerConfig contains process-level listeners.
type ServerConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	SecretKey                string `mapstructure:"secret_key"` // JWT signing secret
	Algorithm                string `mapstructure:"algorithm"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
}

// TokenTTL is the lifetime of issued access tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// BrokerConfig points at the Redis instance used to coordinate job runs.
// An empty URL disables cross-instance locking.
type BrokerConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig selects where issue attachments are written.
type StorageConfig struct {
	Provider        string `mapstructure:"provider"` // "local" or "s3"
	UploadDir       string `mapstructure:"upload_dir"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// JobsConfig tunes the background jobs.
type JobsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	StatsRetryDelay   time.Duration `mapstructure:"stats_retry_delay"`
	CleanupRetryDelay time.Duration `mapstructure:"cleanup_retry_delay"`
	FileMaxAge        time.Duration `mapstructure:"file_max_age"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const devSecret = "dev-secret-change-me"

// Load loads configuration from environment variables (and an optional
// config.yaml) with sensible defaults. A signing secret is required.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.SecretKey == "" {
		return nil, errors.New("AUTH_SECRET_KEY environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for AUTH_SECRET_KEY in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load(devSecret)
}

func load(secretDefault string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	v.SetDefault("auth.secret_key", secretDefault)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv overrides are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "issue_tracker")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.path", "app.db")

	v.SetDefault("http.address", ":8000")
	v.SetDefault("grpc.address", ":50051")
	v.SetDefault("server.metrics_address", ":9091")

	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.access_token_expire_minutes", 60)

	v.SetDefault("broker.url", "")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.stats_retry_delay", 60*time.Second)
	v.SetDefault("jobs.cleanup_retry_delay", 300*time.Second)
	v.SetDefault("jobs.file_max_age", 30*24*time.Hour)

	v.SetDefault("log.level", "info")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported AUTH_ALGORITHM %q", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("AUTH_ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.Auth.AccessTokenExpireMinutes)
	}
	switch c.Storage.Provider {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("STORAGE_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	return nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	db := c.Database.Path
	if c.Database.Driver == "postgres" {
		db = fmt.Sprintf("%s@%s:%s/%s", c.Database.User, c.Database.Host, c.Database.Port, c.Database.Name)
	}
	broker := "disabled"
	if c.Broker.URL != "" {
		broker = "configured"
	}
	return fmt.Sprintf("Config{DB: %s(%s), HTTP: %s, gRPC: %s, Metrics: %s, Storage: %s, Broker: %s, Auth: %s *** (masked) ***}",
		c.Database.Driver, db, c.HTTP.Address, c.GRPC.Address, c.Server.MetricsAddress, c.Storage.Provider, broker, c.Auth.Algorithm)
}
