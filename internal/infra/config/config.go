package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	HTTPClient     HTTPClientConfig     `mapstructure:"http_client"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Log            LogConfig            `mapstructure:"log"`
	Mpesa          MpesaConfig          `mapstructure:"mpesa"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Storage        StorageConfig        `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// URL returns the database connection string in URL form, as used by migrations.
func (c *DatabaseConfig) URL() string {
	userInfo := c.User
	if c.Password != "" {
		userInfo += ":" + c.Password
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", userInfo, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Enabled enables/disables rate limiting.
	Enabled bool `mapstructure:"enabled"`
	// InitiateLimit is the number of payment initiations allowed per client IP per window.
	InitiateLimit int `mapstructure:"initiate_limit"`
	// InitiateWindow is the initiation rate limit window.
	InitiateWindow time.Duration `mapstructure:"initiate_window"`
	// IdempotencyTTL is the TTL for idempotency keys.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Mpesa environments.
const (
	MpesaSandbox    = "sandbox"
	MpesaProduction = "production"
)

var mpesaBaseURLs = map[string]string{
	MpesaSandbox:    "https://sandbox.safaricom.co.ke",
	MpesaProduction: "https://api.safaricom.co.ke",
}

// MpesaConfig holds M-Pesa Express credentials and client settings.
type MpesaConfig struct {
	Environment     string `mapstructure:"environment"` // sandbox or production
	BaseURL         string `mapstructure:"base_url"`    // overrides the environment URL
	ConsumerKey     string `mapstructure:"consumer_key"`
	ConsumerSecret  string `mapstructure:"consumer_secret"`
	ShortCode       string `mapstructure:"shortcode"`
	Passkey         string `mapstructure:"passkey"`
	CallbackURL     string `mapstructure:"callback_url"`
	TransactionType string `mapstructure:"transaction_type"`
	Timezone        string `mapstructure:"timezone"`

	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// APIBaseURL returns the Daraja base URL for the configured environment.
func (c *MpesaConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if u, ok := mpesaBaseURLs[c.Environment]; ok {
		return u
	}
	return mpesaBaseURLs[MpesaSandbox]
}

// ReconciliationConfig holds settings for the pending payment sweeper.
type ReconciliationConfig struct {
	// SweepInterval is how often stale pending payments are probed. Zero disables the sweeper.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// PendingThreshold is how long a payment stays pending before the sweeper probes it.
	PendingThreshold time.Duration `mapstructure:"pending_threshold"`
	// BatchSize caps the number of payments probed per sweep.
	BatchSize int `mapstructure:"batch_size"`
	// ProbeLockTTL bounds how long a single provider probe holds its lock.
	ProbeLockTTL time.Duration `mapstructure:"probe_lock_ttl"`
}

// BrokerConfig holds RabbitMQ configuration.
type BrokerConfig struct {
	// URL is the AMQP URL. Empty disables event publishing.
	URL            string        `mapstructure:"url"`
	ResolvedQueue  string        `mapstructure:"resolved_queue"`
	SucceededQueue string        `mapstructure:"succeeded_queue"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Bucket is the callback archive bucket. Empty disables archiving.
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/sokoni")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("SOKONI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretOverrides(&cfg)

	return &cfg, nil
}

// applySecretOverrides reads credentials that are never kept in config files.
func applySecretOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"SOKONI_DB_PASSWORD", &cfg.Database.Password},
		{"SOKONI_REDIS_PASSWORD", &cfg.Redis.Password},
		{"SOKONI_MPESA_CONSUMER_KEY", &cfg.Mpesa.ConsumerKey},
		{"SOKONI_MPESA_CONSUMER_SECRET", &cfg.Mpesa.ConsumerSecret},
		{"SOKONI_MPESA_PASSKEY", &cfg.Mpesa.Passkey},
		{"SOKONI_BROKER_URL", &cfg.Broker.URL},
		{"SOKONI_STORAGE_SECRET_KEY", &cfg.Storage.SecretAccessKey},
	}
	for _, o := range overrides {
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

// Validate checks that the configuration can start the server.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := mpesaBaseURLs[c.Mpesa.Environment]; !ok {
		errs = append(errs, fmt.Errorf("mpesa.environment must be %q or %q, got %q", MpesaSandbox, MpesaProduction, c.Mpesa.Environment))
	}
	required := []struct {
		key string
		val string
	}{
		{"mpesa.consumer_key", c.Mpesa.ConsumerKey},
		{"mpesa.consumer_secret", c.Mpesa.ConsumerSecret},
		{"mpesa.shortcode", c.Mpesa.ShortCode},
		{"mpesa.passkey", c.Mpesa.Passkey},
		{"mpesa.callback_url", c.Mpesa.CallbackURL},
	}
	for _, r := range required {
		if r.val == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	// Initiation may probe a pending request before pushing a new one
	if wt, rt := c.Server.WriteTimeout, c.Mpesa.RequestTimeout; wt > 0 && rt > 0 && wt <= 2*rt {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must exceed twice mpesa.request_timeout (%s)", wt, rt))
	}
	if c.Reconciliation.SweepInterval < 0 {
		errs = append(errs, errors.New("reconciliation.sweep_interval must not be negative"))
	}
	if c.Reconciliation.SweepInterval > 0 && c.Reconciliation.BatchSize <= 0 {
		errs = append(errs, errors.New("reconciliation.batch_size must be positive"))
	}

	return errors.Join(errs...)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "sokoni")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 30*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.initiate_limit", 5)
	v.SetDefault("rate_limit.initiate_window", time.Minute)
	v.SetDefault("rate_limit.idempotency_ttl", 24*time.Hour)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// M-Pesa defaults
	v.SetDefault("mpesa.environment", MpesaSandbox)
	v.SetDefault("mpesa.transaction_type", "CustomerPayBillOnline")
	v.SetDefault("mpesa.timezone", "Africa/Nairobi")
	v.SetDefault("mpesa.request_timeout", 20*time.Second)
	v.SetDefault("mpesa.breaker_failures", 5)
	v.SetDefault("mpesa.breaker_timeout", 30*time.Second)

	// Reconciliation defaults
	v.SetDefault("reconciliation.sweep_interval", time.Minute)
	v.SetDefault("reconciliation.pending_threshold", 2*time.Minute)
	v.SetDefault("reconciliation.batch_size", 50)
	v.SetDefault("reconciliation.probe_lock_ttl", 15*time.Second)

	// Broker defaults
	v.SetDefault("broker.resolved_queue", "payment.resolved")
	v.SetDefault("broker.succeeded_queue", "payment.succeeded")
	v.SetDefault("broker.publish_timeout", 3*time.Second)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "callbacks/")
}
