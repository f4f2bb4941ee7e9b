package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FULFILLMENT_DATABASE_PASSWORD
const EnvPrefix = "FULFILLMENT"

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Routing     RoutingConfig
	Reservation ReservationConfig
	Sync        SyncConfig
	Suppliers   SuppliersConfig
	Kafka       KafkaConfig
	Storage     StorageConfig
	Telemetry   TelemetryConfig
	Profiling   ProfilingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// Redis backs the webhook idempotency store; when disabled an in-memory store is used.
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Supplier webhooks get their own, per-supplier limit
	WebhookRateLimitRequests int
	WebhookRateLimitWindow   time.Duration

	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// RoutingConfig tunes the routing engine
type RoutingConfig struct {
	StoreRetries         int
	StoreRetryBackoff    time.Duration
	InventoryTimeout     time.Duration // per adapter call
	InventoryConcurrency int
}

// ReservationConfig tunes the reservation ledger
type ReservationConfig struct {
	LockTimeout      time.Duration // bounded reservations (row lock wait)
	SequenceAttempts int           // sequence allocations (optimistic insert)
	JitterMin        time.Duration
	JitterMax        time.Duration
}

// SyncConfig covers the supply sync service, its job scheduler and the periodic trigger
type SyncConfig struct {
	AdapterRetries int
	RetryBackoff   time.Duration
	AdapterTimeout time.Duration
	IdempotencyTTL time.Duration

	SchedulerEnabled  bool
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	HistorySize       int

	TriggerEnabled bool
	CheckInterval  time.Duration
	Timezone       string
}

// Location resolves Timezone
func (s SyncConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// SuppliersConfig holds credentials for API-backed suppliers
type SuppliersConfig struct {
	PrintfulAPIKey            string
	PrintfulBaseURL           string
	PrintfulTimeout           time.Duration
	PrintfulRequestsPerSecond float64
	PrintfulBurst             int
}

// KafkaConfig configures the order status forwarder
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	OrderStatusTopic string
	ClientID         string
	BatchTimeout     time.Duration
	WriteTimeout     time.Duration
}

// StorageConfig configures the S3-compatible catalog snapshot archive
type StorageConfig struct {
	Enabled      bool
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	Endpoint     string // empty for AWS, host:port for MinIO and friends
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileGoroutines bool
	ProfileLocks      bool // mutex and block profiles
	SpanProfiles      bool // link CPU profiles to trace spans
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FULFILLMENT_ prefix (e.g., FULFILLMENT_DATABASE_PASSWORD)
// 2. Variables from an optional .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// retry counts default through viper so an explicit 0 disables retries
	v.SetDefault("routing.store_retries", 3)
	v.SetDefault("sync.adapter_retries", 2)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:              v.GetDuration("http.read_timeout"),
			WriteTimeout:             v.GetDuration("http.write_timeout"),
			IdleTimeout:              v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:           v.GetInt("http.max_header_bytes"),
			MaxBodySize:              v.GetInt64("http.max_body_size"),
			RateLimitEnabled:         v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests:        v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:          v.GetDuration("http.rate_limit_window"),
			WebhookRateLimitRequests: v.GetInt("http.webhook_rate_limit_requests"),
			WebhookRateLimitWindow:   v.GetDuration("http.webhook_rate_limit_window"),
			CORSAllowOrigins:         splitList(v.GetStringSlice("http.cors_allow_origins")),
			CORSAllowMethods:         splitList(v.GetStringSlice("http.cors_allow_methods")),
			CORSAllowHeaders:         splitList(v.GetStringSlice("http.cors_allow_headers")),
			TrustedProxies:           splitList(v.GetStringSlice("http.trusted_proxies")),
		},
		Routing: RoutingConfig{
			StoreRetries:         v.GetInt("routing.store_retries"),
			StoreRetryBackoff:    v.GetDuration("routing.store_retry_backoff"),
			InventoryTimeout:     v.GetDuration("routing.inventory_timeout"),
			InventoryConcurrency: v.GetInt("routing.inventory_concurrency"),
		},
		Reservation: ReservationConfig{
			LockTimeout:      v.GetDuration("reservation.lock_timeout"),
			SequenceAttempts: v.GetInt("reservation.sequence_attempts"),
			JitterMin:        v.GetDuration("reservation.jitter_min"),
			JitterMax:        v.GetDuration("reservation.jitter_max"),
		},
		Sync: SyncConfig{
			AdapterRetries:    v.GetInt("sync.adapter_retries"),
			RetryBackoff:      v.GetDuration("sync.retry_backoff"),
			AdapterTimeout:    v.GetDuration("sync.adapter_timeout"),
			IdempotencyTTL:    v.GetDuration("sync.idempotency_ttl"),
			SchedulerEnabled:  v.GetBool("sync.scheduler_enabled"),
			MaxConcurrentJobs: v.GetInt("sync.max_concurrent_jobs"),
			QueueSize:         v.GetInt("sync.queue_size"),
			JobTimeout:        v.GetDuration("sync.job_timeout"),
			RetryAttempts:     v.GetInt("sync.retry_attempts"),
			RetryDelay:        v.GetDuration("sync.retry_delay"),
			HistorySize:       v.GetInt("sync.history_size"),
			TriggerEnabled:    v.GetBool("sync.trigger_enabled"),
			CheckInterval:     v.GetDuration("sync.check_interval"),
			Timezone:          v.GetString("sync.timezone"),
		},
		Suppliers: SuppliersConfig{
			PrintfulAPIKey:            v.GetString("suppliers.printful_api_key"),
			PrintfulBaseURL:           v.GetString("suppliers.printful_base_url"),
			PrintfulTimeout:           v.GetDuration("suppliers.printful_timeout"),
			PrintfulRequestsPerSecond: v.GetFloat64("suppliers.printful_requests_per_second"),
			PrintfulBurst:             v.GetInt("suppliers.printful_burst"),
		},
		Kafka: KafkaConfig{
			Enabled:          v.GetBool("kafka.enabled"),
			Brokers:          splitList(v.GetStringSlice("kafka.brokers")),
			OrderStatusTopic: v.GetString("kafka.order_status_topic"),
			ClientID:         v.GetString("kafka.client_id"),
			BatchTimeout:     v.GetDuration("kafka.batch_timeout"),
			WriteTimeout:     v.GetDuration("kafka.write_timeout"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			Region:       v.GetString("storage.region"),
			Endpoint:     v.GetString("storage.endpoint"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			ProfileGoroutines: v.GetBool("profiling.profile_goroutines"),
			ProfileLocks:      v.GetBool("profiling.profile_locks"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList accepts both TOML arrays and comma-separated env values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fulfillment"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "fulfillment"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "fulfillment:idempotency:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.WebhookRateLimitRequests == 0 {
		cfg.HTTP.WebhookRateLimitRequests = 600
	}
	if cfg.HTTP.WebhookRateLimitWindow == 0 {
		cfg.HTTP.WebhookRateLimitWindow = time.Minute
	}
	// No CORS origin fallback: an empty list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	if cfg.Routing.StoreRetryBackoff == 0 {
		cfg.Routing.StoreRetryBackoff = 50 * time.Millisecond
	}
	if cfg.Routing.InventoryTimeout == 0 {
		cfg.Routing.InventoryTimeout = 5 * time.Second
	}
	if cfg.Routing.InventoryConcurrency == 0 {
		cfg.Routing.InventoryConcurrency = 8
	}

	if cfg.Reservation.LockTimeout == 0 {
		cfg.Reservation.LockTimeout = 2 * time.Second
	}
	if cfg.Reservation.SequenceAttempts == 0 {
		cfg.Reservation.SequenceAttempts = 5
	}
	if cfg.Reservation.JitterMin == 0 {
		cfg.Reservation.JitterMin = 5 * time.Millisecond
	}
	if cfg.Reservation.JitterMax == 0 {
		cfg.Reservation.JitterMax = 15 * time.Millisecond
	}

	if cfg.Sync.RetryBackoff == 0 {
		cfg.Sync.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Sync.AdapterTimeout == 0 {
		cfg.Sync.AdapterTimeout = 10 * time.Second
	}
	if cfg.Sync.IdempotencyTTL == 0 {
		cfg.Sync.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Sync.MaxConcurrentJobs == 0 {
		cfg.Sync.MaxConcurrentJobs = 2
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 100
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 15 * time.Minute
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if cfg.Sync.RetryDelay == 0 {
		cfg.Sync.RetryDelay = time.Minute
	}
	if cfg.Sync.HistorySize == 0 {
		cfg.Sync.HistorySize = 100
	}
	if cfg.Sync.CheckInterval == 0 {
		cfg.Sync.CheckInterval = 30 * time.Second
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "UTC"
	}

	if cfg.Suppliers.PrintfulBaseURL == "" {
		cfg.Suppliers.PrintfulBaseURL = "https://api.printful.com"
	}
	if cfg.Suppliers.PrintfulTimeout == 0 {
		cfg.Suppliers.PrintfulTimeout = 30 * time.Second
	}
	if cfg.Suppliers.PrintfulRequestsPerSecond == 0 {
		cfg.Suppliers.PrintfulRequestsPerSecond = 2
	}
	if cfg.Suppliers.PrintfulBurst == 0 {
		cfg.Suppliers.PrintfulBurst = 5
	}

	if cfg.Kafka.OrderStatusTopic == "" {
		cfg.Kafka.OrderStatusTopic = "fulfillment.order-status"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.App.Name
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "catalog-snapshots"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Reservation.SequenceAttempts < 1 {
		return fmt.Errorf("reservation.sequence_attempts must be at least 1")
	}
	if c.Reservation.JitterMin > c.Reservation.JitterMax {
		return fmt.Errorf("reservation.jitter_min (%s) cannot exceed reservation.jitter_max (%s)",
			c.Reservation.JitterMin, c.Reservation.JitterMax)
	}
	if c.Reservation.LockTimeout < time.Millisecond {
		return fmt.Errorf("reservation.lock_timeout must be at least 1ms")
	}

	if c.Routing.StoreRetries < 0 {
		return fmt.Errorf("routing.store_retries cannot be negative")
	}

	if c.Sync.AdapterRetries < 0 {
		return fmt.Errorf("sync.adapter_retries cannot be negative")
	}
	if c.Sync.CheckInterval > time.Minute {
		return fmt.Errorf("sync.check_interval must not exceed 1m, got %s", c.Sync.CheckInterval)
	}
	if _, err := c.Sync.Location(); err != nil {
		return fmt.Errorf("sync.timezone %q: %w", c.Sync.Timezone, err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
