package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	AuthJWTSecret    string
	AuthJWTIssuer    string

	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBSlowQueryMs     int
	DBLogSQL          bool

	RateLimit RateLimitConfig
	Security  SecurityConfig
	Notify    NotifyConfig
	Bootstrap BootstrapConfig
}

type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtlpEndpoint  string
	OtlpProtocol  string
	SamplingRatio float64
}

type RateLimitConfig struct {
	Enabled       bool
	MaxRequests   int
	Window        time.Duration
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type SecurityConfig struct {
	EventStore     string
	EventCapacity  int
	EventPruneSize int
}

type NotifyConfig struct {
	QueueSize    int
	Workers      int
	SlackToken   string
	SlackChannel string
}

type BootstrapConfig struct {
	EnsureAdmin   bool
	AdminUsername string
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRateLimitHolder),
)

func defaults(v *viper.Viper) {
	v.SetDefault("app_service", "fieldops")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("auth_cookie_secure", false)
	v.SetDefault("auth_jwt_issuer", "fieldops")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("otel_enabled", true)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("otel_exporter_otlp_protocol", "grpc")
	v.SetDefault("otel_sampling_ratio", 0.1)

	v.SetDefault("database_type", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "fieldops")
	v.SetDefault("database_user", "postgres")
	v.SetDefault("database_password", "")
	v.SetDefault("database_sslmode", "disable")
	v.SetDefault("database_max_idle_conn", 10)
	v.SetDefault("database_max_open_conn", 50)
	v.SetDefault("database_conn_max_lifetime", 300)
	v.SetDefault("database_conn_max_idle_time", 60)
	v.SetDefault("database_slow_query_ms", 200)
	v.SetDefault("database_log_sql", false)

	v.SetDefault("rate_limit_enabled", true)
	v.SetDefault("rate_limit_max_requests", 1000)
	v.SetDefault("rate_limit_window", "60s")
	v.SetDefault("rate_limit_store", "memory")
	v.SetDefault("rate_limit_redis_addr", "localhost:6379")
	v.SetDefault("rate_limit_redis_db", 0)

	v.SetDefault("security_event_store", "memory")
	v.SetDefault("security_event_capacity", 10000)
	v.SetDefault("security_event_prune_size", 1000)

	v.SetDefault("notify_queue_size", 256)
	v.SetDefault("notify_workers", 2)

	v.SetDefault("bootstrap_ensure_admin", true)
	v.SetDefault("bootstrap_admin_username", "admin")
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	environment := strings.TrimSpace(v.GetString("environment"))
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = v.GetBool("auth_cookie_secure")
	}

	return Config{
		AppName:          v.GetString("app_service"),
		AppVersion:       v.GetString("app_version"),
		Environment:      environment,
		HTTPAddr:         v.GetString("http_addr"),
		AuthCookieSecure: authCookieSecure,
		AuthJWTSecret:    strings.TrimSpace(v.GetString("auth_jwt_secret")),
		AuthJWTIssuer:    strings.TrimSpace(v.GetString("auth_jwt_issuer")),

		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
			OtelEnabled:   v.GetBool("otel_enabled"),
			OtlpEndpoint:  strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint")),
			OtlpProtocol:  otlpProtocol(v),
			SamplingRatio: v.GetFloat64("otel_sampling_ratio"),
		},

		DBType:            strings.ToLower(v.GetString("database_type")),
		DBHost:            v.GetString("database_host"),
		DBPort:            v.GetString("database_port"),
		DBName:            v.GetString("database_name"),
		DBUser:            v.GetString("database_user"),
		DBPassword:        v.GetString("database_password"),
		DBSSLMode:         v.GetString("database_sslmode"),
		DBMaxIdleConn:     v.GetInt("database_max_idle_conn"),
		DBMaxOpenConn:     v.GetInt("database_max_open_conn"),
		DBConnMaxLifetime: v.GetInt("database_conn_max_lifetime"),
		DBConnMaxIdleTime: v.GetInt("database_conn_max_idle_time"),
		DBSlowQueryMs:     v.GetInt("database_slow_query_ms"),
		DBLogSQL:          v.GetBool("database_log_sql"),

		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("rate_limit_enabled"),
			MaxRequests:   v.GetInt("rate_limit_max_requests"),
			Window:        v.GetDuration("rate_limit_window"),
			Store:         strings.ToLower(strings.TrimSpace(v.GetString("rate_limit_store"))),
			RedisAddr:     strings.TrimSpace(v.GetString("rate_limit_redis_addr")),
			RedisPassword: strings.TrimSpace(v.GetString("rate_limit_redis_password")),
			RedisDB:       v.GetInt("rate_limit_redis_db"),
		},
		Security: SecurityConfig{
			EventStore:     strings.ToLower(strings.TrimSpace(v.GetString("security_event_store"))),
			EventCapacity:  v.GetInt("security_event_capacity"),
			EventPruneSize: v.GetInt("security_event_prune_size"),
		},
		Notify: NotifyConfig{
			QueueSize:    v.GetInt("notify_queue_size"),
			Workers:      v.GetInt("notify_workers"),
			SlackToken:   strings.TrimSpace(v.GetString("notify_slack_token")),
			SlackChannel: strings.TrimSpace(v.GetString("notify_slack_channel")),
		},
		Bootstrap: BootstrapConfig{
			EnsureAdmin:   v.GetBool("bootstrap_ensure_admin"),
			AdminUsername: strings.TrimSpace(v.GetString("bootstrap_admin_username")),
		},
	}
}

// otlpProtocol prefers the trace-specific protocol variable when it is set.
func otlpProtocol(v *viper.Viper) string {
	if traces := strings.TrimSpace(v.GetString("otel_exporter_otlp_traces_protocol")); traces != "" {
		return strings.ToLower(traces)
	}
	return strings.ToLower(strings.TrimSpace(v.GetString("otel_exporter_otlp_protocol")))
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
