package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Billing   BillingConfig   `mapstructure:"billing"`
	State     StateConfig     `mapstructure:"state"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Routing   RoutingConfig   `mapstructure:"routing"`
}

type ServerConfig struct {
	BindAddress      string        `mapstructure:"bind_address"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type UpstreamConfig struct {
	// Endpoint is the data-plane listener that requests are forwarded to
	// when no per-key upstream URL applies.
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type PricingConfig struct {
	PortkeyDir string `mapstructure:"portkey_dir"`
}

type BillingConfig struct {
	QueueSize               int           `mapstructure:"queue_size"`
	FlushInterval           time.Duration `mapstructure:"flush_interval"`
	FlushBatchSize          int           `mapstructure:"flush_batch_size"`
	PricingInterval         time.Duration `mapstructure:"pricing_interval"`
	PricingBatchSize        int           `mapstructure:"pricing_batch_size"`
	BudgetCheckInterval     time.Duration `mapstructure:"budget_check_interval"`
	RegistryRefreshInterval time.Duration `mapstructure:"registry_refresh_interval"`
}

type StateConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend"`
}

type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	CollectorURL   string `mapstructure:"collector_url"`
	ServiceName    string `mapstructure:"service_name"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RoutingConfig carries the provider table and alias map. ConfigPath points
// at the rendered gateway config; when set, Providers and ModelAliases are
// loaded from it instead of this file.
type RoutingConfig struct {
	ConfigPath   string            `mapstructure:"config_path"`
	Providers    []ProviderConfig  `mapstructure:"llm_providers"`
	ModelAliases map[string]string `mapstructure:"model_aliases"`
}

type ProviderConfig struct {
	Name      string `mapstructure:"name"`
	Model     string `mapstructure:"model"`
	AccessKey string `mapstructure:"access_key"`
	Endpoint  string `mapstructure:"endpoint"`
	Default   bool   `mapstructure:"default"`
	Stream    bool   `mapstructure:"stream"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.AddConfigPath(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/xproxy")
	}

	setDefaults()

	viper.AutomaticEnv()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Routing.ConfigPath != "" {
		if err := loadRenderedRouting(&config.Routing); err != nil {
			return nil, fmt.Errorf("load rendered routing config: %w", err)
		}
	}

	cfg = &config
	return cfg, nil
}

// loadRenderedRouting reads the rendered gateway config (YAML) and replaces
// the provider table and alias map with its contents.
func loadRenderedRouting(rc *RoutingConfig) error {
	f, err := os.Open(rc.ConfigPath)
	if err != nil {
		return err
	}
	defer f.Close()

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(f); err != nil {
		return err
	}

	var rendered RoutingConfig
	if err := v.Unmarshal(&rendered); err != nil {
		return err
	}
	if len(rendered.Providers) > 0 {
		rc.Providers = rendered.Providers
	}
	if len(rendered.ModelAliases) > 0 {
		rc.ModelAliases = rendered.ModelAliases
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.bind_address", "0.0.0.0:9091")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "300s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown", "30s")

	// Database defaults
	viper.SetDefault("database.max_connections", 100)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.conn_max_lifetime", "1h")

	// Upstream defaults
	viper.SetDefault("upstream.endpoint", "http://localhost:12001")
	viper.SetDefault("upstream.timeout", "300s")

	// Auth defaults
	viper.SetDefault("auth.token_duration", "24h")
	viper.SetDefault("auth.cache_size", 10000)
	viper.SetDefault("auth.cache_ttl", "60s")

	// Billing defaults
	viper.SetDefault("billing.queue_size", 10000)
	viper.SetDefault("billing.flush_interval", "10s")
	viper.SetDefault("billing.flush_batch_size", 1000)
	viper.SetDefault("billing.pricing_interval", "10s")
	viper.SetDefault("billing.pricing_batch_size", 1000)
	viper.SetDefault("billing.budget_check_interval", "10s")
	viper.SetDefault("billing.registry_refresh_interval", "60s")

	// State defaults
	viper.SetDefault("state.backend", "memory")

	// Telemetry defaults
	viper.SetDefault("telemetry.tracing_enabled", false)
	viper.SetDefault("telemetry.service_name", "xproxy")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	// CORS defaults
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{"*"})
	viper.SetDefault("cors.allow_credentials", false)
	viper.SetDefault("cors.max_age", 86400)
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.bind_address", "BIND_ADDRESS")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.max_connections", "DATABASE_MAX_CONNECTIONS")
	viper.BindEnv("database.max_idle_connections", "DATABASE_MAX_IDLE_CONNECTIONS")

	// Upstream
	viper.BindEnv("upstream.endpoint", "LLM_PROVIDER_ENDPOINT")
	viper.BindEnv("upstream.timeout", "UPSTREAM_TIMEOUT")

	// Auth
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("auth.cache_size", "AUTH_CACHE_SIZE")
	viper.BindEnv("auth.cache_ttl", "AUTH_CACHE_TTL")

	// Pricing
	viper.BindEnv("pricing.portkey_dir", "PORTKEY_PRICING_DIR")

	// Billing
	viper.BindEnv("billing.flush_interval", "USAGE_FLUSH_INTERVAL")
	viper.BindEnv("billing.budget_check_interval", "BUDGET_CHECK_INTERVAL")

	// State
	viper.BindEnv("state.backend", "STATE_BACKEND")

	// Telemetry
	viper.BindEnv("telemetry.tracing_enabled", "OTEL_TRACING_ENABLED")
	viper.BindEnv("telemetry.collector_url", "OTEL_COLLECTOR_URL")

	// Logging
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	// Routing
	viper.BindEnv("routing.config_path", "ARCH_CONFIG_PATH_RENDERED")
}

func Get() *Config {
	return cfg
}
