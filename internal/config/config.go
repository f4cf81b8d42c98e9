// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"papertrade/internal/pricefeed"
	"papertrade/internal/service"
	"papertrade/internal/tracker"
	"papertrade/internal/util"
	"papertrade/pkg/db" // Import db package for its Config struct
)

// EnvPrefix prefixes every environment override, e.g. PAPERTRADE_SERVER_PORT.
const EnvPrefix = "PAPERTRADE"

// ConfigFileEnv names the variable holding an optional config file path.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	Server    ServerConfig      `mapstructure:"server"`
	DB        db.Config         `mapstructure:"database"`
	PriceFeed pricefeed.Config  `mapstructure:"pricefeed"`
	Tracker   tracker.Config    `mapstructure:"tracker"`
	Portfolio service.Options   `mapstructure:"portfolio"`
	Logger    util.LoggerConfig `mapstructure:"logger"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from defaults, an optional config file named
// by PAPERTRADE_CONFIG, and PAPERTRADE_* environment variables, in increasing
// order of precedence.
func LoadConfig() (*AppConfig, error) {
	return Load(os.Getenv(ConfigFileEnv))
}

// Load is LoadConfig with an explicit config file path; an empty path skips the file.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.driver", db.DriverSQLite)
	v.SetDefault("database.dsn", "data/portfolio.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "papertrade")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "papertrade")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	feed := pricefeed.DefaultConfig()
	v.SetDefault("pricefeed.base_url", feed.BaseURL)
	v.SetDefault("pricefeed.category", feed.Category)
	v.SetDefault("pricefeed.quote_currency", feed.QuoteCurrency)
	v.SetDefault("pricefeed.timeout", feed.Timeout)
	v.SetDefault("pricefeed.response_ttl", feed.ResponseTTL)
	v.SetDefault("pricefeed.workers", feed.Workers)
	v.SetDefault("pricefeed.rate_limit", feed.RateLimit)
	v.SetDefault("pricefeed.rate_burst", feed.RateBurst)

	v.SetDefault("tracker.interval", tracker.DefaultInterval)

	opts := service.DefaultOptions()
	v.SetDefault("portfolio.initial_balance", opts.InitialBalance)
	v.SetDefault("portfolio.zero_price_policy", string(opts.ZeroPricePolicy))
	v.SetDefault("portfolio.strict_persistence", opts.StrictPersistence)

	logger := util.DefaultLoggerConfig()
	v.SetDefault("logger.level", logger.Level)
	v.SetDefault("logger.format", logger.Format)
	v.SetDefault("logger.output", logger.Output)
	v.SetDefault("logger.file_path", logger.FilePath)
	v.SetDefault("logger.max_size", logger.MaxSize)
	v.SetDefault("logger.max_backups", logger.MaxBackups)
	v.SetDefault("logger.max_age", logger.MaxAge)
	v.SetDefault("logger.compress", logger.Compress)
	v.SetDefault("logger.add_source", logger.AddSource)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for values the application cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	switch c.DB.Driver {
	case db.DriverSQLite:
	case db.DriverPostgres:
		if c.DB.DSN == "" && c.DB.Host == "" {
			errs = append(errs, errors.New("database.host or database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.DB.Driver))
	}
	if c.PriceFeed.BaseURL == "" {
		errs = append(errs, errors.New("pricefeed.base_url is required"))
	}
	if c.PriceFeed.Timeout <= 0 {
		errs = append(errs, errors.New("pricefeed.timeout must be positive"))
	}
	if c.PriceFeed.Workers <= 0 {
		errs = append(errs, errors.New("pricefeed.workers must be positive"))
	}
	if c.Tracker.Interval <= 0 {
		errs = append(errs, errors.New("tracker.interval must be positive"))
	}
	if c.Portfolio.InitialBalance < 0 {
		errs = append(errs, errors.New("portfolio.initial_balance must not be negative"))
	}
	switch c.Portfolio.ZeroPricePolicy {
	case service.ZeroPriceAllow, service.ZeroPriceReject:
	default:
		errs = append(errs, fmt.Errorf("unknown portfolio.zero_price_policy %q", c.Portfolio.ZeroPricePolicy))
	}

	return errors.Join(errs...)
}
