package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/store"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Scoring    ScoringConfig        `yaml:"scoring" mapstructure:"scoring"`
	Thresholds interpret.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	Defaults   normalize.Defaults   `yaml:"defaults" mapstructure:"defaults"`
	Store      store.Config         `yaml:"store" mapstructure:"store"`
	Server     ServerConfig         `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig     `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig            `yaml:"log" mapstructure:"log"`
}

// ScoringConfig configures the scoring service client.
type ScoringConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	Retries     int           `yaml:"retries" mapstructure:"retries"`
	Breaker     BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// Timeout returns the per-call timeout.
func (c ScoringConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BreakerConfig configures the scoring circuit breaker.
type BreakerConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background evaluation health checker.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	MinEvaluations        int     `yaml:"min_evaluations" mapstructure:"min_evaluations"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return eris.Wrap(err, "config: thresholds")
	}
	if c.Scoring.BaseURL == "" {
		return eris.New("config: scoring.base_url is required (RISKALERT_SCORING_BASE_URL or SCORING_API_URL)")
	}
	if c.Scoring.TimeoutSecs < 0 {
		return eris.New("config: scoring.timeout_secs must not be negative")
	}
	switch c.Store.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unsupported store driver: %s", c.Store.Driver)
	}
	if c.Monitoring.FallbackRateThreshold < 0 || c.Monitoring.FallbackRateThreshold > 1 {
		return eris.New("config: monitoring.fallback_rate_threshold must be between 0 and 1")
	}
	return nil
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables use the RISKALERT_ prefix; SCORING_API_URL is also
// accepted for the scoring base URL.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISKALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("scoring.base_url", "RISKALERT_SCORING_BASE_URL", "SCORING_API_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	d := normalize.DefaultDefaults()
	th := interpret.DefaultThresholds()
	v.SetDefault("scoring.base_url", scoring.DefaultBaseURL)
	v.SetDefault("scoring.timeout_secs", 10)
	v.SetDefault("scoring.rate_per_sec", 0)
	v.SetDefault("scoring.rate_burst", 1)
	v.SetDefault("scoring.retries", 0)
	v.SetDefault("scoring.breaker.enabled", false)
	v.SetDefault("scoring.breaker.failure_threshold", 5)
	v.SetDefault("scoring.breaker.reset_timeout_secs", 30)
	v.SetDefault("thresholds.red", th.Red)
	v.SetDefault("thresholds.yellow_min", th.YellowMin)
	v.SetDefault("thresholds.min_gap", th.MinGap)
	v.SetDefault("defaults.customer_id", d.CustomerID)
	v.SetDefault("defaults.account_id", d.AccountID)
	v.SetDefault("defaults.currency", d.Currency)
	v.SetDefault("defaults.lat", d.Lat)
	v.SetDefault("defaults.lon", d.Lon)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_evaluations", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
