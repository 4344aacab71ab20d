package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Rates   RatesConfig   `yaml:"rates" mapstructure:"rates"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the statistics store backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestConfig configures the daily ingest pipeline.
type IngestConfig struct {
	Brand               string  `yaml:"brand" mapstructure:"brand"`
	MaxConcurrentModels int     `yaml:"max_concurrent_models" mapstructure:"max_concurrent_models"`
	PlausibilityMin     float64 `yaml:"plausibility_min" mapstructure:"plausibility_min"` // × MSRP
	PlausibilityMax     float64 `yaml:"plausibility_max" mapstructure:"plausibility_max"` // × MSRP
	AnomalyThresholdPct float64 `yaml:"anomaly_threshold_pct" mapstructure:"anomaly_threshold_pct"`
}

// ScoringConfig holds the composite-score weights. The three weights are
// normalized by their sum before use; all-zero falls back to equal thirds.
type ScoringConfig struct {
	PremiumWeight      float64 `yaml:"premium_weight" mapstructure:"premium_weight"`
	AvailabilityWeight float64 `yaml:"availability_weight" mapstructure:"availability_weight"`
	VelocityWeight     float64 `yaml:"velocity_weight" mapstructure:"velocity_weight"`
}

// RatesConfig configures currency normalization.
type RatesConfig struct {
	Path              string `yaml:"path" mapstructure:"path"` // yaml rate table
	ReferenceCurrency string `yaml:"reference_currency" mapstructure:"reference_currency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WATCHPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.brand", "rolex")
	v.SetDefault("ingest.max_concurrent_models", 8)
	v.SetDefault("ingest.plausibility_min", 0.2)
	v.SetDefault("ingest.plausibility_max", 10.0)
	v.SetDefault("ingest.anomaly_threshold_pct", 25.0)
	v.SetDefault("scoring.premium_weight", 1.0/3.0)
	v.SetDefault("scoring.availability_weight", 1.0/3.0)
	v.SetDefault("scoring.velocity_weight", 1.0/3.0)
	v.SetDefault("rates.path", "rates.yaml")
	v.SetDefault("rates.reference_currency", "USD")

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
