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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record and context store backends.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds completion provider settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ScoringConfig holds the match-scoring weights. Weights are configuration,
// not code: tuning them must never change the algorithm's structure.
type ScoringConfig struct {
	InterestWeight     float64 `yaml:"interest_weight" mapstructure:"interest_weight"`
	AvailabilityWeight float64 `yaml:"availability_weight" mapstructure:"availability_weight"`
	RecencyWeight      float64 `yaml:"recency_weight" mapstructure:"recency_weight"`
	DecayHalfLifeDays  float64 `yaml:"decay_half_life_days" mapstructure:"decay_half_life_days"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	// LexicalThreshold is the minimum lexical confidence below which the
	// classifier falls back to the completion provider.
	LexicalThreshold float64 `yaml:"lexical_threshold" mapstructure:"lexical_threshold"`
}

// RouterConfig configures agent dispatch and response composition.
type RouterConfig struct {
	AgentTimeoutSecs   int     `yaml:"agent_timeout_secs" mapstructure:"agent_timeout_secs"`
	TurnTimeoutSecs    int     `yaml:"turn_timeout_secs" mapstructure:"turn_timeout_secs"`
	MaxMatches         int     `yaml:"max_matches" mapstructure:"max_matches"`
	DegradedCeiling    float64 `yaml:"degraded_ceiling" mapstructure:"degraded_ceiling"`
	BaselineConfidence float64 `yaml:"baseline_confidence" mapstructure:"baseline_confidence"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "advisor.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 20)
	v.SetDefault("anthropic.rate_per_sec", 5)
	v.SetDefault("scoring.interest_weight", 0.5)
	v.SetDefault("scoring.availability_weight", 0.3)
	v.SetDefault("scoring.recency_weight", 0.2)
	v.SetDefault("scoring.decay_half_life_days", 30)
	v.SetDefault("classifier.lexical_threshold", 0.55)
	v.SetDefault("router.agent_timeout_secs", 15)
	v.SetDefault("router.turn_timeout_secs", 45)
	v.SetDefault("router.max_matches", 10)
	v.SetDefault("router.degraded_ceiling", 0.6)
	v.SetDefault("router.baseline_confidence", 0.5)

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
