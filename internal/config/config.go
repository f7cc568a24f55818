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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Exa       ExaConfig       `yaml:"exa" mapstructure:"exa"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExaConfig holds Exa search API settings.
type ExaConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// ResearchConfig configures the research pipeline.
type ResearchConfig struct {
	MaxCandidates       int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	AutopromptResults   int     `yaml:"autoprompt_results" mapstructure:"autoprompt_results"`
	HypothesisResults   int     `yaml:"hypothesis_results" mapstructure:"hypothesis_results"`
	IdentityResults     int     `yaml:"identity_results" mapstructure:"identity_results"`
	FetchMaxCharacters  int     `yaml:"fetch_max_characters" mapstructure:"fetch_max_characters"`
	HighlightsPerURL    int     `yaml:"highlights_per_url" mapstructure:"highlights_per_url"`
	MinDocumentLength   int     `yaml:"min_document_length" mapstructure:"min_document_length"`
	MinHighlightBudget  int     `yaml:"min_highlight_budget" mapstructure:"min_highlight_budget"`
	MaxExtractDocs      int     `yaml:"max_extract_docs" mapstructure:"max_extract_docs"`
	WeightsPath         string  `yaml:"weights_path" mapstructure:"weights_path"`
	DisambiguationBelow float64 `yaml:"disambiguation_below" mapstructure:"disambiguation_below"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the provider credentials required to run a job are
// present. A missing key is a configuration error: jobs fail at start and are
// not retried.
func (c *Config) Validate() error {
	if c.Exa.Key == "" {
		return eris.New("config: exa.key is required")
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.rate_limit", 5)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("research.max_candidates", 25)
	v.SetDefault("research.autoprompt_results", 20)
	v.SetDefault("research.hypothesis_results", 6)
	v.SetDefault("research.identity_results", 5)
	v.SetDefault("research.fetch_max_characters", 4000)
	v.SetDefault("research.highlights_per_url", 3)
	v.SetDefault("research.min_document_length", 200)
	v.SetDefault("research.min_highlight_budget", 400)
	v.SetDefault("research.max_extract_docs", 6)
	v.SetDefault("research.disambiguation_below", 0.8)

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
