package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values come from an optional YAML
// file (VOXPOP_CONFIG) with environment variables taking precedence.
type Config struct {
	Port     string `yaml:"port"`
	MongoURI string `yaml:"mongoUri"`
	RedisURI string `yaml:"redisUri"`

	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Auth     AuthConfig     `yaml:"auth"`
}

// AuthConfig covers owner JWT signing and session resume tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	// ResumeTokenTTLHours bounds how long a paused session stays resumable.
	ResumeTokenTTLHours int `yaml:"resumeTokenTtlHours"`
}

// GeminiModels defines which models to use for each pipeline task.
type GeminiModels struct {
	// Interviewer generates the next question (latency-sensitive).
	Interviewer string `yaml:"interviewer"`

	// Summarize drives history compression (quality over speed).
	Summarize string `yaml:"summarize"`

	// Coverage classifies topic coverage (fast, terse output).
	Coverage string `yaml:"coverage"`

	// Quality runs the binary low-quality classification (fast).
	Quality string `yaml:"quality"`

	// Completion runs the COMPLETE/CONTINUE judgment (fast).
	Completion string `yaml:"completion"`
}

// AIConfig holds all model-backend configuration.
type AIConfig struct {
	APIKey    string       `yaml:"-" json:"-"` // never serialized
	BaseURL   string       `yaml:"baseUrl"`
	Models    GeminiModels `yaml:"models"`
	TimeoutMS int          `yaml:"timeoutMs"`

	// ContextWindowTokens is the backend's context window size used as the
	// compression ceiling base.
	ContextWindowTokens int `yaml:"contextWindowTokens"`

	// Per-million-token rates used for the usage ledger. Billing truth comes
	// from returned counts, not estimates.
	InputCostPerMTok  float64 `yaml:"inputCostPerMTok"`
	OutputCostPerMTok float64 `yaml:"outputCostPerMTok"`
}

// PipelineConfig tunes the per-message orchestration pipeline.
type PipelineConfig struct {
	// MaxMessageLen rejects oversized respondent messages outright.
	MaxMessageLen int `yaml:"maxMessageLen"`

	// CompressThresholdRatio of the context window that triggers compression.
	CompressThresholdRatio float64 `yaml:"compressThresholdRatio"`

	// CompressAfterExchanges triggers compression on raw length alone.
	CompressAfterExchanges int `yaml:"compressAfterExchanges"`

	// KeepRecentExchanges are always preserved verbatim through compression.
	KeepRecentExchanges int `yaml:"keepRecentExchanges"`

	// CoverageWindow is how many trailing exchanges the topic classifier sees.
	CoverageWindow int `yaml:"coverageWindow"`

	// QualityWordThreshold: messages shorter than this get the model-assisted
	// quality check; longer ones are accepted without a call.
	QualityWordThreshold int `yaml:"qualityWordThreshold"`

	// LowQualityFlagAfter flags the session for review on the Nth strike.
	LowQualityFlagAfter int `yaml:"lowQualityFlagAfter"`

	// MinAvgSecondsBetween is the bot-speed floor for average inter-message time.
	MinAvgSecondsBetween float64 `yaml:"minAvgSecondsBetween"`

	// OriginSessionLimit / OriginFlaggedLimit bound per-origin volume within
	// the rolling window before the origin becomes ban-eligible.
	OriginSessionLimit int `yaml:"originSessionLimit"`
	OriginFlaggedLimit int `yaml:"originFlaggedLimit"`

	// BanTTLHours is how long an origin ban lasts. Zero means no expiry.
	BanTTLHours int `yaml:"banTtlHours"`
}

// Load reads the optional YAML file then applies env overrides and defaults.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("VOXPOP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:     "8080",
		MongoURI: "mongodb://localhost:27017",
		RedisURI: "localhost:6379",
		AI: AIConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
			Models: GeminiModels{
				Interviewer: "gemini-2.5-flash",
				Summarize:   "gemini-2.0-flash",
				Coverage:    "gemini-2.5-flash",
				Quality:     "gemini-2.5-flash",
				Completion:  "gemini-2.5-flash",
			},
			TimeoutMS:           10000,
			ContextWindowTokens: 32000,
			InputCostPerMTok:    0.10,
			OutputCostPerMTok:   0.40,
		},
		Pipeline: PipelineConfig{
			MaxMessageLen:          4000,
			CompressThresholdRatio: 0.8,
			CompressAfterExchanges: 20,
			KeepRecentExchanges:    6,
			CoverageWindow:         6,
			QualityWordThreshold:   12,
			LowQualityFlagAfter:    3,
			MinAvgSecondsBetween:   5,
			OriginSessionLimit:     10,
			OriginFlaggedLimit:     3,
			BanTTLHours:            72,
		},
		Auth: AuthConfig{
			JWTSecret:           "dev-secret-change-me",
			ResumeTokenTTLHours: 72,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.MongoURI = getEnvOrDefault("MONGO_URI", cfg.MongoURI)
	cfg.RedisURI = getEnvOrDefault("REDIS_URI", cfg.RedisURI)
	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.AI.BaseURL = getEnvOrDefault("GEMINI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Models.Interviewer = getEnvOrDefault("GEMINI_MODEL_INTERVIEWER", cfg.AI.Models.Interviewer)
	cfg.AI.Models.Summarize = getEnvOrDefault("GEMINI_MODEL_SUMMARIZE", cfg.AI.Models.Summarize)
	cfg.AI.Models.Coverage = getEnvOrDefault("GEMINI_MODEL_COVERAGE", cfg.AI.Models.Coverage)
	cfg.AI.Models.Quality = getEnvOrDefault("GEMINI_MODEL_QUALITY", cfg.AI.Models.Quality)
	cfg.AI.Models.Completion = getEnvOrDefault("GEMINI_MODEL_COMPLETION", cfg.AI.Models.Completion)

	if v, err := strconv.Atoi(os.Getenv("AI_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.AI.TimeoutMS = v
	}
	if v, err := strconv.Atoi(os.Getenv("AI_CONTEXT_WINDOW_TOKENS")); err == nil && v > 0 {
		cfg.AI.ContextWindowTokens = v
	}
}

// IsEnabled returns true if the AI API is configured.
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full generateContent endpoint for a model.
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
