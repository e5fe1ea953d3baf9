package config

import (
	"fmt"
	"time"
)

// Config is the complete webpilot configuration.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SessionConfig holds the hard guardrails and context-window tuning for
// session orchestration.
type SessionConfig struct {
	// StepCap is the maximum number of successful step/feedback calls per session.
	StepCap int `yaml:"step_cap"`
	// FeedbackCap is the maximum number of feedback turns per session.
	FeedbackCap int `yaml:"feedback_cap"`
	// WindowSize is the number of recent action turns rendered in full.
	WindowSize int `yaml:"window_size"`
	// MaxGoalLength bounds the goal text, in runes.
	MaxGoalLength int `yaml:"max_goal_length"`
	// MaxCorrectionLength bounds persisted feedback correction text, in runes.
	MaxCorrectionLength int `yaml:"max_correction_length"`
	// PromptTokenTarget is the advisory size target for the rendered prompt.
	// Exceeding it is logged, never rejected.
	PromptTokenTarget int `yaml:"prompt_token_target"`
}

// LLMConfig configures the model invocation collaborator.
type LLMConfig struct {
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	// RequestsPerSecond rate-limits outbound model calls. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Pricing maps model name to USD cost per million tokens.
	Pricing map[string]ModelPricing `yaml:"pricing"`
}

// ModelPricing is the USD price per million input/output tokens for one model.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// StoreConfig selects and configures the session persistence backend.
type StoreConfig struct {
	// Backend is one of: memory, database, redis, mongo.
	Backend  string         `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

// DatabaseConfig configures the relational backend.
type DatabaseConfig struct {
	// Driver is one of: sqlite, postgres, mysql.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is one of: json, console.
	Format string `yaml:"format"`
}

// TelemetryConfig configures the OpenTelemetry SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			StepCap:             30,
			FeedbackCap:         15,
			WindowSize:          10,
			MaxGoalLength:       2000,
			MaxCorrectionLength: 500,
			PromptTokenTarget:   1500,
		},
		LLM: LLMConfig{
			Model:           "gpt-4o-mini",
			Temperature:     0.2,
			MaxOutputTokens: 1024,
			Pricing: map[string]ModelPricing{
				"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
				"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
				"claude-sonnet-4-5": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
				"claude-haiku-4-5":  {InputPerMTok: 1.00, OutputPerMTok: 5.00},
			},
		},
		Store: StoreConfig{
			Backend: "memory",
			Database: DatabaseConfig{
				Driver:          "sqlite",
				DSN:             "file:webpilot.db",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "webpilot:",
			},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "webpilot",
				Collection: "sessions",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "webpilot",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Session.StepCap <= 0 {
		return fmt.Errorf("session.step_cap must be positive, got %d", c.Session.StepCap)
	}
	if c.Session.FeedbackCap <= 0 {
		return fmt.Errorf("session.feedback_cap must be positive, got %d", c.Session.FeedbackCap)
	}
	if c.Session.WindowSize <= 0 {
		return fmt.Errorf("session.window_size must be positive, got %d", c.Session.WindowSize)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	switch c.Store.Backend {
	case "memory", "database", "redis", "mongo":
	default:
		return fmt.Errorf("store.backend %q is not one of memory, database, redis, mongo", c.Store.Backend)
	}
	return nil
}
