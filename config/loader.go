package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence: defaults, then YAML file,
// then environment variables.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a Loader with the default env prefix "WEBPILOT".
func NewLoader() *Loader {
	return &Loader{envPrefix: "WEBPILOT"}
}

// WithConfigPath sets the YAML config file path. Optional; when empty only
// defaults and environment variables apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the final configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	var err error
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(l.envPrefix + "_" + key)
		if !ok {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("env %s_%s: %w", l.envPrefix, key, perr)
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v, ok := os.LookupEnv(l.envPrefix + "_" + key)
		if !ok {
			return
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("env %s_%s: %w", l.envPrefix, key, perr)
			return
		}
		*dst = f
	}

	setInt("SESSION_STEP_CAP", &cfg.Session.StepCap)
	setInt("SESSION_FEEDBACK_CAP", &cfg.Session.FeedbackCap)
	setInt("SESSION_WINDOW_SIZE", &cfg.Session.WindowSize)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setFloat("LLM_REQUESTS_PER_SECOND", &cfg.LLM.RequestsPerSecond)
	setString("STORE_BACKEND", &cfg.Store.Backend)
	setString("STORE_DATABASE_DRIVER", &cfg.Store.Database.Driver)
	setString("STORE_DATABASE_DSN", &cfg.Store.Database.DSN)
	setString("STORE_REDIS_ADDR", &cfg.Store.Redis.Addr)
	setString("STORE_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	setString("STORE_MONGO_URI", &cfg.Store.Mongo.URI)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("TELEMETRY_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	return err
}
