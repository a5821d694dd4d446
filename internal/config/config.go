// Package config loads the tripmesh configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendNone   = "none"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	Planner   PlannerConfig   `yaml:"planner"`
	Session   SessionConfig   `yaml:"session"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ModelConfig selects the provider and model per agent.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	// Name is the model id; empty uses the provider default
	// (gemini-2.5-flash for gemini).
	Name string `yaml:"name"`
	// Agents overrides Name per agent, keyed by agent name.
	Agents    map[string]string `yaml:"agents"`
	APIKey    string            `yaml:"api_key"`
	BaseURL   string            `yaml:"base_url"`
	Region    string            `yaml:"region"`
	MaxTokens int               `yaml:"max_tokens"`
}

// PlannerConfig configures the coordinator and gateway.
type PlannerConfig struct {
	Mode            string        `yaml:"mode"`
	PromptDir       string        `yaml:"prompt_dir"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxDurationDays float64       `yaml:"max_duration_days"`
	MaxModelCalls   int           `yaml:"max_model_calls"`
	UserID          string        `yaml:"user_id"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis session store.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// ArtifactsConfig selects where itineraries are kept.
type ArtifactsConfig struct {
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures the S3 artifact store.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Model: ModelConfig{
			Provider: ProviderGemini,
		},
		Planner: PlannerConfig{
			Mode:           "delegate",
			RequestTimeout: 5 * time.Minute,
			MaxModelCalls:  25,
			UserID:         "user",
		},
		Session: SessionConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Prefix: "tripmesh:session:"},
		},
		Artifacts: ArtifactsConfig{
			Backend: BackendMemory,
			S3:      S3Config{Prefix: "itineraries/"},
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment. A missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Server.Addr, "TRIPMESH_ADDR")
	set(&c.Log.Level, "TRIPMESH_LOG_LEVEL")
	set(&c.Log.Format, "TRIPMESH_LOG_FORMAT")
	set(&c.Model.Provider, "TRIPMESH_PROVIDER")
	set(&c.Model.Name, "TRIPMESH_MODEL")
	set(&c.Planner.UserID, "USER_ID")

	if v := getenv("TRIPMESH_REDIS_ADDR"); v != "" {
		c.Session.Backend = BackendRedis
		c.Session.Redis.Addr = v
	}

	if v := getenv("TRIPMESH_S3_BUCKET"); v != "" {
		c.Artifacts.Backend = BackendS3
		c.Artifacts.S3.Bucket = v
	}

	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case ProviderGemini:
			set(&c.Model.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
		case ProviderOpenAI:
			set(&c.Model.APIKey, "OPENAI_API_KEY")
		case ProviderAnthropic:
			set(&c.Model.APIKey, "ANTHROPIC_API_KEY")
		}
	}
}

// Validate checks enumerations and required backend settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}

	switch c.Planner.Mode {
	case "delegate", "sequential":
	default:
		errs = append(errs, fmt.Errorf("planner.mode: unknown mode %q", c.Planner.Mode))
	}

	if c.Planner.MaxDurationDays < 0 {
		errs = append(errs, errors.New("planner.max_duration_days: must not be negative"))
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr: required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend: unknown backend %q", c.Session.Backend))
	}

	switch c.Artifacts.Backend {
	case BackendMemory, BackendNone:
	case BackendS3:
		if c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifacts.s3.bucket: required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.backend: unknown backend %q", c.Artifacts.Backend))
	}

	return errors.Join(errs...)
}

// ModelFor returns the model name for an agent.
func (c *Config) ModelFor(agent string) string {
	if name := c.Model.Agents[agent]; name != "" {
		return name
	}

	return c.Model.Name
}
