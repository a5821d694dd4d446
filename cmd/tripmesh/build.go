package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/artifact"
	s3store "github.com/hupe1980/tripmesh/artifact/s3"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/config"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/metrics"
	"github.com/hupe1980/tripmesh/model"
	anthropicmodel "github.com/hupe1980/tripmesh/model/anthropic"
	"github.com/hupe1980/tripmesh/model/bedrock"
	"github.com/hupe1980/tripmesh/model/gemini"
	"github.com/hupe1980/tripmesh/model/openai"
	"github.com/hupe1980/tripmesh/planner"
	"github.com/hupe1980/tripmesh/session"
	redisstore "github.com/hupe1980/tripmesh/session/redis"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("TRIPMESH_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "tripmesh",
	}), nil
}

// newModel builds one provider model for the given model id (empty selects
// the provider default).
func newModel(ctx context.Context, cfg config.ModelConfig, name string) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errors.New("gemini: GOOGLE_API_KEY is not set")
		}

		m, err := gemini.NewModel(ctx, cfg.APIKey, func(o *gemini.Options) {
			if name != "" {
				o.Model = name
			}

			if cfg.MaxTokens > 0 {
				o.MaxOutputTokens = int32(cfg.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}

		return m, nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL

			if name != "" {
				o.Model = name
			}

			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.APIKey

			if name != "" {
				o.Model = anthropic.Model(name)
			}

			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case config.ProviderBedrock:
		m, err := bedrock.NewModel(ctx, func(o *bedrock.Options) {
			if name != "" {
				o.Model = name
			}

			if cfg.Region != "" {
				o.Region = cfg.Region
			}

			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}

		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// newModels builds the default model and one extra model per agent that
// overrides the model id.
func newModels(ctx context.Context, cfg *config.Config) (planner.Models, error) {
	def, err := newModel(ctx, cfg.Model, cfg.Model.Name)
	if err != nil {
		return planner.Models{}, err
	}

	models := planner.Models{Default: def}

	for agentName, slot := range map[string]*model.Model{
		planner.CoordinatorName:      &models.Coordinator,
		planner.InspirationAgentName: &models.Inspiration,
		planner.ActivitiesAgentName:  &models.Activities,
		planner.ItineraryAgentName:   &models.Itinerary,
	} {
		name := cfg.ModelFor(agentName)
		if name == cfg.Model.Name {
			continue
		}

		m, err := newModel(ctx, cfg.Model, name)
		if err != nil {
			return planner.Models{}, fmt.Errorf("model for %s: %w", agentName, err)
		}

		*slot = m
	}

	return models, nil
}

func newSessionStore(cfg config.SessionConfig) core.SessionStore {
	if cfg.Backend == config.BackendRedis {
		var opts []redisstore.Option

		if cfg.Redis.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Redis.Prefix))
		}

		if cfg.Redis.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.Redis.TTL))
		}

		return redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
	}

	return session.NewInMemoryStore()
}

func newArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (core.ArtifactStore, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendS3:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.S3.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for S3: %w", err)
		}

		return s3store.New(awss3.NewFromConfig(awsCfg), cfg.S3.Bucket, func(o *s3store.Options) {
			o.Prefix = cfg.S3.Prefix
		}), nil
	default:
		return artifact.NewInMemoryStore(), nil
	}
}

// newApp assembles the planner from cfg. The returned app is not ready until
// Init is called.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, met *metrics.Metrics) (*tripmesh.App, error) {
	models, err := newModels(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var prompts *planner.Prompts

	if cfg.Planner.PromptDir != "" {
		p, err := planner.LoadPrompts(cfg.Planner.PromptDir)
		if err != nil {
			return nil, err
		}

		prompts = &p
	}

	artifacts, err := newArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}

	return tripmesh.New(func(o *tripmesh.Options) {
		o.Models = models
		o.Mode = cfg.Planner.Mode
		o.Prompts = prompts
		o.MaxModelCalls = cfg.Planner.MaxModelCalls
		o.RequestTimeout = cfg.Planner.RequestTimeout
		o.MaxDurationDays = cfg.Planner.MaxDurationDays
		o.SessionStore = newSessionStore(cfg.Session)
		o.ArtifactStore = artifacts
		o.UserID = cfg.Planner.UserID
		o.Metrics = met
		o.Logger = logger
	})
}
