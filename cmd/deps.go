package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/ai/gemini"
	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/feed"
	"github.com/spigell/job-radar/internal/ingest"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/reconcile"
	"github.com/spigell/job-radar/internal/secrets"
	"github.com/spigell/job-radar/internal/store"
	"github.com/spigell/job-radar/internal/store/memory"
	"github.com/spigell/job-radar/internal/store/postgres"
	"github.com/spigell/job-radar/internal/tailor"
)

// env is everything a command needs. Oracle-backed parts are built on demand so
// read-only commands work without an api key.
type env struct {
	config    *Config
	logger    *zap.Logger
	store     store.Store
	publisher events.Publisher
}

func newEnv(ctx context.Context) (*env, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	st, err := newStore(ctx, config.Store, log)
	if err != nil {
		return nil, err
	}

	publisher, err := events.New(ctx, config.Events, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connecting events publisher: %w", err)
	}

	return &env{
		config:    config,
		logger:    log,
		store:     st,
		publisher: publisher,
	}, nil
}

func (e *env) Close() {
	if err := e.publisher.Close(); err != nil {
		e.logger.Warn("closing events publisher", zap.Error(err))
	}
	e.store.Close()
	_ = e.logger.Sync()
}

func (e *env) candidate() (string, error) {
	candidate := strings.TrimSpace(e.config.Candidate)
	if candidate == "" {
		return "", apperrors.InvalidInput("candidate is required (--candidate or candidate in config)", nil)
	}
	return candidate, nil
}

func newStore(ctx context.Context, cfg StoreConfig, log *zap.Logger) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "memory":
		log.Warn("using the in-memory store", zap.String("hint", "nothing is kept after the command exits"))
		return memory.New(), nil
	case "", "postgres":
		databaseURL, err := secrets.Load(secrets.Source{
			Name:  "database url",
			Value: cfg.DatabaseURL,
			File:  cfg.DatabaseURLFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, err
		}

		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}

		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newOracle(ctx context.Context, cfg AIConfig, log *zap.Logger) (*ai.Client, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	gc := cfg.Gemini
	if gc == nil {
		gc = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gc.APIKey,
		File:  gc.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := log.With(
		zap.String("provider", gemini.Provider),
		zap.Int("ai_retry_attempts", gc.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, gc.Model, gc.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return ai.NewClient(generator, ai.Options{
		Provider:     gemini.Provider,
		Model:        generator.Model(),
		Timeout:      cfg.Timeout,
		MaxLogLength: gc.MaxLogLength,
		Throttle:     ai.NewThrottle(cfg.Throttle),
	}, log), nil
}

func newIngest(config *Config, oracle ingest.Scorer, st store.Postings, publisher events.Publisher, log *zap.Logger) *ingest.Orchestrator {
	sources := config.Feeds
	if len(sources) == 0 {
		sources = feed.DefaultSources
	}

	return ingest.New(ingest.Config{
		Sources:      sources,
		ItemsPerFeed: config.Ingest.ItemsPerFeed,
		Threshold:    config.Ingest.Threshold,
		Concurrency:  config.Ingest.Concurrency,
		ItemTimeout:  config.Ingest.ItemTimeout,
	}, ingest.Deps{
		Fetcher:   feed.New(log),
		Scorer:    oracle,
		Postings:  st,
		Publisher: publisher,
		Logger:    log,
	})
}

// runPass performs one ingestion pass for the candidate, bounded by the run timeout.
// The pass works without a profile when none is stored yet.
func runPass(ctx context.Context, config *Config, o *ingest.Orchestrator, profiles store.Profiles, log *zap.Logger) (*ingest.Result, error) {
	p, err := candidateProfile(ctx, config.Candidate, profiles, log)
	if err != nil {
		return nil, err
	}

	if config.Ingest.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Ingest.RunTimeout)
		defer cancel()
	}

	return o.Run(ctx, p)
}

func candidateProfile(ctx context.Context, candidateID string, profiles store.Profiles, log *zap.Logger) (*profile.Profile, error) {
	if strings.TrimSpace(candidateID) == "" {
		log.Warn("scoring without a profile", zap.String("reason", "no candidate configured"))
		return nil, nil
	}

	p, err := profiles.LatestProfile(ctx, candidateID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("scoring without a profile", zap.String("reason", "candidate has no stored profile"), zap.String("candidate", candidateID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (e *env) tailor(ctx context.Context) (*tailor.Tailor, error) {
	oracle, err := newOracle(ctx, e.config.AI, e.logger)
	if err != nil {
		return nil, err
	}
	return tailor.New(oracle, e.store, e.store, e.logger), nil
}

func (e *env) reconciler(ctx context.Context, withOracle bool) (*reconcile.Reconciler, error) {
	deps := reconcile.Deps{
		Store:     e.store,
		Publisher: e.publisher,
		Logger:    e.logger,
	}
	if withOracle {
		oracle, err := newOracle(ctx, e.config.AI, e.logger)
		if err != nil {
			return nil, err
		}
		deps.Oracle = oracle
	}
	return reconcile.New(e.config.Reconcile, deps), nil
}
