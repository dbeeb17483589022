package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/ingest"
	"github.com/spigell/job-radar/internal/scheduler"
	"github.com/spigell/job-radar/internal/store"
	"github.com/spigell/job-radar/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ingestion passes on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	e.logger.Info("starting the job-radar service", zap.String("version", version), zap.String("schedule", e.config.Schedule.Spec))

	service := fx.New(
		fx.Supply(e.config, e.logger),
		fx.Provide(
			func() store.Store { return e.store },
			func() events.Publisher { return e.publisher },
			func(config *Config, log *zap.Logger) (*ai.Client, error) {
				return newOracle(ctx, config.AI, log)
			},
			func(config *Config, oracle *ai.Client, st store.Store, publisher events.Publisher, log *zap.Logger) *ingest.Orchestrator {
				return newIngest(config, oracle, st, publisher, log)
			},
			newScheduler,
		),
		fx.Invoke(registerTelemetry, registerScheduler),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)

	if err := service.Err(); err != nil {
		return fmt.Errorf("building the service: %w", err)
	}

	// Run blocks until SIGINT or SIGTERM.
	service.Run()
	return nil
}

func newScheduler(config *Config, o *ingest.Orchestrator, st store.Store, log *zap.Logger) *scheduler.Scheduler {
	pass := func(ctx context.Context) error {
		result, err := runPass(ctx, config, o, st, log)
		if err != nil {
			return err
		}
		log.Info("ingestion pass summary", zap.String("result", result.String()))
		return nil
	}

	// RunTimeout is applied by runPass.
	return scheduler.New(config.Schedule.Spec, 0, pass, log.Named("scheduler"))
}

func registerScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}

func registerTelemetry(lc fx.Lifecycle, config *Config, log *zap.Logger) {
	var shutdown func(context.Context) error

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, app, version, config.Telemetry.CollectorURL)
			if err != nil {
				return err
			}
			if config.Telemetry.CollectorURL != "" {
				log.Info("exporting traces", zap.String("collector", config.Telemetry.CollectorURL))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}
