package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/config"
	fxmodules "github.com/AdamBeresnev/brick-bracket/internal/fx"
	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/AdamBeresnev/brick-bracket/internal/scheduler"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/getsentry/sentry-go"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const shutdownTimeout = 15 * time.Second

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(initSentry),
		fx.Invoke(syncAdmins),
		fx.Invoke(runServer),
		// stops before the server hook closes the database
		fx.Invoke(runSweeper),
	).Run()
}

func initSentry(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Env,
	}); err != nil {
		return fmt.Errorf("failed to init sentry: %w", err)
	}
	logger.Info().Msg("sentry enabled")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		},
	})
	return nil
}

func syncAdmins(users *service.UserService) error {
	return users.SyncAdmins(context.Background())
}

func runSweeper(lc fx.Lifecycle, sweeper *scheduler.StageSweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sweeper.Stop(ctx)
		},
	})
}

func runServer(lc fx.Lifecycle, deps routerParams, database *sqlx.DB) {
	cfg, logger := deps.Config, deps.Logger

	middleware.InitAuth(cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			err := srv.Shutdown(shutdownCtx)
			if err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
			}
			if cerr := database.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("error closing database connection")
			}
			if err != nil {
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
