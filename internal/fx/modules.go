package fx

import (
	"github.com/AdamBeresnev/brick-bracket/internal/catalog"
	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/db"
	"github.com/AdamBeresnev/brick-bracket/internal/logger"
	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/AdamBeresnev/brick-bracket/internal/observe"
	"github.com/AdamBeresnev/brick-bracket/internal/scheduler"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

func ProvideSessionManager(cfg *config.Config, database *sqlx.DB) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Secure = !cfg.IsDevelopment()
	sessionManager.Store = sqlite3store.New(database.DB)
	return sessionManager
}

func ProvideTokenIssuer(cfg *config.Config) *middleware.TokenIssuer {
	return middleware.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
}

func ProvideRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.VoteRatePerSecond, cfg.VoteBurst)
}

func ProvideCandidatePool(s *catalog.Store) service.CandidatePool {
	return s
}

func ProvideSweeper(cfg *config.Config, advance *service.AdvanceService, winners *service.WinnerService, reg prometheus.Registerer, logger zerolog.Logger) (*scheduler.StageSweeper, error) {
	return scheduler.NewStageSweeper(advance, winners, scheduler.Options{
		Schedule:          cfg.SweepSchedule,
		Concurrency:       cfg.SweepConcurrency,
		StageHours:        cfg.DefaultStageHours,
		AutoRecordWinners: cfg.AutoRecordWinners,
	}, reg, logger)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(db.New),
	fx.Provide(ProvideRegistry),
	// stores
	fx.Provide(store.NewTournamentStore),
	fx.Provide(store.NewVoteStore),
	fx.Provide(store.NewWinnerStore),
	fx.Provide(store.NewUserStore),
	fx.Provide(catalog.NewStore),
	fx.Provide(ProvideCandidatePool),
	// svc
	fx.Provide(service.NewTournamentService),
	fx.Provide(service.NewVoteService),
	fx.Provide(service.NewAdvanceService),
	fx.Provide(service.NewWinnerService),
	fx.Provide(service.NewUserService),
	// transport support
	fx.Provide(observe.NewRecorder),
	fx.Provide(ProvideSweeper),
	fx.Provide(ProvideSessionManager),
	fx.Provide(ProvideTokenIssuer),
	fx.Provide(ProvideRateLimiter),
)
