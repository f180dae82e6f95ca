package main

import (
	"net/http"

	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/AdamBeresnev/brick-bracket/internal/observe"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/alexedwards/scs/v2"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

var oauthProviders = []string{"discord", "google"}

type routerParams struct {
	fx.In

	Config      *config.Config
	Logger      zerolog.Logger
	Tournaments *service.TournamentService
	Votes       *service.VoteService
	Advance     *service.AdvanceService
	Winners     *service.WinnerService
	Users       *service.UserService
	UserStore   *store.UserStore
	Sessions    *scs.SessionManager
	Tokens      *middleware.TokenIssuer
	Limiter     *middleware.RateLimiter
	Recorder    *observe.Recorder
	Registry    *prometheus.Registry
}

func newRouter(deps routerParams) http.Handler {
	a := &app{
		cfg:         deps.Config,
		tournaments: deps.Tournaments,
		votes:       deps.Votes,
		advance:     deps.Advance,
		winners:     deps.Winners,
		users:       deps.Users,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		recorder:    deps.Recorder,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(chimiddleware.Heartbeat("/healthz"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.LoadAndSave)
		r.Use(middleware.LoadIdentity(deps.Sessions, deps.Tokens, deps.UserStore))

		r.Get("/login", a.loginPage)
		r.Get("/auth/{provider}", a.beginAuth)
		r.Get("/auth/{provider}/callback", a.authCallback)
		r.Post("/logout", a.logout)
		r.With(middleware.RequireAuth).Post("/auth/token", a.issueToken)

		r.Get("/tournaments/{id}", a.bracketPage)

		r.Route("/api", func(r chi.Router) {
			r.Get("/tournaments", a.listTournaments)
			r.Get("/tournaments/{id}", a.getTournament)
			r.Get("/tournaments/{id}/winner", a.getTournamentWinner)
			r.Get("/pairs/{id}", a.getPair)
			r.Get("/winners", a.listWinners)
			r.Get("/winners/{id}", a.getWinner)

			r.With(middleware.RequireAuth, deps.Limiter.Middleware).Post("/tournaments/{id}/vote", a.vote)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Post("/tournaments", a.createTournament)
				r.Delete("/tournaments/{id}", a.deleteTournament)
				r.Post("/tournaments/{id}/advance", a.advanceTournament)
				r.Post("/tournaments/{id}/winner", a.createWinner)
				r.Patch("/winners/{id}", a.updateWinner)
				r.Delete("/winners/{id}", a.deleteWinner)
			})
		})
	})

	return r
}
