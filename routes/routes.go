package routes

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redrace/tournament-system/handlers"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/middleware"
)

//go:embed openapi.json
var openAPISpec []byte

type Handlers struct {
	Race       *handlers.RaceHandler
	Tournament *handlers.TournamentHandler
	Pickems    *handlers.PickemsHandler
	Group      *handlers.GroupHandler
	User       *handlers.UserHandler
	Stats      *handlers.StatsHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	Auth           *middleware.Authenticator
	APIKey         *middleware.APIKeyGuard
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	// HealthCheck пингует зависимости, nil означает всегда здоров.
	HealthCheck func(ctx context.Context) error
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger) // пишет в стандартный log, main перенаправляет его в slog
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics(opts.Metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler(opts.HealthCheck))
	router.Handle("/metrics", opts.Metrics.Handler())
	router.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPISpec)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
	router.Get("/ws/tournament", h.WebSocket.ServeWs)

	auth := opts.Auth.Authenticate

	router.Route("/api", func(r chi.Router) {
		r.Use(opts.RateLimiter.Limit)
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/races", func(r chi.Router) {
			r.Get("/", h.Race.ListUpcomingHandler)
			r.Get("/ready-to-complete", h.Race.ListReadyToCompleteHandler)
			r.Get("/completed", h.Race.ListCompletedHandler)
			r.Get("/user/{userID}", h.Race.ListByUserHandler)
			r.Get("/{raceID}", h.Race.GetByIDHandler)

			r.With(auth, middleware.RequireRunner).Post("/", h.Race.SubmitHandler)
			// Результаты присылает бот по API-ключу либо администратор
			r.With(opts.APIKey.AdminOrAPIKey).Post("/{raceID}/complete", h.Race.CompleteHandler)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/{raceID}/commentators", h.Race.AddCommentatorHandler)
				r.Delete("/{raceID}/commentators", h.Race.RemoveCommentatorHandler)
			})

			// Только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Use(middleware.RequireAdmin)
				r.Post("/{raceID}/cancel", h.Race.CancelHandler)
				r.Post("/{raceID}/uncancel", h.Race.UncancelHandler)
				r.Post("/{raceID}/restream", h.Race.PlanRestreamHandler)
				r.Post("/{raceID}/cancel-restream", h.Race.CancelRestreamHandler)
			})
		})

		r.Route("/tournament", func(r chi.Router) {
			r.Get("/standings", h.Tournament.StandingsHandler)
			r.Get("/round", h.Tournament.RoundHandler)
			r.Get("/cut", h.Tournament.CutHandler)
			r.With(auth, middleware.RequireAdmin).Post("/end-round", h.Tournament.EndRoundHandler)
		})

		r.Route("/pickems", func(r chi.Router) {
			r.Get("/leaderboard", h.Pickems.LeaderboardHandler)
			r.Get("/stats", h.Pickems.StatsHandler)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Get("/me", h.Pickems.MeHandler)
				r.Post("/one-off", h.Pickems.SubmitOneOffHandler)
				r.Post("/round", h.Pickems.SubmitRoundHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Use(middleware.RequireAdmin)
				r.Post("/rescore", h.Pickems.RescoreHandler)
				r.Post("/award-top", h.Pickems.AwardTopHandler)
			})

			r.Get("/{userID}", h.Pickems.GetByUserHandler)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.Group.ListHandler)
			r.Get("/count", h.Group.CountHandler)
			r.With(auth, middleware.RequireRunner).Get("/current", h.Group.CurrentHandler)
			r.With(auth, middleware.RequireAdmin).Post("/", h.Group.CreateHandler)
		})

		r.With(auth, middleware.RequireAdmin).Post("/admin/users", h.User.UpsertHandler)

		r.Route("/users/me", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.User.MeHandler)
			r.Patch("/display-name", h.User.UpdateDisplayNameHandler)
			r.Patch("/pronouns", h.User.UpdatePronounsHandler)
		})

		r.Get("/past-results", h.Stats.PastResultsHandler)
		r.Get("/stats", h.Stats.OverviewHandler)
	})
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
