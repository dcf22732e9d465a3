package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/handlers"
	"github.com/redrace/tournament-system/middleware"
	"github.com/redrace/tournament-system/routes"
)

const (
	shutdownTimeout = 15 * time.Second
	limiterCleanup  = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket hub and round status scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	logger := newLogger()
	// заодно перенаправляет стандартный log, в который пишет chi Logger
	slog.SetDefault(logger)

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := runMigrateUp(a.cfg, a.db, logger); err != nil {
			return err
		}
	}

	go a.hub.Run()
	defer a.hub.Stop()
	logger.Info("WebSocket Hub started")

	auth := middleware.NewAuthenticator(a.cfg.JWTSecretKey, logger)
	limiter := middleware.NewRateLimiter(a.cfg.RateLimitPerMinute, a.metrics)

	// Планировщик рассылает статус раунда и чистит лимитер
	scheduler := cron.New()
	scheduler.Schedule(cron.Every(a.cfg.SchedulerInterval), cron.FuncJob(func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), a.cfg.SchedulerInterval)
		defer cancel()
		if err := a.tournamentService.BroadcastRoundStatus(jobCtx); err != nil {
			logger.Error("scheduler: round status broadcast failed", slog.Any("error", err))
		}
	}))
	scheduler.Schedule(cron.Every(limiterCleanup), cron.FuncJob(limiter.Cleanup))
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	logger.Info("scheduler started", slog.Duration("interval", a.cfg.SchedulerInterval))

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Race:       handlers.NewRaceHandler(a.raceService),
		Tournament: handlers.NewTournamentHandler(a.tournamentService),
		Pickems:    handlers.NewPickemsHandler(a.pickemsService),
		Group:      handlers.NewGroupHandler(a.groupService),
		User:       handlers.NewUserHandler(a.userService),
		Stats:      handlers.NewStatsHandler(a.statsService, a.pastResultService),
		WebSocket:  handlers.NewWebSocketHandler(a.hub, a.cfg.TournamentName, a.cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		Auth:           auth,
		APIKey:         middleware.NewAPIKeyGuard(a.cfg.APIKeyHash, auth, logger),
		RateLimiter:    limiter,
		Metrics:        a.metrics,
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		HealthCheck:    a.db.PingContext,
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
