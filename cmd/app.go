package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redrace/tournament-system/brackets"
	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/config"
	"github.com/redrace/tournament-system/db"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/services"
	"github.com/redrace/tournament-system/storage"
)

// app держит общие зависимости для serve и административных команд.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	hub      *brackets.Hub
	metrics  *metrics.Metrics
	cache    cache.Cache
	uploader storage.FileUploader

	userRepo       repositories.UserRepository
	raceRepo       repositories.RaceRepository
	groupRepo      repositories.GroupRepository
	tournamentRepo repositories.TournamentRepository
	pickemsRepo    repositories.PickemsRepository
	pastResultRepo repositories.PastResultRepository

	raceService       services.RaceService
	tournamentService services.TournamentService
	pickemsService    services.PickemsService
	groupService      services.GroupService
	userService       services.UserService
	statsService      services.StatsService
	pastResultService services.PastResultService
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("tournament", cfg.TournamentName))
	return cfg, nil
}

func openDB(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	conn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")
	return conn, nil
}

func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}
	conn, err := openDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      conn,
		hub:     brackets.NewHub(logger),
		metrics: metrics.New(),
		cache:   cache.NewNoop(),
	}

	// Кэш опционален: без REDIS_URL работаем напрямую с базой
	if cfg.RedisURL != "" {
		c, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, cache disabled", slog.Any("error", err))
		} else {
			a.cache = c
			logger.Info("redis cache enabled")
		}
	}

	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		a.uploader = uploader
		logger.Info("Cloudflare R2 uploader initialized")
	}

	a.userRepo = repositories.NewPostgresUserRepository(conn)
	a.raceRepo = repositories.NewPostgresRaceRepository(conn)
	a.groupRepo = repositories.NewPostgresGroupRepository(conn)
	a.tournamentRepo = repositories.NewPostgresTournamentRepository(conn)
	a.pickemsRepo = repositories.NewPostgresPickemsRepository(conn)
	a.pastResultRepo = repositories.NewPostgresPastResultRepository(conn)
	tx := repositories.NewTransactor(conn, logger)

	a.tournamentService = services.NewTournamentService(
		tx,
		a.tournamentRepo,
		a.raceRepo,
		a.userRepo,
		a.hub,
		a.cache,
		a.uploader,
		a.metrics,
		logger,
		cfg.TournamentName,
		cfg.CutSize,
	)
	a.raceService = services.NewRaceService(
		tx,
		a.raceRepo,
		a.userRepo,
		a.groupRepo,
		a.tournamentRepo,
		a.pickemsRepo,
		a.hub,
		a.cache,
		a.metrics,
		logger,
		cfg.TournamentName,
	)
	a.pickemsService = services.NewPickemsService(
		tx,
		a.pickemsRepo,
		a.userRepo,
		a.raceRepo,
		a.groupRepo,
		a.tournamentService,
		a.cache,
		a.metrics,
		logger,
		cfg.CutSize,
	)
	a.groupService = services.NewGroupService(tx, a.groupRepo, a.userRepo, a.tournamentRepo, logger, cfg.TournamentName)
	a.userService = services.NewUserService(a.userRepo, logger)
	a.statsService = services.NewStatsService(a.raceRepo, a.userRepo, a.cache, logger)
	a.pastResultService = services.NewPastResultService(a.pastResultRepo)
	logger.Info("services initialized")

	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	a.logger.Info("database connection closed")
}
