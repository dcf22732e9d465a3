package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/stats"
)

const (
	statsTTL      = 60 * time.Second
	statsTopLimit = 10
)

type TournamentStats struct {
	TopTimes         []stats.TimeEntry     `json:"top_times"`
	AverageByRound   []stats.AverageFinish `json:"average_by_round"`
	AverageByBracket []stats.AverageFinish `json:"average_by_bracket"`
	WinRates         []stats.WinRate       `json:"win_rates"`
	TopCommentators  []stats.Count         `json:"top_commentators"`
}

type StatsService interface {
	Overview(ctx context.Context) (*TournamentStats, error)
}

type statsService struct {
	raceRepo repositories.RaceRepository
	userRepo repositories.UserRepository
	cache    cache.Cache
	logger   *slog.Logger
}

func NewStatsService(raceRepo repositories.RaceRepository, userRepo repositories.UserRepository, c cache.Cache, logger *slog.Logger) StatsService {
	return &statsService{raceRepo: raceRepo, userRepo: userRepo, cache: c, logger: logger}
}

func (s *statsService) Overview(ctx context.Context) (*TournamentStats, error) {
	key := cache.PrefixStats + "overview"
	var out TournamentStats
	if ok, err := cache.GetJSON(ctx, s.cache, key, &out); err != nil {
		s.logger.Warn("stats cache read failed", slog.Any("error", err))
	} else if ok {
		return &out, nil
	}

	var (
		races []models.Race
		users []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		races, err = s.raceRepo.List(gctx, nil, repositories.ListRacesFilter{})
		return err
	})
	g.Go(func() (err error) {
		users, err = s.userRepo.List(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := stats.NamesOf(users)
	out = TournamentStats{
		TopTimes:         stats.TopTimes(races, names, statsTopLimit),
		AverageByRound:   stats.AverageByRound(races),
		AverageByBracket: stats.AverageByBracket(races),
		WinRates:         stats.WinRates(races, names),
		TopCommentators:  stats.TopCommentators(races, names, statsTopLimit),
	}

	if err := cache.SetJSON(ctx, s.cache, key, out, statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", slog.Any("error", err))
	}
	return &out, nil
}
