package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/stats"
)

const leaderboardTTL = 30 * time.Second

type OneOffPicksInput struct {
	TopPicks      []int             `json:"top_picks"`
	OverallWinner int               `json:"overall_winner"`
	BestTimeWho   int               `json:"best_time_who"`
	BestTime      models.FinishTime `json:"best_time"`
}

type RoundPicksInput struct {
	Round models.Round `json:"round"`
	Picks []int        `json:"picks"`
}

type RescoreResult struct {
	RacesReplayed  int `json:"races_replayed"`
	EntriesUpdated int `json:"entries_updated"`
	PointsAwarded  int `json:"points_awarded"`
}

type AwardTopResult struct {
	EntriesAwarded int `json:"entries_awarded"`
	PointsAwarded  int `json:"points_awarded"`
}

type PickemsStats struct {
	Round      models.Round           `json:"round"`
	TopPicked  []stats.Count          `json:"top_picked"`
	Favourites []stats.GroupFavourite `json:"favourites"`
}

type PickemsService interface {
	SubmitOneOff(ctx context.Context, userID int, input OneOffPicksInput) (*models.Pickems, error)
	SubmitRoundPicks(ctx context.Context, userID int, input RoundPicksInput) (*models.Pickems, error)
	Get(ctx context.Context, userID int) (*models.Pickems, error)
	Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	Rescore(ctx context.Context) (*RescoreResult, error)
	AwardTopPicks(ctx context.Context) (*AwardTopResult, error)
	Stats(ctx context.Context, round *models.Round) (*PickemsStats, error)
}

type pickemsService struct {
	tx            repositories.Transactor
	pickemsRepo   repositories.PickemsRepository
	userRepo      repositories.UserRepository
	raceRepo      repositories.RaceRepository
	groupRepo     repositories.GroupRepository
	tournamentSvc TournamentService
	cache         cache.Cache
	metrics       *metrics.Metrics
	logger        *slog.Logger
	cutSize       int
}

func NewPickemsService(
	tx repositories.Transactor,
	pickemsRepo repositories.PickemsRepository,
	userRepo repositories.UserRepository,
	raceRepo repositories.RaceRepository,
	groupRepo repositories.GroupRepository,
	tournamentSvc TournamentService,
	c cache.Cache,
	m *metrics.Metrics,
	logger *slog.Logger,
	cutSize int,
) PickemsService {
	return &pickemsService{
		tx:            tx,
		pickemsRepo:   pickemsRepo,
		userRepo:      userRepo,
		raceRepo:      raceRepo,
		groupRepo:     groupRepo,
		tournamentSvc: tournamentSvc,
		cache:         c,
		metrics:       m,
		logger:        logger,
		cutSize:       cutSize,
	}
}

// ensureRunners checks that every id belongs to an existing runner.
func (s *pickemsService) ensureRunners(ctx context.Context, ids []int) error {
	if !uniqueInts(ids) {
		return fmt.Errorf("%w: duplicate runner", ErrInvalidPicks)
	}
	users, err := s.userRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		return err
	}
	if len(users) != len(ids) {
		return fmt.Errorf("%w: unknown runner", ErrInvalidPicks)
	}
	for _, u := range users {
		if u.Role != models.RoleRunner {
			return fmt.Errorf("%w: user %d is not a runner", ErrInvalidPicks, u.ID)
		}
	}
	return nil
}

func (s *pickemsService) SubmitOneOff(ctx context.Context, userID int, input OneOffPicksInput) (*models.Pickems, error) {
	if len(input.TopPicks) != s.cutSize {
		return nil, fmt.Errorf("%w: exactly %d top picks are required", ErrInvalidPicks, s.cutSize)
	}
	if err := input.BestTime.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPicks, err)
	}
	if err := s.ensureRunners(ctx, input.TopPicks); err != nil {
		return nil, err
	}
	if err := s.ensureRunners(ctx, []int{input.OverallWinner}); err != nil {
		return nil, err
	}
	if err := s.ensureRunners(ctx, []int{input.BestTimeWho}); err != nil {
		return nil, err
	}

	_, err := s.pickemsRepo.GetByUserID(ctx, nil, userID)
	if err == nil {
		return nil, ErrPickemsAlreadySubmitted
	}
	if !errors.Is(err, repositories.ErrPickemsNotFound) {
		return nil, err
	}

	closest := input.BestTime.TotalMs()
	p := &models.Pickems{
		UserID:        userID,
		TopPicks:      input.TopPicks,
		OverallWinner: &input.OverallWinner,
		BestTimeWho:   &input.BestTimeWho,
		ClosestTimeMs: &closest,
		RoundPicks:    map[models.Round][]int{},
		ScoredRaces:   []int{},
	}
	if err := s.pickemsRepo.Create(ctx, p); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.dropCache(ctx)
	s.logger.Info("one-off picks submitted", slog.Int("user_id", userID))
	return p, nil
}

func (s *pickemsService) SubmitRoundPicks(ctx context.Context, userID int, input RoundPicksInput) (*models.Pickems, error) {
	t, err := s.tournamentSvc.Current(ctx)
	if err != nil {
		return nil, err
	}
	if input.Round != t.CurrentRound || t.CurrentRound.IsTerminal() {
		return nil, ErrRoundNotOpenForPicks
	}
	if len(input.Picks) == 0 {
		return nil, fmt.Errorf("%w: no picks given", ErrInvalidPicks)
	}
	if input.Round == models.Final && len(input.Picks) != 1 {
		return nil, fmt.Errorf("%w: the final takes exactly one pick", ErrInvalidPicks)
	}
	if err := s.ensureRunners(ctx, input.Picks); err != nil {
		return nil, err
	}

	var entry *models.Pickems
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err = s.pickemsRepo.GetByUserID(ctx, exec, userID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if len(entry.PicksFor(input.Round)) > 0 {
			return ErrRoundPicksAlreadySubmitted
		}
		if input.Round == models.Final {
			pick := input.Picks[0]
			entry.FinalPick = &pick
		} else {
			if entry.RoundPicks == nil {
				entry.RoundPicks = map[models.Round][]int{}
			}
			entry.RoundPicks[input.Round] = input.Picks
		}
		return handleRepositoryError(s.pickemsRepo.Update(ctx, exec, entry))
	})
	if err != nil {
		return nil, err
	}

	s.dropCache(ctx)
	s.logger.Info("round picks submitted", slog.Int("user_id", userID), slog.String("round", string(input.Round)))
	return entry, nil
}

func (s *pickemsService) Get(ctx context.Context, userID int) (*models.Pickems, error) {
	p, err := s.pickemsRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return p, nil
}

func (s *pickemsService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	key := cache.PrefixPickems + "leaderboard"
	var board []models.LeaderboardEntry
	if ok, err := cache.GetJSON(ctx, s.cache, key, &board); err != nil {
		s.logger.Warn("leaderboard cache read failed", slog.Any("error", err))
	} else if ok {
		return board, nil
	}

	entries, err := s.pickemsRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := stats.NamesOf(users)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
	board = make([]models.LeaderboardEntry, len(entries))
	for i, e := range entries {
		board[i] = models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      e.UserID,
			DisplayName: names[e.UserID],
			Points:      e.Points,
		}
	}

	if err := cache.SetJSON(ctx, s.cache, key, board, leaderboardTTL); err != nil {
		s.logger.Warn("leaderboard cache write failed", slog.Any("error", err))
	}
	return board, nil
}

// Rescore replays every completed race with a winner through the race scoring.
// Races already recorded on an entry are skipped, so running it twice awards nothing new.
func (s *pickemsService) Rescore(ctx context.Context) (*RescoreResult, error) {
	result := &RescoreResult{}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		completed := true
		races, err := s.raceRepo.List(ctx, exec, repositories.ListRacesFilter{Completed: &completed})
		if err != nil {
			return err
		}
		entries, err := s.pickemsRepo.List(ctx, exec)
		if err != nil {
			return err
		}

		changed := make(map[int]bool)
		for _, race := range races {
			if race.Cancelled || race.WinnerID == nil {
				continue
			}
			result.RacesReplayed++
			for i := range entries {
				if entries[i].ScoreRace(race.ID, race.Round, *race.WinnerID) {
					changed[i] = true
					result.PointsAwarded += models.PointsPerCorrectPick
				}
			}
		}
		for i := range changed {
			if err := s.pickemsRepo.Update(ctx, exec, &entries[i]); err != nil {
				return handleRepositoryError(err)
			}
		}
		result.EntriesUpdated = len(changed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropCache(ctx)
	s.metrics.PickemsAwarded.Add(float64(result.PointsAwarded))
	s.logger.Info("pickems rescored",
		slog.Int("races", result.RacesReplayed),
		slog.Int("entries", result.EntriesUpdated),
		slog.Int("points", result.PointsAwarded),
	)
	return result, nil
}

// AwardTopPicks gives PointsPerTopPick for every top pick inside the current cut.
// Each entry is awarded once.
func (s *pickemsService) AwardTopPicks(ctx context.Context) (*AwardTopResult, error) {
	cut, err := s.tournamentSvc.CurrentCut(ctx)
	if err != nil {
		return nil, err
	}
	qualified := make(map[int]bool, len(cut.Qualified))
	for _, st := range cut.Qualified {
		qualified[st.UserID] = true
	}

	result := &AwardTopResult{}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		entries, err := s.pickemsRepo.List(ctx, exec)
		if err != nil {
			return err
		}
		for i := range entries {
			e := &entries[i]
			if e.TopPointsAwarded {
				continue
			}
			points := 0
			for _, pick := range e.TopPicks {
				if qualified[pick] {
					points += models.PointsPerTopPick
				}
			}
			e.Points += points
			e.TopPointsAwarded = true
			if err := s.pickemsRepo.Update(ctx, exec, e); err != nil {
				return handleRepositoryError(err)
			}
			result.EntriesAwarded++
			result.PointsAwarded += points
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropCache(ctx)
	s.metrics.PickemsAwarded.Add(float64(result.PointsAwarded))
	s.logger.Info("top picks awarded", slog.Int("entries", result.EntriesAwarded), slog.Int("points", result.PointsAwarded))
	return result, nil
}

// Stats aggregates pick popularity. round defaults to the current round.
func (s *pickemsService) Stats(ctx context.Context, round *models.Round) (*PickemsStats, error) {
	// без явного раунда берутся только группы текущего
	if round == nil {
		tournament, err := s.tournamentSvc.Current(ctx)
		if err != nil {
			return nil, err
		}
		round = &tournament.CurrentRound
	}

	var (
		entries []models.Pickems
		users   []models.User
		groups  []models.Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entries, err = s.pickemsRepo.List(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.userRepo.List(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		groups, err = s.groupRepo.List(gctx, round)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := stats.NamesOf(users)
	return &PickemsStats{
		Round:      *round,
		TopPicked:  stats.TopPicked(entries, names, s.cutSize),
		Favourites: stats.FavouritesPerGroup(entries, groups, *round, names),
	}, nil
}

func (s *pickemsService) dropCache(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, cache.PrefixPickems); err != nil {
		s.logger.Warn("failed to invalidate pickems cache", slog.Any("error", err))
	}
}
