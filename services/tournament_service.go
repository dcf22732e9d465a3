package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redrace/tournament-system/brackets"
	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/storage"
)

const standingsTTL = 30 * time.Second

type TournamentService interface {
	Current(ctx context.Context) (*models.Tournament, error)
	Standings(ctx context.Context) ([]models.Standing, error)
	RoundSummary(ctx context.Context) (*models.RoundSummary, error)
	EndRound(ctx context.Context) (*models.EndRoundResult, error)
	CurrentCut(ctx context.Context) (*models.Cut, error)
	BroadcastRoundStatus(ctx context.Context) error
}

type tournamentService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	raceRepo       repositories.RaceRepository
	userRepo       repositories.UserRepository
	hub            brackets.Broadcaster
	cache          cache.Cache
	uploader       storage.FileUploader
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tournamentName string
	cutSize        int
	now            func() time.Time
}

// NewTournamentService creates the round engine. uploader may be nil, archiving is then skipped.
func NewTournamentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	raceRepo repositories.RaceRepository,
	userRepo repositories.UserRepository,
	hub brackets.Broadcaster,
	c cache.Cache,
	uploader storage.FileUploader,
	m *metrics.Metrics,
	logger *slog.Logger,
	tournamentName string,
	cutSize int,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		raceRepo:       raceRepo,
		userRepo:       userRepo,
		hub:            hub,
		cache:          c,
		uploader:       uploader,
		metrics:        m,
		logger:         logger,
		tournamentName: tournamentName,
		cutSize:        cutSize,
		now:            time.Now,
	}
}

func (s *tournamentService) Current(ctx context.Context) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByName(ctx, nil, s.tournamentName)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) Standings(ctx context.Context) ([]models.Standing, error) {
	key := cache.PrefixStandings + s.tournamentName
	var standings []models.Standing
	if ok, err := cache.GetJSON(ctx, s.cache, key, &standings); err != nil {
		s.logger.Warn("standings cache read failed", slog.Any("error", err))
	} else if ok {
		return standings, nil
	}

	users, err := s.userRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	standings = brackets.ComputeStandings(users)

	if err := cache.SetJSON(ctx, s.cache, key, standings, standingsTTL); err != nil {
		s.logger.Warn("standings cache write failed", slog.Any("error", err))
	}
	return standings, nil
}

func (s *tournamentService) RoundSummary(ctx context.Context) (*models.RoundSummary, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	summary := &models.RoundSummary{CurrentRound: t.CurrentRound}
	if t.CurrentRound.IsTerminal() {
		return summary, nil
	}

	round := t.CurrentRound
	races, err := s.raceRepo.List(ctx, nil, repositories.ListRacesFilter{Round: &round})
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	for _, race := range races {
		switch {
		case race.Cancelled:
			summary.CancelledRaces++
		case race.Completed:
			summary.CompletedRaces++
		case race.RaceDateTime <= now:
			summary.AwaitingResults++
		default:
			summary.UpcomingRaces++
		}
	}
	summary.CanEndRound = summary.UpcomingRaces == 0 && summary.AwaitingResults == 0
	return summary, nil
}

// EndRound applies bracket movement for every completed race of the current round and
// advances the round pointer. Either everything is written or nothing is.
func (s *tournamentService) EndRound(ctx context.Context) (*models.EndRoundResult, error) {
	result := &models.EndRoundResult{}
	var standings []models.Standing

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByName(ctx, exec, s.tournamentName)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CurrentRound.IsTerminal() {
			return ErrTournamentFinished
		}
		round := t.CurrentRound
		result.PreviousRound = round
		result.NextRound = round.Next()

		races, err := s.raceRepo.List(ctx, exec, repositories.ListRacesFilter{Round: &round})
		if err != nil {
			return err
		}
		for _, race := range races {
			if !race.Cancelled && !race.Completed {
				return fmt.Errorf("%w: race %d", ErrRoundIncomplete, race.ID)
			}
		}

		users, err := s.userRepo.List(ctx, exec)
		if err != nil {
			return err
		}
		byID := make(map[int]*models.User, len(users))
		start := make(map[int]models.Bracket, len(users))
		for i := range users {
			byID[users[i].ID] = &users[i]
			start[users[i].ID] = users[i].CurrentBracket
		}

		moved := make(map[int]bool)
		for _, race := range races {
			if race.Cancelled {
				continue
			}
			placement, err := brackets.RankResults(race.Racers(), race.Results)
			if err != nil {
				return fmt.Errorf("race %d: %w", race.ID, err)
			}
			for _, mv := range brackets.ApplyMovement(round, placement, byID, start) {
				moved[mv.UserID] = true
			}
			result.RacesApplied++
		}

		for id := range moved {
			u := byID[id]
			if u.CurrentBracket == start[id] {
				continue
			}
			if err := s.userRepo.Update(ctx, exec, u); err != nil {
				return handleRepositoryError(err)
			}
			result.UsersMoved++
		}

		if err := s.tournamentRepo.UpdateRound(ctx, exec, t.ID, result.NextRound); err != nil {
			return handleRepositoryError(err)
		}

		standings = brackets.ComputeStandings(users)
		if round.IsLastSwiss() {
			cut := brackets.ComputeCut(standings, s.cutSize)
			result.Cut = &cut
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateReadModels(ctx, s.cache, s.logger)
	result.ArchiveURL = s.archive(ctx, result, standings)
	broadcast(s.hub, s.tournamentName, brackets.EventRoundEnded, result)
	s.metrics.RoundsEnded.Inc()
	s.metrics.SetRound(string(result.NextRound))

	s.logger.Info("round ended",
		slog.String("previous_round", string(result.PreviousRound)),
		slog.String("next_round", string(result.NextRound)),
		slog.Int("races_applied", result.RacesApplied),
		slog.Int("users_moved", result.UsersMoved),
	)
	return result, nil
}

// archive stores a standings snapshot of the finished round. Failures are logged only.
func (s *tournamentService) archive(ctx context.Context, result *models.EndRoundResult, standings []models.Standing) string {
	if s.uploader == nil {
		return ""
	}
	uploaded, err := storage.UploadRoundArchive(ctx, s.uploader, storage.RoundArchive{
		Tournament: s.tournamentName,
		Round:      result.PreviousRound,
		ArchivedAt: s.now().UTC(),
		Standings:  standings,
		Cut:        result.Cut,
	})
	if err != nil {
		s.metrics.ArchiveFailures.Inc()
		s.logger.Error("failed to archive round standings",
			slog.String("round", string(result.PreviousRound)),
			slog.Any("error", err),
		)
		return ""
	}
	return uploaded.Location
}

// CurrentCut returns the top-N cut of the current standings. It only exists once the
// Swiss rounds are over.
func (s *tournamentService) CurrentCut(ctx context.Context) (*models.Cut, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if t.CurrentRound.IsSwiss() {
		return nil, ErrCutNotAvailable
	}
	standings, err := s.Standings(ctx)
	if err != nil {
		return nil, err
	}
	cut := brackets.ComputeCut(standings, s.cutSize)
	return &cut, nil
}

// BroadcastRoundStatus pushes the round summary to websocket subscribers.
func (s *tournamentService) BroadcastRoundStatus(ctx context.Context) error {
	summary, err := s.RoundSummary(ctx)
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			s.logger.Warn("round status skipped, tournament not found", slog.String("tournament", s.tournamentName))
			return nil
		}
		return err
	}
	broadcast(s.hub, s.tournamentName, brackets.EventRoundStatus, summary)
	s.metrics.SetRound(string(summary.CurrentRound))
	return nil
}
