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
)

const defaultRestreamChannel = "RedRaceTV"

type SubmitRaceInput struct {
	Racer2ID     int   `json:"racer2_id"`
	Racer3ID     *int  `json:"racer3_id,omitempty"`
	RaceDateTime int64 `json:"race_date_time"`
}

type CompleteRaceInput struct {
	Results    []models.RaceResult `json:"results"`
	RaceTimeID *string             `json:"race_time_id,omitempty"`
}

type CompleteRaceResult struct {
	Race             *models.Race       `json:"race"`
	Placement        brackets.Placement `json:"placement"`
	AlreadyCompleted bool               `json:"already_completed"`
	PickemsAwarded   int                `json:"pickems_awarded"`
}

// RankedRace is a completed race with its results in placement order.
type RankedRace struct {
	models.Race
	Placement brackets.Placement `json:"placement"`
}

type UserRaces struct {
	Participated []models.Race `json:"races_participated_in"`
	Commentated  []models.Race `json:"races_commentated"`
}

type RaceService interface {
	Submit(ctx context.Context, racer1ID int, input SubmitRaceInput) (*models.Race, error)
	Complete(ctx context.Context, raceID int, input CompleteRaceInput) (*CompleteRaceResult, error)
	GetByID(ctx context.Context, id int) (*models.Race, error)
	ListUpcoming(ctx context.Context) ([]models.Race, error)
	ListReadyToComplete(ctx context.Context) ([]models.Race, error)
	ListCompleted(ctx context.Context) ([]RankedRace, error)
	ListByUser(ctx context.Context, userID int) (*UserRaces, error)
	AddCommentator(ctx context.Context, raceID, userID int) (*models.Race, error)
	RemoveCommentator(ctx context.Context, raceID, userID int) (*models.Race, error)
	SetCancelled(ctx context.Context, raceID int, cancelled bool) (*models.Race, error)
	PlanRestream(ctx context.Context, raceID, restreamerID int, channel string) (*models.Race, error)
	CancelRestream(ctx context.Context, raceID int) (*models.Race, error)
}

type raceService struct {
	tx             repositories.Transactor
	raceRepo       repositories.RaceRepository
	userRepo       repositories.UserRepository
	groupRepo      repositories.GroupRepository
	tournamentRepo repositories.TournamentRepository
	pickemsRepo    repositories.PickemsRepository
	hub            brackets.Broadcaster
	cache          cache.Cache
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tournamentName string
	now            func() time.Time
}

func NewRaceService(
	tx repositories.Transactor,
	raceRepo repositories.RaceRepository,
	userRepo repositories.UserRepository,
	groupRepo repositories.GroupRepository,
	tournamentRepo repositories.TournamentRepository,
	pickemsRepo repositories.PickemsRepository,
	hub brackets.Broadcaster,
	c cache.Cache,
	m *metrics.Metrics,
	logger *slog.Logger,
	tournamentName string,
) RaceService {
	return &raceService{
		tx:             tx,
		raceRepo:       raceRepo,
		userRepo:       userRepo,
		groupRepo:      groupRepo,
		tournamentRepo: tournamentRepo,
		pickemsRepo:    pickemsRepo,
		hub:            hub,
		cache:          c,
		metrics:        m,
		logger:         logger,
		tournamentName: tournamentName,
		now:            time.Now,
	}
}

func (s *raceService) Submit(ctx context.Context, racer1ID int, input SubmitRaceInput) (*models.Race, error) {
	if input.RaceDateTime <= 0 {
		return nil, fmt.Errorf("%w: race_date_time is required", ErrValidationFailed)
	}
	racers := []int{racer1ID, input.Racer2ID}
	if input.Racer3ID != nil {
		racers = append(racers, *input.Racer3ID)
	}
	if !uniqueInts(racers) {
		return nil, fmt.Errorf("%w: racers must be distinct", ErrInvalidRacers)
	}

	var race *models.Race
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByName(ctx, exec, s.tournamentName)
		if err != nil {
			return handleRepositoryError(err)
		}
		if tournament.CurrentRound.IsTerminal() {
			return ErrTournamentFinished
		}

		users, err := s.userRepo.GetByIDs(ctx, exec, racers)
		if err != nil {
			return err
		}
		if len(users) != len(racers) {
			return fmt.Errorf("%w: unknown racer", ErrInvalidRacers)
		}
		var racer1 *models.User
		for i := range users {
			if users[i].Role != models.RoleRunner {
				return fmt.Errorf("%w: user %d is not a runner", ErrInvalidRacers, users[i].ID)
			}
			if users[i].ID == racer1ID {
				racer1 = &users[i]
			}
		}
		if err := s.ensureFreeRacers(ctx, exec, tournament.CurrentRound, racers, 0); err != nil {
			return err
		}

		race = &models.Race{
			Racer1ID:      racer1ID,
			Racer2ID:      input.Racer2ID,
			Racer3ID:      input.Racer3ID,
			RaceDateTime:  input.RaceDateTime,
			RaceSubmitted: s.now().Unix(),
			Round:         tournament.CurrentRound,
			Bracket:       racer1.CurrentBracket,
			Commentators:  []int{},
			Results:       []models.RaceResult{},
		}
		if err := s.raceRepo.Create(ctx, exec, race); err != nil {
			return handleRepositoryError(err)
		}

		// Время старта и текущая гонка переносятся в группу первого участника.
		group, err := s.groupOf(ctx, exec, racer1)
		if err != nil {
			return err
		}
		group.RaceStartTime = &input.RaceDateTime
		group.CurrentRaceID = &race.ID
		return handleRepositoryError(s.groupRepo.Update(ctx, exec, group))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("race submitted", slog.Int("race_id", race.ID), slog.String("round", string(race.Round)))
	return race, nil
}

// ensureFreeRacers rejects racers that already have a non-cancelled race in the round.
// exceptID исключает саму гонку при снятии отмены.
func (s *raceService) ensureFreeRacers(ctx context.Context, exec repositories.SQLExecutor, round models.Round, racers []int, exceptID int) error {
	cancelled := false
	for _, id := range racers {
		races, err := s.raceRepo.List(ctx, exec, repositories.ListRacesFilter{Round: &round, Cancelled: &cancelled, UserID: &id})
		if err != nil {
			return err
		}
		for _, race := range races {
			if race.ID != exceptID && race.HasRacer(id) {
				return fmt.Errorf("%w: user %d (race %d)", ErrRacerAlreadyScheduled, id, race.ID)
			}
		}
	}
	return nil
}

func (s *raceService) groupOf(ctx context.Context, exec repositories.SQLExecutor, u *models.User) (*models.Group, error) {
	if u.CurrentGroupID == nil {
		return nil, ErrNotInGroup
	}
	group, err := s.groupRepo.GetLatestByMember(ctx, exec, u.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrNotInGroup
		}
		return nil, err
	}
	return group, nil
}

// Complete records the results of a race and applies points, tie-breaks and pickems scoring
// in one transaction. Repeating a completion with the same results changes nothing.
func (s *raceService) Complete(ctx context.Context, raceID int, input CompleteRaceInput) (*CompleteRaceResult, error) {
	result := &CompleteRaceResult{}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		race, err := s.raceRepo.GetByIDForUpdate(ctx, exec, raceID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if race.Cancelled {
			return ErrRaceCancelled
		}
		if err := brackets.ValidateResults(race.Racers(), input.Results); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResults, err)
		}

		placement, err := brackets.RankResults(race.Racers(), input.Results)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResults, err)
		}
		result.Race = race
		result.Placement = placement

		if race.Completed {
			if models.SameResults(race.Results, input.Results) {
				result.AlreadyCompleted = true
				return nil
			}
			return ErrRaceAlreadyCompleted
		}

		users, err := s.userRepo.GetByIDs(ctx, exec, race.Racers())
		if err != nil {
			return err
		}
		byID := make(map[int]*models.User, len(users))
		for i := range users {
			byID[users[i].ID] = &users[i]
		}
		brackets.ApplyCompletion(race.Round, placement, byID)
		for _, u := range byID {
			if err := s.userRepo.Update(ctx, exec, u); err != nil {
				return handleRepositoryError(err)
			}
		}

		race.Results = input.Results
		race.Completed = true
		race.WinnerID = placement.Winner
		if input.RaceTimeID != nil {
			race.RaceTimeID = input.RaceTimeID
		}
		if err := s.raceRepo.Update(ctx, exec, race); err != nil {
			return handleRepositoryError(err)
		}

		if race.WinnerID == nil {
			return nil
		}
		awarded, err := scoreRace(ctx, exec, s.pickemsRepo, race)
		if err != nil {
			return err
		}
		result.PickemsAwarded = awarded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCompleted {
		s.logger.Info("race already completed with identical results", slog.Int("race_id", raceID))
		return result, nil
	}

	invalidateReadModels(ctx, s.cache, s.logger)
	broadcast(s.hub, s.tournamentName, brackets.EventRaceCompleted, result)
	broadcast(s.hub, s.tournamentName, brackets.EventStandingsUpdated, map[string]int{"race_id": raceID})
	s.metrics.RacesCompleted.WithLabelValues(string(result.Race.Round)).Inc()
	s.metrics.PickemsAwarded.Add(float64(result.PickemsAwarded))
	s.logger.Info("race completed",
		slog.Int("race_id", raceID),
		slog.Any("winner_id", result.Race.WinnerID),
		slog.Int("pickems_points", result.PickemsAwarded),
	)
	return result, nil
}

// scoreRace awards pickems points for a race with a winner. Returns the points awarded.
func scoreRace(ctx context.Context, exec repositories.SQLExecutor, repo repositories.PickemsRepository, race *models.Race) (int, error) {
	entries, err := repo.List(ctx, exec)
	if err != nil {
		return 0, err
	}
	awarded := 0
	for i := range entries {
		if !entries[i].ScoreRace(race.ID, race.Round, *race.WinnerID) {
			continue
		}
		if err := repo.Update(ctx, exec, &entries[i]); err != nil {
			return 0, handleRepositoryError(err)
		}
		awarded += models.PointsPerCorrectPick
	}
	return awarded, nil
}

func (s *raceService) GetByID(ctx context.Context, id int) (*models.Race, error) {
	race, err := s.raceRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return race, nil
}

func (s *raceService) ListUpcoming(ctx context.Context) ([]models.Race, error) {
	completed := false
	return s.raceRepo.List(ctx, nil, repositories.ListRacesFilter{Completed: &completed})
}

func (s *raceService) ListReadyToComplete(ctx context.Context) ([]models.Race, error) {
	completed, cancelled := false, false
	now := s.now().Unix()
	return s.raceRepo.List(ctx, nil, repositories.ListRacesFilter{
		Completed:     &completed,
		Cancelled:     &cancelled,
		StartedBefore: &now,
	})
}

func (s *raceService) ListCompleted(ctx context.Context) ([]RankedRace, error) {
	completed := true
	races, err := s.raceRepo.List(ctx, nil, repositories.ListRacesFilter{Completed: &completed})
	if err != nil {
		return nil, err
	}
	ranked := make([]RankedRace, 0, len(races))
	for _, race := range races {
		placement, err := brackets.RankResults(race.Racers(), race.Results)
		if err != nil {
			s.logger.Warn("completed race has inconsistent results", slog.Int("race_id", race.ID), slog.Any("error", err))
		}
		ranked = append(ranked, RankedRace{Race: race, Placement: placement})
	}
	return ranked, nil
}

func (s *raceService) ListByUser(ctx context.Context, userID int) (*UserRaces, error) {
	races, err := s.raceRepo.List(ctx, nil, repositories.ListRacesFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}
	out := &UserRaces{Participated: []models.Race{}, Commentated: []models.Race{}}
	for _, race := range races {
		if race.HasRacer(userID) {
			out.Participated = append(out.Participated, race)
		}
		for _, c := range race.Commentators {
			if c == userID {
				out.Commentated = append(out.Commentated, race)
				break
			}
		}
	}
	return out, nil
}

// mutate loads a race under lock, applies fn and saves it.
func (s *raceService) mutate(ctx context.Context, raceID int, fn func(race *models.Race) error) (*models.Race, error) {
	var race *models.Race
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		race, err = s.raceRepo.GetByIDForUpdate(ctx, exec, raceID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := fn(race); err != nil {
			return err
		}
		return handleRepositoryError(s.raceRepo.Update(ctx, exec, race))
	})
	if err != nil {
		return nil, err
	}
	return race, nil
}

func (s *raceService) AddCommentator(ctx context.Context, raceID, userID int) (*models.Race, error) {
	return s.mutate(ctx, raceID, func(race *models.Race) error {
		for _, c := range race.Commentators {
			if c == userID {
				return ErrAlreadyCommentator
			}
		}
		if limit := race.Round.CommentatorLimit(); limit > 0 && len(race.Commentators) >= limit {
			return ErrCommentatorLimit
		}
		race.Commentators = append(race.Commentators, userID)
		return nil
	})
}

func (s *raceService) RemoveCommentator(ctx context.Context, raceID, userID int) (*models.Race, error) {
	return s.mutate(ctx, raceID, func(race *models.Race) error {
		kept := make([]int, 0, len(race.Commentators))
		for _, c := range race.Commentators {
			if c != userID {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(race.Commentators) {
			return ErrNotCommentator
		}
		race.Commentators = kept
		return nil
	})
}

func (s *raceService) SetCancelled(ctx context.Context, raceID int, cancelled bool) (*models.Race, error) {
	var race *models.Race
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// блокировка строки турнира упорядочивает снятие отмены с Submit
		if _, err := s.tournamentRepo.GetByName(ctx, exec, s.tournamentName); err != nil {
			return handleRepositoryError(err)
		}
		var err error
		race, err = s.raceRepo.GetByIDForUpdate(ctx, exec, raceID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if cancelled && race.Completed {
			return fmt.Errorf("%w: completed races cannot be cancelled", ErrValidationFailed)
		}
		if !cancelled && race.Cancelled {
			if err := s.ensureFreeRacers(ctx, exec, race.Round, race.Racers(), race.ID); err != nil {
				return err
			}
		}
		race.Cancelled = cancelled
		return handleRepositoryError(s.raceRepo.Update(ctx, exec, race))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("race cancellation changed", slog.Int("race_id", raceID), slog.Bool("cancelled", cancelled))
	return race, nil
}

func (s *raceService) PlanRestream(ctx context.Context, raceID, restreamerID int, channel string) (*models.Race, error) {
	if channel == "" {
		return nil, fmt.Errorf("%w: restream channel is required", ErrValidationFailed)
	}
	return s.mutate(ctx, raceID, func(race *models.Race) error {
		race.RestreamPlanned = true
		race.RestreamChannel = &channel
		race.RestreamerID = &restreamerID
		return nil
	})
}

func (s *raceService) CancelRestream(ctx context.Context, raceID int) (*models.Race, error) {
	return s.mutate(ctx, raceID, func(race *models.Race) error {
		channel := defaultRestreamChannel
		race.RestreamPlanned = false
		race.RestreamChannel = &channel
		race.RestreamerID = nil
		return nil
	})
}
