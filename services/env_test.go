package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/models"
)

const testTournament = "red2025"

var testNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	store       *memStore
	users       *memUserRepo
	races       *memRaceRepo
	groups      *memGroupRepo
	tournaments *memTournamentRepo
	pickems     *memPickemsRepo
	hub         *recordingHub
	uploader    *memUploader

	raceSvc       *raceService
	tournamentSvc *tournamentService
	pickemsSvc    *pickemsService
	groupSvc      *groupService
	userSvc       *userService
}

func newTestEnv(t *testing.T, round models.Round, cutSize int) *testEnv {
	t.Helper()
	store := newMemStore()
	e := &testEnv{
		store:       store,
		users:       &memUserRepo{s: store},
		races:       &memRaceRepo{s: store},
		groups:      &memGroupRepo{s: store},
		tournaments: &memTournamentRepo{s: store},
		pickems:     &memPickemsRepo{s: store},
		hub:         &recordingHub{},
		uploader:    &memUploader{},
	}
	tx := &fakeTx{store: store}
	m := metrics.New()
	logger := discardLogger()
	c := cache.NewNoop()

	e.raceSvc = NewRaceService(tx, e.races, e.users, e.groups, e.tournaments, e.pickems,
		e.hub, c, m, logger, testTournament).(*raceService)
	e.raceSvc.now = func() time.Time { return testNow }
	e.tournamentSvc = NewTournamentService(tx, e.tournaments, e.races, e.users,
		e.hub, c, e.uploader, m, logger, testTournament, cutSize).(*tournamentService)
	e.tournamentSvc.now = func() time.Time { return testNow }
	e.pickemsSvc = NewPickemsService(tx, e.pickems, e.users, e.races, e.groups,
		e.tournamentSvc, c, m, logger, cutSize).(*pickemsService)
	e.groupSvc = NewGroupService(tx, e.groups, e.users, e.tournaments, logger, testTournament).(*groupService)
	e.userSvc = NewUserService(e.users, logger).(*userService)

	require.NoError(t, e.tournaments.Create(context.Background(), &models.Tournament{Name: testTournament, CurrentRound: round}))
	return e
}

func (e *testEnv) runner(t *testing.T, name string, bracket models.Bracket) int {
	t.Helper()
	u := &models.User{
		DiscordUsername: name,
		DisplayName:     name,
		Role:            models.RoleRunner,
		CurrentBracket:  bracket,
		BestTimeMs:      models.DefaultBestTimeMs,
	}
	require.NoError(t, e.users.Create(context.Background(), nil, u))
	return u.ID
}

func (e *testEnv) user(t *testing.T, id int) models.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return *u
}

func (e *testEnv) race(t *testing.T, round models.Round, racers ...int) int {
	t.Helper()
	race := &models.Race{
		Racer1ID:     racers[0],
		Racer2ID:     racers[1],
		RaceDateTime: testNow.Add(-time.Hour).Unix(),
		Round:        round,
		Bracket:      e.user(t, racers[0]).CurrentBracket,
		Commentators: []int{},
		Results:      []models.RaceResult{},
	}
	if len(racers) > 2 {
		race.Racer3ID = &racers[2]
	}
	require.NoError(t, e.races.Create(context.Background(), nil, race))
	return race.ID
}

func (e *testEnv) currentRound(t *testing.T) models.Round {
	t.Helper()
	tr, err := e.tournaments.GetByName(context.Background(), nil, testTournament)
	require.NoError(t, err)
	return tr.CurrentRound
}

func fin(id int, ms int64) models.RaceResult {
	return models.RaceResult{RacerID: id, Status: models.StatusFinished, FinishTime: models.FinishTimeFromMs(ms)}
}

func dnf(id, order int) models.RaceResult {
	return models.RaceResult{RacerID: id, Status: models.StatusDNF, DNFOrder: &order}
}
