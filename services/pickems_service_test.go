package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
)

func TestSubmitOneOff(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	c := e.runner(t, "charlie", models.BracketNormal)
	fan := e.runner(t, "fan", models.BracketNormal)
	guess := models.FinishTime{Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4}

	_, err := e.pickemsSvc.SubmitOneOff(ctx, fan, OneOffPicksInput{TopPicks: []int{a}, OverallWinner: a, BestTimeWho: b, BestTime: guess})
	assert.ErrorIs(t, err, ErrInvalidPicks)
	_, err = e.pickemsSvc.SubmitOneOff(ctx, fan, OneOffPicksInput{TopPicks: []int{a, a}, OverallWinner: a, BestTimeWho: b, BestTime: guess})
	assert.ErrorIs(t, err, ErrInvalidPicks)
	_, err = e.pickemsSvc.SubmitOneOff(ctx, fan, OneOffPicksInput{TopPicks: []int{a, 9999}, OverallWinner: a, BestTimeWho: b, BestTime: guess})
	assert.ErrorIs(t, err, ErrInvalidPicks)

	p, err := e.pickemsSvc.SubmitOneOff(ctx, fan, OneOffPicksInput{TopPicks: []int{a, c}, OverallWinner: a, BestTimeWho: b, BestTime: guess})
	require.NoError(t, err)
	assert.Equal(t, int64(3_723_004), *p.ClosestTimeMs)
	assert.Equal(t, 0, p.Points)

	_, err = e.pickemsSvc.SubmitOneOff(ctx, fan, OneOffPicksInput{TopPicks: []int{a, c}, OverallWinner: a, BestTimeWho: b, BestTime: guess})
	assert.ErrorIs(t, err, ErrPickemsAlreadySubmitted)
}

func TestSubmitRoundPicks(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundTwo, 2)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	fan := e.runner(t, "fan", models.BracketNormal)

	_, err := e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.RoundTwo, Picks: []int{a}})
	assert.ErrorIs(t, err, ErrPickemsNotFound)

	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: fan}))

	_, err = e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.RoundOne, Picks: []int{a}})
	assert.ErrorIs(t, err, ErrRoundNotOpenForPicks)
	_, err = e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.RoundTwo})
	assert.ErrorIs(t, err, ErrInvalidPicks)

	p, err := e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.RoundTwo, Picks: []int{a, b}})
	require.NoError(t, err)
	assert.Equal(t, []int{a, b}, p.RoundPicks[models.RoundTwo])

	_, err = e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.RoundTwo, Picks: []int{b}})
	assert.ErrorIs(t, err, ErrRoundPicksAlreadySubmitted)
}

func TestSubmitRoundPicks_FinalTakesOnePick(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.Final, 2)
	a := e.runner(t, "alpha", models.BracketPlayoffs)
	b := e.runner(t, "bravo", models.BracketPlayoffs)
	fan := e.runner(t, "fan", models.BracketNormal)
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: fan}))

	_, err := e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.Final, Picks: []int{a, b}})
	assert.ErrorIs(t, err, ErrInvalidPicks)

	p, err := e.pickemsSvc.SubmitRoundPicks(ctx, fan, RoundPicksInput{Round: models.Final, Picks: []int{b}})
	require.NoError(t, err)
	require.NotNil(t, p.FinalPick)
	assert.Equal(t, b, *p.FinalPick)

	complete(t, e, e.race(t, models.Final, a, b), fin(b, 1000), fin(a, 2000))
	got, err := e.pickemsSvc.Get(ctx, fan)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Points)
}

func TestRescore_ScoresEachRaceOnce(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	early := e.runner(t, "early", models.BracketNormal)
	late := e.runner(t, "late", models.BracketNormal)
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{
		UserID:     early,
		RoundPicks: map[models.Round][]int{models.RoundOne: {a}},
	}))

	complete(t, e, e.race(t, models.RoundOne, a, b), fin(a, 1000), fin(b, 2000))

	// запись, созданная после завершения гонки, получает очки только через rescore
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{
		UserID:     late,
		RoundPicks: map[models.Round][]int{models.RoundOne: {a}},
	}))

	res, err := e.pickemsSvc.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RacesReplayed)
	assert.Equal(t, 1, res.EntriesUpdated)
	assert.Equal(t, 5, res.PointsAwarded)

	res, err = e.pickemsSvc.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PointsAwarded)

	for _, id := range []int{early, late} {
		p, err := e.pickemsSvc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 5, p.Points)
	}
}

func TestAwardTopPicks(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	c := e.runner(t, "charlie", models.BracketNormal)
	fan := e.runner(t, "fan", models.BracketNormal)
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: fan, TopPicks: []int{a, c}}))

	_, err := e.pickemsSvc.AwardTopPicks(ctx)
	assert.ErrorIs(t, err, ErrCutNotAvailable)

	for _, u := range []struct{ id, points int }{{a, 12}, {b, 8}, {c, 4}, {fan, 0}} {
		usr := e.user(t, u.id)
		usr.Points = u.points
		require.NoError(t, e.users.Update(ctx, nil, &usr))
	}
	tr, err := e.tournaments.GetByName(ctx, nil, testTournament)
	require.NoError(t, err)
	require.NoError(t, e.tournaments.UpdateRound(ctx, nil, tr.ID, models.Quarterfinals))

	res, err := e.pickemsSvc.AwardTopPicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesAwarded)
	assert.Equal(t, models.PointsPerTopPick, res.PointsAwarded)

	res, err = e.pickemsSvc.AwardTopPicks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntriesAwarded)

	p, err := e.pickemsSvc.Get(ctx, fan)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Points)
	assert.True(t, p.TopPointsAwarded)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	first := e.runner(t, "first", models.BracketNormal)
	second := e.runner(t, "second", models.BracketNormal)
	third := e.runner(t, "third", models.BracketNormal)
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: third, Points: 5}))
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: second, Points: 10}))
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: first, Points: 10}))

	board, err := e.pickemsSvc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []int{first, second, third}, []int{board[0].UserID, board[1].UserID, board[2].UserID})
	assert.Equal(t, "first", board[0].DisplayName)
	assert.Equal(t, 3, board[2].Rank)
}

func TestPickemsStats(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 1)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	_, err := e.groupSvc.Create(ctx, CreateGroupInput{Members: []int{a, b}})
	require.NoError(t, err)
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: 1, TopPicks: []int{a}, RoundPicks: map[models.Round][]int{models.RoundOne: {b}}}))
	require.NoError(t, e.pickems.Create(ctx, &models.Pickems{UserID: 2, TopPicks: []int{a}, RoundPicks: map[models.Round][]int{models.RoundOne: {b}}}))

	st, err := e.pickemsSvc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoundOne, st.Round)
	require.Len(t, st.TopPicked, 1)
	assert.Equal(t, a, st.TopPicked[0].UserID)
	assert.Equal(t, 2, st.TopPicked[0].Count)
	require.Len(t, st.Favourites, 1)
	require.Len(t, st.Favourites[0].Favourites, 1)
	assert.Equal(t, b, st.Favourites[0].Favourites[0].UserID)
}

// roundGroups запоминает раунд, с которым запрошены группы.
type roundGroups struct {
	repositories.GroupRepository
	rounds []*models.Round
}

func (r *roundGroups) List(ctx context.Context, round *models.Round) ([]models.Group, error) {
	r.rounds = append(r.rounds, round)
	return r.GroupRepository.List(ctx, round)
}

func TestPickemsStats_LoadsOnlyCurrentRoundGroups(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundTwo, 1)
	groups := &roundGroups{GroupRepository: e.groups}
	e.pickemsSvc.groupRepo = groups

	st, err := e.pickemsSvc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoundTwo, st.Round)
	require.Len(t, groups.rounds, 1)
	require.NotNil(t, groups.rounds[0])
	assert.Equal(t, models.RoundTwo, *groups.rounds[0])

	three := models.RoundThree
	st, err = e.pickemsSvc.Stats(ctx, &three)
	require.NoError(t, err)
	assert.Equal(t, models.RoundThree, st.Round)
	require.Len(t, groups.rounds, 2)
	assert.Equal(t, models.RoundThree, *groups.rounds[1])
}
