package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrace/tournament-system/models"
)

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	a := e.runner(t, "alpha", models.BracketNormal)
	b := e.runner(t, "bravo", models.BracketNormal)
	c := e.runner(t, "charlie", models.BracketNormal)
	d := e.runner(t, "delta", models.BracketNormal)
	require.NoError(t, e.users.Create(ctx, nil, &models.User{DiscordUsername: "mic", Role: models.RoleCommentator}))
	mic, err := e.users.GetByDiscordUsername(ctx, "mic")
	require.NoError(t, err)

	invalid := [][]int{{a}, {a, b, c, d}, {a, a}, {a, 9999}, {a, mic.ID}}
	for _, members := range invalid {
		_, err := e.groupSvc.Create(ctx, CreateGroupInput{Members: members})
		assert.ErrorIs(t, err, ErrInvalidGroup, "members %v", members)
	}

	g1, err := e.groupSvc.Create(ctx, CreateGroupInput{Members: []int{a, b, c}})
	require.NoError(t, err)
	assert.Equal(t, 1, g1.GroupNumber)
	assert.Equal(t, models.RoundOne, g1.Round)

	g2, err := e.groupSvc.Create(ctx, CreateGroupInput{Members: []int{a, d}})
	require.NoError(t, err)
	assert.Equal(t, 2, g2.GroupNumber)

	current, err := e.groupSvc.Current(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, g2.ID, current.ID)

	count, err := e.groupSvc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBracketForGroup(t *testing.T) {
	tests := []struct {
		number int
		want   models.Bracket
		ok     bool
	}{
		{0, "", false},
		{1, models.BracketNormal, true},
		{6, models.BracketNormal, true},
		{7, models.BracketAscension, true},
		{12, models.BracketAscension, true},
		{13, models.BracketExhibition, true},
		{18, models.BracketExhibition, true},
		{19, "", false},
	}
	for _, tt := range tests {
		got, ok := BracketForGroup(tt.number)
		assert.Equal(t, tt.ok, ok, "group %d", tt.number)
		assert.Equal(t, tt.want, got, "group %d", tt.number)
	}
}

func TestAssignBrackets(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	members := map[int][]int{}
	for number := 1; number <= 20; number++ {
		g := &models.Group{GroupNumber: number, Round: models.RoundOne}
		for i := 0; i < 2; i++ {
			g.Members = append(g.Members, e.runner(t, "runner-"+string(rune('a'+number))+string(rune('a'+i)), models.BracketNormal))
		}
		require.NoError(t, e.groups.Create(ctx, nil, g))
		members[number] = g.Members
	}

	res, err := e.groupSvc.AssignBrackets(ctx, models.RoundOne)
	require.NoError(t, err)
	assert.Equal(t, 18, res.GroupsAssigned)
	assert.Equal(t, 36, res.UsersUpdated)
	assert.Equal(t, []int{19, 20}, res.GroupsSkipped)

	assert.Equal(t, models.BracketAscension, e.user(t, members[7][0]).CurrentBracket)
	assert.Equal(t, models.BracketExhibition, e.user(t, members[18][1]).CurrentBracket)
	assert.Equal(t, models.BracketNormal, e.user(t, members[20][0]).CurrentBracket)

	groups, err := e.groupSvc.List(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, groups[12].Bracket)
	assert.Equal(t, models.BracketExhibition, *groups[12].Bracket)

	_, err = e.groupSvc.AssignBrackets(ctx, "Round 9")
	assert.ErrorIs(t, err, ErrValidationFailed)
}
