package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrace/tournament-system/models"
)

func TestUpsertUser(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)

	u, created, err := e.userSvc.Upsert(ctx, UpsertUserInput{DiscordUsername: " speedy "})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "speedy", u.DiscordUsername)
	assert.Equal(t, "speedy", u.DisplayName)
	assert.Equal(t, models.RoleRunner, u.Role)
	assert.Equal(t, models.BracketNormal, u.CurrentBracket)
	assert.Equal(t, models.DefaultBestTimeMs, u.BestTimeMs)

	stored := e.user(t, u.ID)
	stored.Points = 12
	require.NoError(t, e.users.Update(ctx, nil, &stored))

	u2, created, err := e.userSvc.Upsert(ctx, UpsertUserInput{
		DiscordUsername: "speedy",
		DisplayName:     "Speedy",
		Role:            models.RoleCommentator,
		IsAdmin:         true,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, u2.ID)
	assert.Equal(t, models.RoleCommentator, u2.Role)
	assert.True(t, u2.IsAdmin)
	assert.Equal(t, 12, u2.Points)

	_, _, err = e.userSvc.Upsert(ctx, UpsertUserInput{DiscordUsername: "x", Role: "caster"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, _, err = e.userSvc.Upsert(ctx, UpsertUserInput{})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, models.RoundOne, 2)
	id := e.runner(t, "speedy", models.BracketNormal)

	u, err := e.userSvc.UpdateDisplayName(ctx, id, "  Speedy  ")
	require.NoError(t, err)
	assert.Equal(t, "Speedy", u.DisplayName)

	_, err = e.userSvc.UpdateDisplayName(ctx, id, "   ")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = e.userSvc.UpdateDisplayName(ctx, id, strings.Repeat("x", 33))
	assert.ErrorIs(t, err, ErrValidationFailed)

	u, err = e.userSvc.UpdatePronouns(ctx, id, "they/them")
	require.NoError(t, err)
	require.NotNil(t, u.Pronouns)
	assert.Equal(t, "they/them", *u.Pronouns)

	u, err = e.userSvc.UpdatePronouns(ctx, id, "")
	require.NoError(t, err)
	assert.Nil(t, u.Pronouns)

	_, err = e.userSvc.UpdateDisplayName(ctx, 9999, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
