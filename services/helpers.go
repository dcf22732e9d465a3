package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redrace/tournament-system/brackets"
	"github.com/redrace/tournament-system/cache"
	"github.com/redrace/tournament-system/repositories"
)

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrRaceNotFound):
		return ErrRaceNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, repositories.ErrPickemsNotFound):
		return ErrPickemsNotFound
	case errors.Is(err, repositories.ErrPickemsConflict):
		return ErrPickemsAlreadySubmitted
	case errors.Is(err, repositories.ErrRaceTimeIDConflict):
		return ErrRaceTimeIDConflict
	case errors.Is(err, repositories.ErrRaceInvalidReference):
		return fmt.Errorf("%w: %v", ErrInvalidRacers, err)
	case errors.Is(err, repositories.ErrUserDiscordConflict):
		return ErrUserDiscordConflict
	case errors.Is(err, repositories.ErrGroupNumberConflict):
		return ErrGroupNumberConflict
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	}
	return err
}

// invalidateReadModels drops every cached view derived from scores.
func invalidateReadModels(ctx context.Context, c cache.Cache, logger *slog.Logger) {
	for _, prefix := range []string{cache.PrefixStandings, cache.PrefixStats, cache.PrefixPickems} {
		if err := c.DeleteByPrefix(ctx, prefix); err != nil {
			logger.Warn("failed to invalidate cache", slog.String("prefix", prefix), slog.Any("error", err))
		}
	}
}

func broadcast(hub brackets.Broadcaster, tournament, event string, payload interface{}) {
	if hub == nil {
		return
	}
	room := brackets.TournamentRoom(tournament)
	hub.BroadcastToRoom(room, brackets.WebSocketMessage{Type: event, Payload: payload, RoomID: room})
}

func uniqueInts(ids []int) bool {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}
