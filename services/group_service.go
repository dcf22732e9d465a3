package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
)

const (
	minGroupSize    = 2
	maxGroupSize    = 3
	groupsPerTier   = 6
	assignableTiers = 3
)

var tierOrder = []models.Bracket{models.BracketNormal, models.BracketAscension, models.BracketExhibition}

type CreateGroupInput struct {
	Members []int `json:"members"`
}

type AssignBracketsResult struct {
	Round          models.Round `json:"round"`
	GroupsAssigned int          `json:"groups_assigned"`
	UsersUpdated   int          `json:"users_updated"`
	GroupsSkipped  []int        `json:"groups_skipped"`
}

type GroupService interface {
	Create(ctx context.Context, input CreateGroupInput) (*models.Group, error)
	List(ctx context.Context, round *models.Round) ([]models.Group, error)
	Count(ctx context.Context) (int, error)
	Current(ctx context.Context, userID int) (*models.Group, error)
	AssignBrackets(ctx context.Context, round models.Round) (*AssignBracketsResult, error)
}

type groupService struct {
	tx             repositories.Transactor
	groupRepo      repositories.GroupRepository
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
	tournamentName string
}

func NewGroupService(
	tx repositories.Transactor,
	groupRepo repositories.GroupRepository,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
	tournamentName string,
) GroupService {
	return &groupService{
		tx:             tx,
		groupRepo:      groupRepo,
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
		tournamentName: tournamentName,
	}
}

// Create adds a group for the current round and points its members at it.
func (s *groupService) Create(ctx context.Context, input CreateGroupInput) (*models.Group, error) {
	if len(input.Members) < minGroupSize || len(input.Members) > maxGroupSize {
		return nil, fmt.Errorf("%w: a group has %d to %d members", ErrInvalidGroup, minGroupSize, maxGroupSize)
	}
	if !uniqueInts(input.Members) {
		return nil, fmt.Errorf("%w: duplicate member", ErrInvalidGroup)
	}

	var group *models.Group
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByName(ctx, exec, s.tournamentName)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CurrentRound.IsTerminal() {
			return ErrTournamentFinished
		}

		users, err := s.userRepo.GetByIDs(ctx, exec, input.Members)
		if err != nil {
			return err
		}
		if len(users) != len(input.Members) {
			return fmt.Errorf("%w: unknown member", ErrInvalidGroup)
		}
		for _, u := range users {
			if u.Role != models.RoleRunner {
				return fmt.Errorf("%w: user %d is not a runner", ErrInvalidGroup, u.ID)
			}
		}

		number, err := s.groupRepo.NextGroupNumber(ctx, exec)
		if err != nil {
			return err
		}
		group = &models.Group{
			GroupNumber: number,
			Members:     input.Members,
			Round:       t.CurrentRound,
		}
		if err := s.groupRepo.Create(ctx, exec, group); err != nil {
			return handleRepositoryError(err)
		}
		return s.userRepo.SetCurrentGroup(ctx, exec, input.Members, group.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group created", slog.Int("group_id", group.ID), slog.Int("group_number", group.GroupNumber))
	return group, nil
}

func (s *groupService) List(ctx context.Context, round *models.Round) ([]models.Group, error) {
	return s.groupRepo.List(ctx, round)
}

func (s *groupService) Count(ctx context.Context) (int, error) {
	return s.groupRepo.Count(ctx)
}

func (s *groupService) Current(ctx context.Context, userID int) (*models.Group, error) {
	u, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if u.CurrentGroupID == nil {
		return nil, ErrNotInGroup
	}
	g, err := s.groupRepo.GetByID(ctx, *u.CurrentGroupID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return g, nil
}

// BracketForGroup maps a group number to its tier: groups 1-6 Normal, 7-12 Ascension,
// 13-18 Exhibition. ok is false past the last tier.
func BracketForGroup(number int) (models.Bracket, bool) {
	if number < 1 {
		return "", false
	}
	block := (number - 1) / groupsPerTier
	if block >= assignableTiers {
		return "", false
	}
	return tierOrder[block], true
}

// AssignBrackets sets the tier of every group of round and of its members.
func (s *groupService) AssignBrackets(ctx context.Context, round models.Round) (*AssignBracketsResult, error) {
	if !round.IsValid() {
		return nil, fmt.Errorf("%w: unknown round %q", ErrValidationFailed, round)
	}
	groups, err := s.groupRepo.List(ctx, &round)
	if err != nil {
		return nil, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupNumber < groups[j].GroupNumber })

	result := &AssignBracketsResult{Round: round, GroupsSkipped: []int{}}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for i := range groups {
			g := &groups[i]
			bracket, ok := BracketForGroup(g.GroupNumber)
			if !ok {
				result.GroupsSkipped = append(result.GroupsSkipped, g.GroupNumber)
				continue
			}
			g.Bracket = &bracket
			if err := s.groupRepo.Update(ctx, exec, g); err != nil {
				return handleRepositoryError(err)
			}
			if err := s.userRepo.SetBracket(ctx, exec, g.Members, bracket); err != nil {
				return err
			}
			result.GroupsAssigned++
			result.UsersUpdated += len(g.Members)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group brackets assigned",
		slog.String("round", string(round)),
		slog.Int("groups", result.GroupsAssigned),
		slog.Int("skipped", len(result.GroupsSkipped)),
	)
	return result, nil
}
