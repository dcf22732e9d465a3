package services

import (
	"context"
	"fmt"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
)

type PastResultService interface {
	List(ctx context.Context) ([]models.PastResult, error)
	Create(ctx context.Context, result *models.PastResult) error
}

type pastResultService struct {
	repo repositories.PastResultRepository
}

func NewPastResultService(repo repositories.PastResultRepository) PastResultService {
	return &pastResultService{repo: repo}
}

func (s *pastResultService) List(ctx context.Context) ([]models.PastResult, error) {
	return s.repo.List(ctx)
}

func (s *pastResultService) Create(ctx context.Context, result *models.PastResult) error {
	if result.TournamentYear <= 0 {
		return fmt.Errorf("%w: tournament year is required", ErrValidationFailed)
	}
	if result.SpotlightVideos == nil {
		result.SpotlightVideos = []string{}
	}
	return s.repo.Create(ctx, result)
}
