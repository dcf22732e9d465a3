package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redrace/tournament-system/models"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Tournament, error)
	UpdateRound(ctx context.Context, exec SQLExecutor, id int, round models.Round) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tournaments (name, current_round) VALUES ($1, $2) RETURNING id`,
		t.Name, t.CurrentRound,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err, "tournaments_name_key") {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

// GetByName блокирует строку турнира, если вызван внутри транзакции.
func (r *postgresTournamentRepository) GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Tournament, error) {
	query := `SELECT id, name, current_round FROM tournaments WHERE name = $1`
	if exec != nil {
		query += ` FOR UPDATE`
	}

	t := &models.Tournament{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name, &t.CurrentRound)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) UpdateRound(ctx context.Context, exec SQLExecutor, id int, round models.Round) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE tournaments SET current_round = $1 WHERE id = $2`, round, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament round: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
