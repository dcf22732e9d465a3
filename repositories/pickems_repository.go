package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/redrace/tournament-system/models"
)

var (
	ErrPickemsNotFound = errors.New("pickems entry not found")
	ErrPickemsConflict = errors.New("pickems entry already exists for user")
)

type PickemsRepository interface {
	Create(ctx context.Context, pickems *models.Pickems) error
	GetByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Pickems, error)
	List(ctx context.Context, exec SQLExecutor) ([]models.Pickems, error)
	Update(ctx context.Context, exec SQLExecutor, pickems *models.Pickems) error
}

type postgresPickemsRepository struct {
	db *sql.DB
}

func NewPostgresPickemsRepository(db *sql.DB) PickemsRepository {
	return &postgresPickemsRepository{db: db}
}

func (r *postgresPickemsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const pickemsColumns = `
	id, user_id, top_picks, overall_winner, best_time_who, closest_time_ms,
	round_picks, final_pick, points, top_points_awarded, scored_races`

func scanPickems(row rowScanner) (*models.Pickems, error) {
	var (
		p          models.Pickems
		topPicks   pq.Int64Array
		scored     pq.Int64Array
		roundPicks []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &topPicks, &p.OverallWinner, &p.BestTimeWho, &p.ClosestTimeMs,
		&roundPicks, &p.FinalPick, &p.Points, &p.TopPointsAwarded, &scored,
	)
	if err != nil {
		return nil, err
	}
	p.TopPicks = fromInt64Array(topPicks)
	p.ScoredRaces = fromInt64Array(scored)
	p.RoundPicks = map[models.Round][]int{}
	if len(roundPicks) > 0 {
		if err := json.Unmarshal(roundPicks, &p.RoundPicks); err != nil {
			return nil, fmt.Errorf("failed to decode round picks of entry %d: %w", p.ID, err)
		}
	}
	return &p, nil
}

func encodeRoundPicks(picks map[models.Round][]int) ([]byte, error) {
	if picks == nil {
		picks = map[models.Round][]int{}
	}
	return json.Marshal(picks)
}

func (r *postgresPickemsRepository) Create(ctx context.Context, p *models.Pickems) error {
	roundPicks, err := encodeRoundPicks(p.RoundPicks)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO pickems (
			user_id, top_picks, overall_winner, best_time_who, closest_time_ms,
			round_picks, final_pick, points, top_points_awarded, scored_races
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		p.UserID, toInt64Array(p.TopPicks), p.OverallWinner, p.BestTimeWho, p.ClosestTimeMs,
		roundPicks, p.FinalPick, p.Points, p.TopPointsAwarded, toInt64Array(p.ScoredRaces),
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err, "pickems_user_id_key") {
			return ErrPickemsConflict
		}
		return fmt.Errorf("failed to create pickems entry: %w", err)
	}
	return nil
}

func (r *postgresPickemsRepository) GetByUserID(ctx context.Context, exec SQLExecutor, userID int) (*models.Pickems, error) {
	query := `SELECT` + pickemsColumns + ` FROM pickems WHERE user_id = $1`
	if exec != nil {
		query += ` FOR UPDATE`
	}
	p, err := scanPickems(r.getExecutor(exec).QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPickemsNotFound
		}
		return nil, err
	}
	return p, nil
}

// List locks every entry when called inside a transaction so that scoring is serialized.
func (r *postgresPickemsRepository) List(ctx context.Context, exec SQLExecutor) ([]models.Pickems, error) {
	query := `SELECT` + pickemsColumns + ` FROM pickems ORDER BY user_id`
	if exec != nil {
		query += ` FOR UPDATE`
	}
	rows, err := r.getExecutor(exec).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pickems: %w", err)
	}
	defer rows.Close()

	entries := make([]models.Pickems, 0)
	for rows.Next() {
		p, err := scanPickems(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pickems row: %w", err)
		}
		entries = append(entries, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pickems rows: %w", err)
	}
	return entries, nil
}

func (r *postgresPickemsRepository) Update(ctx context.Context, exec SQLExecutor, p *models.Pickems) error {
	roundPicks, err := encodeRoundPicks(p.RoundPicks)
	if err != nil {
		return err
	}
	query := `
		UPDATE pickems SET
			top_picks = $1, overall_winner = $2, best_time_who = $3, closest_time_ms = $4,
			round_picks = $5, final_pick = $6, points = $7, top_points_awarded = $8, scored_races = $9
		WHERE id = $10`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		toInt64Array(p.TopPicks), p.OverallWinner, p.BestTimeWho, p.ClosestTimeMs,
		roundPicks, p.FinalPick, p.Points, p.TopPointsAwarded, toInt64Array(p.ScoredRaces), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pickems entry %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrPickemsNotFound)
}
