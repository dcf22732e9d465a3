package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/redrace/tournament-system/models"
)

type PastResultRepository interface {
	Create(ctx context.Context, result *models.PastResult) error
	List(ctx context.Context) ([]models.PastResult, error)
}

type postgresPastResultRepository struct {
	db *sql.DB
}

func NewPostgresPastResultRepository(db *sql.DB) PastResultRepository {
	return &postgresPastResultRepository{db: db}
}

func (r *postgresPastResultRepository) Create(ctx context.Context, p *models.PastResult) error {
	query := `
		INSERT INTO past_results (
			tournament_year, gold_name, gold_user_id, silver_name, silver_user_id,
			bronze_name, bronze_user_id, spotlight_videos
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		p.TournamentYear, p.Gold.Name, p.Gold.UserID, p.Silver.Name, p.Silver.UserID,
		p.Bronze.Name, p.Bronze.UserID, pq.Array(p.SpotlightVideos),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create past result: %w", err)
	}
	return nil
}

func (r *postgresPastResultRepository) List(ctx context.Context) ([]models.PastResult, error) {
	query := `
		SELECT id, tournament_year, gold_name, gold_user_id, silver_name, silver_user_id,
			bronze_name, bronze_user_id, spotlight_videos
		FROM past_results
		ORDER BY tournament_year DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list past results: %w", err)
	}
	defer rows.Close()

	results := make([]models.PastResult, 0)
	for rows.Next() {
		var p models.PastResult
		err := rows.Scan(
			&p.ID, &p.TournamentYear, &p.Gold.Name, &p.Gold.UserID, &p.Silver.Name, &p.Silver.UserID,
			&p.Bronze.Name, &p.Bronze.UserID, pq.Array(&p.SpotlightVideos),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan past result row: %w", err)
		}
		results = append(results, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating past result rows: %w", err)
	}
	return results, nil
}
