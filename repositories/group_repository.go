package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/redrace/tournament-system/models"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupNumberConflict = errors.New("group number already exists")
)

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	GetByID(ctx context.Context, id int) (*models.Group, error)
	GetLatestByMember(ctx context.Context, exec SQLExecutor, userID int) (*models.Group, error)
	List(ctx context.Context, round *models.Round) ([]models.Group, error)
	Count(ctx context.Context) (int, error)
	NextGroupNumber(ctx context.Context, exec SQLExecutor) (int, error)
	Update(ctx context.Context, exec SQLExecutor, group *models.Group) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const groupColumns = ` id, group_number, members, round, bracket, race_start_time, current_race_id`

func scanGroup(row rowScanner) (*models.Group, error) {
	var (
		g       models.Group
		members pq.Int64Array
	)
	if err := row.Scan(&g.ID, &g.GroupNumber, &members, &g.Round, &g.Bracket, &g.RaceStartTime, &g.CurrentRaceID); err != nil {
		return nil, err
	}
	g.Members = fromInt64Array(members)
	return &g, nil
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		INSERT INTO race_groups (group_number, members, round, bracket, race_start_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		g.GroupNumber, toInt64Array(g.Members), g.Round, g.Bracket, g.RaceStartTime,
	).Scan(&g.ID)
	if err != nil {
		if isUniqueViolation(err, "race_groups_group_number_key") {
			return ErrGroupNumberConflict
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, id int) (*models.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `SELECT`+groupColumns+` FROM race_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *postgresGroupRepository) GetLatestByMember(ctx context.Context, exec SQLExecutor, userID int) (*models.Group, error) {
	query := `SELECT` + groupColumns + ` FROM race_groups WHERE $1 = ANY(members) ORDER BY group_number DESC LIMIT 1`
	g, err := scanGroup(r.getExecutor(exec).QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *postgresGroupRepository) List(ctx context.Context, round *models.Round) ([]models.Group, error) {
	query := `SELECT` + groupColumns + ` FROM race_groups`
	args := []interface{}{}
	if round != nil {
		query += ` WHERE round = $1`
		args = append(args, *round)
	}
	query += ` ORDER BY group_number`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, *g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func (r *postgresGroupRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM race_groups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	return n, nil
}

func (r *postgresGroupRepository) NextGroupNumber(ctx context.Context, exec SQLExecutor) (int, error) {
	var n int
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT COALESCE(MAX(group_number), 0) + 1 FROM race_groups`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next group number: %w", err)
	}
	return n, nil
}

func (r *postgresGroupRepository) Update(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		UPDATE race_groups SET members = $1, round = $2, bracket = $3, race_start_time = $4, current_race_id = $5
		WHERE id = $6`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		toInt64Array(g.Members), g.Round, g.Bracket, g.RaceStartTime, g.CurrentRaceID, g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group %d: %w", g.ID, err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}
