package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redrace/tournament-system/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserDiscordConflict = errors.New("discord username already registered")
)

type UserRepository interface {
	Create(ctx context.Context, exec SQLExecutor, user *models.User) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error)
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.User, error)
	GetByDiscordUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, exec SQLExecutor) ([]models.User, error)
	Update(ctx context.Context, exec SQLExecutor, user *models.User) error
	UpdateDisplayName(ctx context.Context, id int, displayName string) error
	UpdatePronouns(ctx context.Context, id int, pronouns *string) error
	SetCurrentGroup(ctx context.Context, exec SQLExecutor, ids []int, groupID int) error
	SetBracket(ctx context.Context, exec SQLExecutor, ids []int, bracket models.Bracket) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const userColumns = `
	id, discord_username, display_name, role, is_admin, pronouns, country,
	current_bracket, points, tie_breaker, has_dnf, best_time_ms, current_group_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.DiscordUsername, &u.DisplayName, &u.Role, &u.IsAdmin, &u.Pronouns, &u.Country,
		&u.CurrentBracket, &u.Points, &u.TieBreaker, &u.HasDNF, &u.BestTimeMs, &u.CurrentGroupID,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresUserRepository) Create(ctx context.Context, exec SQLExecutor, u *models.User) error {
	query := `
		INSERT INTO users (
			discord_username, display_name, role, is_admin, pronouns, country,
			current_bracket, points, tie_breaker, has_dnf, best_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		u.DiscordUsername, u.DisplayName, u.Role, u.IsAdmin, u.Pronouns, u.Country,
		u.CurrentBracket, u.Points, u.TieBreaker, u.HasDNF, u.BestTimeMs,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err, "users_discord_username_key") {
			return ErrUserDiscordConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByIDs locks the selected rows when exec is a transaction.
func (r *postgresUserRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	if exec != nil {
		query += ` FOR UPDATE`
	}
	return r.queryUsers(ctx, r.getExecutor(exec), query, toInt64Array(ids))
}

func (r *postgresUserRepository) GetByDiscordUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE discord_username = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) List(ctx context.Context, exec SQLExecutor) ([]models.User, error) {
	query := `SELECT` + userColumns + ` FROM users ORDER BY id`
	return r.queryUsers(ctx, r.getExecutor(exec), query)
}

func (r *postgresUserRepository) queryUsers(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.User, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, exec SQLExecutor, u *models.User) error {
	query := `
		UPDATE users SET
			display_name = $1, role = $2, is_admin = $3, pronouns = $4, country = $5,
			current_bracket = $6, points = $7, tie_breaker = $8, has_dnf = $9,
			best_time_ms = $10, current_group_id = $11
		WHERE id = $12`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		u.DisplayName, u.Role, u.IsAdmin, u.Pronouns, u.Country,
		u.CurrentBracket, u.Points, u.TieBreaker, u.HasDNF,
		u.BestTimeMs, u.CurrentGroupID, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", u.ID, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateDisplayName(ctx context.Context, id int, displayName string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdatePronouns(ctx context.Context, id int, pronouns *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET pronouns = $1 WHERE id = $2`, pronouns, id)
	if err != nil {
		return fmt.Errorf("failed to update pronouns: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) SetCurrentGroup(ctx context.Context, exec SQLExecutor, ids []int, groupID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE users SET current_group_id = $1 WHERE id = ANY($2)`, groupID, toInt64Array(ids))
	if err != nil {
		return fmt.Errorf("failed to set current group: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) SetBracket(ctx context.Context, exec SQLExecutor, ids []int, bracket models.Bracket) error {
	_, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE users SET current_bracket = $1 WHERE id = ANY($2)`, bracket, toInt64Array(ids))
	if err != nil {
		return fmt.Errorf("failed to set bracket: %w", err)
	}
	return nil
}
