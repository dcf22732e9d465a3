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
	ErrRaceNotFound         = errors.New("race not found")
	ErrRaceTimeIDConflict   = errors.New("race time id already used by another race")
	ErrRaceInvalidReference = errors.New("race references an unknown user")
)

type ListRacesFilter struct {
	Round         *models.Round
	Completed     *bool
	Cancelled     *bool
	UserID        *int // участник или комментатор
	StartedBefore *int64
}

type RaceRepository interface {
	Create(ctx context.Context, exec SQLExecutor, race *models.Race) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error)
	List(ctx context.Context, exec SQLExecutor, filter ListRacesFilter) ([]models.Race, error)
	Update(ctx context.Context, exec SQLExecutor, race *models.Race) error
}

type postgresRaceRepository struct {
	db *sql.DB
}

func NewPostgresRaceRepository(db *sql.DB) RaceRepository {
	return &postgresRaceRepository{db: db}
}

func (r *postgresRaceRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const raceColumns = `
	id, race_time_id, racer1_id, racer2_id, racer3_id, race_date_time, race_submitted,
	round, bracket, commentators, completed, cancelled, results, winner_id,
	restream_planned, restream_channel, restreamer_id`

func scanRace(row rowScanner) (*models.Race, error) {
	var (
		race         models.Race
		commentators pq.Int64Array
		resultsJSON  []byte
	)
	err := row.Scan(
		&race.ID, &race.RaceTimeID, &race.Racer1ID, &race.Racer2ID, &race.Racer3ID,
		&race.RaceDateTime, &race.RaceSubmitted, &race.Round, &race.Bracket, &commentators,
		&race.Completed, &race.Cancelled, &resultsJSON, &race.WinnerID,
		&race.RestreamPlanned, &race.RestreamChannel, &race.RestreamerID,
	)
	if err != nil {
		return nil, err
	}
	race.Commentators = fromInt64Array(commentators)
	race.Results = []models.RaceResult{}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &race.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results of race %d: %w", race.ID, err)
		}
	}
	return &race, nil
}

func encodeResults(results []models.RaceResult) ([]byte, error) {
	if results == nil {
		results = []models.RaceResult{}
	}
	return json.Marshal(results)
}

func (r *postgresRaceRepository) Create(ctx context.Context, exec SQLExecutor, race *models.Race) error {
	results, err := encodeResults(race.Results)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO races (
			race_time_id, racer1_id, racer2_id, racer3_id, race_date_time, race_submitted,
			round, bracket, commentators, completed, cancelled, results
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		race.RaceTimeID, race.Racer1ID, race.Racer2ID, race.Racer3ID, race.RaceDateTime, race.RaceSubmitted,
		race.Round, race.Bracket, toInt64Array(race.Commentators), race.Completed, race.Cancelled, results,
	).Scan(&race.ID)
	return r.handleRaceError(err)
}

func (r *postgresRaceRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error) {
	return r.getOne(ctx, exec, `SELECT`+raceColumns+` FROM races WHERE id = $1`, id)
}

func (r *postgresRaceRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error) {
	return r.getOne(ctx, exec, `SELECT`+raceColumns+` FROM races WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresRaceRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Race, error) {
	race, err := scanRace(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	return race, nil
}

func (r *postgresRaceRepository) List(ctx context.Context, exec SQLExecutor, filter ListRacesFilter) ([]models.Race, error) {
	query := `SELECT` + raceColumns + ` FROM races WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Round != nil {
		query += fmt.Sprintf(" AND round = $%d", argID)
		args = append(args, *filter.Round)
		argID++
	}
	if filter.Completed != nil {
		query += fmt.Sprintf(" AND completed = $%d", argID)
		args = append(args, *filter.Completed)
		argID++
	}
	if filter.Cancelled != nil {
		query += fmt.Sprintf(" AND cancelled = $%d", argID)
		args = append(args, *filter.Cancelled)
		argID++
	}
	if filter.UserID != nil {
		query += fmt.Sprintf(" AND ($%d IN (racer1_id, racer2_id, racer3_id) OR $%d = ANY(commentators))", argID, argID)
		args = append(args, *filter.UserID)
		argID++
	}
	if filter.StartedBefore != nil {
		query += fmt.Sprintf(" AND race_date_time <= $%d", argID)
		args = append(args, *filter.StartedBefore)
		argID++
	}

	query += " ORDER BY race_date_time ASC, id ASC"

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	defer rows.Close()

	races := make([]models.Race, 0)
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race row: %w", err)
		}
		races = append(races, *race)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating race rows: %w", err)
	}
	return races, nil
}

func (r *postgresRaceRepository) Update(ctx context.Context, exec SQLExecutor, race *models.Race) error {
	results, err := encodeResults(race.Results)
	if err != nil {
		return err
	}
	query := `
		UPDATE races SET
			race_time_id = $1, race_date_time = $2, commentators = $3, completed = $4,
			cancelled = $5, results = $6, winner_id = $7, restream_planned = $8,
			restream_channel = $9, restreamer_id = $10
		WHERE id = $11`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		race.RaceTimeID, race.RaceDateTime, toInt64Array(race.Commentators), race.Completed,
		race.Cancelled, results, race.WinnerID, race.RestreamPlanned,
		race.RestreamChannel, race.RestreamerID, race.ID,
	)
	if err != nil {
		return r.handleRaceError(err)
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *postgresRaceRepository) handleRaceError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err, "races_race_time_id_key") {
		return ErrRaceTimeIDConflict
	}
	if isForeignKeyViolation(err) {
		return ErrRaceInvalidReference
	}
	return err
}
