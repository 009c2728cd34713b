package repositories

import (
	"context"
	"fmt"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = &PostgresRepository{}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database at connStr.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{
		pool: pool,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return pool, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveMatch(ctx context.Context, match *models.Match) error {
	q := `
	INSERT INTO matches (match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, replay)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (match_id) DO UPDATE SET ended_at = $5, ticks = $6, player_ids = $7, replay = $8;
	`
	playerIDs := match.PlayerIDs
	if playerIDs == nil {
		playerIDs = []string{}
	}
	_, err := r.pool.Exec(ctx, q,
		match.ID,
		match.RoomID,
		match.CreatorID,
		match.StartedAt,
		match.EndedAt,
		int64(match.Ticks),
		playerIDs,
		match.Replay,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	q := `
	SELECT match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, replay
	FROM matches WHERE match_id = $1;
	`
	match, err := scanPostgresMatch(r.pool.QueryRow(ctx, q, matchID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}

	return match, nil
}

func (r *PostgresRepository) ListMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	q := `
	SELECT match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, NULL::bytea
	FROM matches ORDER BY ended_at DESC LIMIT $1;
	`
	rows, err := r.pool.Query(ctx, q, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %v", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanPostgresMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %v", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %v", err)
	}

	return matches, nil
}

func scanPostgresMatch(row pgx.Row) (*models.Match, error) {
	match := &models.Match{}
	var ticks int64
	err := row.Scan(
		&match.ID,
		&match.RoomID,
		&match.CreatorID,
		&match.StartedAt,
		&match.EndedAt,
		&ticks,
		&match.PlayerIDs,
		&match.Replay,
	)
	if err != nil {
		return nil, err
	}
	match.Ticks = uint32(ticks)

	return match, nil
}
