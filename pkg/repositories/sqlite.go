package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/arena/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

var _ Repository = &SQLiteRepository{}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies every migration
// in the migrations directory in name order.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name() < dir[j].Name() })

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveMatch(ctx context.Context, match *models.Match) error {
	playerIDs, err := json.Marshal(match.PlayerIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal player ids: %v", err)
	}

	q := `
	INSERT OR REPLACE INTO matches (match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, replay)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q,
		match.ID,
		match.RoomID,
		match.CreatorID,
		match.StartedAt.UnixMilli(),
		match.EndedAt.UnixMilli(),
		match.Ticks,
		string(playerIDs),
		match.Replay,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	q := `
	SELECT match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, replay
	FROM matches WHERE match_id = ?;
	`
	var replay []byte
	match, err := scanSQLiteMatch(r.db.QueryRowContext(ctx, q, matchID), &replay)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}
	match.Replay = replay

	return match, nil
}

func (r *SQLiteRepository) ListMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	q := `
	SELECT match_id, room_id, creator_id, started_at, ended_at, ticks, player_ids, NULL
	FROM matches ORDER BY ended_at DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %v", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		var replay []byte
		match, err := scanSQLiteMatch(rows, &replay)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteMatch(row rowScanner, replay *[]byte) (*models.Match, error) {
	match := &models.Match{}
	var startedAt, endedAt int64
	var playerIDs string
	err := row.Scan(
		&match.ID,
		&match.RoomID,
		&match.CreatorID,
		&startedAt,
		&endedAt,
		&match.Ticks,
		&playerIDs,
		replay,
	)
	if err != nil {
		return nil, err
	}

	match.StartedAt = time.UnixMilli(startedAt).UTC()
	match.EndedAt = time.UnixMilli(endedAt).UTC()
	if err := json.Unmarshal([]byte(playerIDs), &match.PlayerIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player ids: %v", err)
	}

	return match, nil
}
