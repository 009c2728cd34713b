package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	repo, err := NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "arena.db"), "../../migrations/sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return repo
}

func TestSQLiteRepository_SaveMatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepository(t)

	started := time.UnixMilli(1_700_000_000_000).UTC()
	first := &models.Match{
		ID:        "match-1",
		RoomID:    "room-1",
		CreatorID: "user:alice",
		StartedAt: started,
		EndedAt:   started.Add(time.Minute),
		Ticks:     1200,
		PlayerIDs: []string{"user:alice", "guest:bob"},
		Replay:    []byte{1, 2, 3},
	}
	second := &models.Match{
		ID:        "match-2",
		RoomID:    "room-2",
		CreatorID: "user:carol",
		StartedAt: started,
		EndedAt:   started.Add(2 * time.Minute),
		Ticks:     2400,
		PlayerIDs: []string{"user:carol"},
	}
	require.NoError(t, repo.SaveMatch(ctx, first))
	require.NoError(t, repo.SaveMatch(ctx, second))

	got, err := repo.GetMatch(ctx, "match-1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	list, err := repo.ListMatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "match-2", list[0].ID)
	assert.Equal(t, "match-1", list[1].ID)
	assert.Nil(t, list[1].Replay)

	list, err = repo.ListMatches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteRepository_GetMatch_notFound(t *testing.T) {
	repo := newTestSQLiteRepository(t)

	_, err := repo.GetMatch(context.Background(), "missing")
	assert.True(t, IsNotFound(err), "%v", err)
}

func TestNewSQLiteRepository_missingMigrations(t *testing.T) {
	_, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "arena.db"), "does-not-exist")
	assert.Error(t, err)
}
