package repositories

import (
	"context"

	"github.com/cbodonnell/arena/pkg/repositories/models"
)

const (
	// DefaultListLimit caps ListMatches when no limit is given
	DefaultListLimit = 50
)

type Repository interface {
	Close(ctx context.Context) error
	SaveMatch(ctx context.Context, match *models.Match) error
	// GetMatch returns ErrNotFound when no match has the id.
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	// ListMatches returns the most recently ended matches first, without replays.
	ListMatches(ctx context.Context, limit int) ([]*models.Match, error)
}
