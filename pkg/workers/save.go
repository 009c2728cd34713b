package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/replay"
	"github.com/cbodonnell/arena/pkg/repositories"
	"github.com/cbodonnell/arena/pkg/repositories/models"
)

const (
	DefaultSaveTimeout = 10 * time.Second
)

type SaveMatchWorker struct {
	repository    repositories.Repository
	saveMatchChan <-chan SaveMatchRequest
	timeout       time.Duration
}

type NewSaveMatchWorkerOptions struct {
	Repository    repositories.Repository
	SaveMatchChan <-chan SaveMatchRequest
	Timeout       time.Duration
}

// SaveMatchRequest is posted by a room when its match ends.
type SaveMatchRequest struct {
	Match *models.Match
	// Recorder is compressed into Match.Replay before saving, if set
	Recorder *replay.Recorder
}

// NewSaveMatchWorker creates a new SaveMatchWorker.
// The worker persists finished matches posted by rooms.
func NewSaveMatchWorker(opts NewSaveMatchWorkerOptions) *SaveMatchWorker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	return &SaveMatchWorker{
		repository:    opts.Repository,
		saveMatchChan: opts.SaveMatchChan,
		timeout:       timeout,
	}
}

func (w *SaveMatchWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.saveMatchChan:
			if !ok {
				return
			}
			w.saveMatch(ctx, req)
		}
	}
}

func (w *SaveMatchWorker) saveMatch(ctx context.Context, req SaveMatchRequest) {
	if req.Match == nil {
		log.Warn("Ignoring save request without a match")
		return
	}

	if req.Recorder != nil {
		blob, err := req.Recorder.Compress()
		if err != nil {
			log.Error("Failed to compress replay for match %s: %v", req.Match.ID, err)
		} else {
			req.Match.Replay = blob
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.repository.SaveMatch(ctx, req.Match); err != nil {
		log.Error("Failed to save match %s: %v", req.Match.ID, err)
		return
	}
	log.Debug("Saved match %s of room %s (%d ticks)", req.Match.ID, req.Match.RoomID, req.Match.Ticks)
}
