package handlers

import (
	"context"
	"net/http"

	"github.com/cbodonnell/arena/pkg/api/middleware"
	"github.com/cbodonnell/arena/pkg/game"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/gorilla/mux"
)

type ConnectOptions struct {
	Registry  *game.Registry
	Upgrader  *network.Upgrader
	Heartbeat *network.Heartbeat
	// Context bounds every served channel; cancelling it disconnects everyone
	Context context.Context
}

// HandleConnect upgrades the request, joins the caller to the room and serves
// the channel until it is disposed. Join failures are reported on the open
// channel before it is closed.
func HandleConnect(opts ConnectOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			log.Error("failed to get identity from context")
			writeError(w, http.StatusInternalServerError, "failed to get identity from context")
			return
		}
		roomID := mux.Vars(r)["roomID"]

		ch, err := opts.Upgrader.Upgrade(w, r)
		if err != nil {
			log.Debug("failed to upgrade connection for room %s: %v", roomID, err)
			return
		}
		if err := ch.Open(); err != nil {
			log.Error("failed to open channel: %v", err)
			ch.Dispose()
			return
		}

		ctx := opts.Context
		if ctx == nil {
			ctx = context.Background()
		}

		room, player, err := opts.Registry.Join(roomID, identity, ch)
		if err != nil {
			log.Debug("%s failed to join room %s: %v", identity.Name(), roomID, err)
			payload := messages.ErrorPayload{Message: err.Error()}
			if err := ch.Reject(messages.KindError, payload, game.StatusFor(err)); err != nil {
				log.Debug("failed to send join failure: %v", err)
			}
			ch.Serve(ctx)
			return
		}

		game.BindSession(room, player, ch)
		if opts.Heartbeat != nil {
			opts.Heartbeat.Add(ch)
		}
		log.Info("%s connected to room %s as player %d", identity.Name(), roomID, player.ID)

		if err := ch.Serve(ctx); err != nil {
			log.Debug("channel for player %d in room %s closed: %v", player.ID, roomID, err)
		}
	}
}
