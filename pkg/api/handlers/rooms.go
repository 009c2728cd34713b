package handlers

import (
	"net/http"

	"github.com/cbodonnell/arena/pkg/api/middleware"
	"github.com/cbodonnell/arena/pkg/game"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/gorilla/mux"
)

func HandleCreateRoom(registry *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			log.Error("failed to get identity from context")
			writeError(w, http.StatusInternalServerError, "failed to get identity from context")
			return
		}

		room, err := registry.Create(identity.Name())
		if err != nil {
			log.Error("failed to create room: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}
		writeJSON(w, http.StatusCreated, "room created", room.Info())
	}
}

func HandleListRooms(registry *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := registry.List()
		infos := make([]game.RoomInfo, 0, len(rooms))
		for _, room := range rooms {
			infos = append(infos, room.Info())
		}
		writeJSON(w, http.StatusOK, "ok", infos)
	}
}

func HandleGetRoom(registry *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, registry)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, "ok", room.Info())
	}
}

func HandleRoomMetrics(registry *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, registry)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, "ok", room.Metrics())
	}
}

func lookupRoom(w http.ResponseWriter, r *http.Request, registry *game.Registry) (*game.MatchRoom, bool) {
	room, err := registry.Get(mux.Vars(r)["roomID"])
	if err != nil {
		if game.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return nil, false
		}
		log.Error("failed to get room: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get room")
		return nil, false
	}
	return room, true
}
