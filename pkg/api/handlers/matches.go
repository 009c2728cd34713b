package handlers

import (
	"net/http"
	"strconv"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/repositories"
	"github.com/cbodonnell/arena/pkg/repositories/models"
	"github.com/gorilla/mux"
)

// MatchSummary is a match record without its replay blob.
type MatchSummary struct {
	*models.Match
	Replay     []byte `json:"replay,omitempty"`
	ReplaySize int    `json:"replay_size"`
}

func summarize(m *models.Match) MatchSummary {
	return MatchSummary{Match: m, ReplaySize: len(m.Replay)}
}

func HandleListMatches(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		matches, err := repository.ListMatches(r.Context(), limit)
		if err != nil {
			log.Error("failed to list matches: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list matches")
			return
		}
		summaries := make([]MatchSummary, 0, len(matches))
		for _, m := range matches {
			summaries = append(summaries, summarize(m))
		}
		writeJSON(w, http.StatusOK, "ok", summaries)
	}
}

func HandleGetMatch(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := repository.GetMatch(r.Context(), mux.Vars(r)["matchID"])
		if err != nil {
			if repositories.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "match not found")
				return
			}
			log.Error("failed to get match: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get match")
			return
		}
		writeJSON(w, http.StatusOK, "ok", summarize(match))
	}
}

// HandleGetReplay returns the compressed replay blob of a match.
func HandleGetReplay(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := repository.GetMatch(r.Context(), mux.Vars(r)["matchID"])
		if err != nil {
			if repositories.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "match not found")
				return
			}
			log.Error("failed to get match: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get match")
			return
		}
		if len(match.Replay) == 0 {
			writeError(w, http.StatusNotFound, "match has no replay")
			return
		}
		w.Header().Set("Content-Type", "application/zstd")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(match.Replay); err != nil {
			log.Debug("failed to write replay: %v", err)
		}
	}
}
