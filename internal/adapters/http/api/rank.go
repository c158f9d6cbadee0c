// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/psibladdd/dobro-school/internal/adapters/repository"
)

// RankDependencies defines the interface for rank lookups.
type RankDependencies interface {
	RankOf(ctx context.Context, playerID int64) (repository.Entry, bool, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// rankResponse mirrors the read shape for GET /api/rank/{user_id}.
type rankResponse struct {
	UserID     int64 `json:"user_id"`
	Rank       int   `json:"rank"`
	Score      int   `json:"score"`
	LastUpdate int64 `json:"last_update"`
}

// HandleGetRank handles GET /api/rank/{user_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/rank/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	userID, err := parseUserID(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	entry, ranked, err := h.deps.RankOf(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !ranked {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{
		UserID:     entry.PlayerID,
		Rank:       entry.Rank,
		Score:      entry.Score,
		LastUpdate: entry.LastUpdate,
	})
}
