// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/psibladdd/dobro-school/internal/app"
)

// StateDependencies defines the interface for player state reads.
type StateDependencies interface {
	GetState(ctx context.Context, playerID int64) (service.State, error)
}

// StateHandler handles player state requests.
type StateHandler struct {
	deps StateDependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps StateDependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// stateResponse mirrors the read shape for GET /api/tasks.
type stateResponse struct {
	UserID   int64    `json:"user_id"`
	Score    int      `json:"score"`
	Tasks    []string `json:"tasks"`
	Rank     int      `json:"rank,omitempty"`
	Ranked   bool     `json:"ranked"`
	Degraded bool     `json:"degraded,omitempty"`
}

// HandleGetState handles GET /api/tasks?user_id=N requests. An unseen
// user is created with zero state rather than rejected.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_state"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, err := parseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	state, err := h.deps.GetState(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	tasks := state.Done
	if tasks == nil {
		tasks = []string{}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		UserID:   state.PlayerID,
		Score:    state.Score,
		Tasks:    tasks,
		Rank:     state.Rank,
		Ranked:   state.Ranked,
		Degraded: state.Degraded,
	})
}

// parseUserID parses a decimal positive user id.
func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrBadRequest
	}
	if id < 1 {
		return 0, ErrBadRequest
	}
	return id, nil
}
