// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/psibladdd/dobro-school/internal/adapters/repository"
	service "github.com/psibladdd/dobro-school/internal/app"
	"github.com/psibladdd/dobro-school/internal/domain/catalog"
)

// operatorIDHeader authenticates completion calls.
const operatorIDHeader = "X-Operator-ID"

// CompleteDependencies defines the interface for task completion.
type CompleteDependencies interface {
	CompleteTask(ctx context.Context, playerID int64, taskID string) (service.Completion, error)
}

// CompleteHandler handles task completion requests.
type CompleteHandler struct {
	deps      CompleteDependencies
	operators map[string]struct{}
}

// NewCompleteHandler creates a new completion handler. An empty
// operator list disables the allow-list check.
func NewCompleteHandler(deps CompleteDependencies, operatorIDs []string) *CompleteHandler {
	operators := make(map[string]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		if id = strings.TrimSpace(id); id != "" {
			operators[id] = struct{}{}
		}
	}
	return &CompleteHandler{deps: deps, operators: operators}
}

// completeRequest mirrors the body of POST /api/tasks/complete.
type completeRequest struct {
	UserID int64  `json:"user_id"`
	TaskID string `json:"task_id"`
}

func (c completeRequest) validate() error {
	switch {
	case c.UserID < 1:
		return errors.New("missing or invalid user_id")
	case strings.TrimSpace(c.TaskID) == "":
		return errors.New("missing task_id")
	}
	return nil
}

// completeResponse acknowledges a completion call.
type completeResponse struct {
	UserID      int64  `json:"user_id"`
	TaskID      string `json:"task_id"`
	Score       int    `json:"score"`
	AlreadyDone bool   `json:"already_done"`
}

// HandleComplete handles POST /api/tasks/complete requests.
func (h *CompleteHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "api.complete_task"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if len(h.operators) > 0 {
		if _, ok := h.operators[r.Header.Get(operatorIDHeader)]; !ok {
			writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrForbidden))
			return
		}
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	completion, err := h.deps.CompleteTask(r.Context(), req.UserID, req.TaskID)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "unknown_task", Wrap(op, err))
		return
	case errors.Is(err, repository.ErrStoreBusy), errors.Is(err, repository.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{
		UserID:      completion.PlayerID,
		TaskID:      completion.TaskID,
		Score:       completion.Score,
		AlreadyDone: completion.AlreadyDone,
	})
}
