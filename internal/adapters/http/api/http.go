// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/psibladdd/dobro-school/internal/adapters/repository"
	service "github.com/psibladdd/dobro-school/internal/app"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// GetState returns the player's completion state, creating the
	// player on first contact.
	GetState(ctx context.Context, playerID int64) (service.State, error)

	// CompleteTask marks a task slot completed for the player.
	CompleteTask(ctx context.Context, playerID int64, taskID string) (service.Completion, error)

	// Read operations expose leaderboard data.
	TopK(ctx context.Context, k int) ([]repository.Entry, error)
	RankOf(ctx context.Context, playerID int64) (repository.Entry, bool, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	stateHandler       *StateHandler
	completeHandler    *CompleteHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// ServerConfig carries handler-level settings.
type ServerConfig struct {
	// MaxLeaderboardLimit caps the limit query parameter. Defaults to
	// 100 if zero.
	MaxLeaderboardLimit int

	// OperatorIDs is the allow-list for the completion endpoint. Empty
	// disables the check.
	OperatorIDs []string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, cfg ServerConfig) *Server {
	maxLimit := cfg.MaxLeaderboardLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		stateHandler:       NewStateHandler(deps),
		completeHandler:    NewCompleteHandler(deps, cfg.OperatorIDs),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/tasks", MetricsMiddleware(RequestIDMiddleware(s.stateHandler.HandleGetState), "tasks"))
	mux.HandleFunc("/api/tasks/complete", MetricsMiddleware(RequestIDMiddleware(s.completeHandler.HandleComplete), "complete"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(RequestIDMiddleware(s.leaderboardHandler.HandleGetLeaderboard), "leaderboard"))
	mux.HandleFunc("/api/rank/", MetricsMiddleware(RequestIDMiddleware(s.rankHandler.HandleGetRank), "rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
