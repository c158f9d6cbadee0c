// Package simulate drives synthetic traffic against a running service
// and verifies the leaderboard invariants from the outside.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL              string        // Base URL of the service
	NumPlayers           int           // Number of synthetic players
	CompletionsPerPlayer int           // Completion calls submitted per player
	TopN                 int           // Leaderboard page size to fetch
	Workers              int           // Number of concurrent submitters
	Timeout              time.Duration // HTTP request timeout
	OperatorID           string        // Value for the operator header, if the service enforces one
	Verbose              bool          // Enable verbose logging
}

// Completion is one scripted completion call.
type Completion struct {
	UserID int64  `json:"user_id"`
	TaskID string `json:"task_id"`
}

// Plan is the full scripted workload plus the state it must produce.
type Plan struct {
	Completions []Completion

	// ExpectedScore maps player id to the number of distinct task
	// slots the plan completes for them.
	ExpectedScore map[int64]int
}

// RankEntry mirrors the rank endpoint response.
type RankEntry struct {
	UserID     int64 `json:"user_id"`
	Rank       int   `json:"rank"`
	Score      int   `json:"score"`
	LastUpdate int64 `json:"last_update"`
}

// BoardEntry mirrors one leaderboard row.
type BoardEntry struct {
	Rank       int   `json:"rank"`
	UserID     int64 `json:"user_id"`
	Score      int   `json:"score"`
	LastUpdate int64 `json:"last_update"`
}

// Stats holds simulation statistics.
type Stats struct {
	CompletionsPlanned   int
	CompletionsSubmitted int
	CompletionsApplied   int
	CompletionsRepeated  int
	CompletionsFailed    int
	RanksRetrieved       int
	BoardEntries         int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
