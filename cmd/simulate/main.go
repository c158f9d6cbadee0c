package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/psibladdd/dobro-school/internal/simulate"
	"github.com/psibladdd/dobro-school/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers     = 200
	defaultCompletions = 40
	defaultTopN        = 50
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players     = flag.Int("players", defaultPlayers, "Number of synthetic players")
		completions = flag.Int("completions", defaultCompletions, "Completion calls per player")
		topN        = flag.Int("top", defaultTopN, "Leaderboard page size to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		operatorID  = flag.String("operator", "", "Operator id sent with completion calls")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:              *baseURL,
		NumPlayers:           *players,
		CompletionsPerPlayer: *completions,
		TopN:                 *topN,
		Workers:              *workers,
		Timeout:              *timeout,
		OperatorID:           *operatorID,
		Verbose:              *verbose,
	}

	if err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
