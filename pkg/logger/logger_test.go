package logger

import (
	"context"
	"testing"
)

func TestInitAndGet(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	l := Get()
	if l == nil {
		t.Fatal("Get returned nil after Init")
	}

	// Smoke the levels; output goes to stdout.
	ctx := context.Background()
	l.Debug(ctx, "debug message", String("k", "v"))
	l.Info(ctx, "info message", Int("count", 1), Int64("player", 42))
	l.Warn(ctx, "warn message", Float64("ratio", 0.5))
	l.Error(ctx, "error message", Any("v", struct{}{}))
}

func TestNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	named := Named("store")
	if named == nil {
		t.Fatal("Named returned nil")
	}
	named.Info(context.Background(), "named logger works")
}

func TestSetLevelString(t *testing.T) {
	cases := []struct {
		level string
		ok    bool
	}{
		{"debug", true},
		{"info", true},
		{"", true},
		{"warn", true},
		{"warning", true},
		{"error", true},
		{"ERROR", true},
		{" info ", true},
		{"verbose", false},
	}
	for _, c := range cases {
		err := SetLevelString(c.level)
		if c.ok && err != nil {
			t.Errorf("SetLevelString(%q): unexpected error %v", c.level, err)
		}
		if !c.ok && err == nil {
			t.Errorf("SetLevelString(%q): expected error", c.level)
		}
	}
}
