package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/psibladdd/dobro-school/internal/adapters/repository"
	service "github.com/psibladdd/dobro-school/internal/app"
	"github.com/psibladdd/dobro-school/internal/domain/catalog"
)

// fakeDeps scripts handler dependencies for tests.
type fakeDeps struct {
	state       service.State
	stateErr    error
	completion  service.Completion
	completeErr error
	entries     []repository.Entry
	topKErr     error
	rankEntry   repository.Entry
	ranked      bool
	rankErr     error
}

func (f *fakeDeps) GetState(ctx context.Context, playerID int64) (service.State, error) {
	if f.stateErr != nil {
		return service.State{}, f.stateErr
	}
	state := f.state
	state.PlayerID = playerID
	return state, nil
}

func (f *fakeDeps) CompleteTask(ctx context.Context, playerID int64, taskID string) (service.Completion, error) {
	if f.completeErr != nil {
		return service.Completion{}, f.completeErr
	}
	completion := f.completion
	completion.PlayerID = playerID
	completion.TaskID = taskID
	return completion, nil
}

func (f *fakeDeps) TopK(ctx context.Context, k int) ([]repository.Entry, error) {
	if f.topKErr != nil {
		return nil, f.topKErr
	}
	if k > len(f.entries) {
		k = len(f.entries)
	}
	return f.entries[:k], nil
}

func (f *fakeDeps) RankOf(ctx context.Context, playerID int64) (repository.Entry, bool, error) {
	return f.rankEntry, f.ranked, f.rankErr
}

func (f *fakeDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(deps *fakeDeps, cfg ServerConfig) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps, deps, cfg).Register(context.Background(), mux)
	return mux
}

func TestHandleGetState(t *testing.T) {
	deps := &fakeDeps{state: service.State{Score: 2, Done: []string{"11", "23"}, Rank: 1, Ranked: true}}
	mux := newTestMux(deps, ServerConfig{})

	t.Run("ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=42", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			UserID int64    `json:"user_id"`
			Score  int      `json:"score"`
			Tasks  []string `json:"tasks"`
			Ranked bool     `json:"ranked"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.UserID != 42 || resp.Score != 2 || len(resp.Tasks) != 2 || !resp.Ranked {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("bad user id", func(t *testing.T) {
		for _, query := range []string{"", "user_id=abc", "user_id=0", "user_id=-5"} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?"+query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("query %q: status = %d, want 400", query, rec.Code)
			}
		}
	})

	t.Run("degraded flag passes through", func(t *testing.T) {
		degraded := &fakeDeps{state: service.State{Done: []string{}, Degraded: true}}
		rec := httptest.NewRecorder()
		newTestMux(degraded, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=7", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Degraded bool `json:"degraded"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Degraded {
			t.Fatal("degraded flag lost")
		}
	})
}

func TestHandleComplete(t *testing.T) {
	body := func(userID int64, taskID string) *bytes.Buffer {
		buf := &bytes.Buffer{}
		_ = json.NewEncoder(buf).Encode(map[string]any{"user_id": userID, "task_id": taskID})
		return buf
	}

	t.Run("ok without allow-list", func(t *testing.T) {
		deps := &fakeDeps{completion: service.Completion{Score: 1}}
		rec := httptest.NewRecorder()
		newTestMux(deps, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "11")))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("operator allow-list", func(t *testing.T) {
		deps := &fakeDeps{completion: service.Completion{Score: 1}}
		mux := newTestMux(deps, ServerConfig{OperatorIDs: []string{"op-1"}})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "11")))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("missing header: status = %d, want 403", rec.Code)
		}

		rec = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "11"))
		req.Header.Set(operatorIDHeader, "op-2")
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("unknown operator: status = %d, want 403", rec.Code)
		}

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "11"))
		req.Header.Set(operatorIDHeader, "op-1")
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("allowed operator: status = %d, want 200", rec.Code)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		deps := &fakeDeps{completeErr: catalog.ErrUnknownSlot}
		rec := httptest.NewRecorder()
		newTestMux(deps, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "99")))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("busy store", func(t *testing.T) {
		deps := &fakeDeps{completeErr: repository.ErrStoreBusy}
		rec := httptest.NewRecorder()
		newTestMux(deps, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/tasks/complete", body(5, "11")))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatal("missing Retry-After header")
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		deps := &fakeDeps{}
		mux := newTestMux(deps, ServerConfig{})
		for _, payload := range []string{"", "{", `{"user_id": 0, "task_id": "11"}`, `{"user_id": 5}`} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/complete",
				bytes.NewBufferString(payload)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("payload %q: status = %d, want 400", payload, rec.Code)
			}
		}
	})
}

func TestHandleGetLeaderboard(t *testing.T) {
	deps := &fakeDeps{entries: []repository.Entry{
		{Rank: 1, PlayerID: 3, Score: 5, LastUpdate: 1000},
		{Rank: 2, PlayerID: 1, Score: 2, LastUpdate: 2000},
	}}
	mux := newTestMux(deps, ServerConfig{MaxLeaderboardLimit: 50})

	t.Run("default limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var page []leaderboardEntry
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(page) != 2 || page[0].UserID != 3 || page[0].Rank != 1 {
			t.Fatalf("unexpected page: %+v", page)
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=1", nil))
		var page []leaderboardEntry
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(page) != 1 {
			t.Fatalf("len(page) = %d, want 1", len(page))
		}
	})

	t.Run("invalid limits", func(t *testing.T) {
		for _, query := range []string{"limit=0", "limit=-1", "limit=abc", "limit=51"} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard?"+query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("query %q: status = %d, want 400", query, rec.Code)
			}
		}
	})
}

func TestHandleGetRank(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		deps := &fakeDeps{rankEntry: repository.Entry{Rank: 3, PlayerID: 9, Score: 4}, ranked: true}
		rec := httptest.NewRecorder()
		newTestMux(deps, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/rank/9", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp rankResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Rank != 3 || resp.UserID != 9 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("not ranked", func(t *testing.T) {
		deps := &fakeDeps{ranked: false}
		rec := httptest.NewRecorder()
		newTestMux(deps, ServerConfig{}).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/rank/123", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad path", func(t *testing.T) {
		deps := &fakeDeps{ranked: true}
		mux := newTestMux(deps, ServerConfig{})
		for _, path := range []string{"/api/rank/", "/api/rank/abc", "/api/rank/1/2"} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("path %q: status = %d, want 400", path, rec.Code)
			}
		}
	})
}

func TestRequestIDEcho(t *testing.T) {
	deps := &fakeDeps{state: service.State{Done: []string{}}}
	mux := newTestMux(deps, ServerConfig{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=1", nil)
	req.Header.Set(requestIDHeader, "req-123")
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("request id = %q, want echo of req-123", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=1", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id not generated")
	}
}

func TestHandleStats(t *testing.T) {
	deps := &fakeDeps{}
	mux := newTestMux(deps, ServerConfig{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["started"] != true {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
