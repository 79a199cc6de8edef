package mem0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/types"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "plant-1")
}

func TestAdd(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/memories/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token test-key" {
			t.Errorf("missing or wrong auth header: %q", r.Header.Get("Authorization"))
		}
		var req AddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.UserID != "plant-1" {
			t.Errorf("expected user_id plant-1, got %q", req.UserID)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Metadata["type"] != "plant_analysis" {
			t.Errorf("metadata not forwarded: %v", req.Metadata)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"results":[{"id":"m1","memory":"hello","event":"ADD"}]}`))
	})

	res, err := c.Add(context.Background(), "hello", map[string]string{"type": "plant_analysis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 1 || res[0].ID != "m1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSearch_BareArray(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/memories/search/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["query"] != "leaf" {
			t.Errorf("unexpected query: %v", body["query"])
		}
		if body["limit"] != float64(5) {
			t.Errorf("unexpected limit: %v", body["limit"])
		}
		w.Write([]byte(`[{"id":"a","memory":"one","score":0.9},{"id":"b","memory":"two","score":0.4}]`))
	})

	mems, err := c.Search(context.Background(), "leaf", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mems) != 2 || mems[0].Score != 0.9 {
		t.Errorf("unexpected memories: %+v", mems)
	}
}

func TestCount(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Query().Get("user_id") != "plant-1" {
			t.Errorf("missing user_id: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"results":[{"id":"a"},{"id":"b"},{"id":"c"}]}`))
	})

	n, err := c.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid token"}`))
	})

	_, err := c.Search(context.Background(), "x", 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("expected detail in error, got %v", err)
	}
}

func TestPlantMemory_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	rec := types.HistoricalRecord{
		Timestamp:         ts,
		SubjectID:         "leaf.jpg",
		Health:            "Healthy",
		RecommendedAction: "increase light",
	}
	stored := history.FormatMemory(rec, history.Southern)

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/memories/":
			var req AddRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Messages[0].Content != stored {
				t.Errorf("unexpected stored text: %q", req.Messages[0].Content)
			}
			if req.Metadata["season"] != "summer" {
				t.Errorf("expected summer, got %q", req.Metadata["season"])
			}
			w.Write([]byte(`[]`))
		case "/v1/memories/search/":
			json.NewEncoder(w).Encode([]Memory{
				{ID: "1", Memory: stored, Score: 0.8},
				{ID: "2", Memory: "free text", Score: 0.3, Metadata: map[string]string{
					"image_name": "stem.jpg",
					"timestamp":  ts.Add(time.Hour).Format(time.RFC3339),
					"health":     "Fair",
				}},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})
	m := NewPlantMemory(c, history.Southern)
	ctx := context.Background()

	if err := m.Remember(ctx, rec); err != nil {
		t.Fatalf("remember: %v", err)
	}
	got, err := m.Search(ctx, "q", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].SubjectID != "leaf.jpg" || !got[0].Timestamp.Equal(ts) || got[0].Source != "mem0" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[1].SubjectID != "stem.jpg" || got[1].Health != "Fair" || !got[1].Timestamp.Equal(ts.Add(time.Hour)) {
		t.Errorf("metadata fallback not applied: %+v", got[1])
	}
}
