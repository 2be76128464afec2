package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coursebot/coursebot/internal/dispatch"
	"github.com/coursebot/coursebot/internal/storage"
)

type staticStats struct {
	stats dispatch.Stats
}

func (s staticStats) Stats() dispatch.Stats { return s.stats }

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(Deps{
		Store:      store,
		Dispatcher: staticStats{dispatch.Stats{QueueDepth: 2, Dispatched: 10, Failed: 1}},
		Token:      "secret",
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestQueue_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp := get(t, srv.URL+"/v1/queue", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/v1/queue", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad-token status = %d, want 401", resp.StatusCode)
	}
}

func TestQueue_ReturnsStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/v1/queue", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats dispatch.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if stats.QueueDepth != 2 || stats.Dispatched != 10 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDocuments_List(t *testing.T) {
	srv, store := newTestServer(t)

	if _, err := store.SaveDocument(storage.Document{
		Filename: "week1.pdf", Filetype: "pdf", ExtractedText: "text", UploaderID: "u1",
	}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	resp := get(t, srv.URL+"/v1/documents", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Documents []struct {
			ID       int64  `json:"id"`
			Filename string `json:"filename"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(body.Documents) != 1 || body.Documents[0].Filename != "week1.pdf" {
		t.Errorf("documents = %+v", body.Documents)
	}
}

func TestInteractions_SnakeCasePayload(t *testing.T) {
	srv, store := newTestServer(t)

	if err := store.SaveInteraction(storage.Interaction{
		ID: "abc", Question: "what is a stack?", Response: "a LIFO structure", UserID: "u1",
	}); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	resp := get(t, srv.URL+"/v1/interactions", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Interactions []map[string]any `json:"interactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(body.Interactions) != 1 {
		t.Fatalf("interactions = %+v", body.Interactions)
	}
	item := body.Interactions[0]
	for _, key := range []string{"id", "question", "response", "user_id", "created_at"} {
		if _, ok := item[key]; !ok {
			t.Errorf("payload missing %q key: %v", key, item)
		}
	}
	if item["user_id"] != "u1" {
		t.Errorf("user_id = %v, want u1", item["user_id"])
	}
}

func TestInteractions_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/v1/interactions?limit=zero", "secret")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
