package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/dashboard"
	"github.com/takurot/susanoh/internal/effects"
	"github.com/takurot/susanoh/internal/models"
)

var epoch = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) (*dashboard.Dashboard, http.Handler) {
	t.Helper()
	dash := dashboard.New(dashboard.Config{
		Classifier:   classify.DefaultConfig(),
		Effects:      effects.DefaultConfig(),
		MaxIncidents: 8,
	}, nil, nil)

	api := NewAPIHandlers(dash, nil)
	api.now = func() time.Time { return epoch.Add(time.Second) }
	return dash, NewRouter(RouterDependencies{API: api})
}

func applyBanned(dash *dashboard.Dashboard) {
	normal := dashboard.Snapshot{
		Users: []models.UserInfo{{UserID: "user_boss_01", State: models.StateNormal}},
		Graph: models.GraphData{Nodes: []models.GraphNode{{ID: "user_boss_01", State: models.StateNormal}}},
	}
	banned := dashboard.Snapshot{
		Users: []models.UserInfo{{UserID: "user_boss_01", State: models.StateBanned}},
		Graph: models.GraphData{Nodes: []models.GraphNode{{ID: "user_boss_01", State: models.StateBanned}}},
		Stats: models.Stats{TotalEvents: 10, Banned: 1},
	}
	dash.Apply(normal, epoch)
	dash.Apply(banned, epoch)
}

func TestHandleIncidents(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Incidents []struct {
			UserID string `json:"userId"`
			State  string `json:"state"`
		} `json:"incidents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Incidents) != 1 || body.Incidents[0].State != models.StateBanned {
		t.Errorf("incidents = %+v", body.Incidents)
	}
}

func TestHandleGraphAndEffects(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/graph", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("graph status = %d", rec.Code)
	}
	var graphBody struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		StateChanged bool `json:"state_changed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&graphBody); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(graphBody.Nodes) != 1 {
		t.Errorf("graph nodes = %+v", graphBody.Nodes)
	}
	if !graphBody.StateChanged {
		t.Error("last snapshot banned the boss, state_changed must be true")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/effects", nil))
	var effectsBody struct {
		Nodes []struct {
			NodeID     string `json:"node_id"`
			BannedGlow bool   `json:"banned_glow"`
		} `json:"nodes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&effectsBody); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(effectsBody.Nodes) != 1 || !effectsBody.Nodes[0].BannedGlow {
		t.Errorf("effects = %+v", effectsBody.Nodes)
	}
}

func TestHandleStats(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	var stats models.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stats.Banned != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleTransitions(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transitions?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Transitions []models.TransitionLog `json:"transitions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Transitions) != 1 || body.Transitions[0].ToState != models.StateBanned {
		t.Errorf("transitions = %+v", body.Transitions)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transitions?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit must 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transitions?user=user_nobody", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body.Transitions = nil
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Transitions) != 0 {
		t.Errorf("unknown user must yield empty list, got %+v", body.Transitions)
	}
}

func TestHandleFocus(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)
	dash.SetNodePosition("user_boss_01", 9, 4)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/focus",
		strings.NewReader(`{"seq": 1, "node_id": "user_boss_01"}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !body.Accepted {
		t.Error("first focus request must be accepted")
	}

	// Replay is rejected.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/focus",
		strings.NewReader(`{"seq": 1, "node_id": "user_boss_01"}`)))
	body.Accepted = true
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Accepted {
		t.Error("replayed focus request must be rejected")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/focus", strings.NewReader(`{"seq": 2}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing node_id must 400, got %d", rec.Code)
	}
}

func TestHandlePositions(t *testing.T) {
	dash, handler := newTestAPI(t)
	applyBanned(dash)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions",
		strings.NewReader(`[{"id": "user_boss_01", "x": 11, "y": -2}]`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	g := dash.Graph()
	if g.Nodes[0].X != 11 || g.Nodes[0].Y != -2 {
		t.Errorf("position not applied: (%v, %v)", g.Nodes[0].X, g.Nodes[0].Y)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/incidents", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodGet {
		t.Errorf("Allow = %q", got)
	}
}

func TestHealthz(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	dash := dashboard.New(dashboard.Config{Classifier: classify.DefaultConfig()}, nil, nil)
	handler := NewRouter(RouterDependencies{
		API:            NewAPIHandlers(dash, nil),
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/incidents", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/incidents", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign preflight must be rejected, got %d", rec.Code)
	}
}
