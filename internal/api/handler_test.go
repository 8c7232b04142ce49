package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

func init() {
	logger.Init("error", "text")
}

func testRouter(t *testing.T, st store.Store) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	h := NewHandler(st, "test", "now", "abc123")
	h.RegisterRoutes(r)
	return r
}

func seedStore(t *testing.T) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	alerts := []models.Alert{
		{UUID: "a-1", Type: "ACCIDENT", PartnerID: 1, SourceURL: "src-1", DateReceived: now, DateUpdated: now},
		{UUID: "a-2", Type: "HAZARD", PartnerID: 2, SourceURL: "src-2", DateReceived: now, DateUpdated: now},
	}
	for _, a := range alerts {
		if _, err := st.UpsertAlert(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.UpsertJam(ctx, models.Jam{
		UUID: "j-1", Level: 4, PartnerID: 1, SourceURL: "src-1",
		DateReceived: now, DateUpdated: now,
	}); err != nil {
		t.Fatal(err)
	}
	return st
}

func doGet(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetAlerts(t *testing.T) {
	r := testRouter(t, seedStore(t))

	rec := doGet(t, r, "/v1/alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var resp struct {
		Data  []models.Alert `json:"data"`
		Count int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 alerts, got %d", resp.Count)
	}
}

func TestGetAlerts_PartnerFilter(t *testing.T) {
	r := testRouter(t, seedStore(t))

	rec := doGet(t, r, "/v1/alerts?partner=1")
	var resp struct {
		Data []models.Alert `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].UUID != "a-1" {
		t.Fatalf("unexpected partner filter result: %+v", resp.Data)
	}

	// Partner 99 is the administrative all-partners scope.
	rec = doGet(t, r, "/v1/alerts?partner=99")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected all alerts for partner 99, got %d", len(resp.Data))
	}
}

func TestGetAlerts_InvalidParams(t *testing.T) {
	r := testRouter(t, seedStore(t))

	for _, path := range []string{
		"/v1/alerts?limit=abc",
		"/v1/alerts?limit=5000",
		"/v1/alerts?offset=-1",
		"/v1/alerts?status=7",
		"/v1/alerts?partner=x",
	} {
		if rec := doGet(t, r, path); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %s, got %d", path, rec.Code)
		}
	}
}

func TestGetAlertByUUID(t *testing.T) {
	r := testRouter(t, seedStore(t))

	rec := doGet(t, r, "/v1/alerts/a-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var alert models.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alert); err != nil {
		t.Fatal(err)
	}
	if alert.UUID != "a-1" {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	if rec := doGet(t, r, "/v1/alerts/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJams(t *testing.T) {
	r := testRouter(t, seedStore(t))

	rec := doGet(t, r, "/v1/jams?min_level=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var resp struct {
		Data []models.Jam `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].UUID != "j-1" {
		t.Fatalf("unexpected jams: %+v", resp.Data)
	}

	if rec := doGet(t, r, "/v1/jams?min_level=9"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range level, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	r := testRouter(t, seedStore(t))

	for _, path := range []string{"/health", "/v1/health", "/v1/health/ready", "/v1/health/live"} {
		if rec := doGet(t, r, path); rec.Code != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, rec.Code)
		}
	}
}

func TestVersionEndpoint(t *testing.T) {
	r := testRouter(t, seedStore(t))

	rec := doGet(t, r, "/v1/version")
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["version"] != "test" || resp["git_commit"] != "abc123" {
		t.Fatalf("unexpected version payload: %v", resp)
	}
}
