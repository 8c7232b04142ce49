package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
)

func testConfig() config.FeedConfig {
	return config.FeedConfig{
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "test-agent",
	}
}

func TestFetch_DecodesAlertsAndJams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("unexpected user agent: %s", got)
		}
		w.Write([]byte(`{
			"alerts": [{"uuid": "a-1", "type": "ACCIDENT", "location": {"x": -46.6, "y": -23.5}, "pubMillis": 1700000000000}],
			"jams": [{"uuid": "j-1", "level": 3, "line": [{"x": -46.6, "y": -23.5}], "segments": [{"fromNode": 1, "ID": 2, "toNode": 3, "isForward": true}]}]
		}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Alerts) != 1 || resp.Alerts[0].UUID != "a-1" {
		t.Fatalf("unexpected alerts: %+v", resp.Alerts)
	}
	if resp.Alerts[0].Location == nil || resp.Alerts[0].Location.X != -46.6 {
		t.Fatalf("location not decoded: %+v", resp.Alerts[0].Location)
	}
	if resp.Jams == nil || len(*resp.Jams) != 1 {
		t.Fatalf("expected one jam, got %+v", resp.Jams)
	}
	jam := (*resp.Jams)[0]
	if jam.Segments[0].ID != 2 || !jam.Segments[0].IsForward {
		t.Fatalf("segment not decoded: %+v", jam.Segments[0])
	}
}

func TestFetch_AbsentJamsKeyStaysNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alerts": []}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Jams != nil {
		t.Fatalf("expected nil jams for absent key, got %+v", resp.Jams)
	}
}

func TestFetch_EmptyJamsArrayIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alerts": [], "jams": []}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Jams == nil {
		t.Fatal("expected non-nil jams for empty array")
	}
	if len(*resp.Jams) != 0 {
		t.Fatalf("expected empty jams, got %d", len(*resp.Jams))
	}
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testConfig())
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	var feedErr apperrors.FeedError
	if !errors.As(err, &feedErr) {
		t.Fatalf("expected FeedError, got %T", err)
	}
	if feedErr.Stage != "status" {
		t.Fatalf("expected status stage, got %s", feedErr.Stage)
	}
	if !errors.Is(err, apperrors.ErrFeedStatus) {
		t.Fatal("expected ErrFeedStatus in chain")
	}
}

func TestFetch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alerts": [`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testConfig())
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	var feedErr apperrors.FeedError
	if !errors.As(err, &feedErr) {
		t.Fatalf("expected FeedError, got %T", err)
	}
	if feedErr.Stage != "decode" {
		t.Fatalf("expected decode stage, got %s", feedErr.Stage)
	}
	if !errors.Is(err, apperrors.ErrFeedMalformed) {
		t.Fatal("expected ErrFeedMalformed in chain")
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	f := NewHTTPFetcher(testConfig())
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error")
	}

	var feedErr apperrors.FeedError
	if !errors.As(err, &feedErr) {
		t.Fatalf("expected FeedError, got %T", err)
	}
	if feedErr.Stage != "transport" {
		t.Fatalf("expected transport stage, got %s", feedErr.Stage)
	}
}
