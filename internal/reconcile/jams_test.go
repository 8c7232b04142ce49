package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

func feedJam(uuid string) models.FeedJam {
	return models.FeedJam{
		UUID:     uuid,
		Level:    3,
		SpeedKMH: 12.5,
		Length:   800,
		Delay:    240,
		Street:   "Marginal Tiete",
		City:     "Sao Paulo",
		Country:  "BR",
		Line: []models.FeedLocation{
			{X: -46.65, Y: -23.52},
			{X: -46.66, Y: -23.53},
		},
		Segments: []models.FeedSegment{
			{FromNode: 10, ID: 11, ToNode: 12, IsForward: true},
		},
	}
}

func activeJams(t *testing.T, st store.Store, sourceURL string) []models.Jam {
	t.Helper()
	active := models.StatusActive
	jams, err := st.QueryJams(context.Background(), models.JamQuery{SourceURL: sourceURL, Status: &active})
	if err != nil {
		t.Fatal(err)
	}
	return jams
}

func TestJamReconcile_UpsertWithGeometry(t *testing.T) {
	st := store.NewInMemoryStore()
	r := NewJamReconciler(1000)
	now := time.Now().UTC()

	stats, err := r.Reconcile(context.Background(), st, testSource,
		[]models.FeedJam{feedJam("j-1")}, now)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Upserted != 1 {
		t.Fatalf("expected 1 upsert, got %+v", stats)
	}

	jams := activeJams(t, st, testSource.URL)
	if len(jams) != 1 {
		t.Fatalf("expected 1 active jam, got %d", len(jams))
	}
	j := jams[0]
	if len(j.Line) != 2 || j.Line[0].Sequence != 0 || j.Line[1].Sequence != 1 {
		t.Fatalf("line not stored in order: %+v", j.Line)
	}
	if len(j.Segments) != 1 || j.Segments[0].SegmentID != 11 {
		t.Fatalf("segments not stored: %+v", j.Segments)
	}
}

func TestJamReconcile_GeometryFullyReplaced(t *testing.T) {
	st := store.NewInMemoryStore()
	r := NewJamReconciler(1000)
	now := time.Now().UTC()
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, st, testSource, []models.FeedJam{feedJam("j-1")}, now); err != nil {
		t.Fatal(err)
	}

	shorter := feedJam("j-1")
	shorter.Line = shorter.Line[:1]
	shorter.Segments = nil
	if _, err := r.Reconcile(ctx, st, testSource, []models.FeedJam{shorter}, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	jams := activeJams(t, st, testSource.URL)
	if len(jams[0].Line) != 1 {
		t.Fatalf("expected line replaced with 1 point, got %d", len(jams[0].Line))
	}
	if len(jams[0].Segments) != 0 {
		t.Fatalf("expected segments cleared, got %d", len(jams[0].Segments))
	}
}

func TestJamReconcile_MissingJamsDeactivated(t *testing.T) {
	st := store.NewInMemoryStore()
	r := NewJamReconciler(1000)
	now := time.Now().UTC()
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, st, testSource,
		[]models.FeedJam{feedJam("j-1"), feedJam("j-2")}, now); err != nil {
		t.Fatal(err)
	}

	stats, err := r.Reconcile(ctx, st, testSource,
		[]models.FeedJam{feedJam("j-1")}, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deactivated != 1 {
		t.Fatalf("expected 1 deactivation, got %+v", stats)
	}

	jams := activeJams(t, st, testSource.URL)
	if len(jams) != 1 || jams[0].UUID != "j-1" {
		t.Fatalf("expected only j-1 active, got %+v", jams)
	}
}
