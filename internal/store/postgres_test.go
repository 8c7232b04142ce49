package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wazeportal/ingest/config"
	"github.com/wazeportal/ingest/internal/database"
	"github.com/wazeportal/ingest/internal/models"
)

// startPostgres provisions a throwaway PostgreSQL container. Skips the test
// when Docker is not available.
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image: "postgres:16-alpine",
		Env: map[string]string{
			"POSTGRES_USER":     "waze",
			"POSTGRES_PASSWORD": "waze",
			"POSTGRES_DB":       "waze",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker unavailable, skipping integration: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	url := fmt.Sprintf("postgres://waze:waze@%s:%s/waze?sslmode=disable", host, port.Port())
	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 5, MinConns: 1})
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := startPostgres(t)
	s := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("upsert alert reports insert then update", func(t *testing.T) {
		a := models.Alert{
			UUID: "it-a-1", Type: "ACCIDENT", SourceURL: "src", PartnerID: 1,
			LocationX: -46.6, LocationY: -23.5,
			DateReceived: now, DateUpdated: now,
		}

		inserted, err := s.UpsertAlert(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		if !inserted {
			t.Fatal("first upsert must report insert")
		}

		a.Street = "Av Paulista"
		a.DateReceived = now.Add(time.Hour)
		a.DateUpdated = now.Add(time.Hour)
		inserted, err = s.UpsertAlert(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		if inserted {
			t.Fatal("second upsert must report update")
		}

		got, err := s.GetAlert(ctx, "it-a-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Street != "Av Paulista" {
			t.Fatalf("update not applied: %+v", got)
		}
		if !got.DateReceived.Equal(now) {
			t.Fatalf("date_received must survive updates: %v", got.DateReceived)
		}
	})

	t.Run("pending entries join active alerts", func(t *testing.T) {
		if err := s.EnqueueAlert(ctx, models.QueueEntry{
			AlertUUID: "it-a-1", Type: "ACCIDENT", PartnerID: 1, CreatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}

		entries, err := s.PendingQueueEntries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].AlertUUID != "it-a-1" {
			t.Fatalf("unexpected entries: %+v", entries)
		}

		if err := s.DeactivateAlerts(ctx, "src", []string{"it-a-1"}, now); err != nil {
			t.Fatal(err)
		}
		entries, err = s.PendingQueueEntries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Fatalf("inactive alert must hide its entry, got %+v", entries)
		}
	})

	t.Run("transaction rollback leaves no partial writes", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := s.InTx(ctx, func(tx Store) error {
			if _, err := tx.UpsertAlert(ctx, models.Alert{
				UUID: "it-rollback", Type: "HAZARD", SourceURL: "src", PartnerID: 1,
				DateReceived: now, DateUpdated: now,
			}); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}

		got, err := s.GetAlert(ctx, "it-rollback")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatal("rolled-back alert must not exist")
		}
	})

	t.Run("jam geometry fully replaced and deactivation chunked", func(t *testing.T) {
		for _, uuid := range []string{"it-j-1", "it-j-2", "it-j-3"} {
			if err := s.UpsertJam(ctx, models.Jam{
				UUID: uuid, SourceURL: "jam-src", PartnerID: 1,
				DateReceived: now, DateUpdated: now,
			}); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.ReplaceJamLine(ctx, "it-j-1", []models.JamPoint{
			{Sequence: 0, X: -46.6, Y: -23.5},
			{Sequence: 1, X: -46.7, Y: -23.6},
		}); err != nil {
			t.Fatal(err)
		}
		if err := s.ReplaceJamLine(ctx, "it-j-1", []models.JamPoint{
			{Sequence: 0, X: -46.8, Y: -23.7},
		}); err != nil {
			t.Fatal(err)
		}

		jams, err := s.QueryJams(ctx, models.JamQuery{UUIDs: []string{"it-j-1"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(jams) != 1 || len(jams[0].Line) != 1 || jams[0].Line[0].X != -46.8 {
			t.Fatalf("line not replaced: %+v", jams)
		}

		// Batch size of 1 forces one statement per uuid.
		if err := s.DeactivateJams(ctx, "jam-src",
			[]string{"it-j-1", "it-j-2", "it-j-3"}, 1, now); err != nil {
			t.Fatal(err)
		}
		active := models.StatusActive
		jams, err = s.QueryJams(ctx, models.JamQuery{SourceURL: "jam-src", Status: &active})
		if err != nil {
			t.Fatal(err)
		}
		if len(jams) != 0 {
			t.Fatalf("expected all jams deactivated, got %+v", jams)
		}
	})

	t.Run("delivery task unique triple", func(t *testing.T) {
		task := models.DeliveryTask{
			QueueID: 1, AlertUUID: "it-a-1", UserID: 7,
			Contact: "u@example.com", Channel: models.ChannelEmail,
			SendStatus: models.SendPending, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.InsertDeliveryTasks(ctx, []models.DeliveryTask{task}); err != nil {
			t.Fatal(err)
		}
		if err := s.InsertDeliveryTasks(ctx, []models.DeliveryTask{task}); err != nil {
			t.Fatal(err)
		}

		tasks, err := s.UnsentDeliveryTasks(ctx, 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 1 {
			t.Fatalf("expected unique triple enforced, got %d tasks", len(tasks))
		}
	})

	t.Run("duplicates roundtrip", func(t *testing.T) {
		if err := s.RecordDuplicate(ctx, models.DuplicateAlert{
			UUID: "it-dup", CorrespUUID: "it-a-1", LastUpdate: now,
		}); err != nil {
			t.Fatal(err)
		}
		dups, err := s.Duplicates(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if corresp, ok := dups["it-dup"]; !ok || corresp != "it-a-1" {
			t.Fatalf("unexpected duplicates: %v", dups)
		}
	})
}
