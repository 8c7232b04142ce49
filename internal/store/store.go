package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wazeportal/ingest/internal/database"
	"github.com/wazeportal/ingest/internal/models"
)

// Store is the persistence boundary of the ingestion core. The database is
// the only shared mutable resource; all coordination happens through
// transactions and idempotent upsert keys.
type Store interface {
	// Feed configuration
	FeedURLs(ctx context.Context) ([]models.FeedURL, error)

	// Alert reconciliation
	ActiveAlertsBySource(ctx context.Context, sourceURL string) ([]models.Alert, error)
	Duplicates(ctx context.Context) (map[string]string, error)
	UpsertAlert(ctx context.Context, a models.Alert) (inserted bool, err error)
	RecordDuplicate(ctx context.Context, d models.DuplicateAlert) error
	DeactivateAlerts(ctx context.Context, sourceURL string, uuids []string, at time.Time) error
	EnqueueAlert(ctx context.Context, e models.QueueEntry) error

	// Jam reconciliation
	JamUUIDsBySource(ctx context.Context, sourceURL string) ([]string, error)
	UpsertJam(ctx context.Context, j models.Jam) error
	ReplaceJamLine(ctx context.Context, jamUUID string, line []models.JamPoint) error
	ReplaceJamSegments(ctx context.Context, jamUUID string, segments []models.JamSegment) error
	DeactivateJams(ctx context.Context, sourceURL string, uuids []string, batchSize int, at time.Time) error
	DeactivateAllJamsForPartner(ctx context.Context, partnerID int, at time.Time) error

	// Notification queue
	PendingQueueEntries(ctx context.Context) ([]models.QueueEntry, error)
	UserPreferences(ctx context.Context) ([]models.UserPreference, error)
	ExistingTaskKeys(ctx context.Context) (map[string]struct{}, error)
	InsertDeliveryTasks(ctx context.Context, tasks []models.DeliveryTask) error
	MarkEntriesQueued(ctx context.Context, entryIDs []int64, at time.Time) error
	UnsentDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, status, message string, at time.Time) error
	UpdateQueueStatus(ctx context.Context, queueID int64, status, errMsg string, sent bool, at time.Time) error

	// Portal queries
	QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error)
	GetAlert(ctx context.Context, uuid string) (*models.Alert, error)
	QueryJams(ctx context.Context, q models.JamQuery) ([]models.Jam, error)

	// InTx runs fn against a transaction-scoped Store. Any error rolls the
	// whole transaction back; no partial writes survive.
	InTx(ctx context.Context, fn func(Store) error) error

	Health(ctx context.Context) error
}

// Querier is the subset of pgx executed against either a pool or an open
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New creates a new store instance
func New(db *database.DB) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
