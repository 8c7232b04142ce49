package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
	"github.com/wazeportal/ingest/pkg/utils"
)

// QueueBuilder expands pending queue entries into per-channel delivery
// tasks, one per (alert, user, channel) triple.
type QueueBuilder struct {
	store    store.Store
	interval time.Duration
}

func NewQueueBuilder(st store.Store, interval time.Duration) *QueueBuilder {
	return &QueueBuilder{store: st, interval: interval}
}

// Run executes BuildOnce on a fixed interval until context cancellation.
func (b *QueueBuilder) Run(ctx context.Context) error {
	logger.Info("Queue builder starting", "interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Queue builder stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := b.BuildOnce(ctx); err != nil {
				logger.Error("Queue build failed", "error", err)
			}
		}
	}
}

// BuildOnce snapshots pending entries and preferences in one short locking
// transaction, matches in memory, then persists tasks and marks entries in a
// second all-or-nothing transaction. The unique task constraint makes the
// two-phase shape safe against concurrent builders.
func (b *QueueBuilder) BuildOnce(ctx context.Context) error {
	var entries []models.QueueEntry
	var prefs []models.UserPreference
	var existing map[string]struct{}

	err := b.store.InTx(ctx, func(tx store.Store) error {
		var err error
		if entries, err = tx.PendingQueueEntries(ctx); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if prefs, err = tx.UserPreferences(ctx); err != nil {
			return err
		}
		existing, err = tx.ExistingTaskKeys(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("snapshot queue: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	index := buildPreferenceIndex(prefs)

	var tasks []models.DeliveryTask
	seen := make(map[string]struct{}, len(existing))
	for k := range existing {
		seen[k] = struct{}{}
	}

	entryIDs := make([]int64, 0, len(entries))
	for _, entry := range entries {
		entryIDs = append(entryIDs, entry.ID)

		for _, pref := range matchPreferences(index, entry) {
			for _, ch := range models.AllChannels() {
				contact := pref.Contact(ch)
				if contact == "" {
					continue
				}
				key := utils.TaskKey(entry.AlertUUID, pref.UserID, string(ch))
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				tasks = append(tasks, models.DeliveryTask{
					QueueID:    entry.ID,
					AlertUUID:  entry.AlertUUID,
					UserID:     pref.UserID,
					Contact:    contact,
					Channel:    ch,
					SendStatus: models.SendPending,
					CreatedAt:  now,
					UpdatedAt:  now,
				})
			}
		}
	}

	err = b.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.InsertDeliveryTasks(ctx, tasks); err != nil {
			return err
		}
		return tx.MarkEntriesQueued(ctx, entryIDs, now)
	})
	if err != nil {
		return fmt.Errorf("persist delivery tasks: %w", err)
	}

	logger.Info("Queue entries expanded",
		"entries", len(entries),
		"tasks", len(tasks),
	)
	return nil
}

// buildPreferenceIndex keys preferences by (partner, type, subtype). Each
// preference is also indexed under its subtype-agnostic key when its subtype
// is empty, meaning it matches any subtype of the type.
func buildPreferenceIndex(prefs []models.UserPreference) map[string][]models.UserPreference {
	index := make(map[string][]models.UserPreference, len(prefs))
	for _, p := range prefs {
		key := utils.PrefKey(p.PartnerID, p.Type, p.Subtype)
		index[key] = append(index[key], p)
	}
	return index
}

// matchPreferences returns every preference matching an entry: exact
// subtype, subtype-agnostic, and the same two under the all-partners scope.
func matchPreferences(index map[string][]models.UserPreference, entry models.QueueEntry) []models.UserPreference {
	keys := []string{
		utils.PrefKey(entry.PartnerID, entry.Type, entry.Subtype),
		utils.PrefKey(models.PartnerAll, entry.Type, entry.Subtype),
	}
	if entry.Subtype != "" {
		keys = append(keys,
			utils.PrefKey(entry.PartnerID, entry.Type, ""),
			utils.PrefKey(models.PartnerAll, entry.Type, ""),
		)
	}

	var matched []models.UserPreference
	for _, key := range keys {
		matched = append(matched, index[key]...)
	}
	return matched
}
