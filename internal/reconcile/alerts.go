package reconcile

import (
	"context"
	"time"

	"github.com/wazeportal/ingest/internal/geo"
	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/metrics"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

// AlertStats summarizes one alert reconciliation pass.
type AlertStats struct {
	Inserted    int
	Updated     int
	Unchanged   int
	Duplicates  int
	Deactivated int
	Skipped     int
}

// AlertReconciler diffs a feed snapshot against the stored active set of one
// source URL.
type AlertReconciler struct {
	radiusMeters float64
}

// NewAlertReconciler creates a reconciler with the given proximity-dedup
// radius.
func NewAlertReconciler(radiusMeters float64) *AlertReconciler {
	return &AlertReconciler{radiusMeters: radiusMeters}
}

// Reconcile applies one feed snapshot. It must be called inside a
// transaction-scoped store so that a failure leaves the previous state
// intact.
//
// New uuids within radiusMeters of an active alert of the same type are
// recorded as duplicates and suppressed instead of inserted. Queue entries
// are created only for genuinely new rows.
func (r *AlertReconciler) Reconcile(ctx context.Context, st store.Store, src models.FeedURL, incoming []models.FeedAlert, now time.Time) (AlertStats, error) {
	var stats AlertStats

	active, err := st.ActiveAlertsBySource(ctx, src.URL)
	if err != nil {
		return stats, err
	}
	activeByUUID := make(map[string]models.Alert, len(active))
	for _, a := range active {
		activeByUUID[a.UUID] = a
	}

	duplicates, err := st.Duplicates(ctx)
	if err != nil {
		return stats, err
	}

	processed := make(map[string]struct{}, len(incoming))
	for _, fa := range incoming {
		if fa.UUID == "" || fa.Location == nil {
			stats.Skipped++
			continue
		}
		processed[fa.UUID] = struct{}{}

		if corresp, known := duplicates[fa.UUID]; known {
			// Repeat sighting of a suppressed uuid only refreshes last_update.
			if err := st.RecordDuplicate(ctx, models.DuplicateAlert{
				UUID:        fa.UUID,
				CorrespUUID: corresp,
				LastUpdate:  now,
			}); err != nil {
				return stats, err
			}
			stats.Duplicates++
			continue
		}

		candidate := alertFromFeed(fa, src, now)

		if existing, known := activeByUUID[fa.UUID]; known {
			if !candidate.ChangedFrom(existing) {
				stats.Unchanged++
				continue
			}
			if _, err := st.UpsertAlert(ctx, candidate); err != nil {
				return stats, err
			}
			stats.Updated++
			activeByUUID[fa.UUID] = candidate
			continue
		}

		if canonical, found := r.findNearby(candidate, activeByUUID); found {
			if err := st.RecordDuplicate(ctx, models.DuplicateAlert{
				UUID:        candidate.UUID,
				CorrespUUID: canonical,
				LastUpdate:  now,
			}); err != nil {
				return stats, err
			}
			stats.Duplicates++
			metrics.RecordAlertOutcome(src.URL, "duplicate")
			continue
		}

		inserted, err := st.UpsertAlert(ctx, candidate)
		if err != nil {
			return stats, err
		}
		if inserted {
			if err := st.EnqueueAlert(ctx, models.QueueEntry{
				AlertUUID: candidate.UUID,
				Type:      candidate.Type,
				Subtype:   candidate.Subtype,
				PartnerID: candidate.PartnerID,
				CreatedAt: now,
			}); err != nil {
				return stats, err
			}
			stats.Inserted++
		} else {
			// The uuid existed inactive; this is a reactivation, not a
			// fresh incident.
			stats.Updated++
		}
		activeByUUID[candidate.UUID] = candidate
	}

	var missing []string
	for _, a := range active {
		if _, seen := processed[a.UUID]; !seen {
			missing = append(missing, a.UUID)
		}
	}
	if len(missing) > 0 {
		if err := st.DeactivateAlerts(ctx, src.URL, missing, now); err != nil {
			return stats, err
		}
		stats.Deactivated = len(missing)
	}

	logger.Debug("Alert reconciliation complete",
		"source_url", src.URL,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"duplicates", stats.Duplicates,
		"deactivated", stats.Deactivated,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// findNearby returns the uuid of an active alert of the same type within the
// dedup radius, preferring the closest match.
func (r *AlertReconciler) findNearby(candidate models.Alert, active map[string]models.Alert) (string, bool) {
	bestUUID := ""
	bestDist := r.radiusMeters
	for uuid, a := range active {
		if a.Type != candidate.Type {
			continue
		}
		d := geo.DistanceMeters(candidate.LocationY, candidate.LocationX, a.LocationY, a.LocationX)
		if d <= bestDist {
			bestUUID = uuid
			bestDist = d
		}
	}
	return bestUUID, bestUUID != ""
}

func alertFromFeed(fa models.FeedAlert, src models.FeedURL, now time.Time) models.Alert {
	return models.Alert{
		UUID:                     fa.UUID,
		Country:                  fa.Country,
		City:                     fa.City,
		Street:                   fa.Street,
		Type:                     fa.Type,
		Subtype:                  fa.Subtype,
		ReportRating:             fa.ReportRating,
		ReportByMunicipalityUser: fa.ReportByMunicipalityUser,
		Confidence:               fa.Confidence,
		Reliability:              fa.Reliability,
		RoadType:                 fa.RoadType,
		Magvar:                   fa.Magvar,
		LocationX:                fa.Location.X,
		LocationY:                fa.Location.Y,
		PubMillis:                fa.PubMillis,
		Status:                   models.StatusActive,
		SourceURL:                src.URL,
		PartnerID:                src.PartnerID,
		DateReceived:             now,
		DateUpdated:              now,
	}
}
