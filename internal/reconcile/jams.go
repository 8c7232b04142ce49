package reconcile

import (
	"context"
	"time"

	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

// JamStats summarizes one jam reconciliation pass.
type JamStats struct {
	Upserted    int
	Deactivated int
	Skipped     int
}

// JamReconciler applies a feed's jam snapshot to the store. Unlike alerts,
// jams carry no dedup or change detection; every present jam is written and
// its geometry fully replaced.
type JamReconciler struct {
	deactivateBatchSize int
}

// NewJamReconciler creates a reconciler that deactivates missing jams in
// batches of the given size.
func NewJamReconciler(deactivateBatchSize int) *JamReconciler {
	return &JamReconciler{deactivateBatchSize: deactivateBatchSize}
}

// Reconcile upserts every incoming jam and deactivates the jams of this
// source that the snapshot no longer mentions. Must run inside a
// transaction-scoped store. Callers route empty snapshots to the
// partner-wide deactivation instead of this diff.
func (r *JamReconciler) Reconcile(ctx context.Context, st store.Store, src models.FeedURL, incoming []models.FeedJam, now time.Time) (JamStats, error) {
	var stats JamStats

	existing, err := st.JamUUIDsBySource(ctx, src.URL)
	if err != nil {
		return stats, err
	}

	processed := make(map[string]struct{}, len(incoming))
	for _, fj := range incoming {
		if fj.UUID == "" {
			stats.Skipped++
			continue
		}
		processed[fj.UUID] = struct{}{}

		if err := st.UpsertJam(ctx, jamFromFeed(fj, src, now)); err != nil {
			return stats, err
		}
		if err := st.ReplaceJamLine(ctx, fj.UUID, lineFromFeed(fj.Line)); err != nil {
			return stats, err
		}
		if err := st.ReplaceJamSegments(ctx, fj.UUID, segmentsFromFeed(fj.Segments)); err != nil {
			return stats, err
		}
		stats.Upserted++
	}

	var missing []string
	for _, uuid := range existing {
		if _, seen := processed[uuid]; !seen {
			missing = append(missing, uuid)
		}
	}
	if len(missing) > 0 {
		if err := st.DeactivateJams(ctx, src.URL, missing, r.deactivateBatchSize, now); err != nil {
			return stats, err
		}
		stats.Deactivated = len(missing)
	}

	logger.Debug("Jam reconciliation complete",
		"source_url", src.URL,
		"upserted", stats.Upserted,
		"deactivated", stats.Deactivated,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

func jamFromFeed(fj models.FeedJam, src models.FeedURL, now time.Time) models.Jam {
	return models.Jam{
		UUID:         fj.UUID,
		Country:      fj.Country,
		City:         fj.City,
		Level:        fj.Level,
		SpeedKMH:     fj.SpeedKMH,
		Length:       fj.Length,
		TurnType:     fj.TurnType,
		EndNode:      fj.EndNode,
		Speed:        fj.Speed,
		RoadType:     fj.RoadType,
		Delay:        fj.Delay,
		Street:       fj.Street,
		PubMillis:    fj.PubMillis,
		PartnerID:    src.PartnerID,
		SourceURL:    src.URL,
		Status:       models.StatusActive,
		DateReceived: now,
		DateUpdated:  now,
	}
}

func lineFromFeed(line []models.FeedLocation) []models.JamPoint {
	points := make([]models.JamPoint, 0, len(line))
	for i, p := range line {
		points = append(points, models.JamPoint{Sequence: i, X: p.X, Y: p.Y})
	}
	return points
}

func segmentsFromFeed(segments []models.FeedSegment) []models.JamSegment {
	out := make([]models.JamSegment, 0, len(segments))
	for _, s := range segments {
		out = append(out, models.JamSegment{
			FromNode:  s.FromNode,
			SegmentID: s.ID,
			ToNode:    s.ToNode,
			IsForward: s.IsForward,
		})
	}
	return out
}
