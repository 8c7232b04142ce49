package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/pkg/utils"
)

// InMemoryStore implements Store using in-memory storage. It backs local
// development without a database and the reconciler tests.
type InMemoryStore struct {
	mu sync.RWMutex

	feedURLs   []models.FeedURL
	alerts     map[string]models.Alert
	duplicates map[string]models.DuplicateAlert
	jams       map[string]models.Jam
	queue      map[int64]models.QueueEntry
	tasks      map[int64]models.DeliveryTask
	prefs      []models.UserPreference

	nextQueueID int64
	nextTaskID  int64
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		alerts:      make(map[string]models.Alert),
		duplicates:  make(map[string]models.DuplicateAlert),
		jams:        make(map[string]models.Jam),
		queue:       make(map[int64]models.QueueEntry),
		tasks:       make(map[int64]models.DeliveryTask),
		nextQueueID: 1,
		nextTaskID:  1,
	}
}

// InTx runs fn directly against the store. There is no rollback; the memory
// store trades transactional isolation for zero setup.
func (s *InMemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

// SeedFeedURLs replaces the configured feed endpoints. Test and dev helper.
func (s *InMemoryStore) SeedFeedURLs(urls []models.FeedURL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedURLs = append([]models.FeedURL(nil), urls...)
}

// SeedPreferences replaces the user preference set. Test and dev helper.
func (s *InMemoryStore) SeedPreferences(prefs []models.UserPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = append([]models.UserPreference(nil), prefs...)
}

func (s *InMemoryStore) FeedURLs(ctx context.Context) ([]models.FeedURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FeedURL(nil), s.feedURLs...), nil
}

func (s *InMemoryStore) ActiveAlertsBySource(ctx context.Context, sourceURL string) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []models.Alert
	for _, a := range s.alerts {
		if a.SourceURL == sourceURL && a.Status == models.StatusActive {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (s *InMemoryStore) Duplicates(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dups := make(map[string]string, len(s.duplicates))
	for uuid, d := range s.duplicates {
		dups[uuid] = d.CorrespUUID
	}
	return dups, nil
}

func (s *InMemoryStore) UpsertAlert(ctx context.Context, a models.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.alerts[a.UUID]
	if exists {
		// Keep the original arrival time on update.
		a.DateReceived = existing.DateReceived
	}
	a.Status = models.StatusActive
	s.alerts[a.UUID] = a
	return !exists, nil
}

func (s *InMemoryStore) RecordDuplicate(ctx context.Context, d models.DuplicateAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates[d.UUID] = d
	return nil
}

func (s *InMemoryStore) DeactivateAlerts(ctx context.Context, sourceURL string, uuids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uuid := range uuids {
		a, ok := s.alerts[uuid]
		if !ok || a.SourceURL != sourceURL {
			continue
		}
		a.Status = models.StatusInactive
		a.DateUpdated = at
		s.alerts[uuid] = a
	}
	return nil
}

func (s *InMemoryStore) EnqueueAlert(ctx context.Context, e models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextQueueID
	s.nextQueueID++
	e.Sent = false
	e.SendStatus = models.SendPending
	s.queue[e.ID] = e
	return nil
}

func (s *InMemoryStore) JamUUIDsBySource(ctx context.Context, sourceURL string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uuids []string
	for _, j := range s.jams {
		if j.SourceURL == sourceURL {
			uuids = append(uuids, j.UUID)
		}
	}
	return uuids, nil
}

func (s *InMemoryStore) UpsertJam(ctx context.Context, j models.Jam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.jams[j.UUID]
	if exists {
		j.DateReceived = existing.DateReceived
		// Line and Segments are managed by the Replace calls.
		j.Line = existing.Line
		j.Segments = existing.Segments
	}
	j.Status = models.StatusActive
	s.jams[j.UUID] = j
	return nil
}

func (s *InMemoryStore) ReplaceJamLine(ctx context.Context, jamUUID string, line []models.JamPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jams[jamUUID]
	if !ok {
		return nil
	}
	j.Line = append([]models.JamPoint(nil), line...)
	s.jams[jamUUID] = j
	return nil
}

func (s *InMemoryStore) ReplaceJamSegments(ctx context.Context, jamUUID string, segments []models.JamSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jams[jamUUID]
	if !ok {
		return nil
	}
	j.Segments = append([]models.JamSegment(nil), segments...)
	s.jams[jamUUID] = j
	return nil
}

func (s *InMemoryStore) DeactivateJams(ctx context.Context, sourceURL string, uuids []string, batchSize int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uuid := range uuids {
		j, ok := s.jams[uuid]
		if !ok || j.SourceURL != sourceURL || j.Status != models.StatusActive {
			continue
		}
		j.Status = models.StatusInactive
		j.DateUpdated = at
		s.jams[uuid] = j
	}
	return nil
}

func (s *InMemoryStore) DeactivateAllJamsForPartner(ctx context.Context, partnerID int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for uuid, j := range s.jams {
		if j.PartnerID != partnerID {
			continue
		}
		j.Status = models.StatusInactive
		j.DateUpdated = at
		s.jams[uuid] = j
	}
	return nil
}

func (s *InMemoryStore) PendingQueueEntries(ctx context.Context) ([]models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []models.QueueEntry
	for _, e := range s.queue {
		if e.Sent {
			continue
		}
		a, ok := s.alerts[e.AlertUUID]
		if !ok || a.Status != models.StatusActive {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *InMemoryStore) UserPreferences(ctx context.Context) ([]models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.UserPreference(nil), s.prefs...), nil
}

func (s *InMemoryStore) ExistingTaskKeys(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		keys[utils.TaskKey(t.AlertUUID, t.UserID, string(t.Channel))] = struct{}{}
	}
	return keys, nil
}

func (s *InMemoryStore) InsertDeliveryTasks(ctx context.Context, tasks []models.DeliveryTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		existing[utils.TaskKey(t.AlertUUID, t.UserID, string(t.Channel))] = struct{}{}
	}
	for _, t := range tasks {
		key := utils.TaskKey(t.AlertUUID, t.UserID, string(t.Channel))
		if _, dup := existing[key]; dup {
			continue
		}
		existing[key] = struct{}{}
		t.ID = s.nextTaskID
		s.nextTaskID++
		s.tasks[t.ID] = t
	}
	return nil
}

func (s *InMemoryStore) MarkEntriesQueued(ctx context.Context, entryIDs []int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range entryIDs {
		e, ok := s.queue[id]
		if !ok {
			continue
		}
		e.Sent = true
		e.SendStatus = models.SendQueued
		sentAt := at
		e.SentAt = &sentAt
		s.queue[id] = e
	}
	return nil
}

func (s *InMemoryStore) UnsentDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []models.DeliveryTask
	for _, t := range s.tasks {
		if t.SendStatus != models.SendSent {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *InMemoryStore) UpdateTaskStatus(ctx context.Context, taskID int64, status, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	t.SendStatus = status
	t.Message = message
	t.UpdatedAt = at
	s.tasks[taskID] = t
	return nil
}

func (s *InMemoryStore) UpdateQueueStatus(ctx context.Context, queueID int64, status, errMsg string, sent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.queue[queueID]
	if !ok {
		return nil
	}
	e.SendStatus = status
	e.ErrorMsg = errMsg
	e.Sent = sent
	sentAt := at
	e.SentAt = &sentAt
	s.queue[queueID] = e
	return nil
}

func (s *InMemoryStore) QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []models.Alert
	for _, a := range s.alerts {
		if q.Matches(a) {
			alerts = append(alerts, a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].DateUpdated.After(alerts[j].DateUpdated)
	})
	return paginate(alerts, q.Offset, q.Limit), nil
}

func (s *InMemoryStore) GetAlert(ctx context.Context, uuid string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[uuid]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *InMemoryStore) QueryJams(ctx context.Context, q models.JamQuery) ([]models.Jam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jams []models.Jam
	for _, j := range s.jams {
		if q.Matches(j) {
			jams = append(jams, j)
		}
	}
	sort.Slice(jams, func(i, j int) bool {
		return jams[i].DateUpdated.After(jams[j].DateUpdated)
	})
	return paginate(jams, q.Offset, q.Limit), nil
}

// Health always returns healthy for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
