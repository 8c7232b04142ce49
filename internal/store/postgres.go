package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wazeportal/ingest/internal/database"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/pkg/utils"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *database.DB
	q  Querier
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db.Pool()}
}

// InTx runs fn against a transaction-scoped copy of the store. The
// transaction commits only when fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FeedURLs returns every configured partner feed endpoint.
func (s *PostgresStore) FeedURLs(ctx context.Context) ([]models.FeedURL, error) {
	rows, err := s.q.Query(ctx, `SELECT url, id_parceiro FROM feed_urls ORDER BY id_parceiro, url`)
	if err != nil {
		return nil, fmt.Errorf("query feed urls: %w", err)
	}
	defer rows.Close()

	var urls []models.FeedURL
	for rows.Next() {
		var u models.FeedURL
		if err := rows.Scan(&u.URL, &u.PartnerID); err != nil {
			return nil, fmt.Errorf("scan feed url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

const alertColumns = `uuid, country, city, street, type, subtype, report_rating,
	report_by_municipality_user, confidence, reliability, road_type, magvar,
	location_x, location_y, pub_millis, km, status, source_url, id_parceiro,
	date_received, date_updated`

func scanAlert(row pgx.Row, a *models.Alert) error {
	return row.Scan(
		&a.UUID, &a.Country, &a.City, &a.Street, &a.Type, &a.Subtype,
		&a.ReportRating, &a.ReportByMunicipalityUser, &a.Confidence,
		&a.Reliability, &a.RoadType, &a.Magvar, &a.LocationX, &a.LocationY,
		&a.PubMillis, &a.KM, &a.Status, &a.SourceURL, &a.PartnerID,
		&a.DateReceived, &a.DateUpdated,
	)
}

// ActiveAlertsBySource loads all status=1 alerts of one source URL.
func (s *PostgresStore) ActiveAlertsBySource(ctx context.Context, sourceURL string) ([]models.Alert, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE source_url = $1 AND status = 1`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Duplicates returns the global map of suppressed uuid to its canonical
// counterpart.
func (s *PostgresStore) Duplicates(ctx context.Context) (map[string]string, error) {
	rows, err := s.q.Query(ctx, `SELECT uuid, uuid_corresp FROM duplicate_alerts`)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	dups := make(map[string]string)
	for rows.Next() {
		var uuid, corresp string
		if err := rows.Scan(&uuid, &corresp); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		dups[uuid] = corresp
	}
	return dups, rows.Err()
}

// UpsertAlert inserts or updates an alert keyed by uuid, always forcing
// status=1. date_received is preserved on update. The returned flag reports
// whether a new row was created.
func (s *PostgresStore) UpsertAlert(ctx context.Context, a models.Alert) (bool, error) {
	var inserted bool
	err := s.q.QueryRow(ctx, `
		INSERT INTO alerts (
			uuid, country, city, street, type, subtype, report_rating,
			report_by_municipality_user, confidence, reliability, road_type,
			magvar, location_x, location_y, pub_millis, km, status, source_url,
			id_parceiro, date_received, date_updated
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, 1, $17, $18, $19, $20
		)
		ON CONFLICT (uuid) DO UPDATE SET
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			street = EXCLUDED.street,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			report_rating = EXCLUDED.report_rating,
			report_by_municipality_user = EXCLUDED.report_by_municipality_user,
			confidence = EXCLUDED.confidence,
			reliability = EXCLUDED.reliability,
			road_type = EXCLUDED.road_type,
			magvar = EXCLUDED.magvar,
			location_x = EXCLUDED.location_x,
			location_y = EXCLUDED.location_y,
			pub_millis = EXCLUDED.pub_millis,
			km = EXCLUDED.km,
			status = 1,
			id_parceiro = EXCLUDED.id_parceiro,
			date_updated = EXCLUDED.date_updated
		RETURNING (xmax = 0)`,
		a.UUID, a.Country, a.City, a.Street, a.Type, a.Subtype, a.ReportRating,
		a.ReportByMunicipalityUser, a.Confidence, a.Reliability, a.RoadType,
		a.Magvar, a.LocationX, a.LocationY, a.PubMillis, a.KM, a.SourceURL,
		a.PartnerID, a.DateReceived, a.DateUpdated,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert alert %s: %w", a.UUID, err)
	}
	return inserted, nil
}

// RecordDuplicate upserts a duplicate relationship, refreshing last_update
// on repeat sightings.
func (s *PostgresStore) RecordDuplicate(ctx context.Context, d models.DuplicateAlert) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO duplicate_alerts (uuid, uuid_corresp, last_update)
		VALUES ($1, $2, $3)
		ON CONFLICT (uuid) DO UPDATE SET last_update = EXCLUDED.last_update`,
		d.UUID, d.CorrespUUID, d.LastUpdate)
	if err != nil {
		return fmt.Errorf("record duplicate %s: %w", d.UUID, err)
	}
	return nil
}

// DeactivateAlerts flips the given uuids of one source to status=0.
func (s *PostgresStore) DeactivateAlerts(ctx context.Context, sourceURL string, uuids []string, at time.Time) error {
	if len(uuids) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `
		UPDATE alerts SET status = 0, date_updated = $1
		WHERE source_url = $2 AND uuid = ANY($3)`,
		at, sourceURL, uuids)
	if err != nil {
		return fmt.Errorf("deactivate alerts: %w", err)
	}
	return nil
}

// EnqueueAlert creates the fan-out queue entry for a freshly-inserted alert.
func (s *PostgresStore) EnqueueAlert(ctx context.Context, e models.QueueEntry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO fila_envio (uuid_alerta, type, subtype, id_parceiro, data_criacao, enviado, status_envio)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		e.AlertUUID, e.Type, e.Subtype, e.PartnerID, e.CreatedAt, models.SendPending)
	if err != nil {
		return fmt.Errorf("enqueue alert %s: %w", e.AlertUUID, err)
	}
	return nil
}

// JamUUIDsBySource returns every jam uuid known for a source URL,
// regardless of status.
func (s *PostgresStore) JamUUIDsBySource(ctx context.Context, sourceURL string) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT uuid FROM jams WHERE source_url = $1`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("query jam uuids: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("scan jam uuid: %w", err)
		}
		uuids = append(uuids, uuid)
	}
	return uuids, rows.Err()
}

// UpsertJam inserts or updates a jam row keyed by uuid, forcing status=1.
func (s *PostgresStore) UpsertJam(ctx context.Context, j models.Jam) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO jams (
			uuid, country, city, level, speed_kmh, length, turn_type, end_node,
			speed, road_type, delay, street, pub_millis, id_parceiro,
			source_url, status, date_received, date_updated
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			1, $16, $17
		)
		ON CONFLICT (uuid) DO UPDATE SET
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			level = EXCLUDED.level,
			speed_kmh = EXCLUDED.speed_kmh,
			length = EXCLUDED.length,
			turn_type = EXCLUDED.turn_type,
			end_node = EXCLUDED.end_node,
			speed = EXCLUDED.speed,
			road_type = EXCLUDED.road_type,
			delay = EXCLUDED.delay,
			street = EXCLUDED.street,
			pub_millis = EXCLUDED.pub_millis,
			status = 1,
			date_updated = EXCLUDED.date_updated`,
		j.UUID, j.Country, j.City, j.Level, j.SpeedKMH, j.Length, j.TurnType,
		j.EndNode, j.Speed, j.RoadType, j.Delay, j.Street, j.PubMillis,
		j.PartnerID, j.SourceURL, j.DateReceived, j.DateUpdated)
	if err != nil {
		return fmt.Errorf("upsert jam %s: %w", j.UUID, err)
	}
	return nil
}

// ReplaceJamLine fully replaces a jam's polyline.
func (s *PostgresStore) ReplaceJamLine(ctx context.Context, jamUUID string, line []models.JamPoint) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM jam_lines WHERE jam_uuid = $1`, jamUUID); err != nil {
		return fmt.Errorf("delete jam lines %s: %w", jamUUID, err)
	}
	for _, p := range line {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO jam_lines (jam_uuid, sequence, x, y) VALUES ($1, $2, $3, $4)`,
			jamUUID, p.Sequence, p.X, p.Y); err != nil {
			return fmt.Errorf("insert jam line %s: %w", jamUUID, err)
		}
	}
	return nil
}

// ReplaceJamSegments fully replaces a jam's road segments.
func (s *PostgresStore) ReplaceJamSegments(ctx context.Context, jamUUID string, segments []models.JamSegment) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM jam_segments WHERE jam_uuid = $1`, jamUUID); err != nil {
		return fmt.Errorf("delete jam segments %s: %w", jamUUID, err)
	}
	for _, seg := range segments {
		if _, err := s.q.Exec(ctx, `
			INSERT INTO jam_segments (jam_uuid, from_node, segment_id, to_node, is_forward)
			VALUES ($1, $2, $3, $4, $5)`,
			jamUUID, seg.FromNode, seg.SegmentID, seg.ToNode, seg.IsForward); err != nil {
			return fmt.Errorf("insert jam segment %s: %w", jamUUID, err)
		}
	}
	return nil
}

// DeactivateJams flips the given jam uuids of one source to status=0,
// chunked to bound single-query parameter counts.
func (s *PostgresStore) DeactivateJams(ctx context.Context, sourceURL string, uuids []string, batchSize int, at time.Time) error {
	if batchSize <= 0 {
		batchSize = len(uuids)
	}
	for start := 0; start < len(uuids); start += batchSize {
		end := start + batchSize
		if end > len(uuids) {
			end = len(uuids)
		}
		_, err := s.q.Exec(ctx, `
			UPDATE jams SET status = 0, date_updated = $1
			WHERE uuid = ANY($2) AND source_url = $3 AND status = 1`,
			at, uuids[start:end], sourceURL)
		if err != nil {
			return fmt.Errorf("deactivate jams: %w", err)
		}
	}
	return nil
}

// DeactivateAllJamsForPartner flips every jam of a partner to status=0,
// regardless of source URL.
func (s *PostgresStore) DeactivateAllJamsForPartner(ctx context.Context, partnerID int, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE jams SET status = 0, date_updated = $1 WHERE id_parceiro = $2`,
		at, partnerID)
	if err != nil {
		return fmt.Errorf("deactivate partner jams: %w", err)
	}
	return nil
}

// PendingQueueEntries snapshots unexpanded queue entries whose alert is
// still active, locking the rows against concurrent builder runs.
func (s *PostgresStore) PendingQueueEntries(ctx context.Context) ([]models.QueueEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT f.id, f.uuid_alerta, a.type, a.subtype, f.id_parceiro, f.data_criacao
		FROM fila_envio f
		JOIN alerts a ON a.uuid = f.uuid_alerta
		WHERE f.enviado = FALSE AND a.status = 1
		FOR UPDATE OF f`)
	if err != nil {
		return nil, fmt.Errorf("query pending queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.ID, &e.AlertUUID, &e.Type, &e.Subtype, &e.PartnerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UserPreferences loads every notification preference joined to its user's
// contact data.
func (s *PostgresStore) UserPreferences(ctx context.Context) ([]models.UserPreference, error) {
	rows, err := s.q.Query(ctx, `
		SELECT u.id, u.email, u.phone_number, p.id_parceiro, p.type, p.subtype,
		       p.receive_email, p.receive_sms, p.receive_whatsapp
		FROM user_notification_preferences p
		JOIN users u ON u.id = p.id_user`)
	if err != nil {
		return nil, fmt.Errorf("query user preferences: %w", err)
	}
	defer rows.Close()

	var prefs []models.UserPreference
	for rows.Next() {
		var p models.UserPreference
		if err := rows.Scan(&p.UserID, &p.Email, &p.Phone, &p.PartnerID, &p.Type,
			&p.Subtype, &p.ReceiveEmail, &p.ReceiveSMS, &p.ReceiveWhatsApp); err != nil {
			return nil, fmt.Errorf("scan user preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// ExistingTaskKeys returns the (alert, user, channel) triples already
// persisted as delivery tasks.
func (s *PostgresStore) ExistingTaskKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.q.Query(ctx, `SELECT uuid_allert, user_id, metodo FROM fila_envio_detalhes`)
	if err != nil {
		return nil, fmt.Errorf("query existing task keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var uuid, method string
		var userID int64
		if err := rows.Scan(&uuid, &userID, &method); err != nil {
			return nil, fmt.Errorf("scan task key: %w", err)
		}
		keys[utils.TaskKey(uuid, userID, method)] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertDeliveryTasks bulk-inserts tasks in one multi-row statement. The
// unique constraint on (uuid_allert, user_id, metodo) backstops the
// builder's in-memory dedup under concurrent runs.
func (s *PostgresStore) InsertDeliveryTasks(ctx context.Context, tasks []models.DeliveryTask) error {
	if len(tasks) == 0 {
		return nil
	}

	query := `INSERT INTO fila_envio_detalhes
		(fila_id, uuid_allert, user_id, contact, metodo, status_envio, data_criacao, data_atualizacao) VALUES `
	args := make([]any, 0, len(tasks)*8)
	argIndex := 1
	for i, t := range tasks {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5, argIndex+6, argIndex+7)
		argIndex += 8
		args = append(args, t.QueueID, t.AlertUUID, t.UserID, t.Contact,
			string(t.Channel), t.SendStatus, t.CreatedAt, t.UpdatedAt)
	}
	query += ` ON CONFLICT (uuid_allert, user_id, metodo) DO NOTHING`

	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery tasks: %w", err)
	}
	return nil
}

// MarkEntriesQueued marks expanded queue entries so they are not picked up
// again.
func (s *PostgresStore) MarkEntriesQueued(ctx context.Context, entryIDs []int64, at time.Time) error {
	if len(entryIDs) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `
		UPDATE fila_envio SET status_envio = $1, enviado = TRUE, data_envio = $2
		WHERE id = ANY($3)`,
		models.SendQueued, at, entryIDs)
	if err != nil {
		return fmt.Errorf("mark entries queued: %w", err)
	}
	return nil
}

// UnsentDeliveryTasks pulls the next batch of tasks still awaiting a
// successful dispatch. Failed tasks are retried on every invocation.
func (s *PostgresStore) UnsentDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, fila_id, uuid_allert, user_id, contact, metodo, status_envio,
		       data_criacao, data_atualizacao
		FROM fila_envio_detalhes
		WHERE status_envio <> $1
		ORDER BY id
		LIMIT $2`,
		models.SendSent, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.DeliveryTask
	for rows.Next() {
		var t models.DeliveryTask
		var channel string
		if err := rows.Scan(&t.ID, &t.QueueID, &t.AlertUUID, &t.UserID, &t.Contact,
			&channel, &t.SendStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery task: %w", err)
		}
		t.Channel = models.Channel(channel)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus records the outcome of one dispatch attempt.
func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID int64, status, message string, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE fila_envio_detalhes
		SET status_envio = $1, mensagem = $2, data_atualizacao = $3
		WHERE id = $4`,
		status, message, at, taskID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// UpdateQueueStatus updates the parent entry's aggregate delivery state.
func (s *PostgresStore) UpdateQueueStatus(ctx context.Context, queueID int64, status, errMsg string, sent bool, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE fila_envio
		SET status_envio = $1, data_envio = $2, mensagem_erro = NULLIF($3, ''), enviado = $4
		WHERE id = $5`,
		status, at, errMsg, sent, queueID)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	return nil
}

// QueryAlerts retrieves alerts based on query parameters
func (s *PostgresStore) QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`

	var args []any
	argIndex := 1

	if len(q.UUIDs) > 0 {
		query += fmt.Sprintf(" AND uuid = ANY($%d)", argIndex)
		args = append(args, q.UUIDs)
		argIndex++
	}
	if q.PartnerID != 0 && q.PartnerID != models.PartnerAll {
		query += fmt.Sprintf(" AND id_parceiro = $%d", argIndex)
		args = append(args, q.PartnerID)
		argIndex++
	}
	if len(q.Types) > 0 {
		query += fmt.Sprintf(" AND type = ANY($%d)", argIndex)
		args = append(args, q.Types)
		argIndex++
	}
	if q.SourceURL != "" {
		query += fmt.Sprintf(" AND source_url = $%d", argIndex)
		args = append(args, q.SourceURL)
		argIndex++
	}
	if q.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *q.Status)
		argIndex++
	}

	query += " ORDER BY date_updated DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlert retrieves a single alert by uuid
func (s *PostgresStore) GetAlert(ctx context.Context, uuid string) (*models.Alert, error) {
	row := s.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE uuid = $1`, uuid)

	var a models.Alert
	if err := scanAlert(row, &a); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return &a, nil
}

// QueryJams retrieves jams with their polylines and segments.
func (s *PostgresStore) QueryJams(ctx context.Context, q models.JamQuery) ([]models.Jam, error) {
	query := `SELECT uuid, country, city, level, speed_kmh, length, turn_type,
		end_node, speed, road_type, delay, street, pub_millis, id_parceiro,
		source_url, status, date_received, date_updated
		FROM jams WHERE 1=1`

	var args []any
	argIndex := 1

	if len(q.UUIDs) > 0 {
		query += fmt.Sprintf(" AND uuid = ANY($%d)", argIndex)
		args = append(args, q.UUIDs)
		argIndex++
	}
	if q.PartnerID != 0 && q.PartnerID != models.PartnerAll {
		query += fmt.Sprintf(" AND id_parceiro = $%d", argIndex)
		args = append(args, q.PartnerID)
		argIndex++
	}
	if q.SourceURL != "" {
		query += fmt.Sprintf(" AND source_url = $%d", argIndex)
		args = append(args, q.SourceURL)
		argIndex++
	}
	if q.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *q.Status)
		argIndex++
	}
	if q.MinLevel > 0 {
		query += fmt.Sprintf(" AND level >= $%d", argIndex)
		args = append(args, q.MinLevel)
		argIndex++
	}

	query += " ORDER BY date_updated DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jams: %w", err)
	}
	defer rows.Close()

	var jams []models.Jam
	index := make(map[string]int)
	for rows.Next() {
		var j models.Jam
		if err := rows.Scan(&j.UUID, &j.Country, &j.City, &j.Level, &j.SpeedKMH,
			&j.Length, &j.TurnType, &j.EndNode, &j.Speed, &j.RoadType, &j.Delay,
			&j.Street, &j.PubMillis, &j.PartnerID, &j.SourceURL, &j.Status,
			&j.DateReceived, &j.DateUpdated); err != nil {
			return nil, fmt.Errorf("scan jam: %w", err)
		}
		index[j.UUID] = len(jams)
		jams = append(jams, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(jams) == 0 {
		return jams, nil
	}

	uuids := make([]string, 0, len(jams))
	for _, j := range jams {
		uuids = append(uuids, j.UUID)
	}

	lineRows, err := s.q.Query(ctx, `
		SELECT jam_uuid, sequence, x, y FROM jam_lines
		WHERE jam_uuid = ANY($1) ORDER BY jam_uuid, sequence`, uuids)
	if err != nil {
		return nil, fmt.Errorf("query jam lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var jamUUID string
		var p models.JamPoint
		if err := lineRows.Scan(&jamUUID, &p.Sequence, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan jam line: %w", err)
		}
		if i, ok := index[jamUUID]; ok {
			jams[i].Line = append(jams[i].Line, p)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	segRows, err := s.q.Query(ctx, `
		SELECT jam_uuid, from_node, segment_id, to_node, is_forward
		FROM jam_segments WHERE jam_uuid = ANY($1)`, uuids)
	if err != nil {
		return nil, fmt.Errorf("query jam segments: %w", err)
	}
	defer segRows.Close()
	for segRows.Next() {
		var jamUUID string
		var seg models.JamSegment
		if err := segRows.Scan(&jamUUID, &seg.FromNode, &seg.SegmentID, &seg.ToNode, &seg.IsForward); err != nil {
			return nil, fmt.Errorf("scan jam segment: %w", err)
		}
		if i, ok := index[jamUUID]; ok {
			jams[i].Segments = append(jams[i].Segments, seg)
		}
	}
	return jams, segRows.Err()
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
