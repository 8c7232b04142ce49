package database

import (
	"context"
	"fmt"

	"github.com/wazeportal/ingest/internal/logger"
)

// migrationStatements bootstrap the portal schema. Statements are idempotent
// so repeated startups are safe. Column names mirror the legacy portal
// tables; the Portuguese fila_envio naming is load-bearing for the dashboard
// queries that share this database.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS feed_urls (
		url TEXT NOT NULL,
		id_parceiro INT NOT NULL,
		PRIMARY KEY (url)
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		uuid TEXT PRIMARY KEY,
		country TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		subtype TEXT NOT NULL DEFAULT '',
		report_rating INT NOT NULL DEFAULT 0,
		report_by_municipality_user BOOLEAN NOT NULL DEFAULT FALSE,
		confidence INT NOT NULL DEFAULT 0,
		reliability INT NOT NULL DEFAULT 0,
		road_type INT NOT NULL DEFAULT 0,
		magvar INT NOT NULL DEFAULT 0,
		location_x DOUBLE PRECISION NOT NULL,
		location_y DOUBLE PRECISION NOT NULL,
		pub_millis BIGINT NOT NULL DEFAULT 0,
		km DOUBLE PRECISION,
		status INT NOT NULL DEFAULT 1,
		source_url TEXT NOT NULL,
		id_parceiro INT NOT NULL,
		date_received TIMESTAMPTZ NOT NULL,
		date_updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_source_status ON alerts (source_url, status)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_partner ON alerts (id_parceiro)`,
	`CREATE TABLE IF NOT EXISTS duplicate_alerts (
		uuid TEXT PRIMARY KEY,
		uuid_corresp TEXT NOT NULL,
		last_update TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jams (
		uuid TEXT PRIMARY KEY,
		country TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		level INT NOT NULL DEFAULT 0,
		speed_kmh DOUBLE PRECISION NOT NULL DEFAULT 0,
		length INT NOT NULL DEFAULT 0,
		turn_type TEXT NOT NULL DEFAULT '',
		end_node TEXT NOT NULL DEFAULT '',
		speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		road_type INT NOT NULL DEFAULT 0,
		delay INT NOT NULL DEFAULT 0,
		street TEXT NOT NULL DEFAULT '',
		pub_millis BIGINT NOT NULL DEFAULT 0,
		id_parceiro INT NOT NULL,
		source_url TEXT NOT NULL,
		status INT NOT NULL DEFAULT 1,
		date_received TIMESTAMPTZ NOT NULL,
		date_updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jams_source ON jams (source_url)`,
	`CREATE INDEX IF NOT EXISTS idx_jams_partner ON jams (id_parceiro)`,
	`CREATE TABLE IF NOT EXISTS jam_lines (
		jam_uuid TEXT NOT NULL,
		sequence INT NOT NULL,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (jam_uuid, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS jam_segments (
		jam_uuid TEXT NOT NULL,
		from_node BIGINT NOT NULL DEFAULT 0,
		segment_id BIGINT NOT NULL DEFAULT 0,
		to_node BIGINT NOT NULL DEFAULT 0,
		is_forward BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jam_segments_jam ON jam_segments (jam_uuid)`,
	`CREATE TABLE IF NOT EXISTS fila_envio (
		id BIGSERIAL PRIMARY KEY,
		uuid_alerta TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		subtype TEXT NOT NULL DEFAULT '',
		id_parceiro INT NOT NULL,
		data_criacao TIMESTAMPTZ NOT NULL,
		enviado BOOLEAN NOT NULL DEFAULT FALSE,
		status_envio TEXT NOT NULL DEFAULT 'PENDENTE',
		data_envio TIMESTAMPTZ,
		mensagem_erro TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS fila_envio_detalhes (
		id BIGSERIAL PRIMARY KEY,
		fila_id BIGINT NOT NULL,
		uuid_allert TEXT NOT NULL,
		user_id BIGINT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		metodo TEXT NOT NULL,
		status_envio TEXT NOT NULL DEFAULT 'PENDENTE',
		mensagem TEXT,
		data_criacao TIMESTAMPTZ NOT NULL,
		data_atualizacao TIMESTAMPTZ NOT NULL,
		UNIQUE (uuid_allert, user_id, metodo)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_notification_preferences (
		id BIGSERIAL PRIMARY KEY,
		id_user BIGINT NOT NULL REFERENCES users (id),
		id_parceiro INT NOT NULL,
		type TEXT NOT NULL,
		subtype TEXT NOT NULL DEFAULT '',
		receive_email BOOLEAN NOT NULL DEFAULT FALSE,
		receive_sms BOOLEAN NOT NULL DEFAULT FALSE,
		receive_whatsapp BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Migrate applies the schema statements in order.
func (d *DB) Migrate(ctx context.Context) error {
	if d.pool == nil {
		return nil
	}
	for i, stmt := range migrationStatements {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	logger.Info("Schema migrations applied", "statements", len(migrationStatements))
	return nil
}
