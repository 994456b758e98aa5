package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/visitor-analytics/internal/analytics"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		id          TEXT PRIMARY KEY,
		session_id  TEXT,
		user_id     TEXT,
		event_type  TEXT,
		client_time TIMESTAMPTZ,
		server_time TIMESTAMPTZ NOT NULL,
		payload     JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analytics_events_server_time_idx ON analytics_events (server_time);
`

// PostgresArchive writes ingested events to the analytics_events table.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a PostgreSQL-backed event archive.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

// EnsureSchema creates the archive table if it does not exist.
func (p *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create analytics_events: %w", err)
	}

	return nil
}

// SaveEvent inserts the event. Saving an id twice is a no-op.
func (p *PostgresArchive) SaveEvent(ctx context.Context, event *analytics.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	query := `
		INSERT INTO analytics_events (id, session_id, user_id, event_type, client_time, server_time, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = p.pool.Exec(ctx, query,
		event.ID,
		nullableString(event.SessionID),
		nullableString(event.UserID),
		nullableString(event.EventType),
		nullableMillis(event.Timestamp),
		time.UnixMilli(event.ServerTimestamp).UTC(),
		payload,
	)

	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func nullableMillis(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}

	t := time.UnixMilli(ms).UTC()

	return &t
}

var _ analytics.Archive = (*PostgresArchive)(nil)
