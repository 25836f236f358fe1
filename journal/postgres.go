// Package journal keeps an append-only audit trail of command status changes.
// The broker never reads it back; queues live only in memory.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jupark12/go-print-relay/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS print_command_events (
	id           BIGSERIAL PRIMARY KEY,
	command_id   TEXT        NOT NULL,
	device_id    TEXT        NOT NULL,
	status       TEXT        NOT NULL,
	message      TEXT        NOT NULL DEFAULT '',
	file         TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertSQL = `
INSERT INTO print_command_events
	(command_id, device_id, status, message, file, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const historySQL = `
SELECT command_id, device_id, status, message, file, created_at, completed_at
FROM print_command_events
WHERE command_id = $1
ORDER BY id`

// DB is the subset of pgxpool.Pool the journal needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres writes command status records to a Postgres table
type Postgres struct {
	db      DB
	timeout time.Duration
}

// Connect opens a pool for dbURL and prepares the events table
func Connect(ctx context.Context, dbURL string) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	j := NewPostgres(pool)
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return j, pool, nil
}

// NewPostgres wraps an existing connection
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db, timeout: 5 * time.Second}
}

// Migrate creates the events table if needed
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create journal table: %w", err)
	}
	return nil
}

// Record appends one status record
func (p *Postgres) Record(ctx context.Context, rec models.CommandRecord) error {
	// request contexts end with the response; the journal write should not
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	_, err := p.db.Exec(ctx, insertSQL,
		rec.ID, rec.DeviceID, string(rec.Status), rec.Message, rec.File, rec.Timestamp, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert journal record: %w", err)
	}
	return nil
}

// History returns every record written for commandID, oldest first
func (p *Postgres) History(ctx context.Context, commandID string) ([]models.CommandRecord, error) {
	rows, err := p.db.Query(ctx, historySQL, commandID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []models.CommandRecord
	for rows.Next() {
		var (
			rec    models.CommandRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &status, &rec.Message, &rec.File, &rec.Timestamp, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		rec.Status = models.CommandStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
