// ABOUTME: PostgreSQL event persistence using pgx.
// ABOUTME: Creates the events table on connect and replaces its rows on every save.

package pgstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/2389/monthcal/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS monthcal_events (
	id BIGINT PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	date DATE NOT NULL,
	start_minute INTEGER NOT NULL,
	end_minute INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'default'
)`

var columns = []string{"id", "position", "name", "date", "start_minute", "end_minute", "description", "category"}

// Persister keeps events in a PostgreSQL table. A single pgx.Conn is not safe
// for concurrent use, so calls are serialized.
type Persister struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// Connect opens a connection to connStr, verifies it, and ensures the schema.
func Connect(ctx context.Context, connStr string) (*Persister, error) {
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse config error: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgx connect error: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("pgx ping error: %w", err)
	}

	if _, err := conn.Exec(ctx, schema); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Persister{conn: conn}, nil
}

// Close releases the connection.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close(ctx)
}

// Load returns the stored events in insertion order.
func (p *Persister) Load(ctx context.Context) ([]event.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.conn.Query(ctx, `
SELECT id, name, date, start_minute, end_minute, description, category
FROM monthcal_events
ORDER BY position, id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e          event.Event
			day        time.Time
			start, end int32
			category   string
		)
		if err := rows.Scan(&e.ID, &e.Name, &day, &start, &end, &e.Description, &category); err != nil {
			return nil, err
		}
		e.Date = event.DateOf(day)
		e.StartTime = event.TimeOfDay(start)
		e.EndTime = event.TimeOfDay(end)
		if e.Category, err = event.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Save replaces the table contents with events inside one transaction.
func (p *Persister) Save(ctx context.Context, events []event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM monthcal_events"); err != nil {
		return err
	}

	if len(events) > 0 {
		rows := make([][]any, len(events))
		for i, e := range events {
			rows[i] = []any{
				e.ID, int32(i), e.Name, e.Date.Time(time.UTC),
				int32(e.StartTime), int32(e.EndTime), e.Description, string(e.Category),
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"monthcal_events"}, columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy events: %w", err)
		}
	}

	return tx.Commit(ctx)
}
