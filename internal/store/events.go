// ABOUTME: Event persistence backed by the SQLite events table.
// ABOUTME: Implements the schedule persister contract with whole-collection replace semantics.

package store

import (
	"context"
	"fmt"

	"github.com/2389/monthcal/internal/event"
)

// Load returns every stored event in insertion order.
func (s *Store) Load(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, date, start_time, end_time, description, category
		FROM events
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var date, start, end, categ string
		if err := rows.Scan(&e.ID, &e.Name, &date, &start, &end, &e.Description, &categ); err != nil {
			return nil, err
		}
		if e.Date, err = event.ParseDate(date); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		if e.StartTime, err = event.ParseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		if e.EndTime, err = event.ParseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		if e.Category, err = event.ParseCategory(categ); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Save replaces the stored collection with events in a single transaction.
func (s *Store) Save(ctx context.Context, events []event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, position, name, date, start_time, end_time, description, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, i, e.Name, e.Date.String(), e.StartTime.String(),
			e.EndTime.String(), e.Description, string(e.Category)); err != nil {
			return fmt.Errorf("insert event %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}
