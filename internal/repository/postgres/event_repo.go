package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// Insert writes one event row.
func (r *EventRepo) Insert(ctx context.Context, ev model.Event) error {
	if ev.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		ev.ID = id
	}
	const q = `
INSERT INTO events (id, type, context, error, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Pool.Exec(ctx, q,
		ev.ID, string(ev.Type), ev.Context, ev.Error, []byte(ev.Metadata), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
