package repository

import (
	"context"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// EntryRepository persists ingested content entries.
type EntryRepository interface {
	// InsertBatch bulk-inserts entries and returns how many rows were
	// actually written. Entries whose identifier already exists are skipped,
	// so replaying a page is inert.
	InsertBatch(ctx context.Context, entries []model.ContentEntry) (int64, error)
}

// EventRepository persists the event log.
type EventRepository interface {
	// Insert writes one event row.
	Insert(ctx context.Context, ev model.Event) error
}
