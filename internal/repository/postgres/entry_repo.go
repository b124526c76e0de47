package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

const entryCols = 13

// InsertBatch bulk-inserts entries in a single multi-row statement. Conflicts
// on the identifier are skipped, so the returned count reflects only rows that
// were genuinely new.
func (r *EntryRepo) InsertBatch(ctx context.Context, entries []model.ContentEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO entries
(id, identifier, root, type, entry_type, namespace, user_pk, skapp, skylink, skylink_unsanitized, metadata, created_at, scraped_at)
VALUES `)
	args := make([]any, 0, len(entries)*entryCols)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for c := 0; c < entryCols; c++ {
			if c > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", i*entryCols+c+1)
		}
		sb.WriteString(")")
		args = append(args,
			e.ID, e.Identifier, e.Root, e.Type, string(e.EntryType), e.Namespace,
			e.UserPK, e.Skapp, e.Skylink, e.SkylinkUnsanitized, []byte(e.Metadata),
			e.CreatedAt, e.ScrapedAt,
		)
	}
	sb.WriteString(" ON CONFLICT (identifier) DO NOTHING")

	tag, err := r.db.Pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
