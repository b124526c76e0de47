package scrape

import (
	"context"
	"fmt"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/repository"
)

// StateUpdate is the part of the user document one sync unit wants to change:
// its own (category, skapp) cursor plus the fingerprints it refreshed.
type StateUpdate struct {
	Category model.Category
	Skapp    string
	Cursor   model.Cursor
	Links    map[string]string
}

// Merger persists cursor and fingerprint updates without clobbering writes
// from concurrent sibling units. It re-reads the current user document
// immediately before writing and merges at field level: cursor fields are
// namespaced by (category, skapp) and never collide, the shared fingerprint
// cache is shallow-merged into the current map.
//
// This is optimistic, not transactional. A race between the read and the
// write can still lose a fingerprint entry to last-write-wins; the cost is
// one redundant re-download, never the loss of a content entry.
type Merger struct {
	users repository.UserRepository
}

// NewMerger constructs a Merger over the user repository.
func NewMerger(users repository.UserRepository) *Merger {
	return &Merger{users: users}
}

// MergeAndPersist applies the update on top of the freshly read user state.
func (m *Merger) MergeAndPersist(ctx context.Context, userPK string, up StateUpdate) error {
	u, err := m.users.Get(ctx, userPK)
	if err != nil {
		return fmt.Errorf("merge state: %w", err)
	}

	u.SyncState.Set(up.Category, up.Skapp, up.Cursor)
	for path, fingerprint := range up.Links {
		if fingerprint == "" {
			continue // never overwrite a cached fingerprint with nothing
		}
		u.CachedLinks[path] = fingerprint
	}

	return m.users.UpdateSyncState(ctx, userPK, u.SyncState, u.CachedLinks)
}
