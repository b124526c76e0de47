// Package repository defines store interfaces implemented by the postgres package.
package repository

import (
	"context"
	"encoding/json"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// UserRepository provides access to the per-user scrape state documents.
type UserRepository interface {
	// Upsert inserts the user with set-on-insert defaults if unknown and
	// reports whether the user was newly discovered.
	Upsert(ctx context.Context, userPK string, discovered bool) (bool, error)

	// Get returns the current user document.
	Get(ctx context.Context, userPK string) (*model.User, error)

	// List returns all known users, most recently added first.
	List(ctx context.Context) ([]model.User, error)

	// UpdateSkapps replaces the user's skapp list.
	UpdateSkapps(ctx context.Context, userPK string, skapps []string) error

	// UpdateSyncState writes the full sync-state and fingerprint-cache maps.
	// Callers are expected to go through the state merger, never to write a
	// stale snapshot blindly.
	UpdateSyncState(ctx context.Context, userPK string, state model.SyncState, links map[string]string) error

	// UpdateMySkyProfile stores a new MySky profile snapshot together with
	// the full fingerprint-cache map. The map replaces the stored one, so
	// callers must pass the merged map, not just the entries they refreshed.
	UpdateMySkyProfile(ctx context.Context, userPK string, profile json.RawMessage, links map[string]string) error

	// UpdateSkyIDProfile stores a new legacy profile snapshot.
	UpdateSkyIDProfile(ctx context.Context, userPK string, profile json.RawMessage) error
}
