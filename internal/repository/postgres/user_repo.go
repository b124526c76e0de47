package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skynetlabs/content-scraper/internal/errs"
	"github.com/skynetlabs/content-scraper/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL. The sync-state and
// fingerprint-cache maps live in JSONB columns so the whole user document can
// be read and merged as one unit.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Upsert inserts the user if unknown; reports whether it was newly inserted.
func (r *UserRepo) Upsert(ctx context.Context, userPK string, discovered bool) (bool, error) {
	if !model.IsValidUserPK(userPK) {
		return false, errs.ErrInvalidUserPK
	}

	var discoveredAt *time.Time
	if discovered {
		now := time.Now()
		discoveredAt = &now
	}
	const q = `
INSERT INTO users (user_pk, skapps, sync_state, cached_links, created_at, discovered_at)
VALUES ($1, '{}', '{}', '{}', now(), $2)
ON CONFLICT (user_pk) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, userPK, discoveredAt)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const userColumns = `user_pk, skapps, sync_state, cached_links, mysky_profile, skyid_profile, created_at, discovered_at`

// Get returns the current user document.
func (r *UserRepo) Get(ctx context.Context, userPK string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE user_pk=$1`
	row := r.db.Pool.QueryRow(ctx, q, userPK)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns all known users, most recently created first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateSkapps replaces the user's skapp list.
func (r *UserRepo) UpdateSkapps(ctx context.Context, userPK string, skapps []string) error {
	const q = `UPDATE users SET skapps=$2 WHERE user_pk=$1`
	_, err := r.db.Pool.Exec(ctx, q, userPK, skapps)
	return err
}

// UpdateSyncState writes the full sync-state and fingerprint-cache maps.
func (r *UserRepo) UpdateSyncState(ctx context.Context, userPK string, state model.SyncState, links map[string]string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal cached links: %w", err)
	}
	const q = `UPDATE users SET sync_state=$2, cached_links=$3 WHERE user_pk=$1`
	_, err = r.db.Pool.Exec(ctx, q, userPK, stateJSON, linksJSON)
	return err
}

// UpdateMySkyProfile stores a new profile snapshot and refreshed fingerprints.
func (r *UserRepo) UpdateMySkyProfile(ctx context.Context, userPK string, profile json.RawMessage, links map[string]string) error {
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal cached links: %w", err)
	}
	const q = `UPDATE users SET mysky_profile=$2, cached_links=$3 WHERE user_pk=$1`
	_, err = r.db.Pool.Exec(ctx, q, userPK, []byte(profile), linksJSON)
	return err
}

// UpdateSkyIDProfile stores a new legacy profile snapshot.
func (r *UserRepo) UpdateSkyIDProfile(ctx context.Context, userPK string, profile json.RawMessage) error {
	const q = `UPDATE users SET skyid_profile=$2 WHERE user_pk=$1`
	_, err := r.db.Pool.Exec(ctx, q, userPK, []byte(profile))
	return err
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u         model.User
		stateJSON []byte
		linksJSON []byte
		mysky     []byte
		skyid     []byte
	)
	if err := row.Scan(
		&u.UserPK, &u.Skapps, &stateJSON, &linksJSON,
		&mysky, &skyid, &u.CreatedAt, &u.DiscoveredAt,
	); err != nil {
		return nil, err
	}

	u.SyncState = make(model.SyncState)
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &u.SyncState); err != nil {
			return nil, fmt.Errorf("unmarshal sync state: %w", err)
		}
	}
	u.CachedLinks = make(map[string]string)
	if len(linksJSON) > 0 {
		if err := json.Unmarshal(linksJSON, &u.CachedLinks); err != nil {
			return nil, fmt.Errorf("unmarshal cached links: %w", err)
		}
	}
	u.MySkyProfile = mysky
	u.SkyIDProfile = skyid
	return &u, nil
}
