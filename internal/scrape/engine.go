package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/portal"
	"github.com/skynetlabs/content-scraper/internal/repository"
)

// Engine is the category sync engine. For every (user, skapp, category) unit
// it determines which pages are new, downloads and normalizes them, inserts
// the entries and advances the stored cursor through the state merger.
type Engine struct {
	portal  portal.Client
	users   repository.UserRepository
	entries repository.EntryRepository
	merger  *Merger
	gate    Gate
	backoff *Backoff
	runner  *Runner
	log     *zap.Logger
	now     func() time.Time
}

// NewEngine constructs the sync engine with all collaborators injected.
func NewEngine(
	pc portal.Client,
	users repository.UserRepository,
	entries repository.EntryRepository,
	events repository.EventRepository,
	gate Gate,
	backoff *Backoff,
	log *zap.Logger,
) *Engine {
	return &Engine{
		portal:  pc,
		users:   users,
		entries: entries,
		merger:  NewMerger(users),
		gate:    gate,
		backoff: backoff,
		runner:  NewRunner(events, log),
		log:     log,
		now:     time.Now,
	}
}

// logContext returns the iteration context string recorded on failure events.
func logContext(cat model.Category) string {
	switch cat {
	case model.CategoryNewContent:
		return "fetchNewContent"
	case model.CategoryInteractions:
		return "fetchInteractions"
	case model.CategoryPosts:
		return "fetchPosts"
	case model.CategoryComments:
		return "fetchComments"
	default:
		return "fetch"
	}
}

// SyncAll fans one category's sync out over all (user, skapp) pairs. When
// userPK is non-empty only that user is synced and the probabilistic skip is
// bypassed, which is what the on-demand scrape endpoint relies on.
func (e *Engine) SyncAll(ctx context.Context, spec CategorySpec, userPK string) (int64, error) {
	var users []model.User
	force := userPK != ""
	if force {
		u, err := e.users.Get(ctx, userPK)
		if err != nil {
			return 0, err
		}
		users = []model.User{*u}
	} else {
		var err error
		users, err = e.users.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("list users: %w", err)
		}
	}

	var units []Unit
	for i := range users {
		user := users[i]
		for _, skapp := range user.Skapps {
			cursor := user.SyncState.Cursor(spec.Category, skapp)
			if !force && !e.backoff.ShouldRun(cursor.EmptyRuns) {
				continue
			}
			skapp := skapp
			units = append(units, Unit{
				UserPK: user.UserPK,
				Skapp:  skapp,
				Run: func(ctx context.Context) (int64, error) {
					return e.SyncCategory(ctx, &user, spec, skapp)
				},
			})
		}
	}

	return e.runner.Settle(ctx, model.FetchErrorEvent(spec.Category), logContext(spec.Category), units), nil
}

// SyncCategory runs one (user, skapp, category) unit:
//
//  1. conditionally fetch the index; cached or absent means nothing to do
//  2. re-fetch every superseded page in full
//  3. fetch the target page from the stored offset
//  4. bulk-insert whatever accumulated and persist cursor and fingerprints
//     through the merger
//
// The stored cursor never moves backwards; an upstream index that regressed
// behind it is treated as zero new entries.
func (e *Engine) SyncCategory(ctx context.Context, user *model.User, spec CategorySpec, skapp string) (int64, error) {
	userPK := user.UserPK
	cursor := user.SyncState.Cursor(spec.Category, skapp)

	indexPath := IndexPath(spec.Namespace, skapp, spec.Category)
	if err := e.gate.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := e.portal.GetJSON(ctx, userPK, indexPath, user.CachedLinks[indexPath])
	if err != nil {
		return 0, err
	}
	if resp.Cached || resp.Data == nil {
		return 0, nil // no file found or no changes since last download
	}

	var index model.Index
	if err := json.Unmarshal(resp.Data, &index); err != nil {
		return 0, fmt.Errorf("decode index %s: %w", indexPath, err)
	}

	target := model.Cursor{CurrPage: index.CurrPageNumber, CurrOffset: index.CurrPageNumEntries}
	if target.Behind(cursor) {
		// Upstream went backwards; do not rewind.
		e.log.Warn("index regressed",
			zap.String("userPK", userPK),
			zap.String("skapp", skapp),
			zap.String("category", string(spec.Category)),
			zap.Int64("storedPage", cursor.CurrPage),
			zap.Int64("indexPage", index.CurrPageNumber),
		)
		return 0, nil
	}

	links := map[string]string{indexPath: resp.Fingerprint}
	var batch []model.ContentEntry

	// Superseded pages are re-fetched in full.
	for p := cursor.CurrPage; p < index.CurrPageNumber; p++ {
		path := PagePath(spec.Namespace, skapp, spec.Category, p)
		entries, _, err := e.downloadEntries(ctx, userPK, spec, skapp, path, user.CachedLinks[path], 0)
		if err != nil {
			return 0, err
		}
		batch = append(batch, entries...)
	}

	// The stored offset only applies when the target page is the page the
	// cursor already sat on; a newly started page is read from the top.
	var offset int64
	if cursor.CurrPage == index.CurrPageNumber {
		offset = cursor.CurrOffset
	}
	currPagePath := PagePath(spec.Namespace, skapp, spec.Category, index.CurrPageNumber)
	entries, pageFingerprint, err := e.downloadEntries(ctx, userPK, spec, skapp, currPagePath, user.CachedLinks[currPagePath], offset)
	if err != nil {
		return 0, err
	}
	batch = append(batch, entries...)
	links[currPagePath] = pageFingerprint

	var added int64
	emptyRuns := cursor.EmptyRuns + 1
	if len(batch) > 0 {
		emptyRuns = 0
		added, err = e.entries.InsertBatch(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("insert batch: %w", err)
		}
	}

	err = e.merger.MergeAndPersist(ctx, userPK, StateUpdate{
		Category: spec.Category,
		Skapp:    skapp,
		Cursor: model.Cursor{
			CurrPage:   index.CurrPageNumber,
			CurrOffset: index.CurrPageNumEntries,
			EmptyRuns:  emptyRuns,
		},
		Links: links,
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// downloadEntries fetches one page and normalizes its items from offset on.
// A cached or absent page yields no entries and no error.
func (e *Engine) downloadEntries(
	ctx context.Context,
	userPK string,
	spec CategorySpec,
	skapp, path, cachedFingerprint string,
	offset int64,
) ([]model.ContentEntry, string, error) {
	if err := e.gate.Wait(ctx); err != nil {
		return nil, "", err
	}
	resp, err := e.portal.GetJSON(ctx, userPK, path, cachedFingerprint)
	if err != nil {
		return nil, "", err
	}
	if resp.Cached || resp.Data == nil {
		return nil, resp.Fingerprint, nil
	}

	page, err := ParsePage(resp.Data)
	if err != nil {
		return nil, "", fmt.Errorf("decode page %s: %w", path, err)
	}
	return NormalizeEntries(page, spec, userPK, skapp, offset, e.now()), resp.Fingerprint, nil
}
