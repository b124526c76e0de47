package scrape

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/skynetlabs/content-scraper/internal/errs"
	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/portal"
	"github.com/skynetlabs/content-scraper/internal/repository"
)

// fakePortal serves canned responses keyed by resource path and emulates the
// conditional-fetch contract: a matching cached fingerprint yields Cached=true.
type fakePortal struct {
	mu        sync.Mutex
	responses map[string]portal.JSONResponse
	errs      map[string]error
	calls     []string
}

var _ portal.Client = (*fakePortal)(nil)

func newFakePortal() *fakePortal {
	return &fakePortal{
		responses: make(map[string]portal.JSONResponse),
		errs:      make(map[string]error),
	}
}

func (f *fakePortal) set(path, fingerprint, body string) {
	f.responses[path] = portal.JSONResponse{Data: []byte(body), Fingerprint: fingerprint}
}

func (f *fakePortal) GetJSON(_ context.Context, _, path, cachedFingerprint string) (portal.JSONResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if err := f.errs[path]; err != nil {
		return portal.JSONResponse{}, err
	}
	resp, ok := f.responses[path]
	if !ok {
		return portal.JSONResponse{}, nil // not found
	}
	if resp.Fingerprint != "" && resp.Fingerprint == cachedFingerprint {
		return portal.JSONResponse{Fingerprint: resp.Fingerprint, Cached: true}, nil
	}
	return resp, nil
}

func (f *fakePortal) GetRegistryEntry(context.Context, string, string) (*portal.RegistryEntry, error) {
	return nil, nil
}

func (f *fakePortal) GetFileContent(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (f *fakePortal) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeUserRepo keeps user documents in memory and hands out deep copies, so
// stale snapshots behave like they would against a real store.
type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*model.User
	stateWrites int
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.UserPK] = u
	}
	return r
}

func copyUser(u *model.User) *model.User {
	cp := *u
	cp.Skapps = append([]string(nil), u.Skapps...)
	cp.SyncState = make(model.SyncState, len(u.SyncState))
	for cat, m := range u.SyncState {
		mm := make(map[string]model.Cursor, len(m))
		for k, v := range m {
			mm[k] = v
		}
		cp.SyncState[cat] = mm
	}
	cp.CachedLinks = make(map[string]string, len(u.CachedLinks))
	for k, v := range u.CachedLinks {
		cp.CachedLinks[k] = v
	}
	return &cp
}

func (r *fakeUserRepo) Upsert(_ context.Context, userPK string, _ bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userPK]; ok {
		return false, nil
	}
	r.users[userPK] = &model.User{
		UserPK:      userPK,
		SyncState:   make(model.SyncState),
		CachedLinks: make(map[string]string),
		CreatedAt:   time.Now(),
	}
	return true, nil
}

func (r *fakeUserRepo) Get(_ context.Context, userPK string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userPK]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *fakeUserRepo) List(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *copyUser(u))
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateSkapps(_ context.Context, userPK string, skapps []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userPK]; ok {
		u.Skapps = append([]string(nil), skapps...)
	}
	return nil
}

func (r *fakeUserRepo) UpdateSyncState(_ context.Context, userPK string, state model.SyncState, links map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateWrites++
	u, ok := r.users[userPK]
	if !ok {
		return errs.ErrNotFound
	}
	cp := copyUser(&model.User{UserPK: userPK, SyncState: state, CachedLinks: links})
	u.SyncState = cp.SyncState
	u.CachedLinks = cp.CachedLinks
	return nil
}

func (r *fakeUserRepo) UpdateMySkyProfile(_ context.Context, userPK string, profile json.RawMessage, links map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userPK]; ok {
		u.MySkyProfile = profile
		// replaces the whole map, like the real store
		u.CachedLinks = make(map[string]string, len(links))
		for k, v := range links {
			u.CachedLinks[k] = v
		}
	}
	return nil
}

func (r *fakeUserRepo) UpdateSkyIDProfile(_ context.Context, userPK string, profile json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userPK]; ok {
		u.SkyIDProfile = profile
	}
	return nil
}

func (r *fakeUserRepo) current(userPK string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.users[userPK])
}

// fakeEntryRepo mimics the unique-identifier constraint of the real store.
type fakeEntryRepo struct {
	mu          sync.Mutex
	inserted    []model.ContentEntry
	identifiers map[string]bool
}

var _ repository.EntryRepository = (*fakeEntryRepo)(nil)

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{identifiers: make(map[string]bool)}
}

func (r *fakeEntryRepo) InsertBatch(_ context.Context, entries []model.ContentEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var added int64
	for _, e := range entries {
		if r.identifiers[e.Identifier] {
			continue
		}
		r.identifiers[e.Identifier] = true
		r.inserted = append(r.inserted, e)
		added++
	}
	return added, nil
}

func (r *fakeEntryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

// fakeEventRepo records inserted events.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

var _ repository.EventRepository = (*fakeEventRepo)(nil)

func (r *fakeEventRepo) Insert(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeEventRepo) byType(t model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// fakeGate admits everything and counts admissions.
type fakeGate struct {
	mu    sync.Mutex
	waits int
}

func (g *fakeGate) Wait(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waits++
	return nil
}
