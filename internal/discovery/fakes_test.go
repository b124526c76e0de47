package discovery

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

const testUserPK = "f301891b7e41b107beefe91a133d6efa8c7b0dfe0f5e39650c34b8311c365d39"

type fakePortal struct {
	responses map[string]portal.JSONResponse
	registry  map[string]*portal.RegistryEntry
	files     map[string][]byte
}

var _ portal.Client = (*fakePortal)(nil)

func newFakePortal() *fakePortal {
	return &fakePortal{
		responses: make(map[string]portal.JSONResponse),
		registry:  make(map[string]*portal.RegistryEntry),
		files:     make(map[string][]byte),
	}
}

func (f *fakePortal) set(path, fingerprint, body string) {
	f.responses[path] = portal.JSONResponse{Data: []byte(body), Fingerprint: fingerprint}
}

func (f *fakePortal) GetJSON(_ context.Context, _, path, cachedFingerprint string) (portal.JSONResponse, error) {
	resp, ok := f.responses[path]
	if !ok {
		return portal.JSONResponse{}, nil
	}
	if resp.Fingerprint != "" && resp.Fingerprint == cachedFingerprint {
		return portal.JSONResponse{Fingerprint: resp.Fingerprint, Cached: true}, nil
	}
	return resp, nil
}

func (f *fakePortal) GetRegistryEntry(_ context.Context, _, dataKey string) (*portal.RegistryEntry, error) {
	return f.registry[dataKey], nil
}

func (f *fakePortal) GetFileContent(_ context.Context, reference string) ([]byte, error) {
	return f.files[reference], nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.UserPK] = u
	}
	return r
}

func (r *fakeUserRepo) Upsert(_ context.Context, userPK string, _ bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !model.IsValidUserPK(userPK) {
		return false, errs.ErrInvalidUserPK
	}
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
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) List(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
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
	if u, ok := r.users[userPK]; ok {
		u.SyncState = state
		u.CachedLinks = links
	}
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

type fakeEventRepo struct {
	mu     sync.Mutex
	events []model.Event
}

var _ repository.EventRepository = (*fakeEventRepo)(nil)

func (r *fakeEventRepo) Insert(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

type fakeGate struct{}

func (fakeGate) Wait(context.Context) error { return nil }
