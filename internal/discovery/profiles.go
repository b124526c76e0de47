package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/scrape"
)

// registry data keys of the two profile variants.
const (
	dataKeyMySkyProfile = "profileIndex"
	dataKeySkyIDProfile = "profile"
)

// FetchProfiles refreshes the cached profile snapshots of all known users.
func (s *Service) FetchProfiles(ctx context.Context) (int64, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	units := make([]scrape.Unit, 0, len(users))
	for i := range users {
		user := users[i]
		units = append(units, scrape.Unit{
			UserPK: user.UserPK,
			Run: func(ctx context.Context) (int64, error) {
				return s.fetchProfiles(ctx, &user)
			},
		})
	}

	return s.runner.Settle(ctx, model.EventFetchProfilesError, "fetchUserProfiles", units), nil
}

// fetchProfiles fetches both profile variants for one user. Returns how many
// snapshots were updated.
func (s *Service) fetchProfiles(ctx context.Context, user *model.User) (int64, error) {
	var found int64

	n, err := s.fetchMySkyProfile(ctx, user)
	if err != nil {
		return found, err
	}
	found += n

	n, err = s.fetchSkyIDProfile(ctx, user)
	if err != nil {
		return found, err
	}
	return found + n, nil
}

// fetchMySkyProfile conditionally downloads the MySky profile index and
// persists it when it genuinely advanced.
func (s *Service) fetchMySkyProfile(ctx context.Context, user *model.User) (int64, error) {
	path := fmt.Sprintf("%s/%s.json", s.profileDomain, dataKeyMySkyProfile)
	if err := s.gate.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := s.portal.GetJSON(ctx, user.UserPK, path, user.CachedLinks[path])
	if err != nil {
		return 0, err
	}
	if resp.Cached || resp.Data == nil {
		return 0, nil
	}

	// An update must append to the history log; anything else is suspect.
	current := historyLogLen(user.MySkyProfile)
	if current > 0 && historyLogLen(resp.Data) <= current {
		return 0, errors.New("received profile update with incorrect history log")
	}

	// The store replaces the whole fingerprint map, so the new entry is merged
	// into the current one here. Clobbering it would force every category to
	// re-download its index and pages next cycle.
	links := make(map[string]string, len(user.CachedLinks)+1)
	for k, v := range user.CachedLinks {
		links[k] = v
	}
	links[path] = resp.Fingerprint

	if err := s.users.UpdateMySkyProfile(ctx, user.UserPK, resp.Data, links); err != nil {
		return 0, err
	}
	user.MySkyProfile = resp.Data
	user.CachedLinks = links
	return 1, nil
}

// fetchSkyIDProfile reads the legacy registry-based profile: the registry
// entry holds a file reference whose content is the profile JSON.
func (s *Service) fetchSkyIDProfile(ctx context.Context, user *model.User) (int64, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return 0, err
	}
	entry, err := s.portal.GetRegistryEntry(ctx, user.UserPK, dataKeySkyIDProfile)
	if err != nil {
		return 0, err
	}
	if entry == nil || len(entry.Data) == 0 {
		return 0, nil
	}

	if err := s.gate.Wait(ctx); err != nil {
		return 0, err
	}
	content, err := s.portal.GetFileContent(ctx, string(entry.Data))
	if err != nil {
		return 0, err
	}
	if len(content) == 0 || !json.Valid(content) {
		return 0, nil
	}
	if bytes.Equal(content, user.SkyIDProfile) {
		return 0, nil
	}

	if err := s.users.UpdateSkyIDProfile(ctx, user.UserPK, content); err != nil {
		return 0, err
	}
	user.SkyIDProfile = content
	return 1, nil
}

func historyLogLen(profile json.RawMessage) int {
	if len(profile) == 0 {
		return 0
	}
	var idx struct {
		HistoryLog []json.RawMessage `json:"historyLog"`
	}
	if err := json.Unmarshal(profile, &idx); err != nil {
		return 0
	}
	return len(idx.HistoryLog)
}
