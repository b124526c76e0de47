package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/scrape"
)

// FetchSkapps scrapes every known user's skapp dictionary and grows their
// skapp lists with newly seen applications.
func (s *Service) FetchSkapps(ctx context.Context) (int64, error) {
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
				return s.fetchNewSkapps(ctx, &user)
			},
		})
	}

	return s.runner.Settle(ctx, model.EventFetchSkappsError, "fetchSkapps", units), nil
}

// fetchNewSkapps downloads the user's skapp dictionary and adopts every
// unseen skapp whose newcontent index actually exists. Probing the index
// first avoids a stream of timed-out calls in the category crons later.
func (s *Service) fetchNewSkapps(ctx context.Context, user *model.User) (int64, error) {
	path := scrape.SkappsPath(s.contentDomain)
	if err := s.gate.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := s.portal.GetJSON(ctx, user.UserPK, path, "")
	if err != nil {
		return 0, err
	}
	if resp.Data == nil {
		return 0, nil
	}

	var dict map[string]bool
	if err := json.Unmarshal(resp.Data, &dict); err != nil {
		return 0, fmt.Errorf("decode skapp dict: %w", err)
	}

	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)

	var added int64
	skapps := user.Skapps
	for _, skapp := range names {
		if user.HasSkapp(skapp) {
			continue
		}

		indexPath := scrape.IndexPath(s.contentDomain, skapp, model.CategoryNewContent)
		if err := s.gate.Wait(ctx); err != nil {
			return added, err
		}
		probe, err := s.portal.GetJSON(ctx, user.UserPK, indexPath, "")
		if err != nil || probe.Data == nil {
			s.log.Info("skipping skapp, index probe failed",
				zap.String("userPK", user.UserPK),
				zap.String("skapp", skapp),
				zap.Error(err),
			)
			continue
		}

		skapps = append(skapps, skapp)
		added++
	}

	if added > 0 {
		if err := s.users.UpdateSkapps(ctx, user.UserPK, skapps); err != nil {
			return 0, err
		}
		user.Skapps = skapps
	}
	return added, nil
}
