// Package discovery handles user discovery, skapp discovery and the
// best-effort profile snapshot fetchers.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/portal"
	"github.com/skynetlabs/content-scraper/internal/repository"
	"github.com/skynetlabs/content-scraper/internal/scrape"
)

// Service wires discovery operations over the portal and the store.
type Service struct {
	portal portal.Client
	users  repository.UserRepository
	events repository.EventRepository
	engine *scrape.Engine
	runner *scrape.Runner
	gate   scrape.Gate

	specs         []scrape.CategorySpec
	contentDomain string
	profileDomain string

	log *zap.Logger
}

// New constructs the discovery service.
func New(
	pc portal.Client,
	users repository.UserRepository,
	events repository.EventRepository,
	engine *scrape.Engine,
	gate scrape.Gate,
	specs []scrape.CategorySpec,
	contentDomain, profileDomain string,
	log *zap.Logger,
) *Service {
	return &Service{
		portal:        pc,
		users:         users,
		events:        events,
		engine:        engine,
		runner:        scrape.NewRunner(events, log),
		gate:          gate,
		specs:         specs,
		contentDomain: contentDomain,
		profileDomain: profileDomain,
		log:           log,
	}
}

// Discover upserts the user and reports whether it was previously unknown.
// First sightings are recorded in the event log.
func (s *Service) Discover(ctx context.Context, userPK string) (bool, error) {
	discovered, err := s.users.Upsert(ctx, userPK, true)
	if err != nil {
		return false, err
	}
	if discovered {
		s.log.Info("discovered user", zap.String("userPK", userPK))
		meta, _ := json.Marshal(map[string]string{"userPK": userPK})
		scrape.TryLogEvent(ctx, s.events, s.log, model.Event{
			Type:     model.EventUserDiscovered,
			Context:  "userdiscovery",
			Metadata: meta,
		})
	}
	return discovered, nil
}

// ScrapeUser runs a full on-demand scrape of one user: profiles, skapps,
// then every category. It returns the refreshed user document.
func (s *Service) ScrapeUser(ctx context.Context, userPK string) (*model.User, error) {
	user, err := s.users.Get(ctx, userPK)
	if err != nil {
		return nil, err
	}

	if found, err := s.fetchProfiles(ctx, user); err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	} else if found > 0 {
		s.log.Info("found profile updates", zap.String("userPK", userPK), zap.Int64("found", found))
	}

	if added, err := s.fetchNewSkapps(ctx, user); err != nil {
		return nil, fmt.Errorf("fetch skapps: %w", err)
	} else if added > 0 {
		s.log.Info("found new skapps", zap.String("userPK", userPK), zap.Int64("added", added))
	}

	for _, cat := range []model.Category{
		model.CategoryPosts,
		model.CategoryComments,
		model.CategoryNewContent,
		model.CategoryInteractions,
	} {
		spec, ok := s.spec(cat)
		if !ok {
			continue
		}
		added, err := s.engine.SyncAll(ctx, spec, userPK)
		if err != nil {
			return nil, fmt.Errorf("sync %s: %w", cat, err)
		}
		if added > 0 {
			s.log.Info("found new entries",
				zap.String("userPK", userPK),
				zap.String("category", string(cat)),
				zap.Int64("added", added),
			)
		}
	}

	return s.users.Get(ctx, userPK)
}

func (s *Service) spec(cat model.Category) (scrape.CategorySpec, bool) {
	for _, sp := range s.specs {
		if sp.Category == cat {
			return sp, true
		}
	}
	return scrape.CategorySpec{}, false
}
