package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/errs"
	"github.com/skynetlabs/content-scraper/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUserDiscovery upserts the given user and, when requested or when the
// user is new, runs a full on-demand scrape. A per-user cooldown guards
// against being spammed with scrape requests.
func (s *Server) handleUserDiscovery(w http.ResponseWriter, r *http.Request) {
	userPK := r.URL.Query().Get("userPK")
	if userPK == "" {
		writeError(w, http.StatusBadRequest, "parameter 'userPK' not found")
		return
	}
	if !model.IsValidUserPK(userPK) {
		writeError(w, http.StatusBadRequest, "parameter 'userPK' is not a valid public key")
		return
	}

	scrapeReq := r.URL.Query().Get("scrape") != ""
	if scrapeReq {
		if _, hot := s.cooldown.Get(userPK); hot {
			writeError(w, http.StatusTooManyRequests, "given 'userPK' was scraped recently")
			return
		}
		s.cooldown.Set(userPK, true, gocache.DefaultExpiration)
		s.log.Info("scraping user", zap.String("userPK", userPK))
	}

	discovered, err := s.disc.Discover(r.Context(), userPK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to discover user: "+err.Error())
		return
	}

	// Known user and no explicit scrape request: nothing else to do.
	if !discovered && !scrapeReq {
		writeJSON(w, http.StatusAccepted, map[string]bool{"scraped": false, "discovered": false})
		return
	}

	user, err := s.disc.ScrapeUser(r.Context(), userPK)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.log.Warn("user scrape failed", zap.String("userPK", userPK), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error occurred while scraping user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

type userResponse struct {
	UserPK       string            `json:"userPK"`
	Skapps       []string          `json:"skapps"`
	SyncState    model.SyncState   `json:"syncState"`
	CachedLinks  map[string]string `json:"cachedLinks"`
	MySkyProfile json.RawMessage   `json:"mySkyProfile,omitempty"`
	SkyIDProfile json.RawMessage   `json:"skyIDProfile,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	DiscoveredAt *time.Time        `json:"discoveredAt,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		UserPK:       u.UserPK,
		Skapps:       u.Skapps,
		SyncState:    u.SyncState,
		CachedLinks:  u.CachedLinks,
		MySkyProfile: u.MySkyProfile,
		SkyIDProfile: u.SkyIDProfile,
		CreatedAt:    u.CreatedAt,
		DiscoveredAt: u.DiscoveredAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
