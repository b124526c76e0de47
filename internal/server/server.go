// Package server exposes the HTTP front door: health and on-demand user
// discovery/scraping.
package server

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// Discoverer is the discovery surface the front door exposes.
type Discoverer interface {
	// Discover upserts the user, reporting whether it was previously unknown.
	Discover(ctx context.Context, userPK string) (bool, error)
	// ScrapeUser runs a full on-demand scrape of one user.
	ScrapeUser(ctx context.Context, userPK string) (*model.User, error)
}

// Server wires the discovery service into HTTP handlers.
type Server struct {
	log      *zap.Logger
	disc     Discoverer
	cooldown *gocache.Cache
	mux      *http.ServeMux
}

// New constructs the front door. cooldownTTL bounds how often a single user
// may be scraped on demand.
func New(log *zap.Logger, disc Discoverer, cooldownTTL time.Duration) *Server {
	s := &Server{
		log:      log,
		disc:     disc,
		cooldown: gocache.New(cooldownTTL, 2*cooldownTTL),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /userdiscovery", s.handleUserDiscovery)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.recoverMiddleware(s.loggingMiddleware(s.mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
