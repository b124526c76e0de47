// Command scraper runs the content-network scraper: the periodic sync crons
// and the HTTP discovery front door.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skynetlabs/content-scraper/internal/config"
	"github.com/skynetlabs/content-scraper/internal/discovery"
	"github.com/skynetlabs/content-scraper/internal/migrate"
	"github.com/skynetlabs/content-scraper/internal/model"
	"github.com/skynetlabs/content-scraper/internal/portal"
	"github.com/skynetlabs/content-scraper/internal/repository/postgres"
	"github.com/skynetlabs/content-scraper/internal/scheduler"
	"github.com/skynetlabs/content-scraper/internal/scrape"
	"github.com/skynetlabs/content-scraper/internal/server"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the scheduler and
// the HTTP API.
func main() {
	cfg, err := config.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("portal", cfg.PortalURL),
		zap.String("addr", cfg.ListenAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	entryRepo := postgres.NewEntryRepo(db)
	eventRepo := postgres.NewEventRepo(db)

	// Bootstrap users, best-effort.
	for _, pk := range cfg.SeedUserPKs {
		if _, err := userRepo.Upsert(ctx, pk, false); err != nil {
			logger.Warn("seed user", zap.String("userPK", pk), zap.Error(err))
		}
	}

	// Portal client and engine
	pc := portal.NewHTTPClient(cfg.PortalURL, cfg.PortalJWT, 30*time.Second)
	gate := scrape.NewRateGate(cfg.RequestLimit, cfg.RequestWindow)
	engine := scrape.NewEngine(pc, userRepo, entryRepo, eventRepo, gate, scrape.NewBackoff(), logger)

	specs := scrape.Specs(cfg.ContentDomain, cfg.FeedDomain)
	disc := discovery.New(pc, userRepo, eventRepo, engine, gate, specs,
		cfg.ContentDomain, cfg.ProfileDomain, logger)

	// Scheduler
	sched := scheduler.New(logger, eventRepo)
	disabled := map[model.Category]bool{
		model.CategoryNewContent:   cfg.DisableFetchNewContent,
		model.CategoryInteractions: cfg.DisableFetchInteractions,
		model.CategoryPosts:        cfg.DisableFetchPosts,
		model.CategoryComments:     cfg.DisableFetchComments,
	}
	for _, spec := range specs {
		if disabled[spec.Category] {
			continue
		}
		spec := spec
		sched.Add(scheduler.Job{
			Name:     "fetch_" + string(spec.Category),
			Interval: cfg.ScrapeInterval,
			Run: func(ctx context.Context) (int64, error) {
				return engine.SyncAll(ctx, spec, "")
			},
		})
	}
	if !cfg.DisableFetchSkapps {
		sched.Add(scheduler.Job{
			Name:     "fetch_skapps",
			Interval: cfg.SkappsInterval,
			Run:      disc.FetchSkapps,
		})
	}
	if !cfg.DisableFetchProfiles {
		sched.Add(scheduler.Job{
			Name:     "fetch_user_profiles",
			Interval: cfg.ProfilesInterval,
			Run:      disc.FetchProfiles,
		})
	}

	go sched.Start(ctx)

	// HTTP front door
	srv := server.New(logger, disc, cfg.UserScrapeCooldown)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe(ctx, cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
