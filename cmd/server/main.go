package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohamedBounakhla/marketcore/internal/adapter/cache"
	"github.com/mohamedBounakhla/marketcore/internal/adapter/in_memory"
	"github.com/mohamedBounakhla/marketcore/internal/adapter/pg"
	httpapi "github.com/mohamedBounakhla/marketcore/internal/api/http"
	"github.com/mohamedBounakhla/marketcore/internal/config"
	"github.com/mohamedBounakhla/marketcore/internal/core"
	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/eventbus"
	"github.com/mohamedBounakhla/marketcore/internal/ids"
	"github.com/mohamedBounakhla/marketcore/internal/marketdata"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

var log = logrus.New()

func main() {
	ctx := context.Background()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	symbols := domain.NewSymbolRegistry(domain.BTCUSD, domain.ETHUSD, domain.EURUSD)
	supplier := ids.New()

	var repo port.Repository
	if cfg.DatabaseURL != "" {
		pgRepo, err := pg.NewPgRepo(ctx, cfg.DatabaseURL, symbols)
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		defer pgRepo.Close(ctx)
		repo = pgRepo
		log.Info("using Postgres repository")
	} else {
		repo = in_memory.NewMemoryRepo()
		log.Warn("no database_url configured, using in-memory repository")
	}

	var depthCache port.DepthCache
	if cfg.Redis.Addr != "" {
		depthCache = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ParsedTTL)
		log.Info("using redis depth cache")
	} else {
		depthCache = in_memory.NewCache()
	}

	bus := eventbus.New(cfg.EventBuffer)
	defer bus.Close()

	ledger := core.NewLedger(supplier, cfg.ParsedTTL)
	books := core.NewBooks(supplier)
	orch := core.NewOrchestrator(books, ledger, bus, supplier, repo, depthCache)
	prices := marketdata.NewTracker(bus)

	go runSweeps(cfg, ledger, books)

	server := httpapi.NewHTTPServer(orch, symbols, prices)
	log.Infof("starting HTTP server on %s", cfg.HTTPAddr)
	if err := server.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

// runSweeps periodically drops expired reservations and prunes terminal
// orders still sitting in a book. Both passes use the same locks as the
// primary operations.
func runSweeps(cfg *config.Config, ledger *core.Ledger, books *core.Books) {
	sweep := time.NewTicker(cfg.ParsedSweep)
	cleanup := time.NewTicker(cfg.ParsedCleanup)
	defer sweep.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-sweep.C:
			if n := ledger.SweepExpired(time.Now()); n > 0 {
				log.WithField("count", n).Info("swept expired reservations")
			}
		case <-cleanup.C:
			if n := books.CleanupInactiveOrders(); n > 0 {
				log.WithField("count", n).Info("pruned inactive orders")
			}
		}
	}
}
