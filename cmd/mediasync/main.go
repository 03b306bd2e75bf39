package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/mediasync/internal/logger"
	"github.com/marmos91/mediasync/pkg/cache"
	"github.com/marmos91/mediasync/pkg/config"
	"github.com/marmos91/mediasync/pkg/fetch"
	"github.com/marmos91/mediasync/pkg/media"
	"github.com/marmos91/mediasync/pkg/store/record"
	mediasync "github.com/marmos91/mediasync/pkg/sync"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/mediasync/config.yaml)")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	rootPath := flag.String("root", "", "Remote folder to sync (empty = whole account)")
	interval := flag.Duration("interval", 0, "Re-sync interval (0 = sync once and exit)")
	flag.Parse()

	// "dump-config" prints the effective configuration and exits, so a user
	// can bootstrap a config file from the defaults.
	if flag.Arg(0) == "dump-config" {
		if err := dumpConfig(*configPath); err != nil {
			log.Fatalf("Failed to dump config: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the config file
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("mediasync - remote media replica")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Account: %s", cfg.Account)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := config.CreateRecordStore(ctx, &cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create record store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Record store close error: %v", err)
		}
	}()

	source, err := config.CreateRemoteSource(ctx, &cfg.Remote)
	if err != nil {
		log.Fatalf("Failed to create remote source: %v", err)
	}

	diskCache, err := cache.New(cfg.Cache.Path, cfg.Cache.MaxBytes)
	if err != nil {
		log.Fatalf("Failed to create artifact cache: %v", err)
	}
	logger.Info("Artifact cache: path=%s, budget=%d bytes", cfg.Cache.Path, cfg.Cache.MaxBytes)

	account := media.Account(cfg.Account)
	scope := media.Scope{Account: account, RootPath: *rootPath}

	coordinator := mediasync.NewCoordinator(store, source, cfg.Sync.SearchLimit)
	favorites := mediasync.NewFavoriteSynchronizer(store, source)
	fetcher := fetch.NewFetcher(account, store, diskCache, source, cfg.Cache.ThumbMemoryBytes)
	paginator := mediasync.NewPaginator(store, cfg.Sync.PageSize)

	runPass := func() {
		if err := syncPass(ctx, coordinator, favorites, diskCache, scope); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Sync pass failed: %v", err)
			return
		}
		warmThumbnails(ctx, paginator, fetcher, scope)
	}

	runPass()

	if *interval <= 0 {
		logger.Info("Single sync pass complete")
		return
	}

	// Wait for interrupt signal, re-syncing on each tick
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("Syncing every %v. Press Ctrl+C to stop.", *interval)

	for {
		select {
		case <-ticker.C:
			runPass()
		case <-sigChan:
			logger.Info("Shutdown signal received, stopping...")
			cancel()
			return
		}
	}
}

// syncPass runs one full synchronization round: listing reconciliation,
// favorite synchronization, and a cache sweep.
func syncPass(ctx context.Context, coordinator *mediasync.Coordinator, favorites *mediasync.FavoriteSynchronizer, diskCache *cache.DiskCache, scope media.Scope) error {
	start := time.Now()

	changes, err := coordinator.Sync(ctx, scope)
	if err != nil {
		return err
	}
	logger.Info("Sync complete in %v: %d added, %d updated, %d deleted",
		time.Since(start), len(changes.Added), len(changes.Updated), len(changes.Deleted))

	set, cleared, err := favorites.SyncFavorites(ctx, scope.Account)
	if err != nil {
		return err
	}
	if set > 0 || cleared > 0 {
		logger.Info("Favorites reconciled: %d set, %d cleared", set, cleared)
	}

	// Cached artifacts for deleted records are unreachable; drop them now
	// instead of waiting for eviction.
	for _, rec := range changes.Deleted {
		if err := diskCache.DeleteRecord(string(rec.ID)); err != nil {
			logger.Warn("Cache cleanup for %s: %v", rec.ID, err)
		}
	}

	stats, err := diskCache.SweepIfOverBudget(ctx)
	if err != nil {
		logger.Warn("Cache sweep: %v", err)
	} else if stats.DeletedFiles > 0 {
		logger.Info("Cache sweep: evicted %d files (%d bytes)", stats.DeletedFiles, stats.DeletedBytes)
	}

	return nil
}

// warmThumbnails pre-fills the thumbnail caches for the first display
// page, one concurrent fetch per record, the way a gallery fills its
// visible cells.
func warmThumbnails(ctx context.Context, paginator *mediasync.Paginator, fetcher *fetch.Fetcher, scope media.Scope) {
	page, _, err := paginator.Page(ctx, record.DisplayQuery(scope), nil)
	if err != nil {
		logger.Warn("Thumbnail warmup listing: %v", err)
		return
	}

	var wg sync.WaitGroup
	for i := range page {
		rec := page[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fetcher.FetchAndCacheThumbnail(ctx, rec.ID, rec.ETag); err != nil {
				logger.Debug("Thumbnail warmup for %s: %v", rec.ID, err)
			}
		}()
	}
	wg.Wait()

	logger.Info("Thumbnail warmup: %d records", len(page))
}

// dumpConfig prints the effective configuration as YAML. With no config
// file it prints the defaults.
func dumpConfig(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Account is required to validate; fall back to pure defaults so
		// dump-config works on a fresh machine.
		cfg = config.GetDefaultConfig()
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
