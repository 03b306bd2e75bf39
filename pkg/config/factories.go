package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/mediasync/internal/logger"
	remoteS3 "github.com/marmos91/mediasync/pkg/remote/s3"
	"github.com/marmos91/mediasync/pkg/store/record"
	recordBadger "github.com/marmos91/mediasync/pkg/store/record/badger"
	recordMemory "github.com/marmos91/mediasync/pkg/store/record/memory"
)

// CreateRecordStore creates a record store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "badger": Uses pkg/store/record/badger (BadgerDB storage, persistent)
//   - "memory": Uses pkg/store/record/memory (in-memory storage, ephemeral)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Record store configuration
//
// Returns:
//   - record.Store: Initialized record store
//   - error: Configuration or initialization error
func CreateRecordStore(ctx context.Context, cfg *StoreConfig) (record.Store, error) {
	switch cfg.Type {
	case "badger":
		return createBadgerRecordStore(ctx, cfg.Badger)
	case "memory":
		return recordMemory.NewMemoryRecordStore(), nil
	default:
		return nil, fmt.Errorf("unknown record store type: %q (supported: badger, memory)", cfg.Type)
	}
}

// createBadgerRecordStore creates a BadgerDB-based persistent record store.
func createBadgerRecordStore(ctx context.Context, options map[string]any) (record.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type BadgerRecordStoreOptions struct {
		DBPath string `mapstructure:"db_path"`
	}

	var storeOpts BadgerRecordStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger record store options: %w", err)
	}

	if storeOpts.DBPath == "" {
		return nil, fmt.Errorf("badger record store: db_path is required")
	}

	store, err := recordBadger.NewBadgerRecordStore(ctx, recordBadger.BadgerRecordStoreConfig{
		DBPath: storeOpts.DBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger record store: %w", err)
	}

	logger.Info("Badger record store initialized: path=%s", storeOpts.DBPath)

	return store, nil
}

// CreateRemoteSource creates a remote media source based on configuration.
//
// Supported types:
//   - "s3": Uses pkg/remote/s3 (Amazon S3 or compatible storage)
//
// The returned source implements both remote.ListingSource and
// remote.ArtifactSource.
func CreateRemoteSource(ctx context.Context, cfg *RemoteConfig) (*remoteS3.Source, error) {
	switch cfg.Type {
	case "s3":
		return createS3RemoteSource(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown remote source type: %q (supported: s3)", cfg.Type)
	}
}

// createS3RemoteSource creates an S3-backed remote media source.
func createS3RemoteSource(ctx context.Context, options map[string]any) (*remoteS3.Source, error) {
	var sourceCfg remoteS3.Config
	if err := mapstructure.Decode(options, &sourceCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 remote source config: %w", err)
	}

	source, err := remoteS3.New(ctx, sourceCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 remote source: %w", err)
	}

	logger.Info("S3 remote source initialized: bucket=%s, region=%s, prefix=%s",
		sourceCfg.Bucket, sourceCfg.Region, sourceCfg.KeyPrefix)

	return source, nil
}
