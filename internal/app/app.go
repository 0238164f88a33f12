// Package app wires the loader: object stores, table log backend, table
// writer, source configuration and the ingestion orchestrator.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"lake-loader/internal/config"
	internaldb "lake-loader/internal/db"
	"lake-loader/internal/db/repository"
	"lake-loader/internal/domain"
	"lake-loader/internal/lakehouse"
	"lake-loader/internal/service/ingestion"
	"lake-loader/internal/service/tablewriter"
	"lake-loader/internal/sources"
	"lake-loader/internal/storage/objectstore"
)

// NewLogger returns the process logger: JSON in production, text otherwise.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Deps holds what the caller provides.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// Stores overrides the object-store registry built from Cfg.
	Stores *objectstore.Registry
}

// App holds the fully wired loader.
type App struct {
	Sources      *sources.Holder
	Stores       *objectstore.Registry
	Table        *lakehouse.Table
	Writer       *tablewriter.Writer
	Orchestrator *ingestion.Orchestrator

	metaDB *sql.DB
}

// SourceLoader returns the LoadFunc described by cfg: the YAML file named by
// SourcesConfig, or a single source built from TablePath and its companions.
func SourceLoader(cfg *config.Config) (sources.LoadFunc, error) {
	if err := cfg.ValidateSources(); err != nil {
		return nil, domain.ErrConfig(err, "sources")
	}
	if cfg.SingleSource() {
		return func() (*domain.Snapshot, error) {
			return sources.Single(cfg.SourceBucket, cfg.SourcePrefix, cfg.TablePath, strings.Join(cfg.Partitions, ","))
		}, nil
	}
	path := cfg.SourcesConfig
	return func() (*domain.Snapshot, error) { return sources.LoadFile(path) }, nil
}

// StoreConfig maps loader settings to object-store settings.
func StoreConfig(cfg *config.Config) objectstore.Config {
	return objectstore.Config{
		S3: objectstore.S3Config{
			Region:   cfg.Storage.Region,
			KeyID:    cfg.Storage.KeyID,
			Secret:   cfg.Storage.Secret,
			Endpoint: cfg.Storage.Endpoint,
			URLStyle: cfg.Storage.URLStyle,
		},
		GCSKeyFile: cfg.Storage.GCSKeyFile,
		Azure: objectstore.AzureConfig{
			AccountName: cfg.Storage.AzureAccountName,
			AccountKey:  cfg.Storage.AzureAccountKey,
		},
	}
}

// New wires the loader from deps. Configuration errors are returned as
// *domain.ConfigError and are fatal to startup.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	load, err := SourceLoader(cfg)
	if err != nil {
		return nil, err
	}
	holder, err := sources.NewHolder(load, logger)
	if err != nil {
		return nil, err
	}

	stores := deps.Stores
	if stores == nil {
		stores = objectstore.NewRegistry(StoreConfig(cfg))
	}

	a := &App{Sources: holder, Stores: stores}
	a.Table, a.metaDB, err = OpenTable(ctx, cfg, stores)
	if err != nil {
		return nil, err
	}

	a.Writer = tablewriter.New(a.Table, tablewriter.Options{
		MaxAttempts:   cfg.CommitMaxAttempts,
		CommitTimeout: cfg.CommitTimeout,
	}, logger)

	fetchStore, err := sourceStore(ctx, cfg, stores)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Orchestrator = ingestion.New(holder, objectstore.NewFetcher(fetchStore), a.Writer, ingestion.Options{
		Concurrency: cfg.Concurrency,
		AckTimeout:  cfg.AckTimeout,
	}, logger)

	logger.Info("loader wired",
		"sources", len(holder.Snapshot().Sources),
		"table_log", cfg.TableLog,
		"concurrency", cfg.Concurrency,
	)
	return a, nil
}

// OpenTable opens table storage over stores with the commit log backend
// selected by cfg.TableLog. The returned database is non-nil for the SQLite
// backend and must be closed by the caller.
func OpenTable(ctx context.Context, cfg *config.Config, stores *objectstore.Registry) (*lakehouse.Table, *sql.DB, error) {
	artifacts := lakehouse.NewArtifactWriter(stores)
	if cfg.TableLog != config.TableLogSQLite {
		return lakehouse.NewTable(artifacts, lakehouse.NewObjectLog(stores)), nil, nil
	}
	db, err := internaldb.OpenCommitLog(ctx, cfg.MetaDBPath)
	if err != nil {
		return nil, nil, domain.ErrFatal(err, "open commit log %s", cfg.MetaDBPath)
	}
	return lakehouse.NewTable(artifacts, repository.NewTableCommitRepo(db)), db, nil
}

// sourceStore returns the store source objects are fetched from: the local
// SourceRoot when set, S3 (or an S3-compatible endpoint) otherwise.
func sourceStore(ctx context.Context, cfg *config.Config, stores *objectstore.Registry) (objectstore.Store, error) {
	if cfg.SourceRoot != "" {
		return objectstore.NewLocalStore(cfg.SourceRoot), nil
	}
	return stores.Store(ctx, objectstore.SchemeS3)
}

// Close releases the commit log database, if one was opened.
func (a *App) Close() error {
	if a.metaDB == nil {
		return nil
	}
	err := a.metaDB.Close()
	a.metaDB = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close commit log: %w", err)
	}
	return nil
}

// ReceiveWait returns the long-poll wait configured by cfg.
func ReceiveWait(cfg *config.Config) time.Duration {
	return time.Duration(cfg.WaitSeconds) * time.Second
}
