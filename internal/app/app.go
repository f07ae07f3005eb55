// Package app wires the configured components shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/russtat/internal/catalog"
	"github.com/timmy/russtat/internal/config"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/repository"
	"github.com/timmy/russtat/internal/sdmx"
	"github.com/timmy/russtat/internal/service"
	"github.com/timmy/russtat/internal/source/fedstat"
	"github.com/timmy/russtat/internal/storage"
	"gorm.io/gorm"
)

// App holds the initialized components.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *gorm.DB
	Storage  storage.ObjectStorage
	Portal   *fedstat.Adapter
	Catalog  *catalog.Store
	Parser   *sdmx.Parser
	Datasets *repository.DatasetRepository
	Runs     *repository.RunRepository
	Fetch    *service.FetchService
}

// New initializes storage, the database and the services from cfg.
// Remote buckets are created when missing.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if s3s, ok := objectStorage.(*storage.S3Storage); ok {
		if err := s3s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	portal := fedstat.NewAdapter(fedstat.Config{
		CatalogURL:     cfg.Portal.CatalogURL,
		ConnectTimeout: cfg.Portal.ConnectTimeout,
		ReadTimeout:    cfg.Portal.ReadTimeout,
		UserAgent:      cfg.Portal.UserAgent,
	})

	parser := sdmx.NewParser(cfg.Parser.TimestampOffset).WithLogger(log)
	runs := repository.NewRunRepository(db)

	return &App{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Storage: objectStorage,
		Portal:  portal,
		Catalog: catalog.NewStore(portal, objectStorage, catalog.Options{
			SnapshotKey: cfg.Cache.CatalogKey,
			XMLOnly:     cfg.Cache.XMLOnly,
		}),
		Parser:   parser,
		Datasets: repository.NewDatasetRepository(db),
		Runs:     runs,
		Fetch: service.NewFetchService(portal, objectStorage, parser, runs, log, &service.FetchConfig{
			Workers: cfg.Fetch.Workers,
		}),
	}, nil
}

// Policy returns the configured cache policy.
func (a *App) Policy() service.CachePolicy {
	f := a.Config.Fetch
	return service.CachePolicy{
		LoadFromCache:          f.LoadFromCache,
		SaveToCache:            f.SaveToCache,
		Overwrite:              f.Overwrite,
		DeleteSourceAfterParse: f.DeleteSourceAfterParse,
	}
}

// Close releases the database connection pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
