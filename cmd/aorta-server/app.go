package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/config"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/appointment"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/ingest"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/pipeline"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/analysis"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/db"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// app holds the backends selected by the configuration.
type app struct {
	pool         *pgxpool.Pool
	appointments appointment.Repository
	tracker      *pipeline.Service
	ingest       *ingest.Service
	dest         storage.Location

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.SecretManagerProject != "" && cfg.StorageBackend == "minio" && cfg.MinioSecretKey == "" {
		sm, err := config.NewSecretManager(ctx)
		if err != nil {
			return nil, err
		}
		err = cfg.ResolveSecrets(ctx, sm)
		sm.Close()
		if err != nil {
			return nil, err
		}
	}

	if cfg.NeedsDatabase() {
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		logger.Info().Msg("connected to database")
	}

	switch cfg.RecordStore {
	case "postgres":
		a.appointments = appointment.NewRepoPG(a.pool)
	default:
		a.appointments = appointment.NewInMemoryRepository()
	}

	var statuses pipeline.Repository
	switch cfg.StatusStore {
	case "postgres":
		statuses = pipeline.NewRepoPG(a.pool)
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		statuses = pipeline.NewRepoFirestore(client)
	default:
		statuses = pipeline.NewInMemoryRepository()
	}

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}
	a.dest = storage.Root(backend).Child(cfg.StorageBucket + "/")

	a.tracker = pipeline.NewService(statuses, a.appointments, logger)

	var opts []ingest.Option
	if cfg.DumpVolumes {
		opts = append(opts, ingest.WithVolumeDump())
	}
	trigger, err := newTrigger(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.ingest = ingest.NewService(a.appointments, a.tracker, trigger, a.dest, logger, opts...)

	ok = true
	return a, nil
}

// newBackend returns the configured object store and, for clients holding
// connections, its close function.
func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func() error, error) {
	switch cfg.StorageBackend {
	case "minio":
		b, err := storage.NewMinioBackend(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Secure:    cfg.MinioSecure,
		})
		return b, nil, err
	case "gcs":
		b, err := storage.NewGCSBackend(ctx, cfg.GCSEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "local":
		return storage.NewOSBackend(cfg.LocalStorageRoot), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func newTrigger(cfg *config.Config, logger zerolog.Logger) (analysis.Trigger, error) {
	if cfg.AnalysisURL == "" {
		return analysis.Noop{Logger: logger}, nil
	}
	params, err := cfg.AnalysisParamMap()
	if err != nil {
		return nil, err
	}
	return analysis.NewClient(cfg.AnalysisURL, cfg.AnalysisTimeout, logger, analysis.WithParams(params)), nil
}
