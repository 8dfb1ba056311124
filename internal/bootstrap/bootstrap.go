// Package bootstrap provides dependency initialization for the media compiler.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/media-compiler/internal/config"
	"github.com/maauso/media-compiler/internal/engine"
	"github.com/maauso/media-compiler/internal/export"
	"github.com/maauso/media-compiler/internal/intake"
	"github.com/maauso/media-compiler/internal/media"
	"github.com/maauso/media-compiler/internal/progress"
	"github.com/maauso/media-compiler/internal/session"
	"github.com/maauso/media-compiler/internal/storage"
)

// Dependencies holds all initialized dependencies for the server and the CLI.
type Dependencies struct {
	Session      *session.Session
	Intake       *intake.Service
	Orchestrator *export.Orchestrator
	Loader       *engine.Loader
	Progress     *progress.Hub
	History      export.History
	Store        storage.Storage
}

// Option adjusts how dependencies are built.
type Option func(*options)

type options struct {
	factory  engine.Factory
	reporter progress.Reporter
}

// WithEngineFactory replaces the ffmpeg engine factory.
func WithEngineFactory(f engine.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithReporter adds a progress reporter next to the hub.
func WithReporter(r progress.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := session.ParsePolicy(cfg.SessionPolicy)
	if err != nil {
		return nil, err
	}

	// Initialize output storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Engine is created lazily on the first export
	factory := o.factory
	if factory == nil {
		factory = engine.FFmpegFactory(cfg.FFmpegPath, filepath.Join(cfg.TempDir, "engine"))
	}
	loader := engine.NewLoader(factory, logger)

	sess := session.New(policy)
	hub := progress.NewHub()
	history := export.NewMemoryHistory(cfg.HistorySize)

	var reporter progress.Reporter = hub
	if o.reporter != nil {
		extra := o.reporter
		reporter = progress.ReporterFunc(func(e progress.Event) {
			hub.Report(e)
			extra.Report(e)
		})
	}

	normalizer := media.NewImageNormalizer(
		media.WithJPEGQuality(cfg.JPEGQuality),
		media.WithMaxPixels(cfg.MaxImagePixels),
	)
	in := intake.NewService(sess, normalizer, logger,
		intake.WithTargetSize(cfg.TargetWidth, cfg.TargetHeight),
	)

	orch := export.NewOrchestrator(sess, loader, store, logger,
		export.WithReporter(reporter),
		export.WithMonotonic(cfg.ProgressMonotonic),
		export.WithTimeout(cfg.ExportTimeout),
		export.WithHistory(history),
	)

	logger.Info("dependencies initialized",
		slog.String("session_policy", string(policy)),
		slog.Int("target_width", cfg.TargetWidth),
		slog.Int("target_height", cfg.TargetHeight),
	)

	return &Dependencies{
		Session:      sess,
		Intake:       in,
		Orchestrator: orch,
		Loader:       loader,
		Progress:     hub,
		History:      history,
		Store:        store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	if cfg.MinIOEnabled() {
		minioStore, err := storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			Bucket:    cfg.MinIOBucket,
			Region:    cfg.MinIORegion,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create MinIO storage: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("prepare MinIO bucket: %w", err)
		}
		logger.Info("MinIO storage configured",
			slog.String("endpoint", cfg.MinIOEndpoint),
			slog.String("bucket", cfg.MinIOBucket),
		)
		return minioStore, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}
