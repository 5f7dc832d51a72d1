package api

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/config"
	"github.com/vietanh2810/certcheck-api/internal/storage"
	"github.com/vietanh2810/certcheck-api/internal/storage/badger"
	"github.com/vietanh2810/certcheck-api/internal/storage/gcs"
	"github.com/vietanh2810/certcheck-api/internal/storage/s3"
)

type artifactStore interface {
	storage.ArtifactStore
	Close() error
}

// openArtifactStore builds the configured backend. Badger URLs point back at
// this API's /artifacts route, so apiBaseURL is used when no public base is
// configured.
func openArtifactStore(ctx context.Context, conf *config.StorageConfig, apiBaseURL string, reg prometheus.Registerer) (artifactStore, error) {
	logger := zap.L().With(zap.String("component", "artifact_store"), zap.String("backend", conf.Backend))

	switch conf.Backend {
	case config.StorageGCS:
		opts := []gcs.OptionFunc{
			gcs.WithBucket(conf.Bucket),
			gcs.WithPrefix(conf.Prefix),
			gcs.WithCredentialsFile(conf.CredentialsFile),
			gcs.WithLogger(logger),
			gcs.WithPromRegistry(reg),
		}
		switch {
		case conf.PublicURLBase != "":
			opts = append(opts, gcs.WithPublicURLBase(conf.PublicURLBase))
		case conf.SignedURLExpiry > 0:
			opts = append(opts, gcs.WithSignedURLs(conf.SignedURLExpiry))
		}
		store, err := gcs.NewWithOptions(opts...)
		if err != nil {
			return nil, fmt.Errorf("gcs.NewWithOptions -> %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("store.Start -> %w", err)
		}
		return store, nil

	case config.StorageS3:
		opts := []s3.OptionFunc{
			s3.WithBucket(conf.Bucket),
			s3.WithPrefix(conf.Prefix),
			s3.WithRegion(conf.Region),
			s3.WithEndpoint(conf.Endpoint),
			s3.WithLogger(logger),
			s3.WithPromRegistry(reg),
		}
		switch {
		case conf.PublicURLBase != "":
			opts = append(opts, s3.WithPublicURLBase(conf.PublicURLBase))
		case conf.SignedURLExpiry > 0:
			opts = append(opts, s3.WithSignedURLs(conf.SignedURLExpiry))
		}
		store, err := s3.NewWithOptions(opts...)
		if err != nil {
			return nil, fmt.Errorf("s3.NewWithOptions -> %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("store.Start -> %w", err)
		}
		return store, nil

	case config.StorageBadger:
		base := conf.PublicURLBase
		if base == "" {
			base = apiBaseURL
		}
		store, err := badger.New(
			badger.WithDataDir(conf.DataDir),
			badger.WithPublicURLBase(base),
			badger.WithLogger(logger),
			badger.WithPromRegistry(reg),
		)
		if err != nil {
			return nil, fmt.Errorf("badger.New -> %w", err)
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", conf.Backend)
}
