// Package gcs stores artifacts in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	artifacts "github.com/vietanh2810/certcheck-api/internal/storage"
)

const (
	publicHost           = "https://storage.googleapis.com"
	defaultSignedExpiry  = 7 * 24 * time.Hour
	defaultStartTimeout  = 30 * time.Second
	contentTypeCertImage = "image/png"
)

type Store struct {
	promRegistry    prometheus.Registerer
	logger          *zap.Logger
	metrics         *artifacts.Metrics
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
	publicURLBase   string
	signedExpiry    time.Duration
}

type OptionFunc func(*Store)

func WithBucket(bucket string) OptionFunc {
	return func(s *Store) {
		s.bucketName = bucket
	}
}

func WithPrefix(prefix string) OptionFunc {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

func WithCredentialsFile(path string) OptionFunc {
	return func(s *Store) {
		s.credentialsFile = path
	}
}

// WithPublicURLBase serves URLs from a CDN or public bucket endpoint instead
// of signing them.
func WithPublicURLBase(base string) OptionFunc {
	return func(s *Store) {
		s.publicURLBase = base
	}
}

// WithSignedURLs makes URL return V4 signed URLs valid for expiry.
func WithSignedURLs(expiry time.Duration) OptionFunc {
	return func(s *Store) {
		if expiry <= 0 {
			expiry = defaultSignedExpiry
		}
		s.signedExpiry = expiry
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) OptionFunc {
	return func(s *Store) {
		s.promRegistry = registry
	}
}

// New expects location as "gcs://<bucket>[/prefix]".
func New(location string, opts ...OptionFunc) (*Store, error) {
	rest, ok := strings.CutPrefix(location, "gcs://")
	if !ok || rest == "" {
		return nil, errors.New("gcs: bucket not set (expected 'gcs://<bucket>[/prefix]')")
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	return NewWithOptions(append([]OptionFunc{WithBucket(bucket), WithPrefix(prefix)}, opts...)...)
}

func NewWithOptions(opts ...OptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.bucketName == "" {
		return nil, errors.New("gcs: bucket not set")
	}
	return s, nil
}

// Start opens the client; it must be called before any other operation.
func (s *Store) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultStartTimeout)
	defer cancel()

	var clientOpts []option.ClientOption
	if s.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("gcs: failed in creating storage client: %w", err)
	}
	s.client = client
	s.bucket = client.Bucket(s.bucketName)
	s.metrics = artifacts.NewMetrics(s.promRegistry, "gcs")
	return nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.bucket = nil
	return err
}

func (s *Store) objectName(p string) (string, error) {
	p, err := artifacts.CleanPath(p)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return p, nil
	}
	return s.prefix + "/" + p, nil
}

func (s *Store) Put(ctx context.Context, path string, data []byte, overwrite bool) (string, error) {
	if s.bucket == nil {
		return "", artifacts.ErrStoreClosed
	}
	name, err := s.objectName(path)
	if err != nil {
		return "", err
	}
	obj := s.bucket.Object(name)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentTypeCertImage
	_, err = io.Copy(w, bytes.NewReader(data))
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	s.metrics.Observe("put", len(data), err)
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusPreconditionFailed {
			return "", artifacts.ErrObjectExists
		}
		s.logger.Error("gcs put failed", zap.String("object", name), zap.Error(err))
		return "", fmt.Errorf("gcs put %q: %w", name, err)
	}
	s.logger.Debug("gcs put ok", zap.String("object", name), zap.Int("bytes", len(data)))
	return s.URL(ctx, path)
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if s.bucket == nil {
		return nil, artifacts.ErrStoreClosed
	}
	name, err := s.objectName(path)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		s.metrics.Observe("get", 0, err)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, artifacts.ErrObjectNotFound
		}
		return nil, fmt.Errorf("gcs get %q: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	s.metrics.Observe("get", len(data), err)
	if err != nil {
		return nil, fmt.Errorf("gcs read %q: %w", name, err)
	}
	return data, nil
}

func (s *Store) URL(ctx context.Context, path string) (string, error) {
	name, err := s.objectName(path)
	if err != nil {
		return "", err
	}
	if s.publicURLBase != "" {
		return artifacts.JoinURL(s.publicURLBase, name), nil
	}
	if s.signedExpiry > 0 {
		if s.bucket == nil {
			return "", artifacts.ErrStoreClosed
		}
		url, err := s.bucket.SignedURL(name, &storage.SignedURLOptions{
			Method:  http.MethodGet,
			Expires: time.Now().Add(s.signedExpiry),
			Scheme:  storage.SigningSchemeV4,
		})
		if err != nil {
			return "", fmt.Errorf("gcs sign %q: %w", name, err)
		}
		return url, nil
	}
	return artifacts.JoinURL(publicHost, s.bucketName+"/"+name), nil
}
