// Package s3 stores artifacts in an S3 (or S3-compatible) bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	artifacts "github.com/vietanh2810/certcheck-api/internal/storage"
)

const defaultTimeout = 60 * time.Second

type Store struct {
	promRegistry  prometheus.Registerer
	logger        *zap.Logger
	metrics       *artifacts.Metrics
	client        *s3.Client
	presign       *s3.PresignClient
	bucket        string
	prefix        string
	region        string
	endpoint      string
	publicURLBase string
	presignExpiry time.Duration
	timeout       time.Duration
}

type OptionFunc func(*Store)

func WithBucket(bucket string) OptionFunc {
	return func(s *Store) {
		s.bucket = bucket
	}
}

func WithPrefix(prefix string) OptionFunc {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

func WithRegion(region string) OptionFunc {
	return func(s *Store) {
		s.region = region
	}
}

// WithEndpoint points the client at an S3-compatible service such as minio.
func WithEndpoint(endpoint string) OptionFunc {
	return func(s *Store) {
		s.endpoint = endpoint
	}
}

func WithPublicURLBase(base string) OptionFunc {
	return func(s *Store) {
		s.publicURLBase = base
	}
}

// WithSignedURLs makes URL return presigned GET URLs valid for expiry.
func WithSignedURLs(expiry time.Duration) OptionFunc {
	return func(s *Store) {
		s.presignExpiry = expiry
	}
}

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(s *Store) {
		s.timeout = timeout
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

// New expects location as "s3://<bucket>[/prefix]".
func New(location string, opts ...OptionFunc) (*Store, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return nil, errors.New("s3: expected location 's3://<bucket>[/prefix]'")
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, errors.New("s3: bucket not set")
	}
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
	if s.timeout == 0 {
		s.timeout = defaultTimeout
	}
	return s, nil
}

func (s *Store) Start(ctx context.Context) error {
	if s.bucket == "" {
		return errors.New("s3: bucket not set")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("s3: load default AWS config: %w", err)
	}
	if s.region != "" {
		awsCfg.Region = s.region
	}
	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	s.presign = s3.NewPresignClient(s.client)
	s.metrics = artifacts.NewMetrics(s.promRegistry, "s3")
	return nil
}

func (s *Store) Close() error {
	s.client = nil
	s.presign = nil
	return nil
}

func (s *Store) key(p string) (string, error) {
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
	if s.client == nil {
		return "", artifacts.ErrStoreClosed
	}
	key, err := s.key(path)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}
	_, err = s.client.PutObject(ctx, input)
	s.metrics.Observe("put", len(data), err)
	if err != nil {
		if isPreconditionFailed(err) {
			return "", artifacts.ErrObjectExists
		}
		s.logger.Error("s3 put failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("s3 put %q: %w", key, err)
	}
	s.logger.Debug("s3 put ok", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.URL(ctx, path)
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if s.client == nil {
		return nil, artifacts.ErrStoreClosed
	}
	key, err := s.key(path)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.metrics.Observe("get", 0, err)
		if isNotFound(err) {
			return nil, artifacts.ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 get %q: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	s.metrics.Observe("get", len(data), err)
	if err != nil {
		return nil, fmt.Errorf("s3 read %q: %w", key, err)
	}
	return data, nil
}

func (s *Store) URL(ctx context.Context, path string) (string, error) {
	key, err := s.key(path)
	if err != nil {
		return "", err
	}
	if s.publicURLBase != "" {
		return artifacts.JoinURL(s.publicURLBase, key), nil
	}
	if s.presignExpiry > 0 {
		if s.presign == nil {
			return "", artifacts.ErrStoreClosed
		}
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.presignExpiry))
		if err != nil {
			return "", fmt.Errorf("s3 presign %q: %w", key, err)
		}
		return req.URL, nil
	}
	region := s.region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, region, key), nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
