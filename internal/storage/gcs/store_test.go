package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	artifacts "github.com/vietanh2810/certcheck-api/internal/storage"
)

func TestNewParsesLocation(t *testing.T) {
	s, err := New("gcs://certs-bucket/prod")
	require.NoError(t, err)
	assert.Equal(t, "certs-bucket", s.bucketName)
	assert.Equal(t, "prod", s.prefix)

	_, err = New("gcs://")
	assert.Error(t, err)
	_, err = New("s3://bucket")
	assert.Error(t, err)
}

func TestURLWithoutClient(t *testing.T) {
	s, err := New("gcs://certs-bucket/prod")
	require.NoError(t, err)

	url, err := s.URL(context.Background(), "7/certificates/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/certs-bucket/prod/7/certificates/1/a.png", url)

	s.publicURLBase = "https://cdn.example.com"
	url, err = s.URL(context.Background(), "7/certificates/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/prod/7/certificates/1/a.png", url)
}

func TestOperationsBeforeStart(t *testing.T) {
	s, err := New("gcs://certs-bucket")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "a.png", []byte("x"), true)
	assert.ErrorIs(t, err, artifacts.ErrStoreClosed)
	_, err = s.Get(context.Background(), "a.png")
	assert.ErrorIs(t, err, artifacts.ErrStoreClosed)
	assert.NoError(t, s.Close())
}
