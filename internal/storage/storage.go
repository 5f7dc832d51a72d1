// Package storage defines the artifact store gateway and the pieces shared by
// its backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
	ErrStoreClosed    = errors.New("artifact store is not started")
)

// ArtifactStore holds rendered artifacts. Put without overwrite refuses to
// replace an existing object; with overwrite it replaces the bytes in place and
// the returned URL is unchanged.
type ArtifactStore interface {
	Put(ctx context.Context, path string, data []byte, overwrite bool) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	URL(ctx context.Context, path string) (string, error)
}

// CertificatePath namespaces an artifact under its owner.
func CertificatePath(ownerID, eventID uint, certificateID string) string {
	return fmt.Sprintf("%d/certificates/%d/%s.png", ownerID, eventID, certificateID)
}

// CleanPath rejects traversal and normalizes separators.
func CleanPath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return p, nil
}

// JoinURL appends an object path to a public base URL.
func JoinURL(base, p string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}

const metricNamePrefix = "artifact_store_"

type Metrics struct {
	ops   *prometheus.CounterVec
	bytes *prometheus.CounterVec
	errs  *prometheus.CounterVec
}

// NewMetrics registers the store counters on reg. A nil registry yields
// unregistered counters so callers never need nil checks.
func NewMetrics(reg prometheus.Registerer, backend string) *Metrics {
	labels := prometheus.Labels{"backend": backend}
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        metricNamePrefix + "ops_total",
			Help:        "Total number of artifact store operations",
			ConstLabels: labels,
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        metricNamePrefix + "bytes_total",
			Help:        "Total bytes read/written by artifact store operations",
			ConstLabels: labels,
		}, []string{"op"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        metricNamePrefix + "errors_total",
			Help:        "Total number of failed artifact store operations",
			ConstLabels: labels,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.bytes, m.errs)
	}
	return m
}

func (m *Metrics) Observe(op string, n int, err error) {
	m.ops.WithLabelValues(op).Inc()
	if err != nil {
		m.errs.WithLabelValues(op).Inc()
		return
	}
	m.bytes.WithLabelValues(op).Add(float64(n))
}
