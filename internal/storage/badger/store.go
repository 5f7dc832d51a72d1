// Package badger keeps artifacts in an embedded badger database. It serves
// single-node deployments and tests; URLs point at the API's /artifacts route.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/storage"
)

const keyPrefix = "artifact/"

type Store struct {
	promRegistry  prometheus.Registerer
	db            *badger.DB
	logger        *zap.Logger
	metrics       *storage.Metrics
	gcTicker      *time.Ticker
	gcStopCh      chan struct{}
	gcWg          sync.WaitGroup
	dataDir       string
	publicURLBase string
}

type OptionFunc func(*Store)

// WithDataDir selects the on-disk location; empty keeps everything in memory.
func WithDataDir(dir string) OptionFunc {
	return func(s *Store) {
		s.dataDir = dir
	}
}

func WithPublicURLBase(base string) OptionFunc {
	return func(s *Store) {
		s.publicURLBase = base
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

func New(opts ...OptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(s.dataDir, "artifacts"))
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(s.logger)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badger.Open -> %w", err)
	}
	s.db = db
	s.metrics = storage.NewMetrics(s.promRegistry, "badger")

	if s.dataDir != "" {
		s.gcTicker = time.NewTicker(5 * time.Minute)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.valueLogGC(s.gcTicker, s.gcStopCh)
	}
	return s, nil
}

func (s *Store) valueLogGC(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("artifact store GC failure", zap.Error(err))
				}
				break
			}
		case <-stop:
			return
		}
	}
}

func (s *Store) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Put(ctx context.Context, path string, data []byte, overwrite bool) (string, error) {
	if s.db == nil {
		return "", storage.ErrStoreClosed
	}
	p, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if !overwrite {
			_, err := txn.Get(key(p))
			if err == nil {
				return storage.ErrObjectExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(key(p), data)
	})
	s.metrics.Observe("put", len(data), err)
	if err != nil {
		return "", fmt.Errorf("s.db.Update -> %w", err)
	}
	return s.URL(ctx, p)
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStoreClosed
	}
	p, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(p))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrObjectNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	s.metrics.Observe("get", len(data), err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) URL(ctx context.Context, path string) (string, error) {
	p, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	return storage.JoinURL(s.publicURLBase, "artifacts/"+p), nil
}

func key(p string) []byte {
	return []byte(keyPrefix + p)
}

// badgerLogger adapts zap to badger's logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{logger: logger.Sugar().With("component", "artifact_store")}
}

func (l *badgerLogger) Errorf(msg string, args ...any)   { l.logger.Errorf(msg, args...) }
func (l *badgerLogger) Warningf(msg string, args ...any) { l.logger.Warnf(msg, args...) }
func (l *badgerLogger) Infof(msg string, args ...any)    { l.logger.Infof(msg, args...) }
func (l *badgerLogger) Debugf(msg string, args ...any)   { l.logger.Debugf(msg, args...) }
