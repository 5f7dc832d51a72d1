package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/mailer"
	"github.com/vietanh2810/certcheck-api/internal/render"
	"github.com/vietanh2810/certcheck-api/internal/repository"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

type testRepos struct {
	events       *repository.EventRepository
	templates    *repository.TemplateRepository
	certificates *repository.CertificateRepository
	checkins     *repository.CheckinRepository
	users        *repository.UserRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, dao.InitTables(db))

	return testRepos{
		events:       repository.NewEventRepository(dao.NewEventDAO(db)),
		templates:    repository.NewTemplateRepository(dao.NewTemplateDAO(db)),
		certificates: repository.NewCertificateRepository(dao.NewCertificateDAO(db)),
		checkins:     repository.NewCheckinRepository(dao.NewCheckinDAO(db)),
		users:        repository.NewUserRepository(dao.NewUserDAO(db)),
	}
}

func date(s string) time.Time {
	t, _ := time.Parse(domain.DayKeyLayout, s)
	return t
}

// seedEvent creates an event spanning [from, to] with the named participants.
func seedEvent(t *testing.T, repos testRepos, ownerID uint, from, to string, names ...string) (domain.Event, []domain.Registration) {
	t.Helper()
	ctx := context.Background()

	event, err := repos.events.Create(ctx, domain.Event{
		OwnerID:    ownerID,
		Name:       "Go Meetup",
		DateRanges: []domain.DateRange{{Start: date(from), End: date(to)}},
	})
	require.NoError(t, err)

	var regs []domain.Registration
	for _, name := range names {
		reg, err := repos.events.CreateRegistration(ctx, domain.Registration{
			OwnerID: ownerID,
			EventID: event.ID,
			Name:    name,
			Email:   name + "@example.com",
			Answers: map[string]string{"team": "team-" + name},
		})
		require.NoError(t, err)
		regs = append(regs, reg)
	}

	return event, regs
}

var errStoreDown = errors.New("object store unavailable")

type putCall struct {
	path      string
	overwrite bool
}

// fakeStore keeps objects in memory. failPut, when set, decides per call
// whether the put fails.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []putCall
	failPut func(call putCall) bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, path string, data []byte, overwrite bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := putCall{path: path, overwrite: overwrite}
	s.calls = append(s.calls, call)
	if s.failPut != nil && s.failPut(call) {
		return "", errStoreDown
	}
	if _, exists := s.objects[path]; exists && !overwrite {
		return "", errors.New("object already exists")
	}
	s.objects[path] = append([]byte(nil), data...)
	return "https://cdn.test/" + path, nil
}

type countingRenderer struct {
	Renderer
	mu       sync.Mutex
	payloads []string
}

func (r *countingRenderer) Render(ctx context.Context, tpl domain.Template, fields render.FieldResolver, qrPayload string) ([]byte, error) {
	r.mu.Lock()
	r.payloads = append(r.payloads, qrPayload)
	r.mu.Unlock()
	return r.Renderer.Render(ctx, tpl, fields, qrPayload)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}
