// Package scanner turns a camera feed into badge check-ins.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

const DefaultInterval = 500 * time.Millisecond

var (
	ErrAlreadyStarted = errors.New("scanner session already started")
	ErrNotStarted     = errors.New("scanner session not started")
)

type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateCheckingIn State = "checking_in"
	StateCheckedIn  State = "checked_in"
	StateError      State = "error"
)

type Snapshot struct {
	State           State  `json:"state"`
	Message         string `json:"message,omitempty"`
	ParticipantName string `json:"participant_name,omitempty"`
	DayLabel        string `json:"day_label,omitempty"`
}

type Decoder interface {
	Decode(img image.Image) (string, error)
}

type BadgeResolver interface {
	ResolveBadge(ctx context.Context, ownerID uint, payload string) (domain.BadgeInfo, error)
}

// CheckinWriter is the absolute-set side of the check-in service. The scanner
// never toggles, so a re-scan cannot undo a check-in.
type CheckinWriter interface {
	SetStatus(ctx context.Context, target service.CheckinTarget, status domain.CheckinStatus, actor uint, notes string) (domain.CheckinRecord, error)
}

type Config struct {
	OwnerID uint
	EventID uint
	// Actor is the authenticated organizer performing check-ins; zero means
	// nobody is signed in and every scan fails with an auth error.
	Actor uint
	// Day selects the ledger day; empty lets the event pick today's bucket.
	Day      domain.DayKey
	Interval time.Duration
}

type Deps struct {
	Camera   Camera
	Decoder  Decoder
	Badges   BadgeResolver
	Checkins CheckinWriter
}

type Session struct {
	cfg  Config
	deps Deps

	mu          sync.Mutex
	snap        Snapshot
	lastPayload string
	observers   []func(Snapshot)

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
}

func NewSession(cfg Config, deps Deps) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Session{
		cfg:  cfg,
		deps: deps,
		snap: Snapshot{State: StateIdle},
	}
}

// OnChange registers fn to receive every state change. fn runs on the
// sampling goroutine and must not block.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Start opens the preferred camera and runs the sampling loop until Close or
// until ctx ends. The camera is released whichever way the loop exits.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.group != nil {
		return ErrAlreadyStarted
	}

	devices, err := s.deps.Camera.Devices(ctx)
	if err != nil {
		return fmt.Errorf("s.deps.Camera.Devices -> %w", err)
	}
	device, _ := SelectDevice(devices)
	src, err := s.deps.Camera.Open(ctx, device)
	if err != nil {
		return fmt.Errorf("s.deps.Camera.Open -> %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(loopCtx)
	group.Go(func() error {
		defer func() {
			if err := src.Close(); err != nil {
				zap.L().Warn("closing frame source", zap.Error(err))
			}
		}()
		return s.run(groupCtx, src)
	})
	s.cancel = cancel
	s.group = group

	zap.L().Info("scanner started",
		zap.Uint("event_id", s.cfg.EventID),
		zap.String("device", device.Label),
		zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Close stops sampling, waits for an in-flight frame to finish and resets the
// session. It is safe to call more than once.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.group == nil {
		return nil
	}

	s.cancel()
	err := s.group.Wait()
	s.group = nil
	s.cancel = nil
	s.Reset()

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSourceClosed) {
		return nil
	}
	return err
}

// Reset forgets the last payload and returns to idle. The ledger is untouched.
func (s *Session) Reset() {
	s.mu.Lock()
	s.lastPayload = ""
	s.mu.Unlock()
	s.set(Snapshot{State: StateIdle})
}

func (s *Session) run(ctx context.Context, src FrameSource) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// processed inline: ticks that fire meanwhile are dropped by the
			// ticker, never queued
			if err := s.sample(ctx, src); err != nil {
				return err
			}
		}
	}
}

func (s *Session) sample(ctx context.Context, src FrameSource) error {
	img, err := src.Grab(ctx)
	switch {
	case errors.Is(err, ErrNoFrame):
		return nil
	case errors.Is(err, ErrSourceClosed):
		return err
	case err != nil:
		zap.L().Debug("frame grab failed", zap.Error(err))
		return nil
	}

	payload, err := s.deps.Decoder.Decode(img)
	if err != nil || payload == "" {
		return nil
	}
	s.handle(ctx, payload)
	return nil
}

// handle runs one payload through resolve and check-in. A payload equal to the
// last processed one is ignored until Reset or an error clears it.
func (s *Session) handle(ctx context.Context, payload string) {
	s.mu.Lock()
	if payload == s.lastPayload {
		s.mu.Unlock()
		return
	}
	s.lastPayload = payload
	s.mu.Unlock()

	s.set(Snapshot{State: StateScanning, Message: "Reading badge"})

	badge, err := s.deps.Badges.ResolveBadge(ctx, s.cfg.OwnerID, payload)
	if err != nil {
		s.fail(payload, err)
		return
	}
	if s.cfg.Actor == 0 {
		s.fail(payload, domain.NewAuthError("no authenticated actor for check-in"))
		return
	}
	if badge.EventID != s.cfg.EventID {
		s.fail(payload, domain.NewValidationError("badge of %s belongs to another event", badge.ParticipantName))
		return
	}

	s.set(Snapshot{State: StateCheckingIn, ParticipantName: badge.ParticipantName, Message: "Checking in"})

	record, err := s.deps.Checkins.SetStatus(ctx, service.CheckinTarget{
		OwnerID:        s.cfg.OwnerID,
		EventID:        s.cfg.EventID,
		RegistrationID: badge.RegistrationID,
		Day:            s.cfg.Day,
		UseDefaultDay:  s.cfg.Day.IsCollective(),
	}, domain.CheckinDone, s.cfg.Actor, "badge scan")
	if err != nil {
		s.fail(payload, err)
		return
	}

	s.set(Snapshot{
		State:           StateCheckedIn,
		ParticipantName: badge.ParticipantName,
		DayLabel:        record.DayLabel,
		Message:         fmt.Sprintf("%s checked in", badge.ParticipantName),
	})
}

func (s *Session) fail(payload string, err error) {
	s.mu.Lock()
	if s.lastPayload == payload {
		s.lastPayload = ""
	}
	s.mu.Unlock()

	zap.L().Warn("badge scan failed",
		zap.Uint("event_id", s.cfg.EventID),
		zap.String("payload", payload),
		zap.Error(err))
	s.set(Snapshot{State: StateError, Message: Describe(err)})
}

func (s *Session) set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	observers := append(([]func(Snapshot))(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// Describe turns a scan failure into a message for the person holding the
// scanner.
func Describe(err error) string {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return "Badge not recognized"
	case domain.KindAuth:
		return "Sign in to check participants in"
	case domain.KindValidation:
		var e *domain.Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "Badge cannot be used here"
	case domain.KindTransientStorage:
		return "Could not save the check-in, try again"
	}
	return "Check-in failed, try again"
}
