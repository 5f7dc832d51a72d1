package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository"
)

type CheckinRepository interface {
	Find(ctx context.Context, ownerID uint, key domain.CheckinKey) (domain.CheckinRecord, error)
	FindByRegistrations(ctx context.Context, ownerID uint, registrationIDs []uint) ([]domain.CheckinRecord, error)
	Mutate(ctx context.Context, ownerID, eventID uint, key domain.CheckinKey, fn repository.CheckinMutation) (domain.CheckinRecord, error)
}

type CheckinEventRepository interface {
	FindByID(ctx context.Context, ownerID, id uint) (domain.Event, error)
	FindRegistration(ctx context.Context, ownerID, id uint) (domain.Registration, error)
}

// CheckinTarget addresses one ledger key inside an owner's event. Day is
// resolved against the event's buckets; empty means the event's default day.
type CheckinTarget struct {
	OwnerID        uint
	EventID        uint
	RegistrationID uint
	Day            domain.DayKey
	UseDefaultDay  bool
}

// CheckinService is the only writer of the check-in ledger. Manual toggles
// and scanner check-ins both go through it.
type CheckinService struct {
	repo        CheckinRepository
	events      CheckinEventRepository
	locks       *keyLock[domain.CheckinKey]
	now         func() time.Time
	transitions *prometheus.CounterVec
}

func NewCheckinService(repo CheckinRepository, events CheckinEventRepository, reg prometheus.Registerer) *CheckinService {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_transitions_total",
		Help: "Check-in ledger writes by operation and resulting status",
	}, []string{"op", "status"})
	if reg != nil {
		reg.MustRegister(transitions)
	}

	return &CheckinService{
		repo:        repo,
		events:      events,
		locks:       newKeyLock[domain.CheckinKey](),
		now:         time.Now,
		transitions: transitions,
	}
}

// Toggle flips the key between undone and done.
func (s *CheckinService) Toggle(ctx context.Context, target CheckinTarget, actor uint) (domain.CheckinRecord, error) {
	bucket, err := s.resolve(ctx, target, actor)
	if err != nil {
		return domain.CheckinRecord{}, err
	}

	return s.write(ctx, target, bucket, "toggle", func(current *domain.CheckinRecord) domain.CheckinRecord {
		if current != nil && current.IsDone() {
			return s.undone(current, bucket)
		}
		return s.done(current, bucket, actor, "")
	})
}

// BulkToggle toggles each registration independently. One failure does not
// stop the others; the returned error is only for problems shared by all ids.
func (s *CheckinService) BulkToggle(ctx context.Context, ownerID, eventID uint, registrationIDs []uint, day domain.DayKey, actor uint) (domain.BulkResult, error) {
	if len(registrationIDs) == 0 {
		return domain.BulkResult{}, domain.NewValidationError("no registrations selected")
	}
	if actor == 0 {
		return domain.BulkResult{}, domain.NewAuthError("no authenticated actor for check-in")
	}

	result := domain.BulkResult{Failed: map[uint]string{}}
	for _, id := range registrationIDs {
		record, err := s.Toggle(ctx, CheckinTarget{
			OwnerID:        ownerID,
			EventID:        eventID,
			RegistrationID: id,
			Day:            day,
		}, actor)
		if err != nil {
			zap.L().Warn("bulk toggle failed",
				zap.Uint("event_id", eventID),
				zap.Uint("registration_id", id),
				zap.Error(err))
			result.Failed[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, record)
	}

	return result, nil
}

// SetStatus writes an absolute status. Setting the current status again only
// refreshes updated_at, and keeps the original check-in time and actor.
func (s *CheckinService) SetStatus(ctx context.Context, target CheckinTarget, status domain.CheckinStatus, actor uint, notes string) (domain.CheckinRecord, error) {
	if !status.Valid() {
		return domain.CheckinRecord{}, domain.NewValidationError("unknown check-in status %q", status)
	}
	bucket, err := s.resolve(ctx, target, actor)
	if err != nil {
		return domain.CheckinRecord{}, err
	}

	return s.write(ctx, target, bucket, "set", func(current *domain.CheckinRecord) domain.CheckinRecord {
		if status == domain.CheckinDone {
			return s.done(current, bucket, actor, notes)
		}
		next := s.undone(current, bucket)
		if notes != "" {
			next.Notes = notes
		}
		return next
	})
}

// StatusOf reports undone for keys with no row.
func (s *CheckinService) StatusOf(ctx context.Context, ownerID uint, key domain.CheckinKey) (domain.CheckinStatus, error) {
	record, err := s.repo.Find(ctx, ownerID, key)
	if err != nil {
		if isMissing(err) {
			return domain.CheckinUndone, nil
		}
		return "", classify("s.repo.Find", err)
	}

	return record.Status, nil
}

// BatchStatus returns every ledger row of each registration, all days and the
// collective key, keyed by registration id. Ids without rows map to nil.
func (s *CheckinService) BatchStatus(ctx context.Context, ownerID uint, registrationIDs []uint) (map[uint][]domain.CheckinRecord, error) {
	rows, err := s.repo.FindByRegistrations(ctx, ownerID, registrationIDs)
	if err != nil {
		return nil, classify("s.repo.FindByRegistrations", err)
	}

	result := make(map[uint][]domain.CheckinRecord, len(registrationIDs))
	for _, id := range registrationIDs {
		result[id] = nil
	}
	for _, row := range rows {
		result[row.RegistrationID] = append(result[row.RegistrationID], row)
	}

	return result, nil
}

// resolve checks the actor, the event, the registration and the day before any
// ledger write.
func (s *CheckinService) resolve(ctx context.Context, target CheckinTarget, actor uint) (domain.DayBucket, error) {
	if actor == 0 {
		return domain.DayBucket{}, domain.NewAuthError("no authenticated actor for check-in")
	}
	if target.EventID == 0 || target.RegistrationID == 0 {
		return domain.DayBucket{}, domain.NewValidationError("event and registration are required")
	}

	event, err := s.events.FindByID(ctx, target.OwnerID, target.EventID)
	if err != nil {
		return domain.DayBucket{}, classify("s.events.FindByID", err)
	}
	registration, err := s.events.FindRegistration(ctx, target.OwnerID, target.RegistrationID)
	if err != nil {
		return domain.DayBucket{}, classify("s.events.FindRegistration", err)
	}
	if registration.EventID != event.ID {
		return domain.DayBucket{}, domain.NewNotFoundError("registration %d is not part of event %d", registration.ID, event.ID)
	}

	if target.UseDefaultDay {
		bucket, ok := event.DefaultDay(s.now())
		if !ok {
			return domain.DayBucket{}, domain.NewValidationError("event %d has no check-in day today; pick a day", event.ID)
		}
		return bucket, nil
	}
	bucket, ok := event.Bucket(target.Day)
	if !ok {
		if target.Day.IsCollective() {
			return domain.DayBucket{}, domain.NewValidationError("event %d checks in per day; pick a day", event.ID)
		}
		return domain.DayBucket{}, domain.NewValidationError("day %q is not a day of event %d", target.Day, event.ID)
	}

	return bucket, nil
}

func (s *CheckinService) write(ctx context.Context, target CheckinTarget, bucket domain.DayBucket, op string, fn repository.CheckinMutation) (domain.CheckinRecord, error) {
	key := domain.CheckinKey{RegistrationID: target.RegistrationID, DayKey: bucket.Key}
	unlock := s.locks.Lock(key)
	defer unlock()

	record, err := s.repo.Mutate(ctx, target.OwnerID, target.EventID, key, fn)
	if err != nil {
		return domain.CheckinRecord{}, classify(fmt.Sprintf("s.repo.Mutate(%s)", op), err)
	}
	s.transitions.WithLabelValues(op, string(record.Status)).Inc()

	zap.L().Info("check-in written",
		zap.String("op", op),
		zap.Uint("event_id", target.EventID),
		zap.Uint("registration_id", key.RegistrationID),
		zap.String("day_key", string(key.DayKey)),
		zap.String("status", string(record.Status)))

	return record, nil
}

func (s *CheckinService) done(current *domain.CheckinRecord, bucket domain.DayBucket, actor uint, notes string) domain.CheckinRecord {
	if current != nil && current.IsDone() {
		next := *current
		next.DayLabel = bucket.Label
		if notes != "" {
			next.Notes = notes
		}
		return next
	}

	next := s.base(current, bucket)
	now := s.now()
	next.Status = domain.CheckinDone
	next.CheckedInAt = &now
	next.CheckedInBy = &actor
	if notes != "" {
		next.Notes = notes
	}
	return next
}

func (s *CheckinService) undone(current *domain.CheckinRecord, bucket domain.DayBucket) domain.CheckinRecord {
	next := s.base(current, bucket)
	next.Status = domain.CheckinUndone
	next.CheckedInAt = nil
	next.CheckedInBy = nil
	return next
}

func (s *CheckinService) base(current *domain.CheckinRecord, bucket domain.DayBucket) domain.CheckinRecord {
	if current == nil {
		return domain.CheckinRecord{ID: uuid.NewString(), DayKey: bucket.Key, DayLabel: bucket.Label}
	}
	next := *current
	next.DayLabel = bucket.Label
	return next
}

func isMissing(err error) bool {
	return errors.Is(err, repository.ErrCheckinNotFound)
}
