package service

import (
	"context"
	"strings"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	FindByID(ctx context.Context, ownerID, id uint) (domain.Event, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]domain.Event, error)
	CreateRegistration(ctx context.Context, registration domain.Registration) (domain.Registration, error)
	FindRegistration(ctx context.Context, ownerID, id uint) (domain.Registration, error)
	ListRegistrations(ctx context.Context, ownerID, eventID uint, ids []uint) ([]domain.Registration, error)
}

type EventService struct {
	repo EventRepository
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{
		repo: repo,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.OwnerID == 0 {
		return domain.Event{}, domain.NewAuthError("no authenticated organizer")
	}
	if strings.TrimSpace(event.Name) == "" {
		return domain.Event{}, domain.NewValidationError("event name is required")
	}
	if err := event.ValidateSchedule(); err != nil {
		return domain.Event{}, err
	}
	switch event.CheckinMode {
	case "", domain.CheckinModeAuto, domain.CheckinModePerDay, domain.CheckinModeCollective:
	default:
		return domain.Event{}, domain.NewValidationError("unknown check-in mode %q", event.CheckinMode)
	}

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return domain.Event{}, classify("s.repo.Create", err)
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, ownerID, id uint) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return domain.Event{}, classify("s.repo.FindByID", err)
	}

	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context, ownerID uint) ([]domain.Event, error) {
	events, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, classify("s.repo.ListByOwner", err)
	}

	return events, nil
}

func (s *EventService) AddRegistration(ctx context.Context, registration domain.Registration) (domain.Registration, error) {
	if strings.TrimSpace(registration.Name) == "" {
		return domain.Registration{}, domain.NewValidationError("participant name is required")
	}
	if _, err := s.GetEvent(ctx, registration.OwnerID, registration.EventID); err != nil {
		return domain.Registration{}, err
	}

	created, err := s.repo.CreateRegistration(ctx, registration)
	if err != nil {
		return domain.Registration{}, classify("s.repo.CreateRegistration", err)
	}

	return created, nil
}

func (s *EventService) ListRegistrations(ctx context.Context, ownerID, eventID uint) ([]domain.Registration, error) {
	if _, err := s.GetEvent(ctx, ownerID, eventID); err != nil {
		return nil, err
	}

	registrations, err := s.repo.ListRegistrations(ctx, ownerID, eventID, nil)
	if err != nil {
		return nil, classify("s.repo.ListRegistrations", err)
	}

	return registrations, nil
}
