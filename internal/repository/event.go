package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

var (
	ErrEventNotFound        = dao.ErrEventNotFound
	ErrRegistrationNotFound = dao.ErrRegistrationNotFound
)

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event) (dao.Event, error)
	FindByID(ctx context.Context, ownerID, id uint) (dao.Event, error)
	FindByOwner(ctx context.Context, ownerID uint) ([]dao.Event, error)
	InsertRegistration(ctx context.Context, registration dao.Registration) (dao.Registration, error)
	FindRegistration(ctx context.Context, ownerID, id uint) (dao.Registration, error)
	FindRegistrations(ctx context.Context, ownerID, eventID uint, ids []uint) ([]dao.Registration, error)
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	ranges, err := json.Marshal(event.DateRanges)
	if err != nil {
		return domain.Event{}, fmt.Errorf("json.Marshal -> %w", err)
	}
	mode := event.CheckinMode
	if mode == "" {
		mode = domain.CheckinModeAuto
	}

	created, err := r.dao.Insert(ctx, dao.Event{
		OwnerID:     event.OwnerID,
		Name:        event.Name,
		Location:    event.Location,
		DateRanges:  datatypes.JSON(ranges),
		CheckinMode: string(mode),
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *EventRepository) FindByID(ctx context.Context, ownerID, id uint) (domain.Event, error) {
	found, err := r.dao.FindByID(ctx, ownerID, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *EventRepository) ListByOwner(ctx context.Context, ownerID uint) ([]domain.Event, error) {
	found, err := r.dao.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByOwner -> %w", err)
	}

	events := make([]domain.Event, 0, len(found))
	for _, e := range found {
		event, err := r.daoToDomain(e)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *EventRepository) CreateRegistration(ctx context.Context, registration domain.Registration) (domain.Registration, error) {
	answers := datatypes.JSONMap{}
	for k, v := range registration.Answers {
		answers[k] = v
	}

	created, err := r.dao.InsertRegistration(ctx, dao.Registration{
		OwnerID:      registration.OwnerID,
		EventID:      registration.EventID,
		Name:         registration.Name,
		Email:        registration.Email,
		Organization: registration.Organization,
		Phone:        registration.Phone,
		Address:      registration.Address,
		Answers:      answers,
	})
	if err != nil {
		return domain.Registration{}, fmt.Errorf("r.dao.InsertRegistration -> %w", err)
	}

	return r.registrationDaoToDomain(created), nil
}

func (r *EventRepository) FindRegistration(ctx context.Context, ownerID, id uint) (domain.Registration, error) {
	found, err := r.dao.FindRegistration(ctx, ownerID, id)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("r.dao.FindRegistration -> %w", err)
	}

	return r.registrationDaoToDomain(found), nil
}

func (r *EventRepository) ListRegistrations(ctx context.Context, ownerID, eventID uint, ids []uint) ([]domain.Registration, error) {
	found, err := r.dao.FindRegistrations(ctx, ownerID, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindRegistrations -> %w", err)
	}

	registrations := make([]domain.Registration, len(found))
	for i, reg := range found {
		registrations[i] = r.registrationDaoToDomain(reg)
	}

	return registrations, nil
}

func (r *EventRepository) daoToDomain(e dao.Event) (domain.Event, error) {
	var ranges []domain.DateRange
	if len(e.DateRanges) > 0 {
		if err := json.Unmarshal(e.DateRanges, &ranges); err != nil {
			return domain.Event{}, fmt.Errorf("json.Unmarshal date_ranges of event %d -> %w", e.ID, err)
		}
	}

	return domain.Event{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Name:        e.Name,
		Location:    e.Location,
		DateRanges:  ranges,
		CheckinMode: domain.CheckinMode(e.CheckinMode),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}, nil
}

func (r *EventRepository) registrationDaoToDomain(reg dao.Registration) domain.Registration {
	answers := make(map[string]string, len(reg.Answers))
	for k, v := range reg.Answers {
		if s, ok := v.(string); ok {
			answers[k] = s
		} else if v != nil {
			answers[k] = fmt.Sprint(v)
		}
	}

	return domain.Registration{
		ID:           reg.ID,
		OwnerID:      reg.OwnerID,
		EventID:      reg.EventID,
		Name:         reg.Name,
		Email:        reg.Email,
		Organization: reg.Organization,
		Phone:        reg.Phone,
		Address:      reg.Address,
		Answers:      answers,
		CreatedAt:    reg.CreatedAt,
	}
}
