package repository

import (
	"context"
	"fmt"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

var ErrCheckinNotFound = dao.ErrCheckinNotFound

type CheckinDAO interface {
	Find(ctx context.Context, ownerID, registrationID uint, dayKey string) (dao.CheckinRecord, error)
	FindByRegistrations(ctx context.Context, ownerID uint, registrationIDs []uint) ([]dao.CheckinRecord, error)
	Mutate(ctx context.Context, ownerID, registrationID uint, dayKey string, fn dao.CheckinMutation) (dao.CheckinRecord, error)
}

// CheckinMutation receives nil when the key has no row yet.
type CheckinMutation func(current *domain.CheckinRecord) domain.CheckinRecord

type CheckinRepository struct {
	dao CheckinDAO
}

func NewCheckinRepository(dao CheckinDAO) *CheckinRepository {
	return &CheckinRepository{
		dao: dao,
	}
}

func (r *CheckinRepository) Find(ctx context.Context, ownerID uint, key domain.CheckinKey) (domain.CheckinRecord, error) {
	found, err := r.dao.Find(ctx, ownerID, key.RegistrationID, string(key.DayKey))
	if err != nil {
		return domain.CheckinRecord{}, fmt.Errorf("r.dao.Find -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *CheckinRepository) FindByRegistrations(ctx context.Context, ownerID uint, registrationIDs []uint) ([]domain.CheckinRecord, error) {
	found, err := r.dao.FindByRegistrations(ctx, ownerID, registrationIDs)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByRegistrations -> %w", err)
	}

	records := make([]domain.CheckinRecord, len(found))
	for i, c := range found {
		records[i] = r.daoToDomain(c)
	}

	return records, nil
}

// Mutate applies fn to the row for key atomically with respect to other
// writers of the same key.
func (r *CheckinRepository) Mutate(ctx context.Context, ownerID, eventID uint, key domain.CheckinKey, fn CheckinMutation) (domain.CheckinRecord, error) {
	saved, err := r.dao.Mutate(ctx, ownerID, key.RegistrationID, string(key.DayKey), func(current *dao.CheckinRecord) dao.CheckinRecord {
		var cur *domain.CheckinRecord
		if current != nil {
			c := r.daoToDomain(*current)
			cur = &c
		}
		next := r.domainToDao(fn(cur))
		next.EventID = eventID
		return next
	})
	if err != nil {
		return domain.CheckinRecord{}, fmt.Errorf("r.dao.Mutate -> %w", err)
	}

	return r.daoToDomain(saved), nil
}

func (r *CheckinRepository) domainToDao(c domain.CheckinRecord) dao.CheckinRecord {
	return dao.CheckinRecord{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		EventID:        c.EventID,
		RegistrationID: c.RegistrationID,
		DayKey:         string(c.DayKey),
		DayLabel:       c.DayLabel,
		Status:         string(c.Status),
		CheckedInAt:    c.CheckedInAt,
		CheckedInBy:    c.CheckedInBy,
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (r *CheckinRepository) daoToDomain(c dao.CheckinRecord) domain.CheckinRecord {
	return domain.CheckinRecord{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		EventID:        c.EventID,
		RegistrationID: c.RegistrationID,
		DayKey:         domain.DayKey(c.DayKey),
		DayLabel:       c.DayLabel,
		Status:         domain.CheckinStatus(c.Status),
		CheckedInAt:    c.CheckedInAt,
		CheckedInBy:    c.CheckedInBy,
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
