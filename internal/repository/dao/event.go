package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
)

type Event struct {
	ID          uint           `gorm:"primaryKey"`
	OwnerID     uint           `gorm:"not null;index"`
	Name        string         `gorm:"not null"`
	Location    string
	DateRanges  datatypes.JSON `gorm:"not null"`
	CheckinMode string         `gorm:"not null;default:auto"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Registration struct {
	ID           uint              `gorm:"primaryKey"`
	OwnerID      uint              `gorm:"not null;index"`
	EventID      uint              `gorm:"not null;index"`
	Name         string            `gorm:"not null"`
	Email        string            `gorm:"not null"`
	Organization string
	Phone        string
	Address      string
	Answers      datatypes.JSONMap
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	if err := d.db.WithContext(ctx).Create(&event).Error; err != nil {
		return Event{}, err
	}

	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, ownerID, id uint) (Event, error) {
	var event Event

	result := d.db.WithContext(ctx).First(&event, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

func (d *EventDAO) FindByOwner(ctx context.Context, ownerID uint) ([]Event, error) {
	var events []Event

	result := d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

func (d *EventDAO) InsertRegistration(ctx context.Context, registration Registration) (Registration, error) {
	if err := d.db.WithContext(ctx).Create(&registration).Error; err != nil {
		return Registration{}, err
	}

	return registration, nil
}

func (d *EventDAO) FindRegistration(ctx context.Context, ownerID, id uint) (Registration, error) {
	var registration Registration

	result := d.db.WithContext(ctx).First(&registration, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Registration{}, ErrRegistrationNotFound
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

// FindRegistrations returns the event's registrations, restricted to ids when
// ids is non-empty, ordered by id.
func (d *EventDAO) FindRegistrations(ctx context.Context, ownerID, eventID uint, ids []uint) ([]Registration, error) {
	var registrations []Registration

	query := d.db.WithContext(ctx).Where("owner_id = ? AND event_id = ?", ownerID, eventID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Order("id").Find(&registrations).Error; err != nil {
		return nil, err
	}

	return registrations, nil
}
