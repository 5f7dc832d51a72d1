package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCheckinNotFound = errors.New("check-in not found")

// CheckinRecord is one ledger row. (registration_id, day_key) is unique;
// day_key is "" for collective check-ins so the index also covers them.
type CheckinRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	OwnerID        uint   `gorm:"not null;index"`
	EventID        uint   `gorm:"not null;index"`
	RegistrationID uint   `gorm:"not null;uniqueIndex:idx_checkin_registration_day"`
	DayKey         string `gorm:"not null;size:10;uniqueIndex:idx_checkin_registration_day"`
	DayLabel       string
	Status         string `gorm:"not null"`
	CheckedInAt    *time.Time
	CheckedInBy    *uint
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckinMutation computes the next row from the current one, or from nil when
// the key has no row yet.
type CheckinMutation func(current *CheckinRecord) CheckinRecord

type CheckinDAO struct {
	db *gorm.DB

	// onMissing runs inside the transaction after the lock found no row.
	onMissing func(tx *gorm.DB)
}

func NewCheckinDAO(db *gorm.DB) *CheckinDAO {
	return &CheckinDAO{
		db: db,
	}
}

func (d *CheckinDAO) Find(ctx context.Context, ownerID, registrationID uint, dayKey string) (CheckinRecord, error) {
	var record CheckinRecord

	result := d.db.WithContext(ctx).First(&record,
		"owner_id = ? AND registration_id = ? AND day_key = ?", ownerID, registrationID, dayKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return CheckinRecord{}, ErrCheckinNotFound
		}

		return CheckinRecord{}, result.Error
	}

	return record, nil
}

// FindByRegistrations loads every row, all days and collective, for the given
// registrations in one query.
func (d *CheckinDAO) FindByRegistrations(ctx context.Context, ownerID uint, registrationIDs []uint) ([]CheckinRecord, error) {
	if len(registrationIDs) == 0 {
		return nil, nil
	}

	var records []CheckinRecord
	result := d.db.WithContext(ctx).
		Where("owner_id = ? AND registration_id IN ?", ownerID, registrationIDs).
		Order("registration_id, day_key").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}

// Mutate reads the row for the key under a row lock, applies fn and writes the
// result back. A missing row is created with ON CONFLICT DO NOTHING; when
// another writer created it first, that row is locked and fn is applied to it
// instead, so neither write is lost.
func (d *CheckinDAO) Mutate(ctx context.Context, ownerID, registrationID uint, dayKey string, fn CheckinMutation) (CheckinRecord, error) {
	var saved CheckinRecord

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, found, err := lockCheckin(tx, registrationID, dayKey)
		if err != nil {
			return err
		}

		if !found {
			if d.onMissing != nil {
				d.onMissing(tx)
			}

			first := fn(nil)
			stampCheckin(&first, ownerID, registrationID, dayKey)
			created := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "registration_id"}, {Name: "day_key"}},
				DoNothing: true,
			}).Create(&first)
			if created.Error != nil {
				return created.Error
			}
			if created.RowsAffected == 1 {
				return tx.First(&saved, "id = ?", first.ID).Error
			}

			// lost the race for the first row
			current, found, err = lockCheckin(tx, registrationID, dayKey)
			if err != nil {
				return err
			}
			if !found {
				return ErrCheckinNotFound
			}
		}

		if current.OwnerID != ownerID {
			return ErrCheckinNotFound
		}
		next := fn(&current)
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		stampCheckin(&next, ownerID, registrationID, dayKey)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}

		return tx.First(&saved, "id = ?", next.ID).Error
	})
	if err != nil {
		return CheckinRecord{}, err
	}

	return saved, nil
}

func lockCheckin(tx *gorm.DB, registrationID uint, dayKey string) (CheckinRecord, bool, error) {
	var current CheckinRecord
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("registration_id = ? AND day_key = ?", registrationID, dayKey).
		Limit(1).
		Find(&current)
	if result.Error != nil {
		return CheckinRecord{}, false, result.Error
	}
	return current, result.RowsAffected > 0, nil
}

func stampCheckin(r *CheckinRecord, ownerID, registrationID uint, dayKey string) {
	r.OwnerID = ownerID
	r.RegistrationID = registrationID
	r.DayKey = dayKey
	r.UpdatedAt = time.Now()
}
