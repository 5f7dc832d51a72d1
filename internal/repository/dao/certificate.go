package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrCertificateExists   = errors.New("certificate already exists")
)

type CertificateRecord struct {
	ID                    string `gorm:"primaryKey;size:36"`
	OwnerID               uint   `gorm:"not null;index"`
	EventID               uint   `gorm:"not null;index"`
	TemplateID            uint   `gorm:"not null"`
	RecipientSubmissionID uint   `gorm:"not null;index"`
	ArtifactURL           string `gorm:"not null"`
	PublicViewURL         string `gorm:"not null"`
	RecipientName         string `gorm:"not null"`
	RecipientEmail        string
	HasWorkingQR          bool `gorm:"not null"`
	CreatedAt             time.Time
}

type CertificateDAO struct {
	db *gorm.DB
}

func NewCertificateDAO(db *gorm.DB) *CertificateDAO {
	return &CertificateDAO{
		db: db,
	}
}

func (d *CertificateDAO) Insert(ctx context.Context, record CertificateRecord) (CertificateRecord, error) {
	if err := d.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err, "certificate_records_pkey") {
			return CertificateRecord{}, ErrCertificateExists
		}

		return CertificateRecord{}, err
	}

	return record, nil
}

func (d *CertificateDAO) FindByID(ctx context.Context, id string) (CertificateRecord, error) {
	var record CertificateRecord

	result := d.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return CertificateRecord{}, ErrCertificateNotFound
		}

		return CertificateRecord{}, result.Error
	}

	return record, nil
}

func (d *CertificateDAO) FindByOwnerAndID(ctx context.Context, ownerID uint, id string) (CertificateRecord, error) {
	var record CertificateRecord

	result := d.db.WithContext(ctx).First(&record, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return CertificateRecord{}, ErrCertificateNotFound
		}

		return CertificateRecord{}, result.Error
	}

	return record, nil
}

func (d *CertificateDAO) FindByEvent(ctx context.Context, ownerID, eventID uint) ([]CertificateRecord, error) {
	var records []CertificateRecord

	result := d.db.WithContext(ctx).
		Where("owner_id = ? AND event_id = ?", ownerID, eventID).
		Order("created_at").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}
