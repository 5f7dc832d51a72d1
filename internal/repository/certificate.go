package repository

import (
	"context"
	"fmt"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

var (
	ErrCertificateNotFound = dao.ErrCertificateNotFound
	ErrCertificateExists   = dao.ErrCertificateExists
)

type CertificateDAO interface {
	Insert(ctx context.Context, record dao.CertificateRecord) (dao.CertificateRecord, error)
	FindByID(ctx context.Context, id string) (dao.CertificateRecord, error)
	FindByOwnerAndID(ctx context.Context, ownerID uint, id string) (dao.CertificateRecord, error)
	FindByEvent(ctx context.Context, ownerID, eventID uint) ([]dao.CertificateRecord, error)
}

type CertificateRepository struct {
	dao CertificateDAO
}

func NewCertificateRepository(dao CertificateDAO) *CertificateRepository {
	return &CertificateRepository{
		dao: dao,
	}
}

func (r *CertificateRepository) Create(ctx context.Context, record domain.CertificateRecord) (domain.CertificateRecord, error) {
	created, err := r.dao.Insert(ctx, dao.CertificateRecord{
		ID:                    record.ID,
		OwnerID:               record.OwnerID,
		EventID:               record.EventID,
		TemplateID:            record.TemplateID,
		RecipientSubmissionID: record.RecipientSubmissionID,
		ArtifactURL:           record.ArtifactURL,
		PublicViewURL:         record.PublicViewURL,
		RecipientName:         record.RecipientName,
		RecipientEmail:        record.RecipientEmail,
		HasWorkingQR:          record.HasWorkingQR,
	})
	if err != nil {
		return domain.CertificateRecord{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

// FindByID is unscoped; it backs the public certificate view.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (domain.CertificateRecord, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.CertificateRecord{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *CertificateRepository) FindForOwner(ctx context.Context, ownerID uint, id string) (domain.CertificateRecord, error) {
	found, err := r.dao.FindByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		return domain.CertificateRecord{}, fmt.Errorf("r.dao.FindByOwnerAndID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *CertificateRepository) ListByEvent(ctx context.Context, ownerID, eventID uint) ([]domain.CertificateRecord, error) {
	found, err := r.dao.FindByEvent(ctx, ownerID, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByEvent -> %w", err)
	}

	records := make([]domain.CertificateRecord, len(found))
	for i, c := range found {
		records[i] = r.daoToDomain(c)
	}

	return records, nil
}

func (r *CertificateRepository) daoToDomain(c dao.CertificateRecord) domain.CertificateRecord {
	return domain.CertificateRecord{
		ID:                    c.ID,
		OwnerID:               c.OwnerID,
		EventID:               c.EventID,
		TemplateID:            c.TemplateID,
		RecipientSubmissionID: c.RecipientSubmissionID,
		ArtifactURL:           c.ArtifactURL,
		PublicViewURL:         c.PublicViewURL,
		RecipientName:         c.RecipientName,
		RecipientEmail:        c.RecipientEmail,
		HasWorkingQR:          c.HasWorkingQR,
		CreatedAt:             c.CreatedAt,
	}
}
