package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

var ErrTemplateNotFound = dao.ErrTemplateNotFound

type TemplateDAO interface {
	Insert(ctx context.Context, template dao.Template) (dao.Template, error)
	Update(ctx context.Context, template dao.Template) (dao.Template, error)
	FindByID(ctx context.Context, ownerID, id uint) (dao.Template, error)
}

type TemplateRepository struct {
	dao TemplateDAO
}

func NewTemplateRepository(dao TemplateDAO) *TemplateRepository {
	return &TemplateRepository{
		dao: dao,
	}
}

func (r *TemplateRepository) Create(ctx context.Context, template domain.Template) (domain.Template, error) {
	row, err := r.domainToDao(template)
	if err != nil {
		return domain.Template{}, err
	}

	created, err := r.dao.Insert(ctx, row)
	if err != nil {
		return domain.Template{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *TemplateRepository) Update(ctx context.Context, template domain.Template) (domain.Template, error) {
	row, err := r.domainToDao(template)
	if err != nil {
		return domain.Template{}, err
	}

	updated, err := r.dao.Update(ctx, row)
	if err != nil {
		return domain.Template{}, fmt.Errorf("r.dao.Update -> %w", err)
	}

	return r.daoToDomain(updated)
}

func (r *TemplateRepository) FindByID(ctx context.Context, ownerID, id uint) (domain.Template, error) {
	found, err := r.dao.FindByID(ctx, ownerID, id)
	if err != nil {
		return domain.Template{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *TemplateRepository) domainToDao(t domain.Template) (dao.Template, error) {
	elements, err := json.Marshal(t.Elements)
	if err != nil {
		return dao.Template{}, fmt.Errorf("json.Marshal -> %w", err)
	}

	return dao.Template{
		ID:                 t.ID,
		OwnerID:            t.OwnerID,
		Name:               t.Name,
		Width:              t.Width,
		Height:             t.Height,
		BackgroundImageRef: t.BackgroundImageRef,
		Elements:           datatypes.JSON(elements),
	}, nil
}

func (r *TemplateRepository) daoToDomain(t dao.Template) (domain.Template, error) {
	var elements []domain.Element
	if len(t.Elements) > 0 {
		if err := json.Unmarshal(t.Elements, &elements); err != nil {
			return domain.Template{}, fmt.Errorf("json.Unmarshal elements of template %d -> %w", t.ID, err)
		}
	}

	return domain.Template{
		ID:                 t.ID,
		OwnerID:            t.OwnerID,
		Name:               t.Name,
		Width:              t.Width,
		Height:             t.Height,
		BackgroundImageRef: t.BackgroundImageRef,
		Elements:           elements,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}, nil
}
