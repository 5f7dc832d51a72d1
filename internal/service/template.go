package service

import (
	"context"
	"strings"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

type TemplateRepository interface {
	Create(ctx context.Context, template domain.Template) (domain.Template, error)
	Update(ctx context.Context, template domain.Template) (domain.Template, error)
	FindByID(ctx context.Context, ownerID, id uint) (domain.Template, error)
}

type TemplateService struct {
	repo TemplateRepository
}

func NewTemplateService(repo TemplateRepository) *TemplateService {
	return &TemplateService{
		repo: repo,
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, template domain.Template) (domain.Template, error) {
	if err := validateTemplate(template); err != nil {
		return domain.Template{}, err
	}

	created, err := s.repo.Create(ctx, template)
	if err != nil {
		return domain.Template{}, classify("s.repo.Create", err)
	}

	return created, nil
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, template domain.Template) (domain.Template, error) {
	if err := validateTemplate(template); err != nil {
		return domain.Template{}, err
	}

	updated, err := s.repo.Update(ctx, template)
	if err != nil {
		return domain.Template{}, classify("s.repo.Update", err)
	}

	return updated, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, ownerID, id uint) (domain.Template, error) {
	template, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return domain.Template{}, classify("s.repo.FindByID", err)
	}

	return template, nil
}

func validateTemplate(template domain.Template) error {
	if template.OwnerID == 0 {
		return domain.NewAuthError("no authenticated organizer")
	}
	if strings.TrimSpace(template.Name) == "" {
		return domain.NewValidationError("template name is required")
	}
	return template.Validate()
}
