package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrTemplateNotFound = errors.New("template not found")

type Template struct {
	ID                 uint           `gorm:"primaryKey"`
	OwnerID            uint           `gorm:"not null;index"`
	Name               string         `gorm:"not null"`
	Width              int            `gorm:"not null"`
	Height             int            `gorm:"not null"`
	BackgroundImageRef string
	Elements           datatypes.JSON `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type TemplateDAO struct {
	db *gorm.DB
}

func NewTemplateDAO(db *gorm.DB) *TemplateDAO {
	return &TemplateDAO{
		db: db,
	}
}

func (d *TemplateDAO) Insert(ctx context.Context, template Template) (Template, error) {
	if err := d.db.WithContext(ctx).Create(&template).Error; err != nil {
		return Template{}, err
	}

	return template, nil
}

func (d *TemplateDAO) Update(ctx context.Context, template Template) (Template, error) {
	result := d.db.WithContext(ctx).
		Model(&Template{}).
		Where("id = ? AND owner_id = ?", template.ID, template.OwnerID).
		Updates(map[string]any{
			"name":                 template.Name,
			"width":                template.Width,
			"height":               template.Height,
			"background_image_ref": template.BackgroundImageRef,
			"elements":             template.Elements,
		})
	if result.Error != nil {
		return Template{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Template{}, ErrTemplateNotFound
	}

	return d.FindByID(ctx, template.OwnerID, template.ID)
}

func (d *TemplateDAO) FindByID(ctx context.Context, ownerID, id uint) (Template, error) {
	var template Template

	result := d.db.WithContext(ctx).First(&template, "id = ? AND owner_id = ?", id, ownerID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Template{}, ErrTemplateNotFound
		}

		return Template{}, result.Error
	}

	return template, nil
}
