package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

// TemplateRequest creates or replaces a template. Element geometry is checked
// by the service so the rules live in one place.
type TemplateRequest struct {
	Name               string           `json:"name"`
	Width              int              `json:"width" example:"1600"`
	Height             int              `json:"height" example:"1131"`
	BackgroundImageRef string           `json:"background_image_ref"`
	Elements           []domain.Element `json:"elements"`
}

func (req *TemplateRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.Width, validation.Required, validation.Min(1), validation.Max(10000)),
		validation.Field(&req.Height, validation.Required, validation.Min(1), validation.Max(10000)),
		validation.Field(&req.BackgroundImageRef, is.URL),
	)
}

func (req *TemplateRequest) ToDomain(ownerID, id uint) domain.Template {
	return domain.Template{
		ID:                 id,
		OwnerID:            ownerID,
		Name:               req.Name,
		Width:              req.Width,
		Height:             req.Height,
		BackgroundImageRef: req.BackgroundImageRef,
		Elements:           req.Elements,
	}
}
