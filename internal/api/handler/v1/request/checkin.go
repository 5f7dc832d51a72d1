package request

import (
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

// Day is a YYYY-MM-DD key for per-day events and empty for the collective
// check-in.
type ToggleCheckinRequest struct {
	RegistrationID uint   `json:"registration_id"`
	Day            string `json:"day" example:"2024-05-14"`
}

func (req *ToggleCheckinRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.RegistrationID, validation.Required),
		validation.Field(&req.Day, validation.Date(dateLayout)),
	)
}

type BulkToggleCheckinRequest struct {
	RegistrationIDs []uint `json:"registration_ids"`
	Day             string `json:"day"`
}

func (req *BulkToggleCheckinRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.RegistrationIDs, validation.Required, validation.Length(1, maxBatch)),
		validation.Field(&req.Day, validation.Date(dateLayout)),
	)
}

type SetCheckinStatusRequest struct {
	RegistrationID uint   `json:"registration_id"`
	Day            string `json:"day"`
	Status         string `json:"status" example:"done"`
	Notes          string `json:"notes"`
}

func (req *SetCheckinStatusRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.RegistrationID, validation.Required),
		validation.Field(&req.Day, validation.Date(dateLayout)),
		validation.Field(&req.Status, validation.Required, validation.In(string(domain.CheckinDone), string(domain.CheckinUndone))),
		validation.Field(&req.Notes, validation.Length(0, 500)),
	)
}
