package request

import (
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/vietanh2810/certcheck-api/internal/service"
)

const maxBatch = 500

type GenerateCertificatesRequest struct {
	TemplateID      uint   `json:"template_id"`
	RegistrationIDs []uint `json:"registration_ids"`
	SendEmail       bool   `json:"send_email"`
	EmailSubject    string `json:"email_subject" example:"Your certificate for {{event_name}}"`
	EmailBody       string `json:"email_body" example:"<p>Hi {{name}}, download it at {{certificate_url}}</p>"`
}

func (req *GenerateCertificatesRequest) Validate() error {
	var mailRules []validation.Rule
	if req.SendEmail {
		mailRules = append(mailRules, validation.Required)
	}

	return validation.ValidateStruct(
		req,
		validation.Field(&req.TemplateID, validation.Required),
		validation.Field(&req.RegistrationIDs, validation.Required, validation.Length(1, maxBatch)),
		validation.Field(&req.EmailSubject, append(mailRules, validation.Length(0, 300))...),
		validation.Field(&req.EmailBody, mailRules...),
	)
}

func (req *GenerateCertificatesRequest) ToService(ownerID, eventID uint) service.GenerateRequest {
	return service.GenerateRequest{
		OwnerID:         ownerID,
		EventID:         eventID,
		TemplateID:      req.TemplateID,
		RegistrationIDs: req.RegistrationIDs,
		SendEmail:       req.SendEmail,
		EmailSubject:    req.EmailSubject,
		EmailBody:       req.EmailBody,
	}
}
