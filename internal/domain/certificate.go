package domain

import "time"

// CertificateRecord is written once per participant and generation run. The ID
// is chosen before the artifact is stored so PublicViewURL, and the QR code that
// encodes it, are known ahead of the upload.
type CertificateRecord struct {
	ID                    string    `json:"id"`
	OwnerID               uint      `json:"owner_id"`
	EventID               uint      `json:"event_id"`
	TemplateID            uint      `json:"template_id"`
	RecipientSubmissionID uint      `json:"recipient_submission_id"`
	ArtifactURL           string    `json:"artifact_url"`
	PublicViewURL         string    `json:"public_view_url"`
	RecipientName         string    `json:"recipient_name"`
	RecipientEmail        string    `json:"recipient_email,omitempty"`
	HasWorkingQR          bool      `json:"has_working_qr"`
	CreatedAt             time.Time `json:"created_at"`
}

// BadgeInfo is what a scanned payload resolves to.
type BadgeInfo struct {
	CertificateID   string `json:"certificate_id"`
	OwnerID         uint   `json:"owner_id"`
	EventID         uint   `json:"event_id"`
	RegistrationID  uint   `json:"registration_id"`
	ParticipantName string `json:"participant_name"`
}

func (c CertificateRecord) Badge() BadgeInfo {
	return BadgeInfo{
		CertificateID:   c.ID,
		OwnerID:         c.OwnerID,
		EventID:         c.EventID,
		RegistrationID:  c.RecipientSubmissionID,
		ParticipantName: c.RecipientName,
	}
}
