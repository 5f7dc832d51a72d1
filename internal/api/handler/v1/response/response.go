package response

import (
	"time"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type GenerateResponse struct {
	Summary string `json:"summary"`
	service.BatchResult
	// DocumentPDF is the combined document, base64 encoded.
	DocumentPDF []byte `json:"document_pdf,omitempty"`
}

// PublicCertificate is what anyone holding the QR link may see.
type PublicCertificate struct {
	ID            string    `json:"id"`
	RecipientName string    `json:"recipient_name"`
	EventID       uint      `json:"event_id"`
	EventName     string    `json:"event_name,omitempty"`
	ArtifactURL   string    `json:"artifact_url"`
	IssuedAt      time.Time `json:"issued_at"`
}

func NewPublicCertificate(c domain.CertificateRecord, eventName string) PublicCertificate {
	return PublicCertificate{
		ID:            c.ID,
		RecipientName: c.RecipientName,
		EventID:       c.EventID,
		EventName:     eventName,
		ArtifactURL:   c.ArtifactURL,
		IssuedAt:      c.CreatedAt,
	}
}

type CheckinStatusResponse struct {
	RegistrationID uint                 `json:"registration_id"`
	Day            domain.DayKey        `json:"day"`
	Status         domain.CheckinStatus `json:"status"`
}

type CheckinOverview struct {
	Buckets []domain.DayBucket                `json:"buckets"`
	Records map[uint][]domain.CheckinRecord `json:"records"`
}
