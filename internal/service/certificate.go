package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/document"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/mailer"
	"github.com/vietanh2810/certcheck-api/internal/render"
	"github.com/vietanh2810/certcheck-api/internal/repository"
	"github.com/vietanh2810/certcheck-api/internal/storage"
)

var ErrCertificateNotFound = repository.ErrCertificateNotFound

type Renderer interface {
	Render(ctx context.Context, tpl domain.Template, fields render.FieldResolver, qrPayload string) ([]byte, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, path string, data []byte, overwrite bool) (string, error)
}

type CertificateRepository interface {
	Create(ctx context.Context, record domain.CertificateRecord) (domain.CertificateRecord, error)
	FindByID(ctx context.Context, id string) (domain.CertificateRecord, error)
	FindForOwner(ctx context.Context, ownerID uint, id string) (domain.CertificateRecord, error)
	ListByEvent(ctx context.Context, ownerID, eventID uint) ([]domain.CertificateRecord, error)
}

type CertificateEventRepository interface {
	FindByID(ctx context.Context, ownerID, id uint) (domain.Event, error)
	ListRegistrations(ctx context.Context, ownerID, eventID uint, ids []uint) ([]domain.Registration, error)
}

type CertificateTemplateRepository interface {
	FindByID(ctx context.Context, ownerID, id uint) (domain.Template, error)
}

type DocumentBuilder interface {
	Build(pages []document.Page) ([]byte, error)
}

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type GenerateRequest struct {
	OwnerID         uint
	EventID         uint
	TemplateID      uint
	RegistrationIDs []uint

	// SendEmail mails each participant whose certificate was persisted.
	SendEmail    bool
	EmailSubject string
	EmailBody    string
}

type Failure struct {
	RegistrationID uint   `json:"registration_id"`
	Name           string `json:"name,omitempty"`
	Error          string `json:"error"`
}

type BatchResult struct {
	Total         int                        `json:"total"`
	Succeeded     int                        `json:"succeeded"`
	Failures      []Failure                  `json:"failures,omitempty"`
	Certificates  []domain.CertificateRecord `json:"certificates"`
	EmailsSent    int                        `json:"emails_sent"`
	EmailFailures []Failure                  `json:"email_failures,omitempty"`
	DocumentPDF   []byte                     `json:"-"`
}

func (r BatchResult) Summary() string {
	return fmt.Sprintf("%d of %d succeeded", r.Succeeded, r.Total)
}

type CertificateService struct {
	renderer      Renderer
	store         ArtifactStore
	repo          CertificateRepository
	events        CertificateEventRepository
	templates     CertificateTemplateRepository
	docs          DocumentBuilder
	mail          MailSender
	publicBaseURL string
	newID         func() string
	outcomes      *prometheus.CounterVec
}

type CertificateServiceDeps struct {
	Renderer      Renderer
	Store         ArtifactStore
	Repo          CertificateRepository
	Events        CertificateEventRepository
	Templates     CertificateTemplateRepository
	Documents     DocumentBuilder
	Mail          MailSender
	PublicBaseURL string
	Registerer    prometheus.Registerer
}

func NewCertificateService(deps CertificateServiceDeps) *CertificateService {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_generation_total",
		Help: "Certificates generated, by path taken",
	}, []string{"path"})
	if deps.Registerer != nil {
		deps.Registerer.MustRegister(outcomes)
	}

	return &CertificateService{
		renderer:      deps.Renderer,
		store:         deps.Store,
		repo:          deps.Repo,
		events:        deps.Events,
		templates:     deps.Templates,
		docs:          deps.Documents,
		mail:          deps.Mail,
		publicBaseURL: strings.TrimSuffix(deps.PublicBaseURL, "/"),
		newID:         uuid.NewString,
		outcomes:      outcomes,
	}
}

// PublicViewURL is what a certificate's QR code encodes.
func (s *CertificateService) PublicViewURL(id string) string {
	return s.publicBaseURL + "/certificates/" + id
}

// Generate issues one certificate per selected registration, strictly in
// order. A participant's failure is recorded and the batch moves on.
func (s *CertificateService) Generate(ctx context.Context, req GenerateRequest) (BatchResult, error) {
	if req.OwnerID == 0 {
		return BatchResult{}, domain.NewAuthError("no authenticated organizer")
	}
	switch {
	case req.EventID == 0:
		return BatchResult{}, domain.NewValidationError("no event selected")
	case req.TemplateID == 0:
		return BatchResult{}, domain.NewValidationError("no template selected")
	case len(req.RegistrationIDs) == 0:
		return BatchResult{}, domain.NewValidationError("no recipients selected")
	}
	if req.SendEmail && s.mail == nil {
		return BatchResult{}, domain.NewValidationError("mail is not configured")
	}

	tpl, err := s.templates.FindByID(ctx, req.OwnerID, req.TemplateID)
	if err != nil {
		return BatchResult{}, classify("s.templates.FindByID", err)
	}
	event, err := s.events.FindByID(ctx, req.OwnerID, req.EventID)
	if err != nil {
		return BatchResult{}, classify("s.events.FindByID", err)
	}
	registrations, err := s.events.ListRegistrations(ctx, req.OwnerID, req.EventID, req.RegistrationIDs)
	if err != nil {
		return BatchResult{}, classify("s.events.ListRegistrations", err)
	}

	byID := make(map[uint]domain.Registration, len(registrations))
	for _, r := range registrations {
		byID[r.ID] = r
	}

	result := BatchResult{Total: len(req.RegistrationIDs)}
	var pages []document.Page
	for _, id := range req.RegistrationIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		reg, ok := byID[id]
		if !ok {
			result.Failures = append(result.Failures, Failure{RegistrationID: id, Error: "registration not found in event"})
			continue
		}

		record, image, err := s.generateOne(ctx, tpl, event, reg)
		if image != nil {
			pages = append(pages, document.Page{Width: float64(tpl.Width), Height: float64(tpl.Height), PNG: image})
		}
		if err != nil {
			zap.L().Error("certificate generation failed",
				zap.Uint("event_id", event.ID),
				zap.Uint("registration_id", reg.ID),
				zap.Error(err))
			result.Failures = append(result.Failures, Failure{RegistrationID: reg.ID, Name: reg.Name, Error: err.Error()})
			continue
		}
		result.Succeeded++
		result.Certificates = append(result.Certificates, record)

		if req.SendEmail {
			if err := s.notify(ctx, req, event, reg, record); err != nil {
				zap.L().Warn("certificate email failed",
					zap.String("certificate_id", record.ID),
					zap.Uint("registration_id", reg.ID),
					zap.Error(err))
				result.EmailFailures = append(result.EmailFailures, Failure{RegistrationID: reg.ID, Name: reg.Name, Error: err.Error()})
			} else {
				result.EmailsSent++
			}
		}
	}

	if len(pages) > 0 && s.docs != nil {
		pdf, err := s.docs.Build(pages)
		if err != nil {
			zap.L().Error("combined certificate document failed", zap.Uint("event_id", event.ID), zap.Error(err))
		} else {
			result.DocumentPDF = pdf
		}
	}

	zap.L().Info("certificate batch finished",
		zap.Uint("event_id", event.ID),
		zap.Uint("template_id", tpl.ID),
		zap.String("summary", result.Summary()))

	return result, nil
}

// generateOne returns the image that matches the stored artifact even when
// persisting the record fails, so the combined document stays complete.
func (s *CertificateService) generateOne(ctx context.Context, tpl domain.Template, event domain.Event, reg domain.Registration) (domain.CertificateRecord, []byte, error) {
	record := domain.CertificateRecord{
		ID:                    s.newID(),
		OwnerID:               event.OwnerID,
		EventID:               event.ID,
		TemplateID:            tpl.ID,
		RecipientSubmissionID: reg.ID,
		RecipientName:         reg.Name,
		RecipientEmail:        reg.Email,
	}
	record.PublicViewURL = s.PublicViewURL(record.ID)
	path := storage.CertificatePath(event.OwnerID, event.ID, record.ID)
	fields := render.RegistrationFields{Registration: reg}

	if !tpl.HasQR() {
		image, err := s.renderer.Render(ctx, tpl, fields, "")
		if err != nil {
			return domain.CertificateRecord{}, nil, fmt.Errorf("s.renderer.Render -> %w", err)
		}
		return s.singlePhase(ctx, record, path, image, false, "single_phase")
	}

	placeholder, err := s.renderer.Render(ctx, tpl, fields, "")
	if err != nil {
		return domain.CertificateRecord{}, nil, fmt.Errorf("s.renderer.Render -> %w", err)
	}

	url, err := s.store.Put(ctx, path, placeholder, false)
	if err != nil {
		s.logFallback(record, "upload", err)
		return s.singlePhase(ctx, record, path, placeholder, true, "fallback")
	}
	record.ArtifactURL = url

	final, err := s.renderer.Render(ctx, tpl, fields, record.PublicViewURL)
	if err != nil {
		s.logFallback(record, "re-render", err)
		return s.persist(ctx, record, placeholder, "fallback")
	}

	url, err = s.store.Put(ctx, path, final, true)
	if err != nil {
		s.logFallback(record, "overwrite", err)
		return s.persist(ctx, record, placeholder, "fallback")
	}
	record.ArtifactURL = url
	record.HasWorkingQR = true

	return s.persist(ctx, record, final, "two_phase")
}

func (s *CertificateService) singlePhase(ctx context.Context, record domain.CertificateRecord, path string, image []byte, overwrite bool, outcome string) (domain.CertificateRecord, []byte, error) {
	url, err := s.store.Put(ctx, path, image, overwrite)
	if err != nil {
		return domain.CertificateRecord{}, image, domain.NewTransientStorageError("s.store.Put", err)
	}
	record.ArtifactURL = url

	return s.persist(ctx, record, image, outcome)
}

func (s *CertificateService) persist(ctx context.Context, record domain.CertificateRecord, image []byte, outcome string) (domain.CertificateRecord, []byte, error) {
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return domain.CertificateRecord{}, image, classify("s.repo.Create", err)
	}
	s.outcomes.WithLabelValues(outcome).Inc()

	return created, image, nil
}

func (s *CertificateService) logFallback(record domain.CertificateRecord, step string, err error) {
	zap.L().Warn("qr pass failed, issuing certificate without working qr",
		zap.String("certificate_id", record.ID),
		zap.Uint("registration_id", record.RecipientSubmissionID),
		zap.String("step", step),
		zap.Error(err))
}

func (s *CertificateService) notify(ctx context.Context, req GenerateRequest, event domain.Event, reg domain.Registration, record domain.CertificateRecord) error {
	fields := overlayFields{
		extra: render.MapFields{
			"event_name":      event.Name,
			"certificate_url": record.ArtifactURL,
			"public_view_url": record.PublicViewURL,
		},
		base: render.RegistrationFields{Registration: reg},
	}

	subject, err := Substitute(req.EmailSubject, fields)
	if err != nil {
		return err
	}
	body, err := SubstituteHTML(req.EmailBody, fields)
	if err != nil {
		return err
	}

	return s.mail.Send(ctx, mailer.Message{
		ToAddress: reg.Email,
		ToName:    reg.Name,
		Subject:   subject,
		HTMLBody:  body,
	})
}

// Lookup is the public certificate view; it is not owner scoped.
func (s *CertificateService) Lookup(ctx context.Context, id string) (domain.CertificateRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.CertificateRecord{}, domain.NewNotFoundError("certificate %q", id)
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.CertificateRecord{}, classify("s.repo.FindByID", err)
	}

	return record, nil
}

func (s *CertificateService) ListByEvent(ctx context.Context, ownerID, eventID uint) ([]domain.CertificateRecord, error) {
	records, err := s.repo.ListByEvent(ctx, ownerID, eventID)
	if err != nil {
		return nil, classify("s.repo.ListByEvent", err)
	}

	return records, nil
}

// ResolveBadge maps a scanned payload to the badge it names. The payload is
// the certificate's public view URL; its last path segment is the id.
func (s *CertificateService) ResolveBadge(ctx context.Context, ownerID uint, payload string) (domain.BadgeInfo, error) {
	id := badgeID(payload)
	if id == "" {
		return domain.BadgeInfo{}, domain.NewNotFoundError("badge %q", payload)
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.BadgeInfo{}, domain.NewNotFoundError("badge %q", payload)
	}

	record, err := s.repo.FindForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			return domain.BadgeInfo{}, domain.NewNotFoundError("no certificate for badge %q", payload)
		}
		return domain.BadgeInfo{}, classify("s.repo.FindForOwner", err)
	}

	return record.Badge(), nil
}

func badgeID(payload string) string {
	p := strings.TrimSpace(payload)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}
