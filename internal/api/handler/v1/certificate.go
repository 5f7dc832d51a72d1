package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

const mimePDF = "application/pdf"

type CertificateService interface {
	Generate(ctx context.Context, req service.GenerateRequest) (service.BatchResult, error)
	Lookup(ctx context.Context, id string) (domain.CertificateRecord, error)
	ListByEvent(ctx context.Context, ownerID, eventID uint) ([]domain.CertificateRecord, error)
}

type CertificateHandler struct {
	svc    CertificateService
	events EventService
}

func NewCertificateHandler(svc CertificateService, events EventService) *CertificateHandler {
	return &CertificateHandler{
		svc:    svc,
		events: events,
	}
}

// HandleGenerate godoc
// @Summary      Generate certificates for selected participants
// @Description  Renders, stores and records one certificate per participant, in order. Per-participant failures are
// @Description  reported in the result and do not stop the batch. With Accept: application/pdf the combined document
// @Description  is returned directly and the summary is in the X-Certificate-Summary header.
// @Tags         certificates
// @Accept       json
// @Produce      json,application/pdf
// @Param        eventID  path  int  true  "Event ID"
// @Param        input  body      request.GenerateCertificatesRequest  true  "Selection"
// @Success      200    {object}  response.GenerateResponse
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Failure      503    {object}  response.Err
// @Router       /events/{eventID}/certificates [post]
// @Security BearerAuth
func (h *CertificateHandler) HandleGenerate(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	eventID, respErr := uintParam(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.GenerateCertificatesRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.Generate(ctx.Request.Context(), input.ToService(actor, eventID))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleGenerate -> h.svc.Generate -> %w", err)))
		return
	}

	if wantsPDF(ctx) && result.DocumentPDF != nil {
		ctx.Header("X-Certificate-Summary", result.Summary())
		ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificates-event-%d.pdf"`, eventID))
		ctx.Data(http.StatusOK, mimePDF, result.DocumentPDF)
		return
	}

	ctx.JSON(http.StatusOK, response.GenerateResponse{
		Summary:     result.Summary(),
		BatchResult: result,
		DocumentPDF: result.DocumentPDF,
	})
}

func wantsPDF(ctx *gin.Context) bool {
	return strings.Contains(ctx.GetHeader("Accept"), mimePDF)
}

// HandleListByEvent godoc
// @Summary      List certificates issued for an event
// @Tags         certificates
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Success      200    {array}   domain.CertificateRecord
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/certificates [get]
// @Security BearerAuth
func (h *CertificateHandler) HandleListByEvent(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	eventID, respErr := uintParam(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if _, err := h.events.GetEvent(ctx.Request.Context(), actor, eventID); err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleListByEvent -> h.events.GetEvent -> %w", err)))
		return
	}
	records, err := h.svc.ListByEvent(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleListByEvent -> h.svc.ListByEvent -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, records)
}

// HandlePublicView godoc
// @Summary      Public certificate view
// @Description  Target of the QR code printed on a certificate. No authentication.
// @Tags         certificates
// @Produce      json
// @Param        certificateID  path  string  true  "Certificate ID"
// @Success      200    {object}  response.PublicCertificate
// @Failure      404    {object}  response.Err
// @Router       /certificates/{certificateID} [get]
func (h *CertificateHandler) HandlePublicView(ctx *gin.Context) {
	id := ctx.Param("certificateID")

	record, err := h.svc.Lookup(ctx.Request.Context(), id)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandlePublicView -> h.svc.Lookup -> %w", err)))
		return
	}

	var eventName string
	event, err := h.events.GetEvent(ctx.Request.Context(), record.OwnerID, record.EventID)
	switch {
	case err == nil:
		eventName = event.Name
	case !errors.Is(err, domain.ErrNotFound):
		zap.L().Warn("public view without event name", zap.String("certificate_id", id), zap.Error(err))
	}

	ctx.JSON(http.StatusOK, response.NewPublicCertificate(record, eventName))
}
