package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/render"
)

type TemplateService interface {
	CreateTemplate(ctx context.Context, template domain.Template) (domain.Template, error)
	UpdateTemplate(ctx context.Context, template domain.Template) (domain.Template, error)
	GetTemplate(ctx context.Context, ownerID, id uint) (domain.Template, error)
}

type TemplatePreviewer interface {
	Render(ctx context.Context, tpl domain.Template, fields render.FieldResolver, qrPayload string) ([]byte, error)
}

// previewFields fills built-in fields with recognizable sample values; custom
// keys render as their own name.
type previewFields struct{}

func (previewFields) Resolve(key render.FieldKey) string {
	if b, ok := key.BuiltIn(); ok {
		switch b {
		case render.FieldName:
			return "Jane Participant"
		case render.FieldEmail:
			return "jane@example.com"
		}
	}
	return "{" + key.String() + "}"
}

type TemplateHandler struct {
	svc     TemplateService
	preview TemplatePreviewer
}

func NewTemplateHandler(svc TemplateService, preview TemplatePreviewer) *TemplateHandler {
	return &TemplateHandler{
		svc:     svc,
		preview: preview,
	}
}

// HandleCreateTemplate godoc
// @Summary      Create a certificate template
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        input  body      request.TemplateRequest  true  "Template"
// @Success      201    {object}  domain.Template
// @Failure      400    {object}  response.Err
// @Router       /templates [post]
// @Security BearerAuth
func (h *TemplateHandler) HandleCreateTemplate(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.TemplateRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	created, err := h.svc.CreateTemplate(ctx.Request.Context(), input.ToDomain(actor, 0))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleCreateTemplate -> h.svc.CreateTemplate -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// HandleUpdateTemplate godoc
// @Summary      Replace a certificate template
// @Tags         templates
// @Accept       json
// @Produce      json
// @Param        templateID  path  int  true  "Template ID"
// @Param        input  body      request.TemplateRequest  true  "Template"
// @Success      200    {object}  domain.Template
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /templates/{templateID} [put]
// @Security BearerAuth
func (h *TemplateHandler) HandleUpdateTemplate(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	templateID, respErr := uintParam(ctx, "templateID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.TemplateRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	updated, err := h.svc.UpdateTemplate(ctx.Request.Context(), input.ToDomain(actor, templateID))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleUpdateTemplate -> h.svc.UpdateTemplate -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// HandleGetTemplate godoc
// @Summary      Get a certificate template
// @Tags         templates
// @Produce      json
// @Param        templateID  path  int  true  "Template ID"
// @Success      200    {object}  domain.Template
// @Failure      404    {object}  response.Err
// @Router       /templates/{templateID} [get]
// @Security BearerAuth
func (h *TemplateHandler) HandleGetTemplate(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	templateID, respErr := uintParam(ctx, "templateID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tpl, err := h.svc.GetTemplate(ctx.Request.Context(), actor, templateID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleGetTemplate -> h.svc.GetTemplate -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, tpl)
}

// HandlePreviewTemplate godoc
// @Summary      Render a template with sample values
// @Tags         templates
// @Produce      png
// @Param        templateID  path  int  true  "Template ID"
// @Success      200
// @Failure      404    {object}  response.Err
// @Router       /templates/{templateID}/preview [get]
// @Security BearerAuth
func (h *TemplateHandler) HandlePreviewTemplate(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	templateID, respErr := uintParam(ctx, "templateID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	tpl, err := h.svc.GetTemplate(ctx.Request.Context(), actor, templateID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandlePreviewTemplate -> h.svc.GetTemplate -> %w", err)))
		return
	}

	// No payload: QR elements show the placeholder glyph.
	png, err := h.preview.Render(ctx.Request.Context(), tpl, previewFields{}, "")
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandlePreviewTemplate -> h.preview.Render -> %w", err)))
		return
	}

	ctx.Data(http.StatusOK, "image/png", png)
}
