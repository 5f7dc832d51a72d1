package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/domain"
)

type EventService interface {
	CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	GetEvent(ctx context.Context, ownerID, id uint) (domain.Event, error)
	ListEvents(ctx context.Context, ownerID uint) ([]domain.Event, error)
	AddRegistration(ctx context.Context, registration domain.Registration) (domain.Registration, error)
	ListRegistrations(ctx context.Context, ownerID, eventID uint) ([]domain.Registration, error)
}

type EventHandler struct {
	svc EventService
}

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{
		svc: svc,
	}
}

// HandleCreateEvent godoc
// @Summary      Create an event
// @Description  Events spanning more than one calendar day check in per day unless checkin_mode says otherwise.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        input  body      request.CreateEventRequest  true  "Event details"
// @Success      201    {object}  domain.Event
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Router       /events [post]
// @Security BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	event, err := input.ToDomain(actor)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	created, err := h.svc.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleCreateEvent -> h.svc.CreateEvent -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// HandleListEvents godoc
// @Summary      List the organizer's events
// @Tags         events
// @Produce      json
// @Success      200  {array}   domain.Event
// @Failure      401  {object}  response.Err
// @Router       /events [get]
// @Security BearerAuth
func (h *EventHandler) HandleListEvents(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	events, err := h.svc.ListEvents(ctx.Request.Context(), actor)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleListEvents -> h.svc.ListEvents -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleGetEvent godoc
// @Summary      Get an event with its check-in days
// @Tags         events
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Success      200  {object}  domain.Event
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID} [get]
// @Security BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
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

	event, err := h.svc.GetEvent(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleGetEvent -> h.svc.GetEvent -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"event":   event,
		"buckets": event.Buckets(),
	})
}

// HandleAddRegistration godoc
// @Summary      Register a participant
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        input  body      request.CreateRegistrationRequest  true  "Participant"
// @Success      201    {object}  domain.Registration
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/registrations [post]
// @Security BearerAuth
func (h *EventHandler) HandleAddRegistration(ctx *gin.Context) {
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

	var input request.CreateRegistrationRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	created, err := h.svc.AddRegistration(ctx.Request.Context(), input.ToDomain(actor, eventID))
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleAddRegistration -> h.svc.AddRegistration -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// HandleListRegistrations godoc
// @Summary      List an event's participants
// @Tags         events
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Success      200  {array}   domain.Registration
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID}/registrations [get]
// @Security BearerAuth
func (h *EventHandler) HandleListRegistrations(ctx *gin.Context) {
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

	registrations, err := h.svc.ListRegistrations(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleListRegistrations -> h.svc.ListRegistrations -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, registrations)
}
