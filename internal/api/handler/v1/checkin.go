package v1

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

type CheckinService interface {
	Toggle(ctx context.Context, target service.CheckinTarget, actor uint) (domain.CheckinRecord, error)
	BulkToggle(ctx context.Context, ownerID, eventID uint, registrationIDs []uint, day domain.DayKey, actor uint) (domain.BulkResult, error)
	SetStatus(ctx context.Context, target service.CheckinTarget, status domain.CheckinStatus, actor uint, notes string) (domain.CheckinRecord, error)
	StatusOf(ctx context.Context, ownerID uint, key domain.CheckinKey) (domain.CheckinStatus, error)
	BatchStatus(ctx context.Context, ownerID uint, registrationIDs []uint) (map[uint][]domain.CheckinRecord, error)
}

// Organizers own their events, so the authenticated organizer is both the
// owner scope and the actor recorded on the ledger.
type CheckinHandler struct {
	svc    CheckinService
	events EventService
}

func NewCheckinHandler(svc CheckinService, events EventService) *CheckinHandler {
	return &CheckinHandler{
		svc:    svc,
		events: events,
	}
}

// HandleToggle godoc
// @Summary      Toggle a participant's check-in
// @Tags         checkins
// @Accept       json
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        input  body      request.ToggleCheckinRequest  true  "Key"
// @Success      200    {object}  domain.CheckinRecord
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/checkins/toggle [post]
// @Security BearerAuth
func (h *CheckinHandler) HandleToggle(ctx *gin.Context) {
	actor, eventID, respErr := h.scope(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.ToggleCheckinRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	record, err := h.svc.Toggle(ctx.Request.Context(), service.CheckinTarget{
		OwnerID:        actor,
		EventID:        eventID,
		RegistrationID: input.RegistrationID,
		Day:            domain.DayKey(input.Day),
	}, actor)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleToggle -> h.svc.Toggle -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// HandleBulkToggle godoc
// @Summary      Toggle many participants at once
// @Description  Best effort: each participant is toggled independently and failures are listed per id.
// @Tags         checkins
// @Accept       json
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        input  body      request.BulkToggleCheckinRequest  true  "Selection"
// @Success      200    {object}  domain.BulkResult
// @Failure      400    {object}  response.Err
// @Router       /events/{eventID}/checkins/bulk-toggle [post]
// @Security BearerAuth
func (h *CheckinHandler) HandleBulkToggle(ctx *gin.Context) {
	actor, eventID, respErr := h.scope(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.BulkToggleCheckinRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.BulkToggle(ctx.Request.Context(), actor, eventID, input.RegistrationIDs, domain.DayKey(input.Day), actor)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleBulkToggle -> h.svc.BulkToggle -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// HandleSetStatus godoc
// @Summary      Set a participant's check-in status
// @Description  Idempotent. Setting done twice keeps the first check-in time.
// @Tags         checkins
// @Accept       json
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        input  body      request.SetCheckinStatusRequest  true  "Status"
// @Success      200    {object}  domain.CheckinRecord
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/checkins [put]
// @Security BearerAuth
func (h *CheckinHandler) HandleSetStatus(ctx *gin.Context) {
	actor, eventID, respErr := h.scope(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.SetCheckinStatusRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	record, err := h.svc.SetStatus(ctx.Request.Context(), service.CheckinTarget{
		OwnerID:        actor,
		EventID:        eventID,
		RegistrationID: input.RegistrationID,
		Day:            domain.DayKey(input.Day),
	}, domain.CheckinStatus(input.Status), actor, input.Notes)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleSetStatus -> h.svc.SetStatus -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// HandleStatus godoc
// @Summary      Check-in status of one key
// @Tags         checkins
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        registrationID  path  int  true  "Registration ID"
// @Param        day  query  string  false  "YYYY-MM-DD, empty for the collective check-in"
// @Success      200    {object}  response.CheckinStatusResponse
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/checkins/{registrationID} [get]
// @Security BearerAuth
func (h *CheckinHandler) HandleStatus(ctx *gin.Context) {
	actor, eventID, respErr := h.scope(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	registrationID, respErr := uintParam(ctx, "registrationID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.events.GetEvent(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleStatus -> h.events.GetEvent -> %w", err)))
		return
	}
	day := domain.DayKey(ctx.Query("day"))
	if _, ok := event.Bucket(day); !ok {
		response.RenderErr(ctx, response.FromDomain(domain.NewValidationError("day %q is not a check-in day of event %d", day, eventID)))
		return
	}

	registered, err := h.registrationIDs(ctx, actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleStatus -> %w", err)))
		return
	}
	if _, ok := registered[registrationID]; !ok {
		response.RenderErr(ctx, response.FromDomain(domain.NewNotFoundError("registration %d in event %d", registrationID, eventID)))
		return
	}

	key := domain.CheckinKey{RegistrationID: registrationID, DayKey: day}
	status, err := h.svc.StatusOf(ctx.Request.Context(), actor, key)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleStatus -> h.svc.StatusOf -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, response.CheckinStatusResponse{
		RegistrationID: registrationID,
		Day:            day,
		Status:         status,
	})
}

// HandleOverview godoc
// @Summary      Check-in rows for many participants
// @Description  Returns the event's day buckets and every ledger row of the requested participants. Without
// @Description  registration_ids all of the event's participants are included.
// @Tags         checkins
// @Produce      json
// @Param        eventID  path  int  true  "Event ID"
// @Param        registration_ids  query  string  false  "Comma separated ids"
// @Success      200    {object}  response.CheckinOverview
// @Failure      400    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /events/{eventID}/checkins [get]
// @Security BearerAuth
func (h *CheckinHandler) HandleOverview(ctx *gin.Context) {
	actor, eventID, respErr := h.scope(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ids, err := uintList(ctx.Query("registration_ids"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.events.GetEvent(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleOverview -> h.events.GetEvent -> %w", err)))
		return
	}
	registered, err := h.registrationIDs(ctx, actor, eventID)
	if err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleOverview -> %w", err)))
		return
	}
	if len(ids) == 0 {
		for id := range registered {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	} else {
		// ids of other events are dropped, not reported
		ids = slices.DeleteFunc(ids, func(id uint) bool {
			_, ok := registered[id]
			return !ok
		})
	}

	records := map[uint][]domain.CheckinRecord{}
	if len(ids) > 0 {
		records, err = h.svc.BatchStatus(ctx.Request.Context(), actor, ids)
		if err != nil {
			response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleOverview -> h.svc.BatchStatus -> %w", err)))
			return
		}
	}

	ctx.JSON(http.StatusOK, response.CheckinOverview{
		Buckets: event.Buckets(),
		Records: records,
	})
}

// registrationIDs returns the ids of the participants registered to eventID.
func (h *CheckinHandler) registrationIDs(ctx *gin.Context, actor, eventID uint) (map[uint]struct{}, error) {
	registrations, err := h.events.ListRegistrations(ctx.Request.Context(), actor, eventID)
	if err != nil {
		return nil, fmt.Errorf("h.events.ListRegistrations -> %w", err)
	}
	ids := make(map[uint]struct{}, len(registrations))
	for _, r := range registrations {
		ids[r.ID] = struct{}{}
	}
	return ids, nil
}

func (h *CheckinHandler) scope(ctx *gin.Context) (uint, uint, *response.Err) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		return 0, 0, respErr
	}
	eventID, respErr := uintParam(ctx, "eventID")
	if respErr != nil {
		return 0, 0, respErr
	}
	return actor, eventID, nil
}
