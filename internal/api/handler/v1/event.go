package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventpass/eventpass-api/internal/api/handler/v1/request"
	"github.com/eventpass/eventpass-api/internal/api/handler/v1/response"
	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/service"
)

type EventService interface {
	CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	ListOwnEvents(ctx context.Context, organizerID string) ([]domain.Event, error)
	ListAllEvents(ctx context.Context) ([]domain.Event, error)
	RequireOrganizer(ctx context.Context, eventID, userID string) (domain.Event, error)
	CreateBadge(ctx context.Context, organizerID string, badge domain.BadgeTemplate) (domain.BadgeTemplate, error)
	ListBadges(ctx context.Context, eventID string) ([]domain.BadgeTemplate, error)
	Handshake(ctx context.Context, eventID, organizerID string) (string, error)
}

type EventHandler struct {
	svc  EventService
	uSvc UserService
}

func NewEventHandler(svc EventService, uSvc UserService) *EventHandler {
	return &EventHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleListOwnEvents godoc
// @Summary      List the events organized by the authenticated user
// @Tags         events
// @Produce      json
// @Success      200      {array}    domain.Event
// @Failure      401      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events [get]
// @Security     BearerAuth
func (h *EventHandler) HandleListOwnEvents(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	events, err := h.svc.ListOwnEvents(ctx.Request.Context(), user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleListOwnEvents -> h.svc.ListOwnEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleListAllEvents godoc
// @Summary      Discover every event
// @Tags         events
// @Produce      json
// @Success      200      {array}    domain.Event
// @Failure      500      {object}   response.Err
// @Router       /events/all [get]
// @Security     BearerAuth
func (h *EventHandler) HandleListAllEvents(ctx *gin.Context) {
	events, err := h.svc.ListAllEvents(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleListAllEvents -> h.svc.ListAllEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleCreateEvent godoc
// @Summary      Create an event
// @Description  Only organizers can create events.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        request   body      request.CreateEventRequest true "request body"
// @Success      201      {object}   domain.Event
// @Failure      400      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events [post]
// @Security     BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsOrganizer() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an organizer", user.ID)))
		return
	}

	var req request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.svc.CreateEvent(ctx.Request.Context(), domain.Event{
		OrganizerID: user.ID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidTimeRange) {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}
		response.RenderErr(ctx, classifyErr("v1.HandleCreateEvent -> h.svc.CreateEvent", err))
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

// HandleGetEvent godoc
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Param        eventID   path      string  true  "event ID"
// @Success      200      {object}   domain.Event
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events/{eventID} [get]
// @Security     BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	eventID := ctx.Param("eventID")

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleGetEvent -> h.svc.GetEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleListBadges godoc
// @Summary      List the badge templates of an event
// @Tags         events
// @Produce      json
// @Param        eventID   path      string  true  "event ID"
// @Success      200      {array}    domain.BadgeTemplate
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events/{eventID}/badges [get]
// @Security     BearerAuth
func (h *EventHandler) HandleListBadges(ctx *gin.Context) {
	eventID := ctx.Param("eventID")

	badges, err := h.svc.ListBadges(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleListBadges -> h.svc.ListBadges -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, badges)
}

// HandleCreateBadge godoc
// @Summary      Create a badge template
// @Description  Only the organizer of the event can add badges to it.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        eventID   path      string  true  "event ID"
// @Param        request   body      request.CreateBadgeRequest true "request body"
// @Success      201      {object}   domain.BadgeTemplate
// @Failure      400      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events/{eventID}/badges [post]
// @Security     BearerAuth
func (h *EventHandler) HandleCreateBadge(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateBadgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	badge, err := h.svc.CreateBadge(ctx.Request.Context(), user.ID, domain.BadgeTemplate{
		EventID: ctx.Param("eventID"),
		Name:    req.Name,
		Type:    domain.BadgeType(req.Type),
		IconRef: req.IconRef,
		Limit:   req.Limit,
	})
	if err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleCreateBadge -> h.svc.CreateBadge", err))
		return
	}

	ctx.JSON(http.StatusCreated, badge)
}

// HandleHandshake godoc
// @Summary      Rotate the offline session key of an event
// @Description  Generates a new session key, replacing the previous one, and enables offline issuance.
// @Tags         events
// @Produce      json
// @Param        eventID   path      string  true  "event ID"
// @Success      200      {object}   response.HandshakeResponse
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events/{eventID}/handshake [post]
// @Security     BearerAuth
func (h *EventHandler) HandleHandshake(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID := ctx.Param("eventID")
	key, err := h.svc.Handshake(ctx.Request.Context(), eventID, user.ID)
	if err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleHandshake -> h.svc.Handshake", err))
		return
	}

	ctx.JSON(http.StatusOK, response.HandshakeResponse{
		EventID:    eventID,
		SessionKey: key,
	})
}
