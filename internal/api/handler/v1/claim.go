package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/api/handler/v1/request"
	"github.com/eventpass/eventpass-api/internal/api/handler/v1/response"
	"github.com/eventpass/eventpass-api/internal/domain"
)

type TokenIssuer interface {
	Issue(ctx context.Context, eventID string) (domain.EphemeralToken, error)
}

type ClaimRouter interface {
	Claim(ctx context.Context, raw, claimantID string) (domain.CredentialRecord, error)
	ClaimSecure(ctx context.Context, eventID, blob, claimantID string) (domain.CredentialRecord, error)
}

type ValidationLedger interface {
	Sync(ctx context.Context, entries []domain.PendingValidation) (int, error)
}

type ClaimHandler struct {
	router ClaimRouter
	tokens TokenIssuer
	ledger ValidationLedger
	events EventService
	uSvc   UserService
}

func NewClaimHandler(router ClaimRouter, tokens TokenIssuer, ledger ValidationLedger, events EventService, uSvc UserService) *ClaimHandler {
	return &ClaimHandler{
		router: router,
		tokens: tokens,
		ledger: ledger,
		events: events,
		uSvc:   uSvc,
	}
}

// HandleIssueToken godoc
// @Summary      Issue a single-use online claim token
// @Description  The token expires after five minutes. Only the organizer of the event can issue tokens.
// @Tags         claims
// @Produce      json
// @Param        eventID   path      string  true  "event ID"
// @Success      201      {object}   response.TokenResponse
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /events/{eventID}/tokens [post]
// @Security     BearerAuth
func (h *ClaimHandler) HandleIssueToken(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID := ctx.Param("eventID")
	if _, err := h.events.RequireOrganizer(ctx.Request.Context(), eventID, user.ID); err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleIssueToken -> h.events.RequireOrganizer", err))
		return
	}

	token, err := h.tokens.Issue(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleIssueToken -> h.tokens.Issue", err))
		return
	}

	ctx.JSON(http.StatusCreated, response.TokenResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
}

// HandleClaim godoc
// @Summary      Claim a badge
// @Description  Accepts an online token, a static code or a secure code.
// @Tags         claims
// @Accept       json
// @Produce      json
// @Param        request   body      request.ClaimRequest true "request body"
// @Success      201      {object}   domain.CredentialRecord
// @Failure      400      {object}   response.Err
// @Failure      401      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      412      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /claims [post]
// @Security     BearerAuth
func (h *ClaimHandler) HandleClaim(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ClaimRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	record, err := h.router.Claim(ctx.Request.Context(), req.Token, user.ID)
	if err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleClaim -> h.router.Claim", err))
		return
	}

	ctx.JSON(http.StatusCreated, record)
}

// HandleSecureClaim godoc
// @Summary      Redeem a secure offline envelope
// @Description  409 ORGANIZER_NOT_SYNCED means the organizer has not uploaded the matching validation yet.
// @Tags         claims
// @Accept       json
// @Produce      json
// @Param        request   body      request.SecureClaimRequest true "request body"
// @Success      201      {object}   domain.CredentialRecord
// @Failure      400      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      412      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /claims/secure [post]
// @Security     BearerAuth
func (h *ClaimHandler) HandleSecureClaim(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SecureClaimRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	record, err := h.router.ClaimSecure(ctx.Request.Context(), req.EventID, req.Blob, user.ID)
	if err != nil {
		response.RenderErr(ctx, classifyErr("v1.HandleSecureClaim -> h.router.ClaimSecure", err))
		return
	}

	ctx.JSON(http.StatusCreated, record)
}

// HandleSyncValidations godoc
// @Summary      Upload pending validations
// @Description  Organizer devices upload the commitments produced while offline. Entries are stored as is.
// @Tags         claims
// @Accept       json
// @Produce      json
// @Param        request   body      request.SyncValidationsRequest true "request body"
// @Success      200      {object}   response.SyncResponse
// @Failure      400      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /validations/sync [post]
// @Security     BearerAuth
func (h *ClaimHandler) HandleSyncValidations(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.SyncValidationsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	entries := make([]domain.PendingValidation, 0, len(req.Validations))
	checked := make(map[string]struct{})
	for _, v := range req.Validations {
		if _, ok := checked[v.EventID]; !ok {
			if _, err := h.events.RequireOrganizer(ctx.Request.Context(), v.EventID, user.ID); err != nil {
				response.RenderErr(ctx, classifyErr("v1.HandleSyncValidations -> h.events.RequireOrganizer", err))
				return
			}
			checked[v.EventID] = struct{}{}
		}

		entries = append(entries, domain.PendingValidation{
			EventID: v.EventID,
			UserID:  v.UserID,
			Hash:    v.Hash,
		})
	}

	n, err := h.ledger.Sync(ctx.Request.Context(), entries)
	if err != nil {
		err = fmt.Errorf("v1.HandleSyncValidations -> h.ledger.Sync -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	zap.L().Info("validations synced", zap.String("organizer_id", user.ID), zap.Int("accepted", n))

	ctx.JSON(http.StatusOK, response.SyncResponse{Accepted: n})
}
