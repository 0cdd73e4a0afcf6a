package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventpass/eventpass-api/internal/api/handler/v1/response"
	"github.com/eventpass/eventpass-api/internal/api/middleware"
	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/service"
)

type UserService interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListCredentials(ctx context.Context, userID string) ([]domain.CredentialRecord, error)
}

func getUserFromContext(ctx *gin.Context, svc UserService) (domain.User, *response.Err) {
	userID := ctx.GetString(middleware.ContextKeyUserID)
	if userID == "" {
		return domain.User{}, response.ErrUnauthorized(errors.New("no authenticated user"))
	}

	user, err := svc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return domain.User{}, response.ErrUnauthorized(fmt.Errorf("user %v no longer exists", userID))
		}

		return domain.User{}, response.ErrInternalServerError(fmt.Errorf("getUserFromContext -> svc.GetUser -> %w", err))
	}

	return user, nil
}

// classifyErr maps a service error onto its HTTP representation. op names
// the failing call for server side errors.
func classifyErr(op string, err error) *response.Err {
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		return response.ErrInvalidToken(domain.ErrInvalidToken)
	case errors.Is(err, domain.ErrExpiredToken):
		return response.ErrExpiredToken(domain.ErrExpiredToken)
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return response.ErrAlreadyClaimed(domain.ErrAlreadyClaimed)
	case errors.Is(err, domain.ErrOrganizerNotSynced):
		return response.ErrOrganizerNotSynced(domain.ErrOrganizerNotSynced)
	case errors.Is(err, domain.ErrDecryption):
		return response.ErrDecryptionFailure(domain.ErrDecryption)
	case errors.Is(err, domain.ErrMissingSessionKey):
		return response.ErrMissingSessionKey(domain.ErrMissingSessionKey)
	case errors.Is(err, domain.ErrInvalidWinProof):
		return response.ErrInvalidWinProof(domain.ErrInvalidWinProof)
	case errors.Is(err, domain.ErrNotTeamMember):
		return response.ErrPermissionDenied(domain.ErrNotTeamMember)
	case errors.Is(err, service.ErrMalformedClaim):
		return response.ErrBadRequest(service.ErrMalformedClaim)
	case errors.Is(err, service.ErrPermissionDenied):
		return response.ErrPermissionDenied(service.ErrPermissionDenied)
	case errors.Is(err, service.ErrEventNotFound):
		return response.ErrEventNotFound(service.ErrEventNotFound)
	case errors.Is(err, service.ErrBadgeNotFound):
		return response.ErrBadgeNotFound(service.ErrBadgeNotFound)
	}

	return response.ErrInternalServerError(fmt.Errorf("%s -> %w", op, err))
}

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         healthcheck
// @Produce      json
// @Success      200      {object}   response.HealthcheckResponse
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.HealthcheckResponse{Status: "ok"})
}
