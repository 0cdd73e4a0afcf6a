package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes understood by device clients.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeWrongCredentials   = "WRONG_CREDENTIALS"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeExpiredToken       = "EXPIRED_TOKEN"
	CodeAlreadyClaimed     = "ALREADY_CLAIMED"
	CodeOrganizerNotSynced = "ORGANIZER_NOT_SYNCED"
	CodeDecryptionFailure  = "DECRYPTION_FAILURE"
	CodeMissingSessionKey  = "MISSING_SESSION_KEY"
	CodeInvalidWinProof    = "INVALID_WIN_PROOF"
	CodeEventNotFound      = "EVENT_NOT_FOUND"
	CodeBadgeNotFound      = "BADGE_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
)

type Err struct {
	Err        error  `json:"-"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error,omitempty"`
}

func (e *Err) Error() string {
	if e.Err == nil {
		return e.StatusText
	}
	return e.Err.Error()
}

func newErr(status int, code string, err error) *Err {
	e := &Err{
		Err:        err,
		StatusCode: status,
		StatusText: http.StatusText(status),
		ErrorCode:  code,
	}
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// RenderErr writes e as JSON and aborts the chain. Server errors are logged
// and their message is not rendered.
func RenderErr(ctx *gin.Context, e *Err) {
	if e.StatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Error(e.Err))
		e.ErrorMsg = ""
	}

	ctx.AbortWithStatusJSON(e.StatusCode, e)
}

func ErrBadRequest(err error) *Err {
	return newErr(http.StatusBadRequest, CodeBadRequest, err)
}

func ErrUnauthorized(err error) *Err {
	return newErr(http.StatusUnauthorized, CodeUnauthorized, err)
}

func ErrWrongCredentials(err error) *Err {
	return newErr(http.StatusUnauthorized, CodeWrongCredentials, err)
}

func ErrPermissionDenied(err error) *Err {
	return newErr(http.StatusForbidden, CodePermissionDenied, err)
}

func ErrNotFound(resource, field string, value any) *Err {
	code := CodeNotFound
	switch resource {
	case "event":
		code = CodeEventNotFound
	case "badge":
		code = CodeBadgeNotFound
	}
	return newErr(http.StatusNotFound, code, fmt.Errorf("%s with %s %v not found", resource, field, value))
}

func ErrEventNotFound(err error) *Err {
	return newErr(http.StatusNotFound, CodeEventNotFound, err)
}

func ErrBadgeNotFound(err error) *Err {
	return newErr(http.StatusNotFound, CodeBadgeNotFound, err)
}

func ErrInternalServerError(err error) *Err {
	return newErr(http.StatusInternalServerError, CodeInternal, err)
}

func ErrInvalidToken(err error) *Err {
	return newErr(http.StatusUnauthorized, CodeInvalidToken, err)
}

func ErrExpiredToken(err error) *Err {
	return newErr(http.StatusUnauthorized, CodeExpiredToken, err)
}

func ErrAlreadyClaimed(err error) *Err {
	return newErr(http.StatusConflict, CodeAlreadyClaimed, err)
}

func ErrOrganizerNotSynced(err error) *Err {
	return newErr(http.StatusConflict, CodeOrganizerNotSynced, err)
}

func ErrDecryptionFailure(err error) *Err {
	return newErr(http.StatusBadRequest, CodeDecryptionFailure, err)
}

func ErrMissingSessionKey(err error) *Err {
	return newErr(http.StatusPreconditionFailed, CodeMissingSessionKey, err)
}

func ErrInvalidWinProof(err error) *Err {
	return newErr(http.StatusBadRequest, CodeInvalidWinProof, err)
}
