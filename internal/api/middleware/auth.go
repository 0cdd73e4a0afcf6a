package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventpass/eventpass-api/internal/api/handler/v1/response"
	"github.com/eventpass/eventpass-api/internal/pkg/jwthelper"
)

// ContextKeyUserID is the gin context key holding the authenticated user id.
const ContextKeyUserID = "userID"

var (
	errMissingAuthHeader = errors.New("missing or malformed authorization header")
)

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

// VerifyJWT requires a valid bearer token and stores its subject under
// ContextKeyUserID.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingAuthHeader))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, raw)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		ctx.Set(ContextKeyUserID, claims.Subject)
		ctx.Next()
	}
}
