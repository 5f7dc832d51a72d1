package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/pkg/jwthelper"
)

// ContextUserIDKey holds the authenticated organizer's id, the actor for
// every ledger write.
const ContextUserIDKey = "userID"

var errMissingToken = errors.New("missing bearer token")

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

// VerifyJWT accepts the token from the Authorization header or, for websocket
// upgrades where browsers cannot set headers, from the access_token query
// parameter.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingToken))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, token, ctx.Request.UserAgent())
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if websocketUpgrade(ctx) {
		return ctx.Query("access_token")
	}
	return ""
}

func websocketUpgrade(ctx *gin.Context) bool {
	return strings.EqualFold(ctx.GetHeader("Upgrade"), "websocket")
}

// UserID returns the actor set by VerifyJWT, or 0 when the route is public.
func UserID(ctx *gin.Context) uint {
	return ctx.GetUint(ContextUserIDKey)
}
