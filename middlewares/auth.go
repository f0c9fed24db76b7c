package middlewares

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"luxio/models"
	"luxio/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "userID"
	ContextClaims = "claims"

	authCookie = "auth_token"
)

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func abortWithCode(c *gin.Context, status int, msg, code string) {
	recordAuthFailure(code)
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg, Code: code})
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(authCookie); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware verifies the JWT from the Authorization header or the auth_token
// cookie and stores the user id and claims on the context.
func AuthMiddleware(secret string, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortWithCode(c, http.StatusUnauthorized, "Authentication required", models.CodeTokenMissing)
			return
		}

		claims, err := utils.ParseToken(secret, token)
		if errors.Is(err, utils.ErrTokenExpired) {
			abortWithCode(c, http.StatusUnauthorized, "Token has expired", models.CodeJWTExpired)
			return
		}
		if err != nil {
			abortWithCode(c, http.StatusUnauthorized, "Invalid token", models.CodeInvalidToken)
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Printf("Revocation lookup failed for token %s: %v", claims.ID, err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Session store unavailable"})
				return
			}
			if isRevoked {
				abortWithCode(c, http.StatusUnauthorized, "Session has ended", models.CodeSessionExpired)
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func UserID(c *gin.Context) (int64, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	v, ok := id.(int64)
	return v, ok
}

func Claims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
