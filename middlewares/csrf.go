package middlewares

import (
	"context"
	"log"
	"net/http"

	"luxio/models"

	"github.com/gin-gonic/gin"
)

// CSRFCookie holds the per-browser id that CSRF tokens are bound to.
const CSRFCookie = "luxio_csrf_sid"

type CSRFValidator interface {
	Valid(ctx context.Context, token, binding string) (bool, error)
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// CSRFMiddleware requires a live X-CSRF-Token on every state-changing request, issued
// to the same browser that sends it.
func CSRFMiddleware(tokens CSRFValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethod(c.Request.Method) {
			c.Next()
			return
		}

		token := c.GetHeader("X-CSRF-Token")
		if token == "" {
			abortWithCode(c, http.StatusForbidden, "CSRF token missing", models.CodeCSRFMissing)
			return
		}
		binding, _ := c.Cookie(CSRFCookie)
		ok, err := tokens.Valid(c.Request.Context(), token, binding)
		if err != nil {
			log.Printf("CSRF validation failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Session store unavailable"})
			return
		}
		if !ok {
			abortWithCode(c, http.StatusForbidden, "CSRF token invalid or expired", models.CodeCSRFInvalid)
			return
		}
		c.Next()
	}
}
