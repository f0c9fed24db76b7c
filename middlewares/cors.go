package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func CORSMiddleware(allowOrigins []string) gin.HandlerFunc {
	allowAll := len(allowOrigins) == 1 && allowOrigins[0] == "*"

	return func(c *gin.Context) {
		writeCORSHeaders(c, c.GetHeader("Origin"), allowOrigins, allowAll)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeCORSHeaders(c *gin.Context, origin string, allowOrigins []string, allowAll bool) {
	if origin == "" {
		return
	}
	h := c.Writer.Header()
	switch {
	case allowAll:
		// A wildcard never gets credentials.
		h.Set("Access-Control-Allow-Origin", "*")
	case originAllowed(origin, allowOrigins):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Vary", "Origin")
	default:
		return
	}
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, Accept-Language")
}

func originAllowed(origin string, allow []string) bool {
	for _, a := range allow {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(origin)) {
			return true
		}
	}
	return false
}
