package controllers

import (
	"context"
	"log"
	"net/http"

	"luxio/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CSRFIssuer interface {
	Issue(ctx context.Context, binding string) (string, error)
}

type CSRFController struct {
	tokens       CSRFIssuer
	secureCookie bool
}

func NewCSRFController(tokens CSRFIssuer, secureCookie bool) *CSRFController {
	return &CSRFController{tokens: tokens, secureCookie: secureCookie}
}

// browserID returns the caller's CSRF cookie, setting a fresh one when it is missing
// or malformed.
func (h *CSRFController) browserID(c *gin.Context) string {
	if sid, err := c.Cookie(middlewares.CSRFCookie); err == nil {
		if _, perr := uuid.Parse(sid); perr == nil {
			return sid
		}
	}
	sid := uuid.NewString()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middlewares.CSRFCookie, sid, 0, "/", "", h.secureCookie, true)
	return sid
}

func (h *CSRFController) Token(c *gin.Context) {
	token, err := h.tokens.Issue(c.Request.Context(), h.browserID(c))
	if err != nil {
		log.Printf("Failed to issue CSRF token: %v", err)
		respondError(c, http.StatusServiceUnavailable, "Could not issue CSRF token")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}
