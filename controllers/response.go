package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"luxio/middlewares"
	"luxio/models"

	"github.com/gin-gonic/gin"
)

// EventPublisher sends order events to the broker.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error
	PublishDelayedEvent(ctx context.Context, evt models.OrderEvent, delay time.Duration) error
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, models.ErrorResponse{Error: msg})
}

func respondCode(c *gin.Context, status int, msg, code string) {
	c.JSON(status, models.ErrorResponse{Error: msg, Code: code})
}

func succeeded(c *gin.Context) bool {
	return c.Writer.Status() >= 200 && c.Writer.Status() < 300
}

// currentUser returns the authenticated user id or answers 401.
func currentUser(c *gin.Context) (int64, bool) {
	id, ok := middlewares.UserID(c)
	if !ok {
		respondCode(c, http.StatusUnauthorized, "User not authenticated", models.CodeTokenMissing)
		return 0, false
	}
	return id, true
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return 0, false
	}
	return id, true
}
