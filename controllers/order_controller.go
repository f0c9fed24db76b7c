package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"luxio/middlewares"
	"luxio/models"
	"luxio/repository"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orders    repository.Orders
	publisher EventPublisher
}

func NewOrderController(orders repository.Orders, publisher EventPublisher) *OrderController {
	return &OrderController{orders: orders, publisher: publisher}
}

func (o *OrderController) List(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("list", succeeded(c))
	}()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := o.orders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to list orders for user %d: %v", userID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if list == nil {
		list = []models.StoredOrder{}
	}
	c.JSON(http.StatusOK, list)
}

func (o *OrderController) Get(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("details", succeeded(c))
	}()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := o.orders.Get(c.Request.Context(), orderID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		log.Printf("Failed to load order %d: %v", orderID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, order)
}

// Delete removes an order the user abandoned. Paid orders are kept.
func (o *OrderController) Delete(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("delete", succeeded(c))
	}()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	err := o.orders.DeletePending(c.Request.Context(), orderID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Order not found or already processed")
		return
	}
	if err != nil {
		log.Printf("Failed to delete order %d: %v", orderID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, models.Result{Success: true, Message: "Order deleted"})
}

// UpdateStatus is the operator route that confirms payments and shipping.
func (o *OrderController) UpdateStatus(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("update_status", succeeded(c))
	}()
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var request struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}
	if !request.Status.Valid() {
		respondCode(c, http.StatusBadRequest, "Unknown order status", models.CodeValidation)
		return
	}

	err := o.orders.UpdateStatus(c.Request.Context(), orderID, request.Status)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, repository.ErrInvalidStatus):
		respondError(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Printf("Failed to update order %d: %v", orderID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order_id": orderID})

	if o.publisher != nil {
		evt := models.OrderEvent{
			OrderID:  orderID,
			Type:     models.EventStatusUpdated,
			Status:   request.Status,
			Occurred: time.Now(),
		}
		if err := o.publisher.PublishOrderEvent(c.Request.Context(), evt); err != nil {
			log.Printf("Failed to publish order updated event: %v", err)
		}
	}
}

// HandleDeadLetter 死信队列处理函数
func (o *OrderController) HandleDeadLetter(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("dead_letter", succeeded(c))
	}()

	var deadLetter struct {
		OrderID int64  `json:"order_id" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}

	log.Printf("Handling dead letter for order %d: %s", deadLetter.OrderID, deadLetter.Reason)
	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
