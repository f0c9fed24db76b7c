package models

import (
	"time"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	// OrderCancelled is only ever set by the server.
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the server may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderPaid || next == OrderCancelled
	case OrderPaid:
		return next == OrderShipped || next == OrderCancelled
	case OrderShipped:
		return next == OrderDelivered
	}
	return false
}

type CustomerInfo struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,phone"`
	Address    string `json:"address" validate:"required,min=5,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// Order is the browser-side record of a placed order.
type Order struct {
	Reference    string       `json:"reference"`
	Items        []CartItem   `json:"items"`
	Total        float64      `json:"total"`
	Status       OrderStatus  `json:"status"`
	Date         time.Time    `json:"date"`
	CustomerInfo CustomerInfo `json:"customerInfo"`
}

// StoredOrder is the server's order of record.
type StoredOrder struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"userId"`
	Reference     string        `json:"reference"`
	Total         float64       `json:"total"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CustomerInfo  CustomerInfo  `json:"customerInfo"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subtotal    float64 `json:"subtotal"`
}

type OrderEvent struct {
	OrderID   int64         `json:"order_id"`
	Reference string        `json:"reference"`
	UserID    int64         `json:"user_id"`
	Type      string        `json:"type"` // created, tickets_submitted, status_updated, payment_check
	Status    OrderStatus   `json:"status"`
	Method    PaymentMethod `json:"method"`
	Total     float64       `json:"total"`
	Occurred  time.Time     `json:"occurred"`
}

const (
	EventOrderCreated     = "created"
	EventTicketsSubmitted = "tickets_submitted"
	EventStatusUpdated    = "status_updated"
	EventPaymentCheck     = "payment_check"
)
