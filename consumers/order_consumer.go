package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"luxio/config"
	"luxio/models"
	"luxio/repository"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrMalformed marks messages that can never be processed; they go to the dead letter
// queue instead of being requeued.
var ErrMalformed = errors.New("malformed order event")

type OrderStore interface {
	Status(ctx context.Context, id int64) (models.OrderStatus, models.PaymentMethod, error)
	UpdateStatus(ctx context.Context, id int64, next models.OrderStatus) error
}

type OrderConsumer struct {
	orders     OrderStore
	autoCancel map[models.PaymentMethod]bool
}

// NewOrderConsumer builds a consumer whose payment check cancels unpaid orders of the
// autoCancel methods. With none given every gateway method is cancelled.
func NewOrderConsumer(orders OrderStore, autoCancel ...models.PaymentMethod) *OrderConsumer {
	c := &OrderConsumer{orders: orders, autoCancel: map[models.PaymentMethod]bool{}}
	for _, m := range autoCancel {
		if m.IsGateway() {
			c.autoCancel[m] = true
		}
	}
	return c
}

func (c *OrderConsumer) cancels(method models.PaymentMethod) bool {
	if len(c.autoCancel) == 0 {
		return method.IsGateway()
	}
	return c.autoCancel[method]
}

func (c *OrderConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"luxio-order-service", // consumer tag
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register order consumer: %w", err)
	}

	dlqMsgs, err := ch.Consume(cfg.DeadLetterQueue, "luxio-order-service-dlq", false, false, false, false, nil)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			c.deliver(ctx, msg)
		}
	}()
	if dlqMsgs != nil {
		go func() {
			for msg := range dlqMsgs {
				log.Printf("Received dead letter: %s", msg.Body)
				_ = msg.Ack(false)
			}
		}()
	}
	return nil
}

func (c *OrderConsumer) deliver(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
			_ = msg.Nack(false, false)
		}
	}()

	err := c.Handle(ctx, msg.Body)
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.Is(err, ErrMalformed):
		log.Printf("Rejecting message: %v", err)
		_ = msg.Nack(false, false)
	default:
		log.Printf("Failed to process order event, requeueing: %v", err)
		_ = msg.Nack(false, !msg.Redelivered)
	}
}

// Handle processes one event body.
func (c *OrderConsumer) Handle(ctx context.Context, body []byte) error {
	var evt models.OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if evt.OrderID <= 0 || evt.Type == "" {
		return fmt.Errorf("%w: %s", ErrMalformed, body)
	}
	log.Printf("Processing order event: ID=%d, Ref=%s, Type=%s", evt.OrderID, evt.Reference, evt.Type)

	switch evt.Type {
	case models.EventOrderCreated:
		log.Printf("Order %s created via %s, total %.2f", evt.Reference, evt.Method, evt.Total)
		return nil
	case models.EventTicketsSubmitted:
		log.Printf("Order %s awaiting manual voucher verification", evt.Reference)
		return nil
	case models.EventStatusUpdated:
		log.Printf("Order %s moved to %s", evt.Reference, evt.Status)
		return nil
	case models.EventPaymentCheck:
		return c.paymentCheck(ctx, evt)
	}
	log.Printf("Unknown event type: %s", evt.Type)
	return nil
}

// paymentCheck cancels gateway orders that are still unpaid when the delayed check
// fires. Bank transfers and vouchers are confirmed by hand and are left alone.
func (c *OrderConsumer) paymentCheck(ctx context.Context, evt models.OrderEvent) error {
	status, method, err := c.orders.Status(ctx, evt.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Order %d no longer exists, skipping payment check", evt.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	if status != models.OrderPending || !c.cancels(method) {
		return nil
	}

	err = c.orders.UpdateStatus(ctx, evt.OrderID, models.OrderCancelled)
	if errors.Is(err, repository.ErrInvalidStatus) {
		log.Printf("Order %d changed while checking payment: %v", evt.OrderID, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto-cancel order %d: %w", evt.OrderID, err)
	}
	log.Printf("Auto-cancelled order %d due to non-payment", evt.OrderID)
	return nil
}
