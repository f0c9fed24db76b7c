package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"luxio/config"
	"luxio/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrDelayUnsupported = errors.New("delayed message exchange not available")

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	delayed bool
}

func NewRabbitMQ(cfg *config.Config) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

func (r *RabbitMQ) SetupQueues() error {
	// 死信交换机和队列
	if err := r.Channel.ExchangeDeclare(r.deadLetterExchange(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := r.Channel.QueueDeclare(r.Cfg.DeadLetterQueue, true, false, false, false,
		amqp.Table{"x-queue-type": "classic"}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	// 主订单队列（带优先级和死信）
	if _, err := r.Channel.QueueDeclare(r.Cfg.OrderQueue, true, false, false, false, amqp.Table{
		"x-max-priority":            r.Cfg.MaxPriority,
		"x-dead-letter-exchange":    r.deadLetterExchange(),
		"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	// 延迟交换机需要 rabbitmq_delayed_message_exchange 插件
	if err := r.Channel.ExchangeDeclare(r.Cfg.DelayExchange, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "fanout"}); err != nil {
		log.Printf("Warning: Delayed exchange not supported: %v", err)
		// 声明失败会关闭通道
		ch, err := r.Conn.Channel()
		if err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
		r.Channel = ch
		return nil
	}
	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil); err != nil {
		return fmt.Errorf("bind delayed exchange: %w", err)
	}
	r.delayed = true
	return nil
}

// EventPriority ranks events for the priority queue: voucher reconciliation and large
// orders first.
func EventPriority(evt models.OrderEvent) uint8 {
	switch {
	case evt.Type == models.EventTicketsSubmitted:
		return 8
	case evt.Total > 1000:
		return 9
	case evt.Status == models.OrderCancelled:
		return 7
	}
	return 5
}

func newPublishing(evt models.OrderEvent) (amqp.Publishing, error) {
	if evt.Occurred.IsZero() {
		evt.Occurred = time.Now()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode order event: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.Occurred,
		ContentType:  "application/json",
		Type:         evt.Type,
		Body:         body,
	}, nil
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	msg, err := newPublishing(evt)
	if err != nil {
		return err
	}
	msg.Priority = EventPriority(evt)
	return r.Channel.PublishWithContext(ctx, r.Cfg.OrderExchange, "", false, false, msg)
}

func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, evt models.OrderEvent, delay time.Duration) error {
	if !r.delayed {
		return ErrDelayUnsupported
	}
	msg, err := newPublishing(evt)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
	return r.Channel.PublishWithContext(ctx, r.Cfg.DelayExchange, "", false, false, msg)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			log.Printf("Failed to close RabbitMQ channel: %v", err)
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			log.Printf("Failed to close RabbitMQ connection: %v", err)
		}
	}
}
