package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/services"
)

// HoldCommitter is the slice of TicketIssuer the consumer needs.
type HoldCommitter interface {
	CommitHold(ctx context.Context, orderID uuid.UUID) ([]services.IssuedTicket, error)
}

// PaymentCompletedEvent is the external payment gateway signal. Gateways
// retry deliveries, so processing must stay idempotent end to end.
type PaymentCompletedEvent struct {
	OrderID string `json:"order_id"`
}

// PaymentConsumer feeds payment-completed events from RabbitMQ into the
// ticket issuer.
type PaymentConsumer struct {
	channel *amqp.Channel
	queue   string
	issuer  HoldCommitter
}

func NewPaymentConsumer(channel *amqp.Channel, queue string, issuer HoldCommitter) *PaymentConsumer {
	return &PaymentConsumer{
		channel: channel,
		queue:   queue,
		issuer:  issuer,
	}
}

// Start declares the queue and consumes until the context is cancelled.
func (c *PaymentConsumer) Start(ctx context.Context) error {
	queue, err := c.channel.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("queue declare error: %v", err)
	}

	messages, err := c.channel.Consume(
		queue.Name,   // queue
		"ticketgate", // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("consume start error: %v", err)
	}

	log.Printf("Consuming payment events on queue: %s", queue.Name)

	go func() {
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					log.Println("Payment consumer channel closed.")
					return
				}
				c.handleMessage(ctx, msg)
			case <-ctx.Done():
				log.Println("Payment consumer stopped.")
				return
			}
		}
	}()

	return nil
}

func (c *PaymentConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	retryable, err := c.process(ctx, msg.Body)
	if err != nil {
		if retryable {
			log.Printf("Payment event failed, requeueing: %v", err)
			msg.Nack(false, true)
			return
		}
		log.Printf("Payment event dropped: %v", err)
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
}

// process commits the hold named by the event body. The second return
// reports whether a failure is worth redelivering.
func (c *PaymentConsumer) process(ctx context.Context, body []byte) (retryable bool, err error) {
	var event PaymentCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false, fmt.Errorf("event deserialize error: %v", err)
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return false, fmt.Errorf("invalid order id %q", event.OrderID)
	}

	tickets, err := c.issuer.CommitHold(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStoreUnavailable):
			return true, err
		case errors.Is(err, domain.ErrHoldNotFound),
			errors.Is(err, domain.ErrHoldNotPending),
			errors.Is(err, domain.ErrHoldExpired):
			// Terminal outcomes; redelivery cannot change them.
			return false, err
		default:
			return true, err
		}
	}

	log.Printf("Payment completed for order %s: %d tickets issued", event.OrderID, len(tickets))
	return false, nil
}
