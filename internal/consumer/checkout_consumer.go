package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/rocketshoes-cart/internal/engine"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// CheckoutCompletedEvent is published once an order was placed for a cart session.
type CheckoutCompletedEvent struct {
	CheckoutID string `json:"checkout_id"`
	SessionID  string `json:"session_id"`
}

type Sessions interface {
	Get(ctx context.Context, sessionID string) (*engine.CartEngine, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutConsumer empties the cart of every session whose checkout completed.
type CheckoutConsumer struct {
	sessions Sessions
	reader   messageReader
	log      *logrus.Logger
}

func NewCheckoutConsumer(sessions Sessions, log *logrus.Logger, topic string, brokers ...string) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "cart-engine",
		MaxBytes: 10e6, // 10MB
	})
	return &CheckoutConsumer{sessions: sessions, reader: reader, log: log}
}

func (c *CheckoutConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *CheckoutConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Error("error closing kafka reader")
	}
}

// processMessage commits a message only after the cart was cleared or the message was
// found unusable, so a failed clear is retried on redelivery.
func (c *CheckoutConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.WithError(err).Error("error reading message")
		}
		return
	}

	log := c.log.WithFields(logrus.Fields{
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
	})

	var event CheckoutCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.WithError(err).Warn("skipping unparsable checkout event")
		c.commit(ctx, m)
		return
	}
	if event.SessionID == "" {
		log.Warn("skipping checkout event without session_id")
		c.commit(ctx, m)
		return
	}

	cart, err := c.sessions.Get(ctx, event.SessionID)
	if err != nil {
		log.WithError(err).WithField("session_id", event.SessionID).Error("failed to load cart session")
		return
	}
	if err := cart.Clear(ctx); err != nil {
		log.WithError(err).WithField("session_id", event.SessionID).Error("failed to clear cart")
		return
	}

	log.WithFields(logrus.Fields{
		"session_id":  event.SessionID,
		"checkout_id": event.CheckoutID,
	}).Info("cart cleared after checkout")
	c.commit(ctx, m)
}

func (c *CheckoutConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.WithError(err).Error("failed to commit message")
	}
}
