package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is a user-facing outcome of a failed cart operation.
type Message string

const (
	MessageOutOfStock   Message = "OutOfStock"
	MessageAddFailed    Message = "AddFailed"
	MessageRemoveFailed Message = "RemoveFailed"
	MessageUpdateFailed Message = "UpdateFailed"
)

var messageText = map[Message]string{
	MessageOutOfStock:   "Requested quantity is out of stock",
	MessageAddFailed:    "Could not add the product",
	MessageRemoveFailed: "Could not remove the product",
	MessageUpdateFailed: "Could not change the product amount",
}

// Text returns the human readable text shown to the shopper.
func (m Message) Text() string {
	if t, ok := messageText[m]; ok {
		return t
	}
	return string(m)
}

// Outcome describes one failed operation.
type Outcome struct {
	SessionID  string    `json:"session_id"`
	Message    Message   `json:"message"`
	Text       string    `json:"text"`
	ProductID  int64     `json:"product_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives failure outcomes. Implementations must not block the caller for long
// and must not fail the operation that produced the outcome.
type Sink interface {
	Notify(ctx context.Context, o Outcome)
}

type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, o Outcome) {
	s.log.WithFields(logrus.Fields{
		"session_id": o.SessionID,
		"message":    o.Message,
		"product_id": o.ProductID,
		"reason":     o.Reason,
	}).Warn(o.Text)
}

// Multi fans an outcome out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, o Outcome) {
	for _, s := range m {
		s.Notify(ctx, o)
	}
}

// Discard drops every outcome.
type Discard struct{}

func (Discard) Notify(context.Context, Outcome) {}
