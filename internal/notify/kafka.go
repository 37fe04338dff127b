package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes outcomes as JSON, keyed by session id so one session's
// outcomes stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	log    *logrus.Logger
}

func NewKafkaSink(log *logrus.Logger, topic string, brokers ...string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: writer, log: log}
}

func (s *KafkaSink) Notify(ctx context.Context, o Outcome) {
	payload, err := json.Marshal(o)
	if err != nil {
		s.log.WithError(err).Error("marshal outcome failed")
		return
	}

	// the operation is already finished; its caller's deadline must not drop the event
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.SessionID),
		Value: payload,
	})
	if err != nil {
		s.log.WithError(err).WithField("session_id", o.SessionID).Error("publish outcome failed")
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
