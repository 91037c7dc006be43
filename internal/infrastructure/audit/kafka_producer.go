// Package audit publishes realtime token decisions for later review.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/npcchatter/backend/internal/config"
	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/domain/service"
	"github.com/npcchatter/backend/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a Kafka-backed implementation of the AuditService.
type KafkaProducer struct {
	writer messageWriter
	secret string
	logger logger.Logger
}

// NewKafkaProducer creates a producer that writes asynchronously; delivery errors are logged
// by the writer's completion callback.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	log = log.WithComponent("KafkaProducer")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error(context.Background(), "Failed to deliver audit events", err, logger.Int("count", len(messages)))
			}
		},
	}
	return newKafkaProducer(writer, cfg.SigningSecret, log)
}

func newKafkaProducer(w messageWriter, secret string, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{writer: w, secret: secret, logger: log}
}

// LogEvent publishes the event keyed by subject, so one user's decisions stay ordered.
func (p *KafkaProducer) LogEvent(ctx context.Context, event models.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "Failed to marshal audit event", err)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: value,
		Time:  event.Timestamp,
	}
	if p.secret != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: signatureHeader, Value: []byte(Sign(value, p.secret))})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, "Failed to write audit event", err, logger.String("event_id", event.EventID))
		return err
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

var _ service.AuditService = (*KafkaProducer)(nil)
