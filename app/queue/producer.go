package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/app/service"
	"github.com/pinceletas/user-auth-service/config"
)

// Producer publishes notification events to the configured Kafka topic.
// Events are keyed by type so per-type ordering survives partitioning.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg *config.Config) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, event *service.Notification) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"type":        event.Type,
		"target_role": event.TargetRole,
	}).Debug("Notification event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
