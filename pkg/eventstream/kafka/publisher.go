// Package kafka publishes sale targeting events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/eventstream"
)

const DefaultTopic = "pantry.sale.targeting"

// Config holds the Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *zap.Logger
}

// Publisher writes sale targeting events to Kafka, keyed by event id.
type Publisher struct {
	writer *segmentio.Writer
	logger *zap.Logger
}

func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	writer := &segmentio.Writer{
		Addr:     segmentio.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &segmentio.Hash{},
	}

	return &Publisher{writer: writer, logger: c.Logger}, nil
}

func (p *Publisher) PublishSaleTargeting(ctx context.Context, event *eventstream.SaleTargetingEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling sale targeting event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.EventID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing sale targeting event: %w", err)
	}

	p.logger.Debug("sale targeting event published",
		zap.String("event_id", event.EventID),
		zap.Int("audience", len(event.Audience)),
	)

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
