package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

// EnvelopeSubmitter accepts decoded envelopes, blocking while the queue is full.
type EnvelopeSubmitter interface {
	Submit(ctx context.Context, env *models.WriteEnvelope) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads write envelopes from a topic and hands them to the worker pool.
// Offsets are committed once an envelope is queued or found to be malformed. Start
// returns an error when the pool stops accepting work.
type Consumer struct {
	reader messageReader
	sink   EnvelopeSubmitter
	topic  string
}

func NewConsumer(brokers []string, topic, groupID string, sink EnvelopeSubmitter) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, sink: sink, topic: topic}, nil
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	log := logger.WithComponent("kafka_consumer")
	log.Info().Str("topic", c.topic).Msg("Kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Failed to fetch message")
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("queue envelope at offset %d: %w", msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit offset")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		log := logger.WithError(err)
		log.Warn().
			Str("component", "kafka_consumer").
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Dropping malformed envelope")
		metrics.KafkaMessagesConsumed.WithLabelValues("invalid").Inc()
		return nil
	}
	if env.Source == "" {
		env.Source = "kafka"
	}

	if err := c.sink.Submit(ctx, env); err != nil {
		metrics.KafkaMessagesConsumed.WithLabelValues("dropped").Inc()
		return err
	}
	metrics.KafkaMessagesConsumed.WithLabelValues("accepted").Inc()
	metrics.IngestEnvelopesTotal.WithLabelValues(env.Source, "accepted").Inc()
	return nil
}

// DecodeEnvelope parses, normalizes and validates one envelope payload.
func DecodeEnvelope(data []byte) (*models.WriteEnvelope, error) {
	var env models.WriteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	env.Normalize()
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Consumer) Stop() error {
	return c.reader.Close()
}
