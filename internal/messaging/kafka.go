package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topic identifies a marketplace event stream
type Topic string

const (
	TopicBookingCreated   Topic = "booking.created"
	TopicBookingCancelled Topic = "booking.cancelled"
	TopicBookingCompleted Topic = "booking.completed"
	TopicBookingReminder  Topic = "booking.reminder"
	TopicPaymentCompleted Topic = "payment.completed"
	TopicPaymentFailed    Topic = "payment.failed"
	TopicPaymentRefunded  Topic = "payment.refunded"
	TopicReviewCreated    Topic = "review.created"
)

// Publisher defines event publishing operations
type Publisher interface {
	Publish(ctx context.Context, topic Topic, key string, message interface{}) error
	Close() error
}

// KafkaConfig contains configuration for the Kafka connection
type KafkaConfig struct {
	Brokers      []string      `json:"brokers"`
	TopicPrefix  string        `json:"topic_prefix"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BatchSize    int           `json:"batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	RequiredAcks int           `json:"required_acks"`
	RetryMax     int           `json:"retry_max"`
}

// DefaultKafkaConfig returns sensible defaults for the marketplace event volume
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		TopicPrefix:  "conecta",
		WriteTimeout: 5 * time.Second,
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: 1,
		RetryMax:     3,
	}
}

// KafkaPublisher implements Publisher over kafka-go writers, one per topic
type KafkaPublisher struct {
	config  *KafkaConfig
	writers map[Topic]*kafka.Writer
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(config *KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	if config == nil {
		config = DefaultKafkaConfig()
	}
	return &KafkaPublisher{
		config:  config,
		writers: make(map[Topic]*kafka.Writer),
		logger:  logger,
	}
}

// getWriter returns or creates a writer for the specified topic
func (p *KafkaPublisher) getWriter(topic Topic) *kafka.Writer {
	p.mu.RLock()
	writer, exists := p.writers[topic]
	p.mu.RUnlock()
	if exists {
		return writer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        fmt.Sprintf("%s.%s", p.config.TopicPrefix, topic),
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		WriteTimeout: p.config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		MaxAttempts:  p.config.RetryMax,
		Compression:  kafka.Snappy,
	}
	p.writers[topic] = writer
	return writer
}

// Publish publishes a single message to the specified topic
func (p *KafkaPublisher) Publish(ctx context.Context, topic Topic, key string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	writer := p.getWriter(topic)
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

// Close closes the publisher and all its writers
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error("Failed to close writer", zap.Error(err))
		}
	}
	return lastErr
}

// NopPublisher discards all events. Used when events are disabled and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic Topic, key string, message interface{}) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
