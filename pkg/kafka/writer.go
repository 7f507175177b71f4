package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var errBrokersRequired = errors.New("kafka brokers are required")

// Writer publishes outbox events to Kafka. Messages are keyed by aggregate id
// so every event of one order lands on the same partition.
type Writer struct {
	writer  *kafka.Writer
	brokers []string
}

func NewWriter(cfg config.KafkaConfig, logg *logger.Logger) (*Writer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errBrokersRequired
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}
	if logg != nil {
		logg.Info(context.Background(), "kafka writer initialized")
	}
	return &Writer{writer: w, brokers: brokers}, nil
}

// Publish writes one message and waits for the configured acks.
func (w *Writer) Publish(ctx context.Context, topic, key string, data []byte, attributes map[string]string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("kafka topic is required")
	}
	return w.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers(attributes),
	})
}

// Ping dials the brokers until one answers.
func (w *Writer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range w.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (w *Writer) Close() error {
	if w == nil || w.writer == nil {
		return nil
	}
	return w.writer.Close()
}

func headers(attributes map[string]string) []kafka.Header {
	if len(attributes) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(attributes))
	for k, v := range attributes {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}
