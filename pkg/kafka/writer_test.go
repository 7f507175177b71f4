package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewWriterRequiresBrokers(t *testing.T) {
	_, err := NewWriter(config.KafkaConfig{Brokers: []string{" ", ""}}, nil)
	require.ErrorIs(t, err, errBrokersRequired)
}

func TestNewWriterTrimsBrokers(t *testing.T) {
	w, err := NewWriter(config.KafkaConfig{
		Brokers:      []string{" kafka-1:9092 ", "kafka-2:9092"},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, w.brokers)
	assert.Equal(t, 10*time.Millisecond, w.writer.BatchTimeout)
}

func TestHeaders(t *testing.T) {
	assert.Nil(t, headers(nil))

	got := headers(map[string]string{"event_type": "order_paid"})
	require.Len(t, got, 1)
	assert.Equal(t, "event_type", got[0].Key)
	assert.Equal(t, []byte("order_paid"), got[0].Value)
}
