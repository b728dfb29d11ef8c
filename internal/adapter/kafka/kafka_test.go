package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("req-1"),
		Value:     []byte(`{"kind":"trend"}`),
		Topic:     "analysis-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("era5-fetcher")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("req-1"), raw.Key)
	assert.JSONEq(t, `{"kind":"trend"}`, string(raw.Value))
	assert.Equal(t, "analysis-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "era5-fetcher", raw.Headers["source"])
	assert.Nil(t, raw.Commit, "commit is attached by the reader")
}

func TestToMessage(t *testing.T) {
	msg := toMessage(domain.OutputEvent{
		Key:   []byte("req-1"),
		Value: []byte(`{"id":"req-1"}`),
		Headers: map[string]string{
			"kind":         "trend",
			"content-type": "application/json",
		},
	})

	assert.Equal(t, []byte("req-1"), msg.Key)
	assert.JSONEq(t, `{"id":"req-1"}`, string(msg.Value))
	assert.Equal(t, []kafkago.Header{
		{Key: "content-type", Value: []byte("application/json")},
		{Key: "kind", Value: []byte("trend")},
	}, msg.Headers)
}

func TestToMessage_NoHeaders(t *testing.T) {
	msg := toMessage(domain.OutputEvent{Key: []byte("k")})
	assert.Empty(t, msg.Headers)
}
