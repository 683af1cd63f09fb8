package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer() (*Producer, *recordingWriter) {
	writer := &recordingWriter{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewProducerWithWriter(writer, "payee-events", logger), writer
}

func TestProducer_PublishPayeeEvent(t *testing.T) {
	t.Run("should key the message by tenant and stamp the event", func(t *testing.T) {
		producer, writer := newTestProducer()

		event := &PayeeEvent{
			EventType: "payee.merged",
			TenantID:  "tenant-a",
			PayeeID:   1,
			Data:      json.RawMessage(`{"surviving_payee_id":1}`),
			Version:   "1.0",
		}
		require.NoError(t, producer.PublishPayeeEvent(context.Background(), event))

		require.Len(t, writer.messages, 1)
		msg := writer.messages[0]
		assert.Equal(t, "payee-events", msg.Topic)
		assert.Equal(t, []byte("tenant-a"), msg.Key)
		assert.NotEmpty(t, event.EventID)
		assert.False(t, event.Timestamp.IsZero())

		var decoded PayeeEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, event.EventID, decoded.EventID)
		assert.JSONEq(t, `{"surviving_payee_id":1}`, string(decoded.Data))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "payee.merged", headers["event_type"])
		assert.Equal(t, "tenant-a", headers["tenant_id"])
	})

	t.Run("should keep a caller supplied id and timestamp", func(t *testing.T) {
		producer, _ := newTestProducer()
		at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		event := &PayeeEvent{EventID: "evt-1", EventType: "payee.merged", TenantID: "tenant-a", Timestamp: at}
		require.NoError(t, producer.PublishPayeeEvent(context.Background(), event))

		assert.Equal(t, "evt-1", event.EventID)
		assert.Equal(t, at, event.Timestamp)
	})

	t.Run("should return write errors", func(t *testing.T) {
		producer, writer := newTestProducer()
		writer.err = errors.New("broker down")

		err := producer.PublishPayeeEvent(context.Background(), &PayeeEvent{EventType: "payee.merged", TenantID: "tenant-a"})
		assert.EqualError(t, err, "broker down")
	})
}

func TestProducer_Close(t *testing.T) {
	producer, writer := newTestProducer()

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}
