package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecode(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	data, err := json.Marshal(BookingEvent{
		ID:           "ev-1",
		Type:         EventTicketIssued,
		BookingID:    "BK20261019000001",
		Email:        "a@b.io",
		TicketNumber: "555-1",
		OccurredAt:   at,
	})
	require.NoError(t, err)

	event, err := Decode(kafka.Message{Value: data})
	require.NoError(t, err)
	assert.Equal(t, EventTicketIssued, event.Type)
	assert.Equal(t, "555-1", event.TicketNumber)
	assert.True(t, at.Equal(event.OccurredAt))

	_, err = Decode(kafka.Message{Value: []byte("{broken")})
	assert.Error(t, err)
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, zap.NewNop())
	defer p.Close()

	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestConsumer_CloseNil(t *testing.T) {
	var c *Consumer
	assert.NoError(t, c.Close())
}
