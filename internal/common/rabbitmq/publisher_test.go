package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPublishing_FillsMeta(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	pub, err := buildPublishing(Envelope{
		Meta: Meta{Type: "notification.telegram.v1"},
		Data: map[string]string{"chatId": "42"},
	}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, pub.MessageId)
	assert.Equal(t, pub.MessageId, pub.CorrelationId)
	assert.Equal(t, "notification.telegram.v1", pub.Type)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "application/json", pub.ContentType)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, pub.MessageId, decoded.Meta.ID)
	assert.True(t, decoded.Meta.Time.Equal(now))
}

func TestBuildPublishing_KeepsCallerIDs(t *testing.T) {
	cid := "order-17"
	pub, err := buildPublishing(Envelope{
		Meta: Meta{ID: "fixed-id", CorrelationID: &cid, Type: "notification.viber.v1"},
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", pub.MessageId)
	assert.Equal(t, "order-17", pub.CorrelationId)
}

func TestBuildPublishing_UnencodableData(t *testing.T) {
	_, err := buildPublishing(Envelope{Data: make(chan int)}, time.Now())
	assert.Error(t, err)
}
