package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"story-engine/internal/messaging"
	"story-engine/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRabbitMQPublisherDeliversToDurableQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	const queue = "test_session_events"
	publisher, err := messaging.NewRabbitMQSessionEventPublisher(conn, queue, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	session := &models.PlaySession{
		ID:            uuid.New(),
		StoryID:       "cave",
		UserID:        "player-1",
		CurrentNodeID: "C",
		IsCompleted:   true,
		Version:       4,
	}
	event := messaging.NewSessionEvent(messaging.EventSessionCompleted, session)
	require.NoError(t, publisher.PublishSessionEvent(ctx, event))

	ch, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	var delivery amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, getErr := ch.Get(queue, true)
		if getErr != nil || !ok {
			return false
		}
		delivery = msg
		return true
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "application/json", delivery.ContentType)
	assert.Equal(t, amqp.Persistent, delivery.DeliveryMode)

	var got messaging.SessionEvent
	require.NoError(t, json.Unmarshal(delivery.Body, &got))
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, messaging.EventSessionCompleted, got.Type)
	assert.Equal(t, session.ID, got.SessionID)
	assert.Equal(t, "C", got.NodeID)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, models.SessionCompleted, got.Status)
	assert.Equal(t, int64(4), got.Version)
}
