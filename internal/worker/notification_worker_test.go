package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

func TestStartNotificationWorker_LogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartNotificationWorker(service.NewNotificationService(dispatcher, zap.New(core)))
	StartNotificationWorker(nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketAttachmentFailed,
		TicketID: "T1",
		Payload:  events.AttachmentFailedPayload{LogID: "L1", FileName: "a.jpg", Reason: "bucket offline"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("TicketAttachmentFailed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestStartEventRelay(t *testing.T) {
	t.Run("none is a no-op", func(t *testing.T) {
		dispatcher := events.NewInMemoryDispatcher()
		stop, err := StartEventRelay(config.EventsConfig{Broker: "none"}, dispatcher, nil, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, stop)
		stop()
		assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	})

	t.Run("redis failures surface to the dispatcher only", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		dispatcher := events.NewInMemoryDispatcher()
		stop, err := StartEventRelay(config.EventsConfig{Broker: "redis", RedisChannel: "ticket-events"}, dispatcher, &persistence.Redis{}, zap.New(core))
		require.NoError(t, err)
		defer stop()

		err = dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketUpdated, TicketID: "T1"})
		assert.Error(t, err)
		assert.Equal(t, 1, logs.FilterMessage("event relay failed").Len())
	})

	t.Run("unreachable nats", func(t *testing.T) {
		_, err := StartEventRelay(config.EventsConfig{Broker: "nats", NATSURL: "nats://127.0.0.1:1"}, events.NewInMemoryDispatcher(), nil, zap.NewNop())
		assert.Error(t, err)
	})
}
