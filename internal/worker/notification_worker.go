package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventRelay forwards dispatched events to the configured broker. It
// returns a function that releases the broker connection; the Redis client
// is owned by the caller and left open.
func StartEventRelay(cfg config.EventsConfig, dispatcher events.Dispatcher, redis *persistence.Redis, logger *zap.Logger) (func(), error) {
	switch cfg.Broker {
	case "redis":
		events.RegisterRelay(dispatcher, redis, cfg.RedisChannel, logger)
		logger.Info("relaying events to redis", zap.String("channel", cfg.RedisChannel))
		return func() {}, nil
	case "nats":
		publisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		events.RegisterRelay(dispatcher, publisher, cfg.NATSSubject, logger)
		logger.Info("relaying events to nats", zap.String("subject", cfg.NATSSubject))
		return publisher.Close, nil
	default:
		return func() {}, nil
	}
}
