package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher delivers an encoded event to an external broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// NATSPublisher publishes on core NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish sends payload to subject.
func (p *NATSPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	if p == nil || p.conn == nil {
		return errors.New("nats publisher not connected")
	}
	return p.conn.Publish(subject, payload)
}

// Close drains the connection, falling back to a hard close.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// RegisterRelay forwards every event type to publisher under topic. Broker
// failures are logged and returned to the dispatcher; they never reach the
// service that published the event.
func RegisterRelay(dispatcher Dispatcher, publisher Publisher, topic string, logger *zap.Logger) {
	if dispatcher == nil || publisher == nil {
		return
	}
	handler := func(ctx context.Context, event Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", event.ID, err)
		}
		if err := publisher.Publish(ctx, topic, data); err != nil {
			logger.Warn("event relay failed",
				zap.String("topic", topic),
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
			return err
		}
		return nil
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, handler)
	}
}
