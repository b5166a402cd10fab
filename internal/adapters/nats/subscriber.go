package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

// Subscriber consumes zone recommendation events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeZoneRecommendations delivers every zone recommendation to handler
// through the durable consumer. Messages are redelivered up to three times
// when decoding or handling fails.
func (s *Subscriber) SubscribeZoneRecommendations(ctx context.Context, durable string, handler func(ctx context.Context, rec *domain.ZoneRecommendation) error) error {
	sub, err := s.js.Subscribe(ZoneSubjectAll, func(msg *nats.Msg) {
		var rec domain.ZoneRecommendation
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &rec); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.BindStream(ZoneStream),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
