package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/localshop/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber opens its own NATS connection and makes sure the shop
// event stream exists.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeShopEvents delivers every shop event to handler through a durable
// consumer. Messages whose handler fails are redelivered up to three times.
func (s *Subscriber) SubscribeShopEvents(ctx context.Context, durable string, handler func(ctx context.Context, event *domain.ShopEvent) error) error {
	sub, err := s.js.Subscribe(SubjectAll, func(msg *nats.Msg) {
		event, err := DecodeShopEvent(msg.Data)
		if err != nil {
			// Poison message; redelivery will not help.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// DecodeShopEvent parses a shop event payload.
func DecodeShopEvent(data []byte) (*domain.ShopEvent, error) {
	var event domain.ShopEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode shop event: %w", err)
	}
	if event.Type == "" || event.Shop.ID == "" {
		return nil, fmt.Errorf("decode shop event: missing type or shop id")
	}
	return &event, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
