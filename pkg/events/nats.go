// NATS-backed Publisher, adapted from the teacher's pkg/nats/publisher.go:
// a thin wrapper around a single *nats.Conn, offered as the lightweight
// dev-mode transport behind the same Publisher interface the Kafka backend
// satisfies.
package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsPublisher publishes marketplace events over a NATS connection.
type NatsPublisher struct {
	conn *nats.Conn
}

// NewNatsPublisher connects to url and returns a Publisher backed by it.
func NewNatsPublisher(url string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}
	return &NatsPublisher{conn: conn}, nil
}

func (p *NatsPublisher) Publish(_ context.Context, msg Message) error {
	data, err := msg.Value()
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", msg.Topic(), err)
	}
	if err := p.conn.Publish(msg.Topic(), data); err != nil {
		return fmt.Errorf("events: nats publish %s: %w", msg.Topic(), err)
	}
	return nil
}

func (p *NatsPublisher) Close() error {
	p.conn.Close()
	return nil
}

var _ Publisher = (*NatsPublisher)(nil)
