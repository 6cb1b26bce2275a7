package events

import "context"

// Publisher delivers Messages to whatever transport backs the event bus.
// Publish must not block the caller's business transaction on a slow
// downstream — both backends below send asynchronously the way the
// teacher's kafka.Producer does.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Noop discards every event. Used by tests and by callers that have not
// configured a transport.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }
func (Noop) Close() error                           { return nil }

var _ Publisher = Noop{}
