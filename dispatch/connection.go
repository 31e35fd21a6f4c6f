package dispatch

import (
	"context"
	"fmt"
)

// EventKind classifies what a Connection read off the broker.
type EventKind int

const (
	EventSubscribed EventKind = iota + 1
	EventUnsubscribed
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventSubscribed:
		return "subscribed"
	case EventUnsubscribed:
		return "unsubscribed"
	case EventMessage:
		return "message"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one reply read from the broker. Payload is only set for
// EventMessage.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
}

// Connection is a single session to the pub/sub broker.
//
// Read blocks until the next event arrives or the session fails. Subscribe,
// Unsubscribe and Close must be safe to call while another goroutine is
// blocked in Read, and Close must make that Read return an error.
type Connection interface {
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Read(ctx context.Context) (Event, error)
	Close() error
}

// ConnectionFactory opens a fresh Connection. It is called once on Start
// and again after every transport failure.
type ConnectionFactory interface {
	Connect(ctx context.Context) (Connection, error)
}

type ConnectionFactoryFunc func(ctx context.Context) (Connection, error)

func (f ConnectionFactoryFunc) Connect(ctx context.Context) (Connection, error) {
	return f(ctx)
}
