package dispatch

import (
	"context"
	"reflect"
)

// DispatchChannel receives the notifications routed to one consumer.
// Callbacks run on the dispatcher's worker pool, never on the read loop,
// and may run concurrently with each other.
type DispatchChannel interface {
	OnDispatchMessage(ctx context.Context, topic string, payload []byte)
	OnDispatchSubscribed(ctx context.Context, topic string)
	OnDispatchUnsubscribed(ctx context.Context, topic string)
}

// ChannelFuncs adapts plain functions to DispatchChannel. Nil funcs are
// skipped. Register it by pointer: identity is what Unsubscribe matches on.
type ChannelFuncs struct {
	Message      func(ctx context.Context, topic string, payload []byte)
	Subscribed   func(ctx context.Context, topic string)
	Unsubscribed func(ctx context.Context, topic string)
}

var _ DispatchChannel = (*ChannelFuncs)(nil)

func (c *ChannelFuncs) OnDispatchMessage(ctx context.Context, topic string, payload []byte) {
	if c.Message != nil {
		c.Message(ctx, topic, payload)
	}
}

func (c *ChannelFuncs) OnDispatchSubscribed(ctx context.Context, topic string) {
	if c.Subscribed != nil {
		c.Subscribed(ctx, topic)
	}
}

func (c *ChannelFuncs) OnDispatchUnsubscribed(ctx context.Context, topic string) {
	if c.Unsubscribed != nil {
		c.Unsubscribed(ctx, topic)
	}
}

// sameChannel reports whether a and b are the same registration.
func sameChannel(a, b DispatchChannel) bool {
	if a == nil || b == nil {
		return false
	}
	return identical(a, b)
}

// identical compares two interface values without panicking: values whose
// dynamic type is not comparable never match, nor do comparable structs
// that hold a non-comparable value in an interface field.
func identical(a, b any) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
