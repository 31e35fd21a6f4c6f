// Package inmem is an in-process broker implementing dispatch.ConnectionFactory.
// It is meant for tests and local runs: transport failures can be forced
// with Sever and FailConnects.
package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/infigaming-com/go-dispatch/dispatch"
)

var (
	ErrClosed         = errors.New("inmem: connection closed")
	ErrSevered        = errors.New("inmem: connection severed")
	ErrConnectRefused = errors.New("inmem: connect refused")
)

type Broker struct {
	mu           sync.RWMutex
	conns        map[*Conn]struct{}
	connects     int
	failConnects int
	buffer       int
}

type Option func(*Broker)

// WithBuffer sets how many undelivered events each connection holds before
// new ones are dropped. Default: 1024.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{conns: map[*Conn]struct{}{}, buffer: 1024}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ dispatch.ConnectionFactory = (*Broker)(nil)

func (b *Broker) Connect(ctx context.Context) (dispatch.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	if b.failConnects > 0 {
		b.failConnects--
		return nil, ErrConnectRefused
	}
	c := &Conn{
		id:     uuid.NewString(),
		broker: b,
		topics: map[string]struct{}{},
		events: make(chan dispatch.Event, b.buffer),
		done:   make(chan struct{}),
	}
	b.conns[c] = struct{}{}
	return c, nil
}

// Publish delivers payload to every live connection subscribed to topic
// and returns how many received it.
func (b *Broker) Publish(topic string, payload []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int
	for c := range b.conns {
		if c.subscribed(topic) && c.push(dispatch.Event{Kind: dispatch.EventMessage, Topic: topic, Payload: append([]byte(nil), payload...)}) {
			n++
		}
	}
	return n
}

// Sever breaks every live connection as a transport failure would.
func (b *Broker) Sever() {
	b.mu.Lock()
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
		delete(b.conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		c.shut(ErrSevered)
	}
}

// FailConnects makes the next n Connect calls fail.
func (b *Broker) FailConnects(n int) {
	b.mu.Lock()
	b.failConnects = n
	b.mu.Unlock()
}

// Connects counts Connect calls, failed ones included.
func (b *Broker) Connects() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connects
}

// Subscribers counts live connections subscribed to topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int
	for c := range b.conns {
		if c.subscribed(topic) {
			n++
		}
	}
	return n
}

// Live returns the connections not yet closed or severed.
func (b *Broker) Live() []*Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Broker) remove(c *Conn) {
	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
}

type Conn struct {
	id     string
	broker *Broker
	events chan dispatch.Event

	mu     sync.Mutex
	topics map[string]struct{}
	done   chan struct{}
	err    error
}

var _ dispatch.Connection = (*Conn)(nil)

func (c *Conn) ID() string { return c.id }

func (c *Conn) Subscribe(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
	c.push(dispatch.Event{Kind: dispatch.EventSubscribed, Topic: topic})
	return nil
}

func (c *Conn) Unsubscribe(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	delete(c.topics, topic)
	c.mu.Unlock()
	c.push(dispatch.Event{Kind: dispatch.EventUnsubscribed, Topic: topic})
	return nil
}

func (c *Conn) Read(ctx context.Context) (dispatch.Event, error) {
	select {
	case <-c.done:
		return dispatch.Event{}, c.cause()
	default:
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		return dispatch.Event{}, c.cause()
	case <-ctx.Done():
		return dispatch.Event{}, ctx.Err()
	}
}

func (c *Conn) Close() error {
	if !c.shut(ErrClosed) {
		return ErrClosed
	}
	c.broker.remove(c)
	return nil
}

// Inject queues ev as if the broker had sent it.
func (c *Conn) Inject(ev dispatch.Event) bool {
	return c.push(ev)
}

// Topics returns the topics this connection is subscribed to.
func (c *Conn) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Conn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok && c.err == nil
}

func (c *Conn) push(ev dispatch.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) shut(cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false
	}
	c.err = cause
	close(c.done)
	return true
}

func (c *Conn) cause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
