package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infigaming-com/go-dispatch/dispatch"
)

var fastReconnect = dispatch.ReconnectPolicy{
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	Multiplier:     2,
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	quiet   = 100 * time.Millisecond
)

func newManager(t *testing.T, f dispatch.ConnectionFactory, opts ...dispatch.Option) *dispatch.Manager {
	t.Helper()
	opts = append([]dispatch.Option{dispatch.WithReconnectPolicy(fastReconnect)}, opts...)
	m, err := dispatch.New(f, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func startManager(t *testing.T, f dispatch.ConnectionFactory, opts ...dispatch.Option) *dispatch.Manager {
	t.Helper()
	m := newManager(t, f, opts...)
	require.NoError(t, m.Start(context.Background()))
	return m
}

type delivery struct {
	Topic   string
	Payload string
}

// recorder is a DispatchChannel that remembers every notification.
type recorder struct {
	mu           sync.Mutex
	messages     []delivery
	subscribed   []string
	unsubscribed []string
}

func (r *recorder) OnDispatchMessage(_ context.Context, topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, delivery{Topic: topic, Payload: string(payload)})
}

func (r *recorder) OnDispatchSubscribed(_ context.Context, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed = append(r.subscribed, topic)
}

func (r *recorder) OnDispatchUnsubscribed(_ context.Context, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribed = append(r.unsubscribed, topic)
}

func (r *recorder) Messages() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.messages...)
}

func (r *recorder) Subscribed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subscribed...)
}

func (r *recorder) Unsubscribed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unsubscribed...)
}

var errBroken = errors.New("script: connection broken")

// scriptConn is a Connection driven entirely by the test.
type scriptConn struct {
	events chan dispatch.Event
	done   chan struct{}
	once   sync.Once

	// gate, when set, holds every Subscribe until it is closed.
	gate    chan struct{}
	waiting atomic.Int32

	mu       sync.Mutex
	subs     []string
	unsubs   []string
	subErr   error
	closed   bool
	cause    error
	closeErr error
}

func newScriptConn() *scriptConn {
	return &scriptConn{events: make(chan dispatch.Event, 64), done: make(chan struct{})}
}

func (c *scriptConn) Subscribe(ctx context.Context, topic string) error {
	if c.gate != nil {
		c.waiting.Add(1)
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return c.subErr
	}
	c.subs = append(c.subs, topic)
	return nil
}

func (c *scriptConn) Unsubscribe(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubs = append(c.unsubs, topic)
	return nil
}

func (c *scriptConn) Read(ctx context.Context) (dispatch.Event, error) {
	select {
	case <-c.done:
		return dispatch.Event{}, c.err()
	default:
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		return dispatch.Event{}, c.err()
	case <-ctx.Done():
		return dispatch.Event{}, ctx.Err()
	}
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.shut(errors.New("script: closed"))
	return c.closeErr
}

// fail breaks the connection without closing it, as a dropped socket would.
func (c *scriptConn) fail() { c.shut(errBroken) }

func (c *scriptConn) shut(cause error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.cause = cause
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *scriptConn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *scriptConn) Subs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subs...)
}

func (c *scriptConn) Unsubs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.unsubs...)
}

func (c *scriptConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// scriptFactory hands out the queued connections in order, then fresh ones.
type scriptFactory struct {
	mu    sync.Mutex
	queue []*scriptConn
	made  []*scriptConn
}

func (f *scriptFactory) Connect(ctx context.Context) (dispatch.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var c *scriptConn
	if len(f.queue) > 0 {
		c, f.queue = f.queue[0], f.queue[1:]
	} else {
		c = newScriptConn()
	}
	f.made = append(f.made, c)
	return c, nil
}

func (f *scriptFactory) Made() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}

// countingMetrics records MetricsHook calls.
type countingMetrics struct {
	events          atomic.Int64
	notifications   atomic.Int64
	deadLetters     atomic.Int64
	drops           atomic.Int64
	commandFailures atomic.Int64
	reconnects      atomic.Int64
	connectFailures atomic.Int64
	resubscribed    atomic.Int64
	resubFailures   atomic.Int64
	panics          atomic.Int64
}

func (c *countingMetrics) OnEvent(dispatch.EventKind)                { c.events.Add(1) }
func (c *countingMetrics) OnNotification(dispatch.NotificationKind)  { c.notifications.Add(1) }
func (c *countingMetrics) OnDeadLetter()                             { c.deadLetters.Add(1) }
func (c *countingMetrics) OnDrop()                                   { c.drops.Add(1) }
func (c *countingMetrics) OnCommandFailure(string)                   { c.commandFailures.Add(1) }
func (c *countingMetrics) OnReconnect()                              { c.reconnects.Add(1) }
func (c *countingMetrics) OnConnectFailure()                         { c.connectFailures.Add(1) }
func (c *countingMetrics) OnCallbackPanic(dispatch.NotificationKind) { c.panics.Add(1) }

func (c *countingMetrics) OnResubscribe(topics, failures int) {
	c.resubscribed.Add(int64(topics))
	c.resubFailures.Add(int64(failures))
}
