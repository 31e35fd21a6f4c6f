package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	commonerrors "github.com/infigaming-com/go-dispatch/errors"
	"github.com/infigaming-com/go-dispatch/dispatch/internal/backoff"
	"github.com/infigaming-com/go-dispatch/dispatch/internal/worker"
)

// Manager multiplexes many DispatchChannels over one upstream pub/sub
// Connection. It owns the connection, replaces it when a read fails and
// re-issues every registered subscription on the replacement.
//
// A Manager is started once and shut down once. Shutdown must be called
// even if Start never was, to release the worker pool.
type Manager struct {
	factory    ConnectionFactory
	registry   *Registry
	deadLetter DispatchChannel
	opts       options
	lg         *zap.Logger
	metrics    MetricsHook
	pool       *worker.Pool
	notify     *notifier

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	sweeps sync.WaitGroup

	// cmdMu keeps upstream commands in the same order as the registry
	// mutations that caused them.
	cmdMu sync.Mutex

	mu       sync.Mutex
	conn     Connection
	starting bool
	started  bool
	running  bool
	closed   bool
	err      error
}

func New(factory ConnectionFactory, opts ...Option) (*Manager, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	pool := worker.New(o.workers)
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory:    factory,
		registry:   o.registry,
		deadLetter: o.deadLetter,
		opts:       o,
		lg:         o.lg,
		metrics:    o.metrics,
		pool:       pool,
		notify:     newNotifier(pool, o.lg, o.metrics, o.callbackTimeout),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Start obtains the first Connection and launches the read loop. Connect
// failures are retried with backoff until ctx is done; only that ctx error,
// or misuse, is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.starting || m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.starting = true
	m.mu.Unlock()

	conn, err := m.connect(ctx)

	m.mu.Lock()
	m.starting = false
	if err != nil {
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return fmt.Errorf("dispatch: start: %w", err)
	}
	if m.closed {
		m.mu.Unlock()
		m.closeConn(conn)
		return ErrClosed
	}
	m.conn = conn
	m.started = true
	m.running = true
	m.mu.Unlock()

	m.lg.Info("dispatch manager started", zap.Int("topics", m.registry.Len()))
	m.resubscribe(conn)
	go m.run(conn)
	return nil
}

// Shutdown stops the read loop by closing the active Connection, then waits
// for queued notifications to finish. It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	first := !m.closed
	m.closed = true
	m.running = false
	conn := m.conn
	started := m.started
	m.mu.Unlock()

	if first {
		m.lg.Info("dispatch manager shutdown requested")
		m.cancel()
		if conn != nil {
			m.closeConn(conn)
		}
	}
	if started {
		select {
		case <-m.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.pool.Close()
	drained := make(chan struct{})
	go func() {
		m.sweeps.Wait()
		m.pool.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe routes topic to ch, replacing any previous channel. The
// replaced channel is told it was unsubscribed; the broker subscription
// itself stays up. Upstream command failures are logged, not returned.
func (m *Manager) Subscribe(ctx context.Context, topic string, ch DispatchChannel) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if ch == nil {
		return ErrNilChannel
	}
	if m.isClosed() {
		return ErrClosed
	}

	m.cmdMu.Lock()
	prev, replaced := m.registry.Put(topic, ch)
	if conn := m.activeConn(); conn != nil {
		if err := conn.Subscribe(ctx, topic); err != nil {
			m.metrics.OnCommandFailure("subscribe")
			m.lg.Warn("subscription error", zap.String("topic", topic), zap.Error(err))
		}
	} else {
		m.lg.Debug("subscription deferred until connected", zap.String("topic", topic))
	}
	m.cmdMu.Unlock()

	if replaced && !sameChannel(prev, ch) {
		m.notify.unsubscribed(prev, topic)
	}
	return nil
}

// Unsubscribe drops topic only if ch is the channel registered for it;
// a stale caller is ignored.
func (m *Manager) Unsubscribe(ctx context.Context, topic string, ch DispatchChannel) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if ch == nil {
		return ErrNilChannel
	}

	m.cmdMu.Lock()
	if !m.registry.Remove(topic, ch) {
		m.cmdMu.Unlock()
		m.lg.Debug("unsubscribe ignored, channel not registered", zap.String("topic", topic))
		return nil
	}
	if conn := m.activeConn(); conn != nil {
		if err := conn.Unsubscribe(ctx, topic); err != nil {
			m.metrics.OnCommandFailure("unsubscribe")
			m.lg.Warn("unsubscribe error", zap.String("topic", topic), zap.Error(err))
		}
	}
	m.cmdMu.Unlock()

	m.notify.unsubscribed(ch, topic)
	return nil
}

// Topics returns the registered topics, sorted.
func (m *Manager) Topics() []string {
	return m.registry.Topics()
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Done is closed when the read loop exits, after Shutdown or on a fatal
// error. It never closes for a manager that was not started.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err reports why the read loop stopped on its own. It is nil after a
// regular Shutdown.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) run(conn Connection) {
	defer close(m.done)
	for m.isRunning() {
		ev, err := conn.Read(m.ctx)
		if err != nil {
			if !m.isRunning() {
				break
			}
			m.lg.Warn("pubsub connection error", zap.Error(err))
			if conn = m.reconnect(conn); conn == nil {
				break
			}
			continue
		}
		if err := m.route(ev); err != nil {
			m.fail(conn, err)
			break
		}
	}
	m.lg.Warn("dispatch manager shutting down")
}

func (m *Manager) route(ev Event) error {
	switch ev.Kind {
	case EventUnsubscribed:
	case EventSubscribed:
		m.dispatchSubscribed(ev.Topic)
	case EventMessage:
		m.dispatchMessage(ev.Topic, ev.Payload)
	default:
		return commonerrors.Errorf(CodeUnknownEvent, ErrUnknownEvent,
			"dispatch: connection produced event %s for topic %q", ev.Kind, ev.Topic)
	}
	m.metrics.OnEvent(ev.Kind)
	return nil
}

func (m *Manager) dispatchSubscribed(topic string) {
	ch, ok := m.registry.Lookup(topic)
	if !ok {
		m.lg.Warn("received subscribe event for non-existing channel", zap.String("topic", topic))
		return
	}
	m.notify.subscribed(ch, topic)
}

func (m *Manager) dispatchMessage(topic string, payload []byte) {
	if ch, ok := m.registry.Lookup(topic); ok {
		m.notify.message(ch, topic, payload)
		return
	}
	if m.deadLetter != nil {
		m.metrics.OnDeadLetter()
		m.notify.message(m.deadLetter, topic, payload)
		return
	}
	m.metrics.OnDrop()
	m.lg.Warn("received message for non-existing channel, with no dead letter handler", zap.String("topic", topic))
}

// reconnect replaces a failed connection. It returns nil when shutdown
// began before a new connection was in place.
func (m *Manager) reconnect(stale Connection) Connection {
	m.closeConn(stale)
	conn, err := m.connect(m.ctx)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.closeConn(conn)
		return nil
	}
	m.conn = conn
	m.mu.Unlock()

	m.metrics.OnReconnect()
	m.lg.Info("pubsub connection replaced", zap.Int("topics", m.registry.Len()))
	m.resubscribe(conn)
	return conn
}

func (m *Manager) connect(ctx context.Context) (Connection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	p := m.opts.reconnect
	bo := backoff.New(backoff.Config{Initial: p.InitialBackoff, Max: p.MaxBackoff, Multiplier: p.Multiplier, Jitter: p.Jitter})
	for attempt := 1; ; attempt++ {
		conn, err := m.factory.Connect(ctx)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.metrics.OnConnectFailure()
		m.lg.Warn("pubsub connect failed", zap.Int("attempt", attempt), zap.Error(err))
		if err := bo.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// resubscribe snapshots the registry and re-issues the subscriptions on
// conn from a goroutine of its own, so neither the read loop nor busy
// consumers hold it up.
func (m *Manager) resubscribe(conn Connection) {
	topics := m.registry.Topics()
	if len(topics) == 0 {
		return
	}
	m.sweeps.Add(1)
	go func() {
		defer m.sweeps.Done()
		m.sweep(m.ctx, conn, topics)
	}()
}

func (m *Manager) sweep(ctx context.Context, conn Connection, topics []string) {
	var sent, failures int
	for i, topic := range topics {
		if !identical(m.activeConn(), conn) {
			m.lg.Info("resubscription abandoned, connection replaced", zap.Int("remaining", len(topics)-i))
			break
		}
		if m.resubscribeOne(ctx, conn, topic) {
			sent++
		} else {
			failures++
		}
	}
	m.metrics.OnResubscribe(sent, failures)
	m.lg.Info("resubscription finished", zap.Int("topics", sent), zap.Int("failures", failures))
}

func (m *Manager) resubscribeOne(ctx context.Context, conn Connection, topic string) bool {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()
	// Unsubscribed since the snapshot was taken.
	if _, ok := m.registry.Lookup(topic); !ok {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.commandTimeout)
	defer cancel()
	if err := conn.Subscribe(ctx, topic); err != nil {
		m.metrics.OnCommandFailure("subscribe")
		m.lg.Warn("resubscription error", zap.String("topic", topic), zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) fail(conn Connection, err error) {
	m.mu.Lock()
	m.err = err
	m.running = false
	m.mu.Unlock()

	m.lg.Error("dispatch loop stopped on connection contract violation", zap.Error(err))
	m.cancel()
	m.closeConn(conn)
}

func (m *Manager) closeConn(conn Connection) {
	if err := conn.Close(); err != nil {
		m.lg.Debug("pubsub connection close error", zap.Error(err))
	}
}

func (m *Manager) activeConn() Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	return m.conn
}

func (m *Manager) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
