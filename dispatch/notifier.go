package dispatch

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-dispatch/dispatch/internal/worker"
)

// notifier hands notifications to channels on the worker pool. Each
// notification is its own job, so delivery order is not guaranteed, not
// even for one topic.
type notifier struct {
	pool    *worker.Pool
	lg      *zap.Logger
	metrics MetricsHook
	timeout time.Duration
}

func newNotifier(pool *worker.Pool, lg *zap.Logger, metrics MetricsHook, timeout time.Duration) *notifier {
	return &notifier{pool: pool, lg: lg, metrics: metrics, timeout: timeout}
}

func (n *notifier) message(ch DispatchChannel, topic string, payload []byte) {
	n.submit(NotifyMessage, topic, func(ctx context.Context) {
		ch.OnDispatchMessage(ctx, topic, payload)
	})
}

func (n *notifier) subscribed(ch DispatchChannel, topic string) {
	n.submit(NotifySubscribed, topic, func(ctx context.Context) {
		ch.OnDispatchSubscribed(ctx, topic)
	})
}

func (n *notifier) unsubscribed(ch DispatchChannel, topic string) {
	n.submit(NotifyUnsubscribed, topic, func(ctx context.Context) {
		ch.OnDispatchUnsubscribed(ctx, topic)
	})
}

func (n *notifier) submit(kind NotificationKind, topic string, fn func(context.Context)) {
	err := n.pool.Submit(context.Background(), func(ctx context.Context) {
		if n.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, n.timeout)
			defer cancel()
		}
		defer n.recover(kind, topic)
		fn(ctx)
	})
	if err != nil {
		n.lg.Debug("notification dropped", zap.Stringer("kind", kind), zap.String("topic", topic), zap.Error(err))
		return
	}
	n.metrics.OnNotification(kind)
}

func (n *notifier) recover(kind NotificationKind, topic string) {
	if r := recover(); r != nil {
		n.metrics.OnCallbackPanic(kind)
		n.lg.Error("dispatch channel callback panicked",
			zap.Stringer("kind", kind),
			zap.String("topic", topic),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}
