package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/infigaming-com/go-dispatch/dispatch"
)

// DispatchMetrics records dispatcher activity as otel counters. All
// instruments are created up front so the hot path never allocates one.
type DispatchMetrics struct {
	events              metric.Int64Counter
	notifications       metric.Int64Counter
	deadLetters         metric.Int64Counter
	drops               metric.Int64Counter
	commandFailures     metric.Int64Counter
	reconnects          metric.Int64Counter
	connectFailures     metric.Int64Counter
	resubscribedTopics  metric.Int64Counter
	resubscribeFailures metric.Int64Counter
	callbackPanics      metric.Int64Counter
}

var _ dispatch.MetricsHook = (*DispatchMetrics)(nil)

func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	dm := &DispatchMetrics{}
	for _, c := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&dm.events, "dispatch.events", "Connection events read"},
		{&dm.notifications, "dispatch.notifications", "Channel notifications scheduled"},
		{&dm.deadLetters, "dispatch.dead_letters", "Messages routed to the dead letter channel"},
		{&dm.drops, "dispatch.drops", "Messages dropped with no owner and no dead letter channel"},
		{&dm.commandFailures, "dispatch.command_failures", "Upstream subscribe or unsubscribe commands that failed"},
		{&dm.reconnects, "dispatch.reconnects", "Connections replaced after a read failure"},
		{&dm.connectFailures, "dispatch.connect_failures", "Failed connect attempts"},
		{&dm.resubscribedTopics, "dispatch.resubscribed_topics", "Topics resubscribed on a new connection"},
		{&dm.resubscribeFailures, "dispatch.resubscribe_failures", "Topics whose resubscription failed"},
		{&dm.callbackPanics, "dispatch.callback_panics", "Channel callbacks that panicked"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return dm, nil
}

func (dm *DispatchMetrics) OnEvent(kind dispatch.EventKind) {
	dm.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (dm *DispatchMetrics) OnNotification(kind dispatch.NotificationKind) {
	dm.notifications.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (dm *DispatchMetrics) OnDeadLetter() {
	dm.deadLetters.Add(context.Background(), 1)
}

func (dm *DispatchMetrics) OnDrop() {
	dm.drops.Add(context.Background(), 1)
}

func (dm *DispatchMetrics) OnCommandFailure(command string) {
	dm.commandFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}

func (dm *DispatchMetrics) OnReconnect() {
	dm.reconnects.Add(context.Background(), 1)
}

func (dm *DispatchMetrics) OnConnectFailure() {
	dm.connectFailures.Add(context.Background(), 1)
}

func (dm *DispatchMetrics) OnResubscribe(resubscribed, failures int) {
	ctx := context.Background()
	dm.resubscribedTopics.Add(ctx, int64(resubscribed))
	if failures > 0 {
		dm.resubscribeFailures.Add(ctx, int64(failures))
	}
}

func (dm *DispatchMetrics) OnCallbackPanic(kind dispatch.NotificationKind) {
	dm.callbackPanics.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}
