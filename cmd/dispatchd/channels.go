package main

import (
	"context"

	"go.uber.org/zap"
)

// loggingChannel writes every notification to the log. The daemon uses one
// per configured topic and one as the dead letter sink.
type loggingChannel struct {
	lg *zap.Logger
}

func newLoggingChannel(lg *zap.Logger, name string) *loggingChannel {
	return &loggingChannel{lg: lg.With(zap.String("channel", name))}
}

func (c *loggingChannel) OnDispatchMessage(_ context.Context, topic string, payload []byte) {
	c.lg.Info("message received", zap.String("topic", topic), zap.ByteString("payload", payload))
}

func (c *loggingChannel) OnDispatchSubscribed(_ context.Context, topic string) {
	c.lg.Info("subscribed", zap.String("topic", topic))
}

func (c *loggingChannel) OnDispatchUnsubscribed(_ context.Context, topic string) {
	c.lg.Info("unsubscribed", zap.String("topic", topic))
}
