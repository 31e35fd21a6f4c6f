package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/infigaming-com/go-dispatch/util"
)

const CorrelationIdKey string = "X-CORRELATION-ID"

type correlationIdOptions struct {
	newId func() string
}

type CorrelationIdOption func(*correlationIdOptions)

// WithIdGenerator replaces util.NewUUID as the source of minted ids.
func WithIdGenerator(newId func() string) CorrelationIdOption {
	return func(o *correlationIdOptions) {
		if newId != nil {
			o.newId = newId
		}
	}
}

// CorrelationIdMiddleware reuses the caller's correlation id when one is
// sent and mints one otherwise.
func CorrelationIdMiddleware(opts ...CorrelationIdOption) gin.HandlerFunc {
	cfg := &correlationIdOptions{newId: util.NewUUID}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		correlationId := c.GetHeader(CorrelationIdKey)
		if correlationId == "" {
			correlationId = cfg.newId()
		}
		c.Header(CorrelationIdKey, correlationId)
		ctx := util.CorrelationIdToCtx(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
