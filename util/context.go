package util

import (
	"context"

	"github.com/infigaming-com/go-dispatch/errors"
)

const (
	ErrCodeValueNotFoundInContext = 10000 + iota
	ErrCodeInvalidValueInContext
)

type CtxKey string

const (
	CorrelationIdKey CtxKey = "CorrelationId"
)

func ValueToCtx[T any](ctx context.Context, key CtxKey, value T) context.Context {
	return context.WithValue(ctx, key, value)
}

func ValueFromCtx[T any](ctx context.Context, key CtxKey) (T, error) {
	raw := ctx.Value(key)
	if raw == nil {
		return *new(T), errors.Errorf(ErrCodeValueNotFoundInContext, nil, "%v not found in context", key)
	}
	value, ok := raw.(T)
	if !ok {
		return *new(T), errors.Errorf(ErrCodeInvalidValueInContext, nil, "%v is not of type %T on context", key, *new(T))
	}
	return value, nil
}

func CorrelationIdToCtx(ctx context.Context, correlationId string) context.Context {
	return ValueToCtx(ctx, CorrelationIdKey, correlationId)
}

func CorrelationIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, CorrelationIdKey)
}
