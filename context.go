package xcast

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xcast (prevents collisions).
type ctxKey string

const (
	loggerCtxKey  ctxKey = "xcast:logger"
	clockCtxKey   ctxKey = "xcast:clock"
	patternCtxKey ctxKey = "xcast:pattern"
)

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext returns the bus logger inside a handler.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

// ClockFromContext returns the bus clock inside a handler.
func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectPattern(ctx context.Context, p string) context.Context {
	return context.WithValue(ctx, patternCtxKey, p)
}

// PatternFromContext returns the pattern of the subscription being delivered to.
func PatternFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(patternCtxKey).(string)
	return p, ok
}
