package logutil

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey struct{}

var (
	initOnce sync.Once
	root     *zap.Logger
)

// Init builds the process logger. level is a zap level name; console
// switches between json and console encoding.
func Init(level string, console bool) error {
	var err error
	initOnce.Do(func() {
		lvl := zap.InfoLevel
		if e := lvl.Set(level); e != nil {
			lvl = zap.InfoLevel
		}
		cfg := zap.NewProductionConfig()
		if console {
			cfg = zap.NewDevelopmentConfig()
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		root, err = cfg.Build()
	})
	return err
}

// GetLogger returns the logger attached to ctx, or the process logger.
func GetLogger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	if root == nil {
		root = zap.NewNop()
	}
	return root
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
