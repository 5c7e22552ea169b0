package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRunBackgroundLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	boom := errors.New("channel closed")

	runBackground(context.Background(), "reservation consumer", runFunc(func(context.Context) error { return boom }), zap.New(core))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "reservation consumer stopped", entry.Message)
	assert.Equal(t, "channel closed", entry.ContextMap()["error"])
}

func TestRunBackgroundQuietOnShutdown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runBackground(ctx, "reservation consumer", runFunc(func(ctx context.Context) error { return ctx.Err() }), zap.New(core))
	assert.Zero(t, logs.Len())
}
