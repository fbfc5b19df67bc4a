package main

import (
	"context"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCancelOnSignalAbortsRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM
	cancelOnSignal(ctx, sigChan, cancel, zap.New(core))

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Received shutdown signal, aborting the current batch...", logs.All()[0].Message)
}

func TestCancelOnSignalReturnsWhenRunEnds(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cancelOnSignal(ctx, make(chan os.Signal), cancel, zap.New(core))

	assert.Zero(t, logs.Len())
}
