package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger_WithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithConnectionID(context.Background(), "conn-1")
	ctx = WithNickname(ctx, "alice")

	cl.WithContext(ctx).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "conn-1", fields["connection_id"])
		assert.Equal(t, "alice", fields["nickname"])
		assert.NotContains(t, fields, "session_id")
	}
}

func TestContextLogger_LogEvent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cl := NewContextLogger(zap.New(core))
	ctx := WithSessionID(context.Background(), "sess-1")

	cl.LogEvent(ctx, "startChat", nil)
	cl.LogEvent(ctx, "sendMessage", errors.New("no active session"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "event_handled", entries[0].Message)
		assert.Equal(t, "event_refused", entries[1].Message)
		assert.Equal(t, "sendMessage", entries[1].ContextMap()["event"])
	}
}

func TestNew_FallsBackToInfoOnUnknownLevel(t *testing.T) {
	l := New("chatty")
	assert.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}
