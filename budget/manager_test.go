package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetTimeoutPrecedence(t *testing.T) {
	m := New(Config{DefaultTimeout: 5 * time.Second})
	require.Equal(t, 5*time.Second, m.GetTimeout("x", 0))

	m.SetOverride("x", ToolOverride{Timeout: 2 * time.Second})
	require.Equal(t, 2*time.Second, m.GetTimeout("x", 0))

	require.Equal(t, time.Second, m.GetTimeout("x", time.Second))
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	m := New(Config{DefaultBreaker: BreakerConfig{FailureThreshold: 2, Cooldown: 10 * time.Millisecond}})
	failing := func(context.Context) error { return errors.New("boom") }

	require.Error(t, m.Execute(context.Background(), "t", failing))
	require.Error(t, m.Execute(context.Background(), "t", failing))
	require.Equal(t, StateOpen, m.BreakerState("t"))

	err := m.Execute(context.Background(), "t", failing)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	m := New(Config{DefaultBreaker: BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Millisecond}})
	require.Error(t, m.Execute(context.Background(), "t", func(context.Context) error { return errors.New("x") }))
	require.Equal(t, StateOpen, m.BreakerState("t"))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.Execute(context.Background(), "t", func(context.Context) error { return nil }))
	require.Equal(t, StateClosed, m.BreakerState("t"))
}

func TestRateLimitAdmission(t *testing.T) {
	m := New(Config{DefaultRatePerSec: 1, DefaultBurst: 1})
	require.True(t, m.CheckRateLimit("t"))
	require.False(t, m.CheckRateLimit("t"))
}
