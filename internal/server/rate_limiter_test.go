package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventLimiterAllowsBurstThenBlocks(t *testing.T) {
	req := require.New(t)
	limiter := newEventLimiter(3, time.Hour)

	req.True(limiter.allow())
	req.True(limiter.allow())
	req.True(limiter.allow())
	req.False(limiter.allow())
}

func TestEventLimiterRefills(t *testing.T) {
	req := require.New(t)
	limiter := newEventLimiter(2, 20*time.Millisecond)

	req.True(limiter.allow())
	req.True(limiter.allow())
	req.False(limiter.allow())

	time.Sleep(30 * time.Millisecond)
	req.True(limiter.allow())
}

func TestEventLimiterSanitizesInputs(t *testing.T) {
	limiter := newEventLimiter(0, 0)
	require.True(t, limiter.allow())
	require.False(t, limiter.allow())
}
