package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsignal/finsignal/internal/common"
)

func newTestLimiter(defaultLimit common.OriginLimit, limits map[string]common.OriginLimit) *Limiter {
	l := NewLimiter(defaultLimit, limits, common.GetLogger())
	l.jitter = func() time.Duration { return 0 }
	return l
}

func TestAdmitUnderLimit(t *testing.T) {
	l := newTestLimiter(common.OriginLimit{MaxRequests: 3, WindowSeconds: 60}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		start := time.Now()
		require.NoError(t, l.Admit(ctx, "example.com"))
		assert.Less(t, time.Since(start), 100*time.Millisecond, "admission under the limit must not block")
	}
}

func TestAdmitBlocksWhenWindowFull(t *testing.T) {
	l := newTestLimiter(common.OriginLimit{MaxRequests: 2, WindowSeconds: 60}, nil)

	base := time.Now()
	current := base
	l.now = func() time.Time { return current }

	ctx := context.Background()
	require.NoError(t, l.Admit(ctx, "example.com"))
	require.NoError(t, l.Admit(ctx, "example.com"))

	// Window full: a third admission must wait for the oldest timestamp to
	// age out. Cancel instead of sleeping for a whole window.
	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Admit(cancelCtx, "example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Advance past the window and admission resumes immediately.
	current = base.Add(61 * time.Second)
	require.NoError(t, l.Admit(ctx, "example.com"))
}

func TestAdmitOriginsIndependent(t *testing.T) {
	l := newTestLimiter(common.OriginLimit{MaxRequests: 1, WindowSeconds: 60}, nil)

	ctx := context.Background()
	require.NoError(t, l.Admit(ctx, "a.example.com"))

	// Filling a.example.com's window must not affect b.example.com.
	start := time.Now()
	require.NoError(t, l.Admit(ctx, "b.example.com"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAdmitPerOriginOverride(t *testing.T) {
	l := newTestLimiter(
		common.OriginLimit{MaxRequests: 1, WindowSeconds: 60},
		map[string]common.OriginLimit{"fast.example.com": {MaxRequests: 5, WindowSeconds: 60}},
	)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, "fast.example.com"))
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Admit(cancelCtx, "fast.example.com"), context.DeadlineExceeded)
}

func TestAdmitCancelledContext(t *testing.T) {
	l := newTestLimiter(common.OriginLimit{MaxRequests: 1, WindowSeconds: 60}, nil)

	ctx := context.Background()
	require.NoError(t, l.Admit(ctx, "example.com"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, l.Admit(cancelled, "example.com"), context.Canceled)
}
