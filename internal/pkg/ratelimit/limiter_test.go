package ratelimit

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdmit_PerCallerLimitAndReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(Config{PerCaller: 5, Global: 100, Window: time.Minute}, clock, quietLogger())

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit("1.2.3.4").Allowed, "admission %d", i+1)
	}

	d := l.Admit("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// Another caller is unaffected.
	assert.True(t, l.Admit("5.6.7.8").Allowed)

	clock.Advance(time.Minute + time.Millisecond)
	assert.True(t, l.Admit("1.2.3.4").Allowed)
}

func TestAdmit_GlobalLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(Config{PerCaller: 10, Global: 3, Window: time.Minute}, clock, quietLogger())

	assert.True(t, l.Admit("a").Allowed)
	assert.True(t, l.Admit("b").Allowed)
	assert.True(t, l.Admit("c").Allowed)

	clock.Advance(20 * time.Second)
	d := l.Admit("d")
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)
}

func TestAdmit_DeniedRequestsDoNotCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(Config{PerCaller: 2, Global: 3, Window: time.Minute}, clock, quietLogger())

	assert.True(t, l.Admit("a").Allowed)
	assert.True(t, l.Admit("a").Allowed)
	// Caller "a" is exhausted; its denials must not eat global capacity.
	for i := 0; i < 5; i++ {
		assert.False(t, l.Admit("a").Allowed)
	}
	assert.True(t, l.Admit("b").Allowed)
}

func TestAdmit_ConcurrentNeverOverAdmits(t *testing.T) {
	l := New(Config{PerCaller: 50, Global: 1000, Window: time.Hour}, clockwork.NewFakeClock(), quietLogger())

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if l.Admit("shared").Allowed {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), admitted.Load())
}

func TestAdmit_LogsEvery25th(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := New(Config{PerCaller: 100, Global: 100, Window: time.Minute}, clockwork.NewFakeClock(), logger)

	for i := 0; i < 60; i++ {
		l.Admit("a")
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "rate limiter progress"))
}

func TestNew_Defaults(t *testing.T) {
	l := New(Config{}, nil, nil)
	assert.Equal(t, DefaultConfig(), l.cfg)
}
