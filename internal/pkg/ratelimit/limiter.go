// Package ratelimit admits requests against fixed per-caller and global windows.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config bounds admissions per window.
type Config struct {
	PerCaller int
	Global    int
	Window    time.Duration
}

// DefaultConfig is 120 per caller and 600 overall per minute.
func DefaultConfig() Config {
	return Config{PerCaller: 120, Global: 600, Window: time.Minute}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// sweepThreshold is the caller-map size above which expired windows are pruned.
const sweepThreshold = 10_000

// logEvery is the per-caller admission interval of the progress log line.
const logEvery = 25

// Limiter is a fixed-window admission counter shared by all request handlers.
type Limiter struct {
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	callers map[string]*window
	global  window
}

// New creates a Limiter. Zero config fields take the defaults; a nil clock
// uses real time and a nil logger uses slog.Default().
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.PerCaller <= 0 {
		cfg.PerCaller = def.PerCaller
	}
	if cfg.Global <= 0 {
		cfg.Global = def.Global
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		callers: make(map[string]*window),
	}
}

// Admit checks the caller window and the global window and, only when both
// have room, counts the request against both. The whole decision happens
// under one lock.
func (l *Limiter) Admit(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if now.After(l.global.resetAt) {
		l.global = window{resetAt: now.Add(l.cfg.Window)}
	}

	w, ok := l.callers[key]
	if !ok || now.After(w.resetAt) {
		if len(l.callers) >= sweepThreshold {
			l.sweep(now)
		}
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.callers[key] = w
	}

	if w.count >= l.cfg.PerCaller {
		return Decision{RetryAfter: w.resetAt.Sub(now)}
	}
	if l.global.count >= l.cfg.Global {
		return Decision{RetryAfter: l.global.resetAt.Sub(now)}
	}

	w.count++
	l.global.count++

	if w.count%logEvery == 0 {
		l.logger.Info("rate limiter progress",
			"caller", key,
			"count", w.count,
			"limit", l.cfg.PerCaller,
			"global_count", l.global.count,
		)
	}

	return Decision{Allowed: true}
}

// Callers returns how many caller windows are tracked.
func (l *Limiter) Callers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}

func (l *Limiter) sweep(now time.Time) {
	for k, w := range l.callers {
		if now.After(w.resetAt) {
			delete(l.callers, k)
		}
	}
}
