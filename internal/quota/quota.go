// Package quota implements fixed-window request counting per partition key.
//
// Each partition (typically "ip:<addr>") owns one counter that resets when
// the current time crosses the end of its window. Consumption is counted
// before the outcome is known, so denied attempts spend quota too.
package quota

import (
	"strings"
	"sync"
	"time"
)

// FallbackKey is charged when no stable partition key can be derived from
// the caller. Unresolvable origins share one bucket instead of gaining
// unlimited quota.
const FallbackKey = "ip:unknown"

// idleWindows is how many full windows a partition may sit untouched before
// an opportunistic sweep drops it.
const idleWindows = 10

// Decision reports the outcome of a single consumption attempt.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type partition struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// Ledger tracks fixed-window counters keyed by partition. The zero value is
// not usable; construct with NewLedger.
type Ledger struct {
	now func() time.Time

	mu         sync.RWMutex
	partitions map[string]*partition

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// Option configures Ledger behavior.
type Option func(*Ledger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLedger constructs an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:        time.Now,
		partitions: make(map[string]*partition),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryConsume charges one request against the partition's current window and
// reports whether it fit under the limit. The charge is applied regardless
// of outcome. Keys that trim to empty are mapped to FallbackKey.
func (l *Ledger) TryConsume(key string, limit int, window time.Duration) Decision {
	key = strings.TrimSpace(key)
	if key == "" {
		key = FallbackKey
	}
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: false, RetryAfter: window}
	}

	now := l.now()
	p := l.partition(key)

	p.mu.Lock()
	if p.windowStart.IsZero() || !now.Before(p.windowStart.Add(window)) {
		p.windowStart = now
		p.count = 0
	}
	p.count++
	p.lastSeen = now
	count := p.count
	windowStart := p.windowStart
	p.mu.Unlock()

	l.maybeSweep(now, window)

	if count <= limit {
		return Decision{Allowed: true, Remaining: limit - count}
	}
	retry := windowStart.Add(window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Decision{Allowed: false, RetryAfter: retry}
}

// partition returns the counter for key, creating it lazily. Lookup takes
// the read lock; creation upgrades to the write lock and re-checks.
func (l *Ledger) partition(key string) *partition {
	l.mu.RLock()
	p, ok := l.partitions[key]
	l.mu.RUnlock()
	if ok {
		return p
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok = l.partitions[key]; ok {
		return p
	}
	p = &partition{}
	l.partitions[key] = p
	return p
}

// maybeSweep drops partitions idle for more than idleWindows full windows.
// Runs at most once per window so the common path stays cheap; there is no
// background goroutine.
func (l *Ledger) maybeSweep(now time.Time, window time.Duration) {
	l.sweepMu.Lock()
	if now.Sub(l.lastSweep) < window {
		l.sweepMu.Unlock()
		return
	}
	l.lastSweep = now
	l.sweepMu.Unlock()

	cutoff := now.Add(-time.Duration(idleWindows) * window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, p := range l.partitions {
		p.mu.Lock()
		idle := !p.lastSeen.IsZero() && p.lastSeen.Before(cutoff)
		p.mu.Unlock()
		if idle {
			delete(l.partitions, key)
		}
	}
}

// Size reports how many partitions are currently tracked.
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.partitions)
}
