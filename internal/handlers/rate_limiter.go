package handlers

import (
	"strings"
	"sync"
	"time"
)

// ipThrottle caps how many credential attempts a single client address
// may make inside a rolling window. Entries for quiet addresses are
// pruned whenever a window rolls over.
type ipThrottle struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]throttleWindow
}

type throttleWindow struct {
	hits    int
	expires time.Time
}

func newIPThrottle(limit int, window time.Duration, clock func() time.Time) *ipThrottle {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &ipThrottle{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]throttleWindow),
	}
}

// Allow records an attempt from addr and reports whether it is within
// the configured limit. A nil throttle allows everything.
func (t *ipThrottle) Allow(addr string) bool {
	if t == nil {
		return true
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = "unknown"
	}

	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[addr]
	if !ok || now.After(w.expires) {
		t.windows[addr] = throttleWindow{hits: 1, expires: now.Add(t.window)}
		t.dropStaleLocked(now)
		return true
	}
	if w.hits >= t.limit {
		return false
	}
	w.hits++
	t.windows[addr] = w
	return true
}

func (t *ipThrottle) dropStaleLocked(now time.Time) {
	for addr, w := range t.windows {
		if now.After(w.expires) {
			delete(t.windows, addr)
		}
	}
}
