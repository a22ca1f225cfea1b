package datasource

import (
	"sync"
	"sync/atomic"
	"time"
)

// timerSet owns the idle, health and query timers of every connection id.
// At most one timer of each kind exists per id; arming a new one stops the
// previous one first.
type timerSet struct {
	mu     sync.Mutex
	idle   map[string]*time.Timer
	health map[string]*healthTicker
	query  map[string]*queryTimer
}

type healthTicker struct {
	ticker *time.Ticker
	done   chan struct{}
}

func (h *healthTicker) stop() {
	h.ticker.Stop()
	close(h.done)
}

// queryTimer closes fired when the query deadline passes.
// cancelled is set when the query was cancelled by the caller instead.
type queryTimer struct {
	timer     *time.Timer
	fired     chan struct{}
	cancelled atomic.Bool
}

func newTimerSet() *timerSet {
	return &timerSet{
		idle:   make(map[string]*time.Timer),
		health: make(map[string]*healthTicker),
		query:  make(map[string]*queryTimer),
	}
}

// startIdle arms a one-shot idle timer that calls fn on its own goroutine.
func (s *timerSet) startIdle(id string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.idle[id]; ok {
		t.Stop()
	}
	s.idle[id] = time.AfterFunc(d, fn)
}

// resetIdle pushes the idle deadline out by d. It is a no-op when no idle
// timer is armed for id.
func (s *timerSet) resetIdle(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.idle[id]; ok {
		t.Reset(d)
	}
}

// startHealth runs fn every interval until the id is cleared.
// Invocations of fn never overlap.
func (s *timerSet) startHealth(id string, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.health[id]; ok {
		h.stop()
	}

	h := &healthTicker{ticker: time.NewTicker(interval), done: make(chan struct{})}
	s.health[id] = h

	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-h.ticker.C:
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// startQuery arms the query deadline for id, replacing any pending one.
func (s *timerSet) startQuery(id string, d time.Duration) *queryTimer {
	qt := &queryTimer{fired: make(chan struct{})}
	qt.timer = time.AfterFunc(d, func() { close(qt.fired) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.query[id]; ok {
		prev.timer.Stop()
	}
	s.query[id] = qt
	return qt
}

// finishQuery stops qt and forgets it if it is still the pending timer for id.
func (s *timerSet) finishQuery(id string, qt *queryTimer) {
	qt.timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query[id] == qt {
		delete(s.query, id)
	}
}

// cancelQuery marks the pending query timer for id as cancelled and stops it.
func (s *timerSet) cancelQuery(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qt, ok := s.query[id]; ok {
		qt.cancelled.Store(true)
		qt.timer.Stop()
		delete(s.query, id)
	}
}

// clear stops every timer belonging to id.
func (s *timerSet) clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(id)
}

func (s *timerSet) clearLocked(id string) {
	if t, ok := s.idle[id]; ok {
		t.Stop()
		delete(s.idle, id)
	}
	if h, ok := s.health[id]; ok {
		h.stop()
		delete(s.health, id)
	}
	if qt, ok := s.query[id]; ok {
		qt.timer.Stop()
		delete(s.query, id)
	}
}

func (s *timerSet) clearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{}, len(s.idle)+len(s.health)+len(s.query))
	for id := range s.idle {
		ids[id] = struct{}{}
	}
	for id := range s.health {
		ids[id] = struct{}{}
	}
	for id := range s.query {
		ids[id] = struct{}{}
	}
	for id := range ids {
		s.clearLocked(id)
	}
}

// counts returns the number of armed idle, health and query timers.
func (s *timerSet) counts() (idle, health, query int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idle), len(s.health), len(s.query)
}
