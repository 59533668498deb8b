// Package session holds the per-customer conversational state and the
// in-memory store that owns it.
//
// This file implements the Store: a process-wide map from customer identity
// to session, with per-identity mutual exclusion and a periodic expiry sweep.
//
// Concurrency contract:
//   - At most one dialogue turn is in flight per identity. Acquire blocks
//     until the identity's previous turn has released, and the exclusion is
//     held for the whole turn including any storage round-trips performed
//     during it.
//   - Turns for distinct identities never block each other; the store-wide
//     mutex only guards map lookups and is held for a few instructions.
//   - The sweep takes the same per-identity exclusion before evicting, so a
//     session can never be deleted out from under an in-flight turn. A
//     session whose lock is busy is by definition active and is skipped.
//
// Sessions are purely in-memory; losing them on restart is acceptable.
package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	// sessionsActive gauges the number of live sessions in the store.
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "order_sessions_active",
		Help: "Current number of live ordering sessions.",
	})

	// sessionsExpired counts sessions evicted by the expiry sweep.
	sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_sessions_expired_total",
		Help: "Total number of sessions evicted by the expiry sweep.",
	})
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsExpired)
}

// entry pairs a session with its per-identity mutex. The deleted flag lets a
// caller that raced with an eviction detect the stale entry and retry.
type entry struct {
	mu      sync.Mutex
	sess    *Session
	deleted bool
}

// Store is the process-wide session registry. It is safe for concurrent use;
// create it with New and start the expiry sweep with Start.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl      time.Duration
	interval time.Duration

	stop chan struct{}
	done chan struct{}

	// now is a test seam; it defaults to time.Now.
	now func() time.Time
}

// New constructs a Store with the given inactivity window and sweep interval.
// The sweep does not run until Start is called.
func New(ttl, sweepInterval time.Duration) *Store {
	return &Store{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		interval: sweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Acquire returns the session for identity, creating a fresh StateStart
// session if none exists, with exclusive access for the calling goroutine.
// LastActiveAt is refreshed as part of acquisition, so every inbound message
// touches the session regardless of the turn's outcome.
//
// The returned release function must be called exactly once, when the turn is
// complete. Passing destroy=true removes the session (explicit reset or
// successful confirmation); the next Acquire for the identity starts fresh.
func (st *Store) Acquire(identity string) (*Session, func(destroy bool)) {
	for {
		st.mu.Lock()
		e, ok := st.entries[identity]
		if !ok {
			now := st.now()
			e = &entry{sess: &Session{
				Phone:        identity,
				State:        StateStart,
				CreatedAt:    now,
				LastActiveAt: now,
			}}
			st.entries[identity] = e
			sessionsActive.Inc()
		}
		st.mu.Unlock()

		e.mu.Lock()
		if e.deleted {
			// Lost a race with an eviction between the map lookup and the
			// entry lock; the map no longer holds this entry.
			e.mu.Unlock()
			continue
		}
		e.sess.LastActiveAt = st.now()

		release := func(destroy bool) {
			if destroy {
				e.deleted = true
				st.mu.Lock()
				if cur, ok := st.entries[identity]; ok && cur == e {
					delete(st.entries, identity)
					sessionsActive.Dec()
				}
				st.mu.Unlock()
			}
			e.mu.Unlock()
		}
		return e.sess, release
	}
}

// Peek returns a copy of the session for identity without creating one.
// It takes the per-identity exclusion briefly, so it may block behind an
// in-flight turn. Intended for tests and introspection.
func (st *Store) Peek(identity string) (Session, bool) {
	st.mu.Lock()
	e, ok := st.entries[identity]
	st.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return Session{}, false
	}
	return *e.sess, true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// Start launches the background expiry sweep. It returns immediately; call
// Close to stop the sweep and wait for it to exit.
func (st *Store) Start() {
	go func() {
		defer close(st.done)
		t := time.NewTicker(st.interval)
		defer t.Stop()
		for {
			select {
			case <-st.stop:
				return
			case <-t.C:
				n := st.sweep()
				if n > 0 {
					log.Debug().Int("evicted", n).Msg("session sweep")
				}
			}
		}
	}()
}

// Close stops the expiry sweep and waits for it to exit. Sessions are not
// flushed anywhere; the store is purely in-memory.
func (st *Store) Close() {
	close(st.stop)
	<-st.done
}

// sweep scans all sessions and evicts those inactive for longer than the
// configured window. It returns the number of sessions evicted.
//
// Eviction takes the per-identity lock via TryLock: a session whose lock is
// held is mid-turn, hence active, and is left alone; the next sweep will see
// its refreshed LastActiveAt.
func (st *Store) sweep() int {
	now := st.now()
	cutoff := now.Add(-st.ttl)

	st.mu.Lock()
	snapshot := make(map[string]*entry, len(st.entries))
	for k, e := range st.entries {
		snapshot[k] = e
	}
	st.mu.Unlock()

	evicted := 0
	for identity, e := range snapshot {
		if !e.mu.TryLock() {
			continue
		}
		if !e.deleted && e.sess.LastActiveAt.Before(cutoff) {
			e.deleted = true
			st.mu.Lock()
			if cur, ok := st.entries[identity]; ok && cur == e {
				delete(st.entries, identity)
				sessionsActive.Dec()
				sessionsExpired.Inc()
				evicted++
			}
			st.mu.Unlock()
		}
		e.mu.Unlock()
	}
	return evicted
}
