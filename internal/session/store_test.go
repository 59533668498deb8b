package session

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAcquire_CreatesFreshSession(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	sess, release := st.Acquire("whatsapp:+15550001111")
	defer release(false)

	if sess.Phone != "whatsapp:+15550001111" {
		t.Fatalf("phone = %q", sess.Phone)
	}
	if sess.State != StateStart {
		t.Fatalf("state = %q, want %q", sess.State, StateStart)
	}
	if !sess.Cart.Empty() {
		t.Fatalf("new session cart must be empty")
	}
	if sess.CreatedAt.IsZero() || sess.LastActiveAt.IsZero() {
		t.Fatalf("timestamps unset: %+v", sess)
	}
}

func TestAcquire_PersistsMutationsAcrossTurns(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	sess, release := st.Acquire("p1")
	sess.State = StateMenu
	_ = sess.Cart.Add(1, "Pizza", decimal.NewFromInt(200), 2)
	release(false)

	sess2, release2 := st.Acquire("p1")
	defer release2(false)
	if sess2.State != StateMenu {
		t.Fatalf("state = %q, want menu", sess2.State)
	}
	if len(sess2.Cart.Lines) != 1 {
		t.Fatalf("cart lines = %d, want 1", len(sess2.Cart.Lines))
	}
}

func TestRelease_DestroyStartsFresh(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	sess, release := st.Acquire("p1")
	sess.State = StateMenu
	_ = sess.Cart.Add(1, "Pizza", decimal.NewFromInt(200), 1)
	release(true)

	if st.Len() != 0 {
		t.Fatalf("store len = %d after destroy, want 0", st.Len())
	}

	sess2, release2 := st.Acquire("p1")
	defer release2(false)
	if sess2.State != StateStart || !sess2.Cart.Empty() {
		t.Fatalf("expected fresh session, got %+v", sess2)
	}
}

func TestAcquire_SerializesSameIdentity(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	const turns = 50
	var wg sync.WaitGroup
	wg.Add(turns)
	for i := 0; i < turns; i++ {
		go func() {
			defer wg.Done()
			sess, release := st.Acquire("p1")
			// Read-modify-write on the cart; lost updates would shorten it.
			_ = sess.Cart.Add(1, "Pizza", decimal.NewFromInt(200), 1)
			release(false)
		}()
	}
	wg.Wait()

	sess, release := st.Acquire("p1")
	defer release(false)
	if len(sess.Cart.Lines) != turns {
		t.Fatalf("cart lines = %d, want %d (lost updates)", len(sess.Cart.Lines), turns)
	}
}

func TestAcquire_IdentitiesAreIsolated(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	s1, r1 := st.Acquire("p1")
	_ = s1.Cart.Add(1, "Pizza", decimal.NewFromInt(200), 1)
	s1.State = StateMenu
	r1(false)

	s2, r2 := st.Acquire("p2")
	defer r2(false)
	if !s2.Cart.Empty() || s2.State != StateStart {
		t.Fatalf("p2 leaked state from p1: %+v", s2)
	}
}

func TestSweep_EvictsOnlyExpired(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	_, r1 := st.Acquire("old")
	r1(false)

	st.now = func() time.Time { return base.Add(20 * time.Minute) }
	_, r2 := st.Acquire("fresh")
	r2(false)

	// 31 minutes after "old" was last touched, 11 after "fresh".
	st.now = func() time.Time { return base.Add(31 * time.Minute) }
	if n := st.sweep(); n != 1 {
		t.Fatalf("sweep evicted %d, want 1", n)
	}
	if _, ok := st.Peek("old"); ok {
		t.Fatalf("expired session survived the sweep")
	}
	if _, ok := st.Peek("fresh"); !ok {
		t.Fatalf("fresh session was evicted")
	}
}

func TestSweep_SkipsSessionMidTurn(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	// Hold the turn across the sweep.
	_, release := st.Acquire("busy")

	st.now = func() time.Time { return base.Add(2 * time.Hour) }
	if n := st.sweep(); n != 0 {
		t.Fatalf("sweep evicted %d mid-turn sessions, want 0", n)
	}
	release(false)

	// Released and stale at the post-release timestamp; now it goes.
	st.now = func() time.Time { return base.Add(5 * time.Hour) }
	if n := st.sweep(); n != 1 {
		t.Fatalf("sweep evicted %d, want 1 after release", n)
	}
}

func TestAcquire_RefreshesLastActive(t *testing.T) {
	st := New(30*time.Minute, 5*time.Minute)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	_, r1 := st.Acquire("p1")
	r1(false)

	// Any inbound message refreshes the inactivity window.
	st.now = func() time.Time { return base.Add(25 * time.Minute) }
	_, r2 := st.Acquire("p1")
	r2(false)

	st.now = func() time.Time { return base.Add(40 * time.Minute) }
	if n := st.sweep(); n != 0 {
		t.Fatalf("refreshed session evicted (last active 15m ago, ttl 30m)")
	}
}

func TestStartClose_SweepLoopStops(t *testing.T) {
	st := New(time.Hour, 10*time.Millisecond)
	st.Start()
	time.Sleep(30 * time.Millisecond)
	st.Close() // must not hang or panic
}
