package audio

import (
	"errors"
	"testing"

	"github.com/lixenwraith/sfx/catalog"
)

func testPool(initial, max int) *VoicePool {
	return NewVoicePool(catalog.Config{InitialPoolSize: initial, MaxPoolSize: max}, nil)
}

// TestPoolInitializePreCreates verifies lazy pre-creation of idle slots
func TestPoolInitializePreCreates(t *testing.T) {
	p := testPool(2, 4)

	p.Initialize("x")
	if got := p.IdleCount("x"); got != 2 {
		t.Errorf("expected 2 idle slots after Initialize, got %d", got)
	}

	// Second call is a no-op
	p.Initialize("x")
	if got := p.IdleCount("x"); got != 2 {
		t.Errorf("expected Initialize to be idempotent, got %d idle", got)
	}
}

// TestPoolAcquireReusesIdle verifies idle slots are checked out before new
// ones are created
func TestPoolAcquireReusesIdle(t *testing.T) {
	p := testPool(1, 4)
	p.Initialize("x")

	v, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := p.IdleCount("x"); got != 0 {
		t.Errorf("expected idle queue drained, got %d", got)
	}
	if v.soundID != "x" {
		t.Errorf("expected slot bound to sound, got %q", v.soundID)
	}
	if got := p.ActiveCount("x"); got != 1 {
		t.Errorf("expected 1 active, got %d", got)
	}
}

// TestPoolAcquireRespectsCap verifies acquisition fails once idle+active
// reaches the pool cap
func TestPoolAcquireRespectsCap(t *testing.T) {
	p := testPool(1, 2)

	for i := 0; i < 2; i++ {
		if _, err := p.Acquire("x"); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		if total := p.TrackedCount("x"); total > 2 {
			t.Fatalf("pool invariant violated: tracked %d > 2", total)
		}
	}

	_, err := p.Acquire("x")
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

// TestPoolDoubleReleaseIsNoop verifies releasing an untracked slot does
// nothing
func TestPoolDoubleReleaseIsNoop(t *testing.T) {
	p := testPool(1, 2)
	v, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	p.Release(v)
	if got := p.IdleCount("x"); got != 1 {
		t.Fatalf("expected 1 idle after release, got %d", got)
	}

	p.Release(v)
	if got := p.IdleCount("x"); got != 1 {
		t.Errorf("expected second release to be a no-op, got %d idle", got)
	}
	if got := p.ActiveCount("x"); got != 0 {
		t.Errorf("expected 0 active, got %d", got)
	}
}

// TestPoolDiscardsDestroyedIdleSlots verifies the garbage policy: dead
// slots in the idle queue are dropped, not reused
func TestPoolDiscardsDestroyedIdleSlots(t *testing.T) {
	p := testPool(1, 2)
	v, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	p.Release(v)
	v.destroyed = true

	got, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got == v {
		t.Error("expected destroyed slot to be discarded, got it back")
	}
}

// TestPoolOldestPicksSmallestStartTime verifies eviction candidate order
func TestPoolOldestPicksSmallestStartTime(t *testing.T) {
	p := testPool(1, 4)

	first, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := p.Acquire("x"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if got := p.Oldest("x"); got != first {
		t.Errorf("expected the first-acquired voice, got slot %v", got)
	}

	// Evicting voices fall out of consideration
	p.MarkEvicting(first)
	if got := p.Oldest("x"); got == first {
		t.Error("expected evicting voice excluded from Oldest")
	}
	if got := p.ActiveCount("x"); got != 1 {
		t.Errorf("expected evicting voice excluded from count, got %d", got)
	}
}

// TestPoolCloseDestroysSlots verifies teardown clears all registries and
// refuses further acquisition
func TestPoolCloseDestroysSlots(t *testing.T) {
	p := testPool(2, 4)
	p.Initialize("x")
	v, err := p.Acquire("x")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	p.Close()
	if got := p.IdleCount("x"); got != 0 {
		t.Errorf("expected idle queue cleared, got %d", got)
	}

	// Releasing after close must not resurrect the slot
	p.Release(v)
	if got := p.IdleCount("x"); got != 0 {
		t.Errorf("expected no idle slots after close, got %d", got)
	}

	if _, err := p.Acquire("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
