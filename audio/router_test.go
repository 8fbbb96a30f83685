package audio

import (
	"sync"
	"testing"
)

// memStore is an in-memory VolumeStore for routing tests
type memStore struct {
	mu     sync.Mutex
	values map[string]float64
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]float64)}
}

func (s *memStore) Get(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *memStore) Set(key string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// TestRouterGroupSeedsFromStore verifies a new group picks up its persisted
// volume
func TestRouterGroupSeedsFromStore(t *testing.T) {
	store := newMemStore()
	store.Set("music", 0.5)
	r := NewRouter(store)

	r.Group("music")
	if got := r.GroupVolume("music"); got != 0.5 {
		t.Errorf("expected persisted volume 0.5, got %v", got)
	}
	if got := r.GroupVolume("sfx"); got != 1.0 {
		t.Errorf("expected default volume 1.0 for unknown group, got %v", got)
	}
}

// TestRouterGroupIsStable verifies repeated lookups return the same mixer
func TestRouterGroupIsStable(t *testing.T) {
	r := NewRouter(nil)

	a := r.Group("sfx")
	b := r.Group("sfx")
	if a != b {
		t.Error("expected the same mixer for repeated group lookups")
	}
}

// TestRouterSetGroupVolumePersists verifies volume changes reach the store
func TestRouterSetGroupVolumePersists(t *testing.T) {
	store := newMemStore()
	r := NewRouter(store)
	r.Group("music")

	if err := r.SetGroupVolume("music", 0.25); err != nil {
		t.Fatalf("SetGroupVolume failed: %v", err)
	}
	if got := r.GroupVolume("music"); got != 0.25 {
		t.Errorf("expected volume 0.25, got %v", got)
	}
	if v, ok := store.Get("music"); !ok || v != 0.25 {
		t.Errorf("expected store updated to 0.25, got %v (present %v)", v, ok)
	}

	// Out-of-range values are clamped
	if err := r.SetGroupVolume("music", 1.5); err != nil {
		t.Fatalf("SetGroupVolume failed: %v", err)
	}
	if got := r.GroupVolume("music"); got != 1.0 {
		t.Errorf("expected clamped volume 1.0, got %v", got)
	}
}

// TestRouterReset verifies teardown detaches every group
func TestRouterReset(t *testing.T) {
	r := NewRouter(nil)
	r.Group("music")
	r.Group("sfx")

	r.Reset()

	// A post-reset lookup recreates the group fresh at default volume
	r.Group("music")
	if got := r.GroupVolume("music"); got != 1.0 {
		t.Errorf("expected fresh group at 1.0 after reset, got %v", got)
	}
}
