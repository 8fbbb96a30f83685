package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lixenwraith/sfx/catalog"
)

// VoicePool manages a fixed-capacity collection of voice slots per sound id.
// For every sound id, idle + active never exceeds MaxPoolSize; a slot is in
// exactly one of the idle queue or the active list.
type VoicePool struct {
	mu      sync.Mutex
	initial int
	max     int
	idle    map[string][]*VoiceSlot
	active  map[string][]*VoiceSlot
	inited  map[string]bool
	nextNum int
	closed  bool
	log     *slog.Logger
}

// NewVoicePool creates a pool sized by the catalog config
func NewVoicePool(cfg catalog.Config, logger *slog.Logger) *VoicePool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VoicePool{
		initial: cfg.InitialPoolSize,
		max:     cfg.MaxPoolSize,
		idle:    make(map[string][]*VoiceSlot),
		active:  make(map[string][]*VoiceSlot),
		inited:  make(map[string]bool),
		log:     logger,
	}
}

// Initialize lazily pre-creates the initial idle slots for a sound id.
// A no-op on every call after the first.
func (p *VoicePool) Initialize(soundID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.inited[soundID] {
		return
	}
	p.inited[soundID] = true
	n := p.initial
	if room := p.max - len(p.idle[soundID]) - len(p.active[soundID]); n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		p.nextNum++
		p.idle[soundID] = append(p.idle[soundID], newVoiceSlot(p.nextNum))
	}
}

// Acquire returns an idle slot for soundID, creating one if capacity allows.
// The returned slot is reset, marked active, and stamped with its start time.
func (p *VoicePool) Acquire(soundID string) (*VoiceSlot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	var v *VoiceSlot
	q := p.idle[soundID]
	for len(q) > 0 {
		candidate := q[0]
		q = q[1:]
		if candidate.destroyed {
			// Garbage policy: discard dead slots found in the idle queue
			continue
		}
		v = candidate
		break
	}
	p.idle[soundID] = q

	if v == nil {
		if len(p.idle[soundID])+len(p.active[soundID]) >= p.max {
			return nil, fmt.Errorf("%w: %q", ErrPoolExhausted, soundID)
		}
		p.nextNum++
		v = newVoiceSlot(p.nextNum)
	}

	v.reset()
	v.soundID = soundID
	v.startedAt = time.Now()
	p.active[soundID] = append(p.active[soundID], v)
	return v, nil
}

// Release resets the slot and returns it to the idle queue, destroying it
// instead when the queue is at capacity. Releasing a slot that is not
// tracked as active is a no-op.
func (p *VoicePool) Release(v *VoiceSlot) {
	if v == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	soundID := v.soundID
	list := p.active[soundID]
	found := -1
	for i, a := range list {
		if a == v {
			found = i
			break
		}
	}
	if found < 0 {
		return
	}
	p.active[soundID] = append(list[:found], list[found+1:]...)

	v.reset()
	if p.closed || len(p.idle[soundID]) >= p.max {
		v.destroyed = true
		return
	}
	p.idle[soundID] = append(p.idle[soundID], v)
}

// MarkEvicting excludes the voice from concurrency counts while its
// fade-out or teardown completes. It stays in the active list until released.
func (p *VoicePool) MarkEvicting(v *VoiceSlot) {
	p.mu.Lock()
	v.evicting = true
	p.mu.Unlock()
}

// ActiveCount returns the number of non-evicting active voices for soundID
func (p *VoicePool) ActiveCount(soundID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, v := range p.active[soundID] {
		if !v.evicting {
			n++
		}
	}
	return n
}

// TrackedCount returns idle plus active slots for soundID, including
// voices mid-eviction
func (p *VoicePool) TrackedCount(soundID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[soundID]) + len(p.active[soundID])
}

// IdleCount returns the idle queue length for soundID
func (p *VoicePool) IdleCount(soundID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[soundID])
}

// Oldest returns the non-evicting active voice with the smallest start time
func (p *VoicePool) Oldest(soundID string) *VoiceSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var oldest *VoiceSlot
	for _, v := range p.active[soundID] {
		if v.evicting {
			continue
		}
		if oldest == nil || v.startedAt.Before(oldest.startedAt) {
			oldest = v
		}
	}
	return oldest
}

// ActiveVoices returns a snapshot of the non-evicting active voices for soundID
func (p *VoicePool) ActiveVoices(soundID string) []*VoiceSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*VoiceSlot, 0, len(p.active[soundID]))
	for _, v := range p.active[soundID] {
		if !v.evicting {
			out = append(out, v)
		}
	}
	return out
}

// AllActive returns a snapshot of every active voice across all sound ids
func (p *VoicePool) AllActive() []*VoiceSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*VoiceSlot
	for _, list := range p.active {
		out = append(out, list...)
	}
	return out
}

// ActiveIDs returns every sound id that has at least one active voice
func (p *VoicePool) ActiveIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.active))
	for id, list := range p.active {
		if len(list) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Close destroys all idle slots and clears the registries. Active voices
// must be finished by the coordinator before Close.
func (p *VoicePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, q := range p.idle {
		for _, v := range q {
			v.destroyed = true
		}
	}
	p.idle = make(map[string][]*VoiceSlot)
	p.active = make(map[string][]*VoiceSlot)
	p.inited = make(map[string]bool)
}
