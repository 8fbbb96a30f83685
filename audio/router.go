package audio

import (
	"math"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

// VolumeStore persists per-group volume levels. settings.Store satisfies it.
type VolumeStore interface {
	Get(key string) (float64, bool)
	Set(key string, value float64) error
}

// busGroup is one named output bus: a mixer wrapped in a volume stage
type busGroup struct {
	mixer *beep.Mixer
	vol   *effects.Volume
	gain  float64
}

// Router owns the output routing topology: named mixer groups feeding one
// master mixer. Groups are created lazily and seeded from the volume store.
type Router struct {
	mu     sync.Mutex
	master *beep.Mixer
	groups map[string]*busGroup
	store  VolumeStore
}

// NewRouter creates a router; store may be nil for unpersisted volumes
func NewRouter(store VolumeStore) *Router {
	return &Router{
		master: &beep.Mixer{},
		groups: make(map[string]*busGroup),
		store:  store,
	}
}

// Master returns the mixer the speaker should play
func (r *Router) Master() *beep.Mixer {
	return r.master
}

// Group returns the mixer for the named group, creating and attaching it
// on first use. The empty name is the default group.
func (r *Router) Group(name string) *beep.Mixer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g.mixer
	}

	gain := 1.0
	if r.store != nil {
		if v, ok := r.store.Get(name); ok {
			gain = clampGain(v)
		}
	}

	g := &busGroup{mixer: &beep.Mixer{}, gain: gain}
	g.vol = &effects.Volume{Streamer: g.mixer, Base: volumeBase}
	applyGain(g.vol, gain)
	r.groups[name] = g

	speaker.Lock()
	r.master.Add(g.vol)
	speaker.Unlock()
	return g.mixer
}

// SetGroupVolume updates a group's gain and persists it
func (r *Router) SetGroupVolume(name string, gain float64) error {
	gain = clampGain(gain)

	r.mu.Lock()
	g, ok := r.groups[name]
	if ok {
		g.gain = gain
		speaker.Lock()
		applyGain(g.vol, gain)
		speaker.Unlock()
	}
	store := r.store
	r.mu.Unlock()

	if store != nil {
		return store.Set(name, gain)
	}
	return nil
}

// GroupVolume returns the current gain for a group, 1.0 when unknown
func (r *Router) GroupVolume(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g.gain
	}
	if r.store != nil {
		if v, ok := r.store.Get(name); ok {
			return clampGain(v)
		}
	}
	return 1.0
}

// Reset detaches every group and silences the master mixer
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	speaker.Lock()
	r.master.Clear()
	speaker.Unlock()
	r.groups = make(map[string]*busGroup)
}

func applyGain(v *effects.Volume, gain float64) {
	if gain <= silenceFloor {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(gain)
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
