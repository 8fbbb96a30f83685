package audio

import (
	"context"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/sfx/catalog"
)

// voiceConfig carries the per-play parameters applied to a slot at start
type voiceConfig struct {
	soundID string
	gain    float64 // initial gain; 0 when a fade-in follows
	loop    bool
	pitch   float64
	pan     float64
}

// VoiceSlot is one reusable playback unit wrapping a beep streamer chain.
// Pool-owned fields (soundID, startedAt, evicting) are guarded by the pool
// mutex; audible fields (gain, playing, chain) by the speaker lock.
type VoiceSlot struct {
	num int

	ctrl *beep.Ctrl
	vol  *effects.Volume
	pan  *effects.Pan

	soundID   string
	startedAt time.Time
	evicting  bool
	destroyed bool

	playing  bool
	gain     float64
	finished chan struct{}

	// Coordinator-owned per-activation state, guarded by the coordinator
	watchStop   context.CancelFunc
	loadRelease func()
}

func newVoiceSlot(num int) *VoiceSlot {
	return &VoiceSlot{num: num}
}

// start builds the streamer chain for clip and attaches it to out.
// The chain is ctrl(volume(pan(pitch(loop(clip))))); non-looping clips end
// with a callback that closes the finished channel.
func (v *VoiceSlot) start(clip *Clip, cfg voiceConfig, out *beep.Mixer) {
	st := clip.streamer()
	var s beep.Streamer = st
	if cfg.loop {
		s = beep.Loop(-1, st)
	}
	if r := math.Abs(cfg.pitch); r != 1.0 {
		s = beep.ResampleRatio(resampleQuality, r, s)
	}

	done := make(chan struct{})
	if !cfg.loop {
		s = beep.Seq(s, beep.Callback(func() { close(done) }))
	}

	pan := &effects.Pan{Streamer: s, Pan: cfg.pan}
	vol := &effects.Volume{Streamer: pan, Base: volumeBase, Silent: true}
	ctrl := &beep.Ctrl{Streamer: vol}

	// A fade over this slot's previous activation may still be ticking;
	// the audible fields change hands under the speaker lock
	speaker.Lock()
	v.pan = pan
	v.vol = vol
	v.ctrl = ctrl
	v.finished = done
	v.playing = true
	v.setGain(cfg.gain)
	out.Add(ctrl)
	speaker.Unlock()
}

// setGain applies a linear gain. Caller must hold the speaker lock while
// the voice is attached to a mixer.
func (v *VoiceSlot) setGain(g float64) {
	v.gain = g
	if g <= silenceFloor {
		v.vol.Silent = true
		return
	}
	v.vol.Silent = false
	v.vol.Volume = math.Log2(g)
}

// Gain returns the current linear gain
func (v *VoiceSlot) Gain() float64 {
	speaker.Lock()
	defer speaker.Unlock()
	return v.gain
}

// Playing reports whether the voice is currently bound to a running chain
func (v *VoiceSlot) Playing() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return v.playing
}

// stop halts playback and drops the chain. Detaching the streamer makes
// the mixer release it on the next pull; a fade still ticking sees playing
// false on its next step and ends. Safe on a voice that never started.
func (v *VoiceSlot) stop() {
	speaker.Lock()
	if v.ctrl != nil {
		v.ctrl.Streamer = nil
	}
	v.ctrl = nil
	v.vol = nil
	v.pan = nil
	v.playing = false
	v.gain = 0
	speaker.Unlock()
}

// reset clears the pool- and coordinator-owned fields back to defaults.
// The audible fields are cleared by stop under the speaker lock; touching
// them here would race with a fade still reading them.
func (v *VoiceSlot) reset() {
	v.soundID = ""
	v.startedAt = time.Time{}
	v.evicting = false
	v.finished = nil
	v.watchStop = nil
	v.loadRelease = nil
}

// panFor maps an emitter position and spatial blend onto stereo pan.
// Flat sounds (blend 0) stay centered regardless of position.
func panFor(def *catalog.Sound, pos *catalog.Position) float64 {
	if pos == nil || def.SpatialBlend == 0 {
		return 0
	}
	p := pos.X * def.SpatialBlend
	if p > 1 {
		p = 1
	} else if p < -1 {
		p = -1
	}
	return p
}
