package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/sfx/catalog"
)

// fakeLoader produces silent clips with controllable latency and failures
type fakeLoader struct {
	mu      sync.Mutex
	gate    chan struct{} // when non-nil, Load blocks until closed
	delay   time.Duration
	clipLen time.Duration
	fail    map[string]bool
	loads   int
}

func newFakeLoader(clipLen time.Duration) *fakeLoader {
	return &fakeLoader{
		clipLen: clipLen,
		fail:    make(map[string]bool),
	}
}

func (f *fakeLoader) Load(ctx context.Context, ref string) (*Clip, error) {
	f.mu.Lock()
	f.loads++
	gate := f.gate
	delay := f.delay
	failing := f.fail[ref]
	clipLen := f.clipLen
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failing {
		return nil, errors.New("decode failed")
	}
	return silentClip(clipLen), nil
}

func (f *fakeLoader) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// silentClip builds an engine-format clip of silence
func silentClip(d time.Duration) *Clip {
	format := beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	buf.Append(beep.Silence(format.SampleRate.N(d)))
	return &Clip{buf: buf}
}

// testCatalog covers the common shapes: a capped one-shot, a fading loop,
// a plain one-shot, and an entry whose asset always fails to load
func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Pool: catalog.Config{InitialPoolSize: 1, MaxPoolSize: 4},
		Sounds: []catalog.Sound{
			{ID: "click", File: "click.wav", Volume: 0.8, Pitch: 1, MaxSimultaneous: 2},
			{ID: "loop_bgm", File: "bgm.ogg", Volume: 0.6, Pitch: 1, MaxSimultaneous: 1,
				Loop: true, Fade: true, FadeIn: 0.05, FadeOut: 0.15, Group: "music"},
			{ID: "thud", File: "thud.wav", Volume: 1.0, Pitch: 1, MaxSimultaneous: 1},
			{ID: "boom", File: "boom.wav", Volume: 1.0, Pitch: 1, MaxSimultaneous: 1},
		},
	}
}

func newTestManager(t *testing.T, cat *catalog.Catalog, loader Loader) *SoundManager {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Loader = loader
	cfg.FadeInterval = time.Millisecond

	m, err := NewSoundManager(cat, cfg)
	if err != nil {
		t.Fatalf("NewSoundManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// pump advances playback by streaming d worth of samples from the master
// mixer, the way a speaker device would
func pump(m *SoundManager, d time.Duration) {
	n := sampleRate.N(d)
	buf := make([][2]float64, 512)
	for n > 0 {
		chunk := len(buf)
		if n < chunk {
			chunk = n
		}
		speaker.Lock()
		m.router.Master().Stream(buf[:chunk])
		speaker.Unlock()
		n -= chunk
	}
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func (m *SoundManager) currentSession(soundID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[soundID]
}

func (m *SoundManager) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SoundManager) fadeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fadeCancels)
}
