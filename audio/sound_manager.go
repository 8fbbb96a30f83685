package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/sfx/catalog"
)

// Config holds sound manager tuning knobs
type Config struct {
	BufferSize   time.Duration // speaker buffer length
	FadeInterval time.Duration // fade ramp step
	Loader       Loader        // nil picks the file loader
	Store        VolumeStore   // nil disables volume persistence
	Logger       *slog.Logger  // nil discards
}

// DefaultConfig returns the standard configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize:   defaultBufferSize,
		FadeInterval: defaultFadeInterval,
	}
}

// session tracks the cancellation handle for the current top-level play
// invocation of one sound id. A new play for the same id replaces it.
type session struct {
	cancel context.CancelFunc
}

// SoundManager coordinates playback per sound id: concurrency-limit
// enforcement, oldest-voice eviction, load-then-play sequencing, fade
// sequencing, and cleanup. It is the sole owner of all playback registries.
type SoundManager struct {
	mu  sync.Mutex
	log *slog.Logger

	defs      map[string]*catalog.Sound
	order     []string
	exclusive bool

	pool   *VoicePool
	fades  *FadeController
	loads  *loadCache
	router *Router

	sessions    map[string]*session
	fadeCtxs    map[string]context.Context
	fadeCancels map[string]context.CancelFunc
	fadingOut   map[string]bool

	rootCtx    context.Context
	rootCancel context.CancelFunc

	rng        *rand.Rand
	bufferSize time.Duration

	initialized bool
	closed      bool
}

// NewSoundManager builds a manager for the given catalog. The catalog is
// validated up front; an invalid catalog refuses construction.
func NewSoundManager(cat *catalog.Catalog, cfg ...*Config) (*SoundManager, error) {
	config := DefaultConfig()
	if len(cfg) > 0 && cfg[0] != nil {
		config = cfg[0]
	}
	if cat == nil {
		return nil, errors.New("nil catalog")
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSound, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loader := config.Loader
	if loader == nil {
		loader = NewFileLoader()
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &SoundManager{
		log:         logger,
		defs:        cat.Index(),
		order:       cat.IDs(),
		exclusive:   cat.Pool.ExclusivePlay,
		pool:        NewVoicePool(cat.Pool, logger),
		fades:       NewFadeController(config.FadeInterval),
		loads:       newLoadCache(loader),
		router:      NewRouter(config.Store),
		sessions:    make(map[string]*session),
		fadeCtxs:    make(map[string]context.Context),
		fadeCancels: make(map[string]context.CancelFunc),
		fadingOut:   make(map[string]bool),
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		bufferSize:  bufferSize,
	}, nil
}

// Initialize sets up speaker output. Playback without Initialize is silent
// but otherwise fully functional, which keeps headless hosts and tests
// working without an audio device.
func (m *SoundManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(m.bufferSize)); err != nil {
		return err
	}
	speaker.Play(m.router.Master())
	m.initialized = true
	return nil
}

// Router exposes the output routing topology for group volume control
func (m *SoundManager) Router() *Router {
	return m.router
}

// UpdateCatalog swaps in a reloaded catalog, typically fed from a
// catalog.Watcher. Sounds absent from the new catalog are stopped; voices
// for surviving ids keep the parameters they started with, and new plays
// pick up the new definitions. Pool sizing stays as constructed.
func (m *SoundManager) UpdateCatalog(cat *catalog.Catalog) error {
	if cat == nil {
		return errors.New("nil catalog")
	}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSound, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	newDefs := cat.Index()
	for id, def := range m.defs {
		if _, ok := newDefs[id]; !ok {
			m.stopLocked(id, def)
		}
	}
	m.defs = newDefs
	m.order = cat.IDs()
	m.exclusive = cat.Pool.ExclusivePlay
	m.log.Info("catalog updated", "sounds", len(m.order))
	return nil
}

// ActiveVoiceCount returns the number of voices currently playing soundID
func (m *SoundManager) ActiveVoiceCount(soundID string) int {
	return m.pool.ActiveCount(soundID)
}

// Play starts a new play session for the sound, blocking until playback has
// started (or the request was refused, dropped, or superseded). Fade-in and
// end-of-clip cleanup continue in the background.
func (m *SoundManager) Play(soundID string) error {
	return m.play(soundID, nil)
}

// PlayAt plays the sound from an explicit emitter position, overriding the
// authored one.
func (m *SoundManager) PlayAt(soundID string, pos catalog.Position) error {
	return m.play(soundID, &pos)
}

// PlayRandom plays one sound picked uniformly from the catalog
func (m *SoundManager) PlayRandom() error {
	return m.playRandom(nil)
}

// PlayRandomAt plays a random catalog sound from the given position
func (m *SoundManager) PlayRandomAt(pos catalog.Position) error {
	return m.playRandom(&pos)
}

func (m *SoundManager) playRandom(pos *catalog.Position) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if len(m.order) == 0 {
		// Refused outright; nothing is passed downstream
		m.mu.Unlock()
		return ErrEmptyCatalog
	}
	soundID := m.order[m.rng.Intn(len(m.order))]
	m.mu.Unlock()

	return m.play(soundID, pos)
}

func (m *SoundManager) play(soundID string, pos *catalog.Position) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	def, ok := m.defs[soundID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSound, soundID)
	}
	if err := def.Validate(); err != nil {
		m.mu.Unlock()
		m.log.Error("refusing to play invalid sound", "sound", soundID, "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidSound, err)
	}

	if m.exclusive {
		for _, other := range m.pool.ActiveIDs() {
			if other == soundID {
				continue
			}
			if odef, ok := m.defs[other]; ok {
				m.stopLocked(other, odef)
			}
		}
	}

	// A playing, non-fading loop is already in the requested state
	if def.Loop && !m.fadingOut[soundID] && m.pool.ActiveCount(soundID) > 0 {
		m.mu.Unlock()
		return nil
	}

	m.cancelFadeLocked(soundID)
	m.cancelSessionLocked(soundID)

	if def.Loop {
		// A loop has at most one steady-state voice; replacing it clears
		// the previous instance before the new one starts
		for _, v := range m.pool.ActiveVoices(soundID) {
			m.finishVoiceLocked(v)
		}
	} else {
		for m.pool.ActiveCount(soundID) >= def.MaxSimultaneous {
			v := m.pool.Oldest(soundID)
			if v == nil {
				break
			}
			m.evictLocked(v, def)
		}
	}

	ctx, cancel := context.WithCancel(m.rootCtx)
	sess := &session{cancel: cancel}
	m.sessions[soundID] = sess
	handle := m.loads.acquire(soundID, def.File)
	m.mu.Unlock()

	// Suspend point: another play or stop for this id may supersede us here
	clip, err := handle.wait(ctx)

	m.mu.Lock()
	if err != nil {
		m.loads.release(soundID)
		if m.sessions[soundID] == sess {
			delete(m.sessions, soundID)
		}
		m.mu.Unlock()
		cancel()
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			m.log.Debug("play session superseded during load", "sound", soundID)
			return nil
		}
		m.log.Warn("sound load failed", "sound", soundID, "error", err)
		return fmt.Errorf("%w: %q: %v", ErrLoadFailed, soundID, err)
	}
	if m.closed || m.sessions[soundID] != sess {
		m.loads.release(soundID)
		if m.sessions[soundID] == sess {
			delete(m.sessions, soundID)
		}
		m.mu.Unlock()
		cancel()
		return nil
	}
	delete(m.sessions, soundID)

	m.pool.Initialize(soundID)
	v, err := m.pool.Acquire(soundID)
	if err != nil {
		m.loads.release(soundID)
		m.mu.Unlock()
		cancel()
		m.log.Warn("dropping play request", "sound", soundID, "error", err)
		return err
	}

	fadeIn := def.Fade && def.FadeIn > 0
	gain := def.Volume
	if fadeIn {
		gain = 0
	}
	if pos == nil {
		pos = def.Position
	}

	out := m.router.Group(def.Group)
	vctx, vcancel := context.WithCancel(m.rootCtx)
	v.watchStop = vcancel
	v.loadRelease = func() { m.loads.release(soundID) }
	v.start(clip, voiceConfig{
		soundID: soundID,
		gain:    gain,
		loop:    def.Loop,
		pitch:   def.Pitch,
		pan:     panFor(def, pos),
	}, out)

	go m.watchVoice(vctx, v, v.finished)

	if fadeIn {
		fctx := m.registerFadeLocked(soundID)
		go m.runFadeIn(fctx, soundID, v, def)
	}
	m.mu.Unlock()
	cancel()
	return nil
}

// Stop ends playback for the sound: a fade-out to silence when fade effects
// are enabled, an immediate synchronous stop otherwise. An in-flight play
// session for the id is cancelled either way.
func (m *SoundManager) Stop(soundID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	def, ok := m.defs[soundID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, soundID)
	}
	m.stopLocked(soundID, def)
	return nil
}

// StopAll stops every sound with active voices or an in-flight session
func (m *SoundManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	ids := make(map[string]bool)
	for _, id := range m.pool.ActiveIDs() {
		ids[id] = true
	}
	for id := range m.sessions {
		ids[id] = true
	}
	for id := range ids {
		if def, ok := m.defs[id]; ok {
			m.stopLocked(id, def)
		}
	}
	return nil
}

// Close cancels every outstanding session and fade, force-releases every
// voice, drops every load handle, and clears all registries. The manager
// cannot be used afterwards.
func (m *SoundManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.rootCancel()

	for id, s := range m.sessions {
		s.cancel()
		delete(m.sessions, id)
	}
	for id, cancel := range m.fadeCancels {
		cancel()
		delete(m.fadeCancels, id)
		delete(m.fadeCtxs, id)
	}
	clear(m.fadingOut)

	for _, v := range m.pool.AllActive() {
		m.finishVoiceLocked(v)
	}
	m.pool.Close()
	m.loads.clear()
	m.router.Reset()
	return nil
}

// --- internal transitions; callers hold m.mu ---

func (m *SoundManager) stopLocked(soundID string, def *catalog.Sound) {
	m.cancelSessionLocked(soundID)

	voices := m.pool.ActiveVoices(soundID)
	if len(voices) == 0 {
		m.cancelFadeLocked(soundID)
		return
	}

	if def.Fade && def.FadeOut > 0 {
		m.cancelFadeLocked(soundID)
		fctx := m.registerFadeLocked(soundID)
		m.fadingOut[soundID] = true
		for _, v := range voices {
			m.pool.MarkEvicting(v)
		}
		go m.runFadeOut(fctx, soundID, def, voices)
		return
	}

	m.cancelFadeLocked(soundID)
	for _, v := range voices {
		m.finishVoiceLocked(v)
	}
}

// evictLocked removes the voice from concurrency accounting and retires it,
// fading it out first when the sound uses fade effects. Eviction fades are
// scoped to the evicted voice, not the per-sound fade registry, so they do
// not fight the replacement's fade-in.
func (m *SoundManager) evictLocked(v *VoiceSlot, def *catalog.Sound) {
	m.pool.MarkEvicting(v)

	if def.Fade && def.FadeOut > 0 {
		fctx, fcancel := context.WithCancel(m.rootCtx)
		d := def.FadeOutDuration()
		go func() {
			defer fcancel()
			_ = m.fades.Fade(fctx, v, v.Gain(), 0, d)
			m.mu.Lock()
			m.finishVoiceLocked(v)
			m.mu.Unlock()
		}()
		return
	}
	m.finishVoiceLocked(v)
}

// finishVoiceLocked is the single cleanup path for a voice: stop the chain,
// return the slot to the pool, drop the load reference, kill the watcher.
// Idempotent; every termination route funnels through it.
func (m *SoundManager) finishVoiceLocked(v *VoiceSlot) {
	if v.watchStop != nil {
		v.watchStop()
		v.watchStop = nil
	}
	rel := v.loadRelease
	v.loadRelease = nil

	v.stop()
	m.pool.Release(v)
	if rel != nil {
		rel()
	}
}

func (m *SoundManager) cancelSessionLocked(soundID string) {
	if s, ok := m.sessions[soundID]; ok {
		s.cancel()
		delete(m.sessions, soundID)
	}
}

func (m *SoundManager) cancelFadeLocked(soundID string) {
	if cancel, ok := m.fadeCancels[soundID]; ok {
		cancel()
		delete(m.fadeCancels, soundID)
		delete(m.fadeCtxs, soundID)
	}
	delete(m.fadingOut, soundID)
}

// registerFadeLocked installs a fresh fade scope for the sound id. At most
// one registered fade exists per id; callers cancel the previous one first.
func (m *SoundManager) registerFadeLocked(soundID string) context.Context {
	ctx, cancel := context.WithCancel(m.rootCtx)
	m.fadeCtxs[soundID] = ctx
	m.fadeCancels[soundID] = cancel
	return ctx
}

// watchVoice waits for natural end of clip or cancellation, then cleans up
func (m *SoundManager) watchVoice(ctx context.Context, v *VoiceSlot, finished <-chan struct{}) {
	select {
	case <-finished:
	case <-ctx.Done():
	}
	m.mu.Lock()
	m.finishVoiceLocked(v)
	m.mu.Unlock()
}

// runFadeIn ramps a fresh voice from silence up to the authored volume
func (m *SoundManager) runFadeIn(ctx context.Context, soundID string, v *VoiceSlot, def *catalog.Sound) {
	err := m.fades.Fade(ctx, v, 0, def.Volume, def.FadeInDuration())

	m.mu.Lock()
	if err == nil && m.fadeCtxs[soundID] == ctx {
		delete(m.fadeCtxs, soundID)
		delete(m.fadeCancels, soundID)
	}
	m.mu.Unlock()
}

// runFadeOut ramps every affected voice to silence, then retires them. A
// completed fade-out is the mechanism that releases its voices; a cancelled
// one hard-stops them immediately instead. Both funnel into the same
// cleanup path.
func (m *SoundManager) runFadeOut(ctx context.Context, soundID string, def *catalog.Sound, voices []*VoiceSlot) {
	d := def.FadeOutDuration()

	var wg sync.WaitGroup
	for _, v := range voices {
		wg.Add(1)
		go func(v *VoiceSlot) {
			defer wg.Done()
			_ = m.fades.Fade(ctx, v, v.Gain(), 0, d)
		}(v)
	}
	wg.Wait()

	m.mu.Lock()
	if m.fadeCtxs[soundID] == ctx {
		delete(m.fadeCtxs, soundID)
		delete(m.fadeCancels, soundID)
		delete(m.fadingOut, soundID)
	}
	for _, v := range voices {
		m.finishVoiceLocked(v)
	}
	m.mu.Unlock()
}
