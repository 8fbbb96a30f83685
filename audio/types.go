// Package audio implements the voice pool and playback lifecycle coordinator:
// it multiplexes a bounded set of reusable playback voices across catalog
// sounds, enforces per-sound concurrency limits, and runs cancellable volume
// fades over gopxl/beep streamer chains.
package audio

import (
	"errors"
	"time"

	"github.com/gopxl/beep"
)

const (
	sampleRate = beep.SampleRate(48000)

	// Exponential base for effects.Volume; gain g maps to log2(g)
	volumeBase = 2.0

	// Gains at or below this are treated as silence
	silenceFloor = 1e-4

	resampleQuality = 4

	defaultFadeInterval = 10 * time.Millisecond
	defaultBufferSize   = 100 * time.Millisecond
)

// Sentinel errors
var (
	ErrUnknownSound  = errors.New("unknown sound id")
	ErrInvalidSound  = errors.New("invalid sound definition")
	ErrPoolExhausted = errors.New("voice pool exhausted")
	ErrLoadFailed    = errors.New("sound asset load failed")
	ErrEmptyCatalog  = errors.New("catalog has no sounds")
	ErrClosed        = errors.New("sound manager closed")
)

// LoadState reports the progress of an asset load
type LoadState int

const (
	LoadPending LoadState = iota
	LoadSucceeded
	LoadFailed
)
