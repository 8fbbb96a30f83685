package audio

import (
	"context"
	"time"

	"github.com/gopxl/beep/speaker"
)

// FadeController runs cancellable linear volume ramps over a voice.
type FadeController struct {
	interval time.Duration
}

// NewFadeController creates a controller stepping at the given interval;
// zero or negative picks the default ramp step.
func NewFadeController(interval time.Duration) *FadeController {
	if interval <= 0 {
		interval = defaultFadeInterval
	}
	return &FadeController{interval: interval}
}

// Fade interpolates the voice gain linearly from from to to over wall-clock
// duration d, blocking until completion or cancellation. On cancellation the
// gain stays at whatever value was last set and ctx.Err is returned. Normal
// completion pins the gain exactly to to. A voice that stops mid-fade ends
// the ramp immediately without error.
func (f *FadeController) Fade(ctx context.Context, v *VoiceSlot, from, to float64, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		speaker.Lock()
		if v.playing {
			v.setGain(to)
		}
		speaker.Unlock()
		return nil
	}

	start := time.Now()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			frac := float64(now.Sub(start)) / float64(d)

			speaker.Lock()
			if !v.playing {
				speaker.Unlock()
				return nil
			}
			if frac >= 1 {
				v.setGain(to)
				speaker.Unlock()
				return nil
			}
			v.setGain(from + (to-from)*frac)
			speaker.Unlock()
		}
	}
}
