package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Clip is a fully decoded audio asset at the engine format
type Clip struct {
	buf *beep.Buffer
}

// Duration returns the clip length in wall-clock time at normal pitch
func (c *Clip) Duration() time.Duration {
	return c.buf.Format().SampleRate.D(c.buf.Len())
}

// Len returns the clip length in samples
func (c *Clip) Len() int {
	return c.buf.Len()
}

// streamer returns a fresh seeker over the whole clip; each voice gets
// its own so concurrent playbacks do not share position
func (c *Clip) streamer() beep.StreamSeeker {
	return c.buf.Streamer(0, c.buf.Len())
}

// Loader resolves an asset reference to a decoded clip. Implementations
// must honor ctx cancellation between decode stages.
type Loader interface {
	Load(ctx context.Context, ref string) (*Clip, error)
}

// FileLoader decodes wav, mp3, and ogg files from disk and resamples
// them to the engine rate.
type FileLoader struct {
	format beep.Format
}

// NewFileLoader creates a loader targeting the engine sample format
func NewFileLoader() *FileLoader {
	return &FileLoader{
		format: beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2},
	}
}

// Load opens, decodes, and buffers the referenced asset file
func (l *FileLoader) Load(ctx context.Context, ref string) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %q: %w", ref, err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported asset format %q", ref)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode asset %q: %w", ref, err)
	}
	defer s.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var src beep.Streamer = s
	if format.SampleRate != l.format.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, l.format.SampleRate, s)
	}

	buf := beep.NewBuffer(l.format)
	buf.Append(src)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Clip{buf: buf}, nil
}
