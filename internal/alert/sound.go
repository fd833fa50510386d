package alert

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

// Player plays the alert sound.
type Player interface {
	Play() error
}

// DefaultSoundName is the bundled fallback clip looked up beside the
// executable when no usable sound file is configured.
const DefaultSoundName = "beep.wav"

const speakerBuffer = time.Second / 10

// WavPlayer plays a buffered WAV clip through the system mixer. The zero
// value is an empty player that reports ErrSoundNotLoaded until Reload
// arms it, so sound can be switched on long after startup. The clip is
// decoded once at load; Play only restreams the buffer, so overlapping
// alerts mix instead of re-reading the file.
type WavPlayer struct {
	mu     sync.Mutex
	buffer *beep.Buffer
	format beep.Format
	path   string
	inited bool
}

// Reload validates and swaps in a new clip. On any failure the previously
// loaded clip stays in effect.
func (p *WavPlayer) Reload(path string) error {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return errFactory.Wrap(ErrSoundLoadFailed, err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return errFactory.Wrap(ErrSoundDecodeFailed, err)
	}

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	streamer.Close()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inited && format.SampleRate != p.format.SampleRate {
		p.inited = false
	}
	p.buffer = buffer
	p.format = format
	p.path = path

	return nil
}

// Loaded reports whether a clip is ready to play. It never goes back to
// false: Reload keeps the previous clip on failure.
func (p *WavPlayer) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffer != nil
}

// Path returns the path of the currently loaded clip.
func (p *WavPlayer) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.path
}

// Play streams the clip asynchronously. The speaker is opened on first
// use so loading a clip never touches the audio device.
func (p *WavPlayer) Play() error {
	errFactory := errors.New()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer == nil {
		return errFactory.New(ErrSoundNotLoaded)
	}

	if !p.inited {
		if err := speaker.Init(p.format.SampleRate, p.format.SampleRate.N(speakerBuffer)); err != nil {
			return errFactory.Wrap(ErrSoundPlayFailed, err)
		}
		p.inited = true
	}

	speaker.Play(p.buffer.Streamer(0, p.buffer.Len()))

	return nil
}

// ResolveSoundFile picks the clip to load: the configured path when it
// exists, otherwise DefaultSoundName beside the executable. An empty
// result means no usable clip was found and sound should stay disabled.
func ResolveSoundFile(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
		logger.Warn().Str("path", configured).Msg("Configured sound file not found, trying bundled fallback")
	}

	exe, err := os.Executable()
	if err != nil {
		return ""
	}

	fallback := filepath.Join(filepath.Dir(exe), DefaultSoundName)
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}

	return ""
}
