package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Errors a session start can surface to the user. Both are terminal for the
// attempt: the state machine stays Idle and the user must toggle again.
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// Container identifies the fixed container/codec an engine finalizes into.
// The value doubles as the export file extension.
type Container string

const (
	ContainerWebM Container = ".webm" // Opus-in-WebM (ffmpeg engine)
	ContainerWAV  Container = ".wav"  // LINEAR16 RIFF/WAVE (portaudio engine)
)

// Artifact is the single finalized blob assembled from all chunks of one
// session. Immutable once produced.
type Artifact struct {
	Data      []byte
	Container Container
	SessionID string
	CreatedAt time.Time
}

// CaptureEngine owns the microphone exclusively for the duration of one
// session.
type CaptureEngine interface {
	Name() string
	Container() Container
	// Acquire opens the capture device. It may block until the device
	// resolves and fails with ErrPermissionDenied or ErrDeviceUnavailable
	// (wrapped with detail). Run it off the UI loop.
	Acquire(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle is a live, exclusively owned capture device.
type CaptureHandle interface {
	// Begin starts pumping encoded audio. Chunks arrive on the returned
	// channel in strict emission order and are always non-empty; zero-length
	// reads are never surfaced. The channel closes only after End has
	// flushed the final chunk. Mid-session device loss is reported once on
	// the error channel.
	Begin(chunkInterval time.Duration) (<-chan []byte, <-chan error)
	// End stops capture and releases the underlying device, so the hardware
	// in-use indicator goes off on every stop path. Every chunk emitted
	// before End was called is delivered before the chunk channel closes.
	// Safe to call more than once.
	End() error
	// Finalize assembles chunks, in the order given, into one artifact blob
	// tagged with the engine's container identity.
	Finalize(chunks [][]byte) ([]byte, error)
}

// NewCaptureEngine picks the configured engine. "auto" prefers ffmpeg, which
// produces Opus-in-WebM, and falls back to portaudio when ffmpeg is absent.
func NewCaptureEngine(cfg Config, logger *Logger) (CaptureEngine, error) {
	switch cfg.Backend {
	case "ffmpeg":
		return NewFFmpegEngine(cfg, logger), nil
	case "portaudio":
		return NewPortAudioEngine(cfg, logger), nil
	case "", "auto":
		if _, err := exec.LookPath("ffmpeg"); err == nil {
			return NewFFmpegEngine(cfg, logger), nil
		}
		return NewPortAudioEngine(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// chunkPump turns a stream of raw reads into interval-flushed chunks. Reads
// are accumulated and flushed as one chunk at least once per interval and
// once more when the input closes, so even a very short session yields a
// chunk. Empty accumulations are discarded, never emitted.
type chunkPump struct {
	in  chan []byte
	out chan []byte
}

func newChunkPump(interval time.Duration) *chunkPump {
	p := &chunkPump{
		in:  make(chan []byte, 8),
		out: make(chan []byte, 8),
	}
	go p.run(interval)
	return p
}

func (p *chunkPump) run(interval time.Duration) {
	defer close(p.out)
	t := time.NewTicker(interval)
	defer t.Stop()

	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		p.out <- buf
		buf = nil
	}
	for {
		select {
		case b, ok := <-p.in:
			if !ok {
				flush()
				return
			}
			buf = append(buf, b...)
		case <-t.C:
			flush()
		}
	}
}
