package app

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// How long Acquire waits for ffmpeg to report the capture input open before
// giving up on the device.
const ffmpegAcquireTimeout = 10 * time.Second

// FFmpegEngine captures the microphone through an ffmpeg child process
// encoding Opus-in-WebM to stdout. The encoded byte stream is split into
// chunks at arbitrary boundaries; concatenating them in order reassembles
// the stream byte-identically, which is what Finalize does.
type FFmpegEngine struct {
	Device     string
	SampleRate int
	Channels   int

	logger *Logger
}

func NewFFmpegEngine(cfg Config, logger *Logger) *FFmpegEngine {
	return &FFmpegEngine{
		Device:     cfg.Device,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		logger:     logger,
	}
}

func (e *FFmpegEngine) Name() string { return "ffmpeg" }

func (e *FFmpegEngine) Container() Container { return ContainerWebM }

// captureInput returns the ffmpeg input format and device spec for this
// platform. An empty device selects the platform default input.
func captureInput(device string) (format, input string) {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = ":default"
		}
		return "avfoundation", device
	case "windows":
		if device == "" {
			device = "audio=Microphone"
		} else if !strings.HasPrefix(device, "audio=") {
			device = "audio=" + device
		}
		return "dshow", device
	default:
		if device == "" {
			device = "default"
		}
		return "alsa", device
	}
}

// Acquire starts ffmpeg and waits until it reports the capture input open,
// so permission and device failures are classified before the session ever
// claims to be recording.
func (e *FFmpegEngine) Acquire(ctx context.Context) (CaptureHandle, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found on PATH", ErrDeviceUnavailable)
	}

	format, input := captureInput(e.Device)
	cmd := exec.Command(bin,
		"-hide_banner",
		"-f", format,
		"-i", input,
		"-ac", strconv.Itoa(e.Channels),
		"-ar", strconv.Itoa(e.SampleRate),
		"-c:a", "libopus",
		"-f", "webm",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	h := &ffmpegHandle{
		cmd:        cmd,
		stdout:     stdout,
		logger:     e.logger,
		readerDone: make(chan struct{}),
	}

	opened := make(chan struct{})
	failed := make(chan error, 1)
	go h.watchStderr(stderr, opened, failed)

	abort := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	select {
	case <-opened:
		e.logger.Info("capture input open", map[string]interface{}{
			"format": format, "input": input,
		})
		return h, nil
	case err := <-failed:
		abort()
		return nil, err
	case <-ctx.Done():
		abort()
		return nil, ctx.Err()
	case <-time.After(ffmpegAcquireTimeout):
		abort()
		return nil, fmt.Errorf("%w: timed out opening %s input %q", ErrDeviceUnavailable, format, input)
	}
}

type ffmpegHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *Logger

	pump       *chunkPump
	errs       chan error
	readerDone chan struct{}
	ending     atomic.Bool
	endOnce    sync.Once

	tailMu sync.Mutex
	tail   []string // last stderr lines, for failure diagnostics
}

// watchStderr scans ffmpeg's diagnostics. ffmpeg prints an "Input #0" block
// once the capture device is open; until then, an exit means the open
// failed and the collected output tells us why.
func (h *ffmpegHandle) watchStderr(r io.Reader, opened chan struct{}, failed chan error) {
	sc := bufio.NewScanner(r)
	open := false
	for sc.Scan() {
		line := sc.Text()
		h.tailMu.Lock()
		h.tail = append(h.tail, line)
		if len(h.tail) > 10 {
			h.tail = h.tail[1:]
		}
		h.tailMu.Unlock()
		if !open && strings.HasPrefix(strings.TrimSpace(line), "Input #0") {
			open = true
			close(opened)
		}
	}
	if !open {
		failed <- classifyStartupError(h.stderrTail())
	}
}

func (h *ffmpegHandle) stderrTail() string {
	h.tailMu.Lock()
	defer h.tailMu.Unlock()
	return strings.Join(h.tail, "; ")
}

// classifyStartupError maps ffmpeg's device-open diagnostics onto the
// session error taxonomy.
func classifyStartupError(detail string) error {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not permitted"),
		strings.Contains(lower, "cannot access"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	default:
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, detail)
	}
}

func (h *ffmpegHandle) Begin(chunkInterval time.Duration) (<-chan []byte, <-chan error) {
	h.pump = newChunkPump(chunkInterval)
	h.errs = make(chan error, 1)

	go func() {
		defer close(h.readerDone)
		defer close(h.pump.in)
		buf := make([]byte, 32*1024)
		for {
			n, err := h.stdout.Read(buf)
			if n > 0 {
				b := make([]byte, n)
				copy(b, buf[:n])
				h.pump.in <- b
			}
			if err != nil {
				if !h.ending.Load() {
					// The process died under us: device unplugged, ALSA
					// stream lost, or ffmpeg crashed.
					h.errs <- fmt.Errorf("capture stream lost: %s", h.stderrTail())
				}
				return
			}
		}
	}()

	return h.pump.out, h.errs
}

// End asks ffmpeg to finish. SIGINT lets it flush the WebM trailer before
// exiting; only if the signal cannot be delivered is the process killed.
func (h *ffmpegHandle) End() error {
	h.endOnce.Do(func() {
		h.ending.Store(true)
		if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = h.cmd.Process.Kill()
		}
		<-h.readerDone
		if err := h.cmd.Wait(); err != nil {
			// ffmpeg exits non-zero when interrupted; the stream on stdout
			// is already complete at that point.
			h.logger.Warn("ffmpeg exit", map[string]interface{}{"err": err.Error()})
		}
	})
	return nil
}

func (h *ffmpegHandle) Finalize(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	return bytes.Join(chunks, nil), nil
}
