package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

const paFramesPerBuffer = 1024

// PortAudioEngine captures raw LINEAR16 PCM from the default input device.
// Chunks are interval-flushed PCM byte runs; Finalize wraps the concatenated
// PCM in a RIFF/WAVE header, so every captured byte survives verbatim in the
// artifact's data segment.
type PortAudioEngine struct {
	SampleRate int
	Channels   int

	logger *Logger
}

func NewPortAudioEngine(cfg Config, logger *Logger) *PortAudioEngine {
	return &PortAudioEngine{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		logger:     logger,
	}
}

func (e *PortAudioEngine) Name() string { return "portaudio" }

func (e *PortAudioEngine) Container() Container { return ContainerWAV }

// Acquire opens and starts the default input stream. The device is live
// (hardware in-use indicator on) from here until End.
func (e *PortAudioEngine) Acquire(ctx context.Context) (CaptureHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	in := make([]int16, paFramesPerBuffer*e.Channels)
	stream, err := portaudio.OpenDefaultStream(e.Channels, 0, float64(e.SampleRate), paFramesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, classifyPortAudioError(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, classifyPortAudioError(err)
	}
	e.logger.Info("capture input open", map[string]interface{}{
		"engine": "portaudio", "sample_rate": e.SampleRate, "channels": e.Channels,
	})
	return &portAudioHandle{
		engine:     e,
		stream:     stream,
		in:         in,
		stopCh:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}, nil
}

func classifyPortAudioError(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "permission") || strings.Contains(lower, "not permitted") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

type portAudioHandle struct {
	engine *PortAudioEngine
	stream *portaudio.Stream
	in     []int16

	pump       *chunkPump
	errs       chan error
	stopCh     chan struct{}
	readerDone chan struct{}
	ending     atomic.Bool
	endOnce    sync.Once
	endErr     error
}

func (h *portAudioHandle) Begin(chunkInterval time.Duration) (<-chan []byte, <-chan error) {
	h.pump = newChunkPump(chunkInterval)
	h.errs = make(chan error, 1)

	go func() {
		defer close(h.readerDone)
		defer close(h.pump.in)
		for {
			select {
			case <-h.stopCh:
				return
			default:
			}
			if err := h.stream.Read(); err != nil {
				if !h.ending.Load() {
					h.errs <- fmt.Errorf("capture stream lost: %w", err)
				}
				return
			}
			buf := make([]byte, len(h.in)*2)
			for i, s := range h.in {
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
			}
			h.pump.in <- buf
		}
	}()

	return h.pump.out, h.errs
}

func (h *portAudioHandle) End() error {
	h.endOnce.Do(func() {
		h.ending.Store(true)
		close(h.stopCh)
		<-h.readerDone
		_ = h.stream.Stop()
		h.endErr = h.stream.Close()
		_ = portaudio.Terminate()
	})
	return h.endErr
}

func (h *portAudioHandle) Finalize(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	pcm := bytes.Join(chunks, nil)
	return renderWAV(pcm, h.engine.SampleRate, h.engine.Channels), nil
}

// renderWAV wraps raw LINEAR16 PCM in a RIFF/WAVE header.
func renderWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM format tag
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&b, binary.LittleEndian, uint16(bitsPerSample))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

// ListInputDevices reports the capture devices portaudio can see, for the
// `devices` subcommand.
func ListInputDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%d ch, %.0f Hz, %s)",
			d.Name, d.MaxInputChannels, d.DefaultSampleRate, d.HostApi.Name))
	}
	return out, nil
}
