package app

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestChunkPump_FlushesOnInterval(t *testing.T) {
	p := newChunkPump(20 * time.Millisecond)
	p.in <- []byte("abc")

	select {
	case chunk := <-p.out:
		if string(chunk) != "abc" {
			t.Fatalf("chunk = %q, want %q", chunk, "abc")
		}
	case <-time.After(time.Second):
		t.Fatal("no chunk flushed within the interval")
	}
	close(p.in)
}

func TestChunkPump_FinalFlushOnClose(t *testing.T) {
	// Interval far in the future: the only flush is the one forced by
	// closing the input, so even a very short session yields a chunk.
	p := newChunkPump(time.Hour)
	p.in <- []byte("xy")
	close(p.in)

	select {
	case chunk, ok := <-p.out:
		if !ok || string(chunk) != "xy" {
			t.Fatalf("final chunk = %q ok=%v, want %q", chunk, ok, "xy")
		}
	case <-time.After(time.Second):
		t.Fatal("final flush never happened")
	}
	if _, ok := <-p.out; ok {
		t.Fatal("chunk channel should close after the final flush")
	}
}

func TestChunkPump_NeverEmitsEmptyChunks(t *testing.T) {
	p := newChunkPump(10 * time.Millisecond)
	// A couple of intervals pass with nothing accumulated.
	time.Sleep(35 * time.Millisecond)
	close(p.in)

	select {
	case chunk, ok := <-p.out:
		if ok {
			t.Fatalf("got chunk %q from an empty stream", chunk)
		}
	case <-time.After(time.Second):
		t.Fatal("chunk channel never closed")
	}
}

func TestRenderWAV_CarriesPCMVerbatim(t *testing.T) {
	pcm := make([]byte, 9600) // 100ms of 48kHz mono LINEAR16
	for i := range pcm {
		pcm[i] = byte(i)
	}

	data := renderWAV(pcm, 48000, 1)

	if !bytes.HasSuffix(data, pcm) {
		t.Fatal("PCM bytes do not survive verbatim in the data segment")
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if !d.IsValidFile() {
		t.Fatal("rendered WAV is not a valid RIFF/WAVE file")
	}
	if d.SampleRate != 48000 || d.BitDepth != 16 || d.NumChans != 1 {
		t.Fatalf("header = %d Hz %d-bit %d ch, want 48000 Hz 16-bit 1 ch",
			d.SampleRate, d.BitDepth, d.NumChans)
	}
	dur, err := d.Duration()
	if err != nil {
		t.Fatalf("Duration() = %v", err)
	}
	if dur.Round(time.Millisecond) != 100*time.Millisecond {
		t.Fatalf("duration = %v, want 100ms", dur)
	}
}

func TestClassifyStartupError(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   error
	}{
		{"denied", "dev/snd: Permission denied", ErrPermissionDenied},
		{"not permitted", "operation not permitted", ErrPermissionDenied},
		{"busy device", "cannot open audio device hw:0,0 (Device or resource busy)", ErrDeviceUnavailable},
		{"missing device", "ALSA lib: unknown PCM default", ErrDeviceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyStartupError(tc.detail); !errors.Is(got, tc.want) {
				t.Fatalf("classifyStartupError(%q) = %v, want %v", tc.detail, got, tc.want)
			}
		})
	}
}

func TestCaptureInput_DeviceOverride(t *testing.T) {
	format, input := captureInput("hw:1,0")
	if format == "" || input == "" {
		t.Fatal("captureInput returned empty format or input")
	}
	switch format {
	case "alsa":
		if input != "hw:1,0" {
			t.Fatalf("alsa input = %q, want the configured device", input)
		}
	case "dshow":
		if input != "audio=hw:1,0" {
			t.Fatalf("dshow input = %q, want audio= prefix", input)
		}
	case "avfoundation":
		if input != "hw:1,0" {
			t.Fatalf("avfoundation input = %q", input)
		}
	default:
		t.Fatalf("unexpected capture format %q", format)
	}
}
