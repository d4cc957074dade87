package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHintStore_WriteThenReadOnce(t *testing.T) {
	s := NewHintStore(t.TempDir())

	if err := s.Write(Hint{IsRecording: true, StartTime: 1724418185000}); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	h, ok, err := s.ReadOnce()
	if err != nil {
		t.Fatalf("ReadOnce() = %v", err)
	}
	if !ok || !h.IsRecording || h.StartTime != 1724418185000 {
		t.Fatalf("ReadOnce() = %+v ok=%v, want the written hint", h, ok)
	}

	// Read-once discipline: the second read without an intervening write
	// must come back empty.
	if _, ok, err := s.ReadOnce(); ok || err != nil {
		t.Fatalf("second ReadOnce() ok=%v err=%v, want empty", ok, err)
	}
}

func TestHintStore_ReadOnceWithNothingWritten(t *testing.T) {
	s := NewHintStore(t.TempDir())
	if _, ok, err := s.ReadOnce(); ok || err != nil {
		t.Fatalf("ReadOnce() ok=%v err=%v, want empty and no error", ok, err)
	}
}

func TestHintStore_LastWriteWins(t *testing.T) {
	s := NewHintStore(t.TempDir())
	if err := s.Write(Hint{IsRecording: true, StartTime: 1}); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if err := s.Write(Hint{IsRecording: false, StartTime: 1}); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	h, ok, err := s.ReadOnce()
	if err != nil || !ok {
		t.Fatalf("ReadOnce() ok=%v err=%v", ok, err)
	}
	if h.IsRecording {
		t.Fatal("hint still says recording after the stop write")
	}
}

func TestHintStore_CorruptRecordIsClearedToo(t *testing.T) {
	dir := t.TempDir()
	s := NewHintStore(dir)
	if err := os.WriteFile(filepath.Join(dir, HintFileName), []byte("not json"), 0o644); err != nil {
		t.Fatalf("seeding corrupt record: %v", err)
	}

	if _, ok, err := s.ReadOnce(); err == nil || ok {
		t.Fatalf("ReadOnce() on corrupt record ok=%v err=%v, want an error", ok, err)
	}
	// The bad record must not reappear on the next launch.
	if _, ok, err := s.ReadOnce(); ok || err != nil {
		t.Fatalf("ReadOnce() after corrupt record ok=%v err=%v, want empty", ok, err)
	}
}

func TestHintStore_UsesTheFixedStorageKey(t *testing.T) {
	dir := t.TempDir()
	s := NewHintStore(dir)
	if err := s.Write(Hint{IsRecording: true, StartTime: 42}); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "fai_recorder_state"))
	if err != nil {
		t.Fatalf("hint not stored under the fai_recorder_state key: %v", err)
	}
	want := `{"isRecording":true,"startTime":42}`
	if string(data) != want {
		t.Fatalf("stored record = %s, want %s", data, want)
	}
}
