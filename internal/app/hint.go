package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// HintFileName is the storage key for the continuity hint.
const HintFileName = "fai_recorder_state"

// Hint marks whether a session was active when it was last written. It is a
// best-effort indicator for the next launch, never a source of audio: the
// interrupted session's chunks lived only in the previous process.
type Hint struct {
	IsRecording bool  `json:"isRecording"`
	StartTime   int64 `json:"startTime"` // epoch milliseconds
}

// HintStore persists one hint record under the state directory.
type HintStore struct {
	path string
}

func NewHintStore(stateDir string) *HintStore {
	return &HintStore{path: filepath.Join(stateDir, HintFileName)}
}

// Write persists the hint synchronously, durably enough to survive a
// relaunch. Temp-file-and-rename so a torn write never leaves a corrupt
// record behind.
func (s *HintStore) Write(h Hint) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// ReadOnce returns the last written hint and clears it: a second ReadOnce
// before another Write always reports no hint. The read-once discipline
// keeps a stale interrupted-session indicator from reappearing on every
// subsequent launch.
func (s *HintStore) ReadOnce() (Hint, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Hint{}, false, nil
		}
		return Hint{}, false, err
	}
	_ = os.Remove(s.path)

	var h Hint
	if err := json.Unmarshal(data, &h); err != nil {
		return Hint{}, false, fmt.Errorf("corrupt hint record: %w", err)
	}
	return h, true, nil
}
