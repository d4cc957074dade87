package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Exporter turns a finalized artifact into a file on disk. It keeps no
// handle to the bytes after the write.
type Exporter struct {
	dir    string
	logger *Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

func NewExporter(dir string, logger *Logger) *Exporter {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Exporter{dir: dir, logger: logger, now: time.Now}
}

// Exportable reports whether there is anything to save.
func (e *Exporter) Exportable(a *Artifact) bool {
	return a != nil && len(a.Data) > 0
}

// Export writes the artifact to the output directory and returns the path.
// Called with nothing to save it is a silent no-op, not an error.
func (e *Exporter) Export(a *Artifact) (string, error) {
	if !e.Exportable(a) {
		return "", nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, exportFilename(e.now(), a.Container))
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", err
	}
	e.logger.Info("artifact exported", map[string]interface{}{
		"path":    path,
		"bytes":   len(a.Data),
		"session": a.SessionID,
	})
	return path, nil
}

// exportFilename derives a filesystem-safe name from the export timestamp:
// RFC3339 with ':' and '.' replaced by '-', truncated to whole-second
// precision (19 characters), plus the artifact's container extension.
func exportFilename(t time.Time, c Container) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(t.Format(time.RFC3339))
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return "session-recording-" + ts + string(c)
}
