package app

import (
	"path/filepath"
)

// Application wires the core components together for the widget. The TUI
// only ever talks to this and to the Manager's event stream.
type Application struct {
	Config   Config
	Logger   *Logger
	Manager  *Manager
	Exporter *Exporter

	// Interrupted is non-nil when the continuity hint said a previous
	// session was still recording at teardown. Consumed (and cleared on
	// disk) exactly once, here at construction.
	Interrupted *Hint
}

func NewApplication(cfg Config) (*Application, error) {
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.StateDir, "fai-recorder.log")
	}
	logger, err := NewFileLogger(logPath)
	if err != nil {
		return nil, err
	}

	engine, err := NewCaptureEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	hints := NewHintStore(cfg.StateDir)
	var interrupted *Hint
	if h, ok, err := hints.ReadOnce(); err != nil {
		logger.Warn("continuity hint read failed", map[string]interface{}{"err": err.Error()})
	} else if ok && h.IsRecording {
		interrupted = &h
		logger.Info("previous session was interrupted", map[string]interface{}{
			"started_ms": h.StartTime,
		})
	}

	return &Application{
		Config:      cfg,
		Logger:      logger,
		Manager:     NewManager(cfg, engine, hints, logger),
		Exporter:    NewExporter(cfg.OutputDir, logger),
		Interrupted: interrupted,
	}, nil
}

// Shutdown releases the capture device if a session is still live. It does
// not complete the session: the hint on disk keeps saying recording, so the
// next launch shows the interrupted notice.
func (a *Application) Shutdown() {
	a.Manager.Abandon()
}
