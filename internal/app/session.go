package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of the current recording session. There is
// no paused state: nothing transitions to one.
type Status int

const (
	StatusIdle Status = iota
	StatusRecording
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRecording:
		return "recording"
	case StatusStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Session is one complete record→stop lifecycle instance. A new session
// always starts with empty chunks and no artifact; chunks are append-only
// while recording and frozen afterwards.
type Session struct {
	ID        string
	StartedAt time.Time

	status    Status
	stoppedAt time.Time
	chunks    [][]byte
	bytes     int
	artifact  *Artifact // set exactly once, at stop
}

// Event is published to the rendering collaborator on every observable
// state change.
type Event interface{ event() }

// TickEvent carries the wall-clock elapsed time of the active session.
type TickEvent struct {
	Elapsed time.Duration
}

// ChunkEvent reports accumulation progress.
type ChunkEvent struct {
	Chunks int
	Bytes  int
}

// StoppedEvent marks the Recording→Stopped transition. Artifact is nil when
// nothing was captured. DeviceLost is set when the stop was forced by losing
// the device mid-session; the artifact is then best-effort partial.
type StoppedEvent struct {
	Artifact   *Artifact
	Elapsed    time.Duration
	DeviceLost bool
	Err        error
}

func (TickEvent) event()    {}
func (ChunkEvent) event()   {}
func (StoppedEvent) event() {}

// Manager owns the one live Session and drives its transitions. It is the
// single consumer of the engine's chunk stream, so accumulation is ordered
// and exactly-once by construction.
type Manager struct {
	cfg    Config
	engine CaptureEngine
	hints  *HintStore
	logger *Logger
	clock  *Clock
	events chan Event

	mu           sync.Mutex
	sess         *Session
	handle       CaptureHandle
	consumerDone chan struct{}
	lastArtifact *Artifact

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

func NewManager(cfg Config, engine CaptureEngine, hints *HintStore, logger *Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		engine: engine,
		hints:  hints,
		logger: logger,
		clock:  NewClock(),
		events: make(chan Event, 64),
		now:    time.Now,
	}
}

// Events is the stream the rendering collaborator consumes.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return StatusIdle
	}
	return m.sess.status
}

// Elapsed is recomputed from wall clock while recording and frozen at stop.
func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return 0
	}
	switch m.sess.status {
	case StatusRecording:
		return m.now().Sub(m.sess.StartedAt)
	case StatusStopped:
		return m.sess.stoppedAt.Sub(m.sess.StartedAt)
	}
	return 0
}

// LastArtifact exposes the single "last artifact" slot. It empties when the
// next session starts; a caller that wants the old artifact past that point
// must have kept its own reference.
func (m *Manager) LastArtifact() *Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastArtifact
}

// Toggle drives the state machine: Idle/Stopped → Recording,
// Recording → Stopped.
func (m *Manager) Toggle(ctx context.Context) error {
	if m.Status() == StatusRecording {
		_, err := m.Stop()
		return err
	}
	return m.Start(ctx)
}

// Start runs the Idle→Recording transition: acquire the device, begin
// encoding, start the clock, write the continuity hint. On acquire failure
// the machine stays Idle and no hint is written.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.sess != nil && m.sess.status == StatusRecording {
		m.mu.Unlock()
		return fmt.Errorf("session already recording")
	}
	m.mu.Unlock()

	handle, err := m.engine.Acquire(ctx)
	if err != nil {
		m.logger.Error("acquire failed", map[string]interface{}{"err": err.Error()})
		return err
	}

	chunks, errs := handle.Begin(time.Duration(m.cfg.ChunkIntervalMs) * time.Millisecond)

	m.mu.Lock()
	started := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		StartedAt: started,
		status:    StatusRecording,
	}
	m.sess = sess
	m.handle = handle
	m.consumerDone = make(chan struct{})
	m.lastArtifact = nil
	done := m.consumerDone
	m.mu.Unlock()

	// A failed hint write only degrades the next-launch indicator; the
	// session proceeds regardless.
	if err := m.hints.Write(Hint{IsRecording: true, StartTime: started.UnixMilli()}); err != nil {
		m.logger.Warn("continuity hint write failed", map[string]interface{}{"err": err.Error()})
	}

	go m.consume(sess, chunks, errs, done)

	m.clock.Start(time.Duration(m.cfg.TickIntervalMs)*time.Millisecond, func(now time.Time) {
		m.publish(TickEvent{Elapsed: now.Sub(started)})
	})

	m.logger.Info("session started", map[string]interface{}{
		"session": sess.ID,
		"engine":  m.engine.Name(),
	})
	return nil
}

// consume accumulates the engine's chunks onto the session, in emission
// order, until the engine closes the stream. Device loss forces the stop
// transition from a separate goroutine so draining continues meanwhile.
func (m *Manager) consume(sess *Session, chunks <-chan []byte, errs <-chan error, done chan struct{}) {
	defer close(done)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return
			}
			m.mu.Lock()
			sess.chunks = append(sess.chunks, c)
			sess.bytes += len(c)
			n, total := len(sess.chunks), sess.bytes
			m.mu.Unlock()
			m.publish(ChunkEvent{Chunks: n, Bytes: total})
		case err := <-errs:
			m.logger.Error("capture device lost", map[string]interface{}{
				"session": sess.ID, "err": err.Error(),
			})
			go m.forceStop(err)
		}
	}
}

// Stop runs the Recording→Stopped transition and finalizes the artifact.
func (m *Manager) Stop() (*Artifact, error) {
	return m.stop(nil)
}

func (m *Manager) forceStop(cause error) {
	if _, err := m.stop(cause); err != nil {
		m.logger.Error("forced stop failed", map[string]interface{}{"err": err.Error()})
	}
}

func (m *Manager) stop(cause error) (*Artifact, error) {
	m.mu.Lock()
	// The handle doubles as the transition guard: the first stopper takes
	// it, a concurrent second stop (user toggle racing a device loss) sees
	// nil and backs off.
	if m.sess == nil || m.sess.status != StatusRecording || m.handle == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("no active session")
	}
	sess := m.sess
	handle := m.handle
	done := m.consumerDone
	m.handle = nil
	m.mu.Unlock()

	m.clock.Stop()

	// End flushes the final chunk and closes the stream; waiting for the
	// consumer guarantees every chunk emitted before End is accumulated
	// before finalization reads the slice.
	if err := handle.End(); err != nil {
		m.logger.Warn("capture end", map[string]interface{}{"err": err.Error()})
	}
	<-done

	m.mu.Lock()
	stoppedAt := m.now()
	sess.status = StatusStopped
	sess.stoppedAt = stoppedAt
	chunks := sess.chunks
	m.mu.Unlock()

	var artifact *Artifact
	if len(chunks) > 0 {
		data, err := handle.Finalize(chunks)
		if err != nil {
			m.logger.Error("finalize failed", map[string]interface{}{"err": err.Error()})
		} else {
			artifact = &Artifact{
				Data:      data,
				Container: m.engine.Container(),
				SessionID: sess.ID,
				CreatedAt: stoppedAt,
			}
		}
	}

	m.mu.Lock()
	sess.artifact = artifact
	if artifact != nil {
		m.lastArtifact = artifact
	}
	m.mu.Unlock()

	if err := m.hints.Write(Hint{IsRecording: false, StartTime: sess.StartedAt.UnixMilli()}); err != nil {
		m.logger.Warn("continuity hint write failed", map[string]interface{}{"err": err.Error()})
	}

	elapsed := stoppedAt.Sub(sess.StartedAt)
	m.publish(StoppedEvent{
		Artifact:   artifact,
		Elapsed:    elapsed,
		DeviceLost: cause != nil,
		Err:        cause,
	})
	m.logger.Info("session stopped", map[string]interface{}{
		"session": sess.ID,
		"elapsed": elapsed.Round(time.Millisecond).String(),
		"chunks":  len(chunks),
		"forced":  cause != nil,
	})
	return artifact, nil
}

// Abandon releases the capture device without completing the session: no
// artifact, no hint update. The on-disk hint still says a session was
// recording, so the next launch shows the interrupted notice, the same
// outcome as tearing the surface down mid-session.
func (m *Manager) Abandon() {
	m.mu.Lock()
	if m.sess == nil || m.sess.status != StatusRecording || m.handle == nil {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	handle := m.handle
	done := m.consumerDone
	m.handle = nil
	m.mu.Unlock()

	m.clock.Stop()
	_ = handle.End()
	<-done

	m.mu.Lock()
	sess.status = StatusStopped
	sess.stoppedAt = m.now()
	m.mu.Unlock()

	m.logger.Info("session abandoned", map[string]interface{}{"session": sess.ID})
}

// publish never blocks the capture path: if the UI has fallen this far
// behind, dropping a render hint is the lesser harm.
func (m *Manager) publish(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
