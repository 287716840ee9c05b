package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"go.uber.org/zap"
)

// SessionConfig carries the tick scheduling settings.
type SessionConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// streamSession is the live bookkeeping for one actively-publishing stream.
// The ticker goroutine is the only writer of its schedule; busy enforces the
// single-concurrency-slot rule.
type streamSession struct {
	key     domain.StreamKey
	stopCh  chan struct{}
	stopped atomic.Bool
	busy    atomic.Bool
}

type sessionManager struct {
	capture ports.CaptureService
	metrics ports.MetricsRecorder
	cfg     SessionConfig
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[domain.StreamKey]*streamSession
	sequence atomic.Int64
}

// NewSessionManager creates the manager that owns all per-stream schedules.
func NewSessionManager(
	capture ports.CaptureService,
	metrics ports.MetricsRecorder,
	cfg SessionConfig,
	logger *zap.SugaredLogger,
) ports.SessionManager {
	return &sessionManager{
		capture:  capture,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[domain.StreamKey]*streamSession),
	}
}

// OnStreamStart creates a session for the stream and begins ticking. Starting
// an already-active stream is a no-op.
func (m *sessionManager) OnStreamStart(streamKey domain.StreamKey) {
	m.mu.Lock()
	if _, exists := m.sessions[streamKey]; exists {
		m.mu.Unlock()
		m.logger.Infow("session already active, ignoring start", "stream_key", streamKey)
		return
	}

	session := &streamSession{
		key:    streamKey,
		stopCh: make(chan struct{}),
	}
	m.sessions[streamKey] = session
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(count)
	m.logger.Infow("session started",
		"stream_key", streamKey,
		"initial_delay", m.cfg.InitialDelay,
		"interval", m.cfg.Interval,
	)

	go m.run(session)
}

// OnStreamStop cancels the session's schedule and removes it. No new tick
// begins after this returns; a pipeline already in flight may finish.
func (m *sessionManager) OnStreamStop(streamKey domain.StreamKey) {
	m.mu.Lock()
	session, exists := m.sessions[streamKey]
	if !exists {
		m.mu.Unlock()
		m.logger.Infow("no session for stream, ignoring stop", "stream_key", streamKey)
		return
	}
	delete(m.sessions, streamKey)
	count := len(m.sessions)
	m.mu.Unlock()

	session.stopped.Store(true)
	close(session.stopCh)

	m.metrics.SetActiveSessions(count)
	m.logger.Infow("session stopped", "stream_key", streamKey)
}

// ActiveSessions returns the keys of all currently ticking sessions.
func (m *sessionManager) ActiveSessions() []domain.StreamKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]domain.StreamKey, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	return keys
}

// StopAll tears down every session, for process shutdown.
func (m *sessionManager) StopAll() {
	for _, key := range m.ActiveSessions() {
		m.OnStreamStop(key)
	}
}

// run drives one session: a single-shot tick after the initial delay, then a
// recurring tick at the configured interval until the session stops.
func (m *sessionManager) run(session *streamSession) {
	initial := time.NewTimer(m.cfg.InitialDelay)
	defer initial.Stop()

	select {
	case <-initial.C:
		m.tick(session)
	case <-session.stopCh:
		return
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(session)
		case <-session.stopCh:
			return
		}
	}
}

// tick launches one pipeline run unless the session was stopped or a previous
// run is still in flight. Late ticks against a busy session are dropped, not
// queued.
func (m *sessionManager) tick(session *streamSession) {
	if session.stopped.Load() {
		return
	}
	if !session.busy.CompareAndSwap(false, true) {
		m.metrics.RecordTickDropped(session.key)
		m.logger.Warnw("previous tick still running, dropping tick", "stream_key", session.key)
		return
	}

	sequence := m.sequence.Add(1)

	go func() {
		defer session.busy.Store(false)
		if err := m.capture.RunTick(context.Background(), session.key, sequence); err != nil {
			m.logger.Warnw("tick pipeline failed",
				"stream_key", session.key,
				"sequence", sequence,
				"error", err,
			)
		}
	}()
}
