package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeCapture counts ticks and optionally blocks until released.
type fakeCapture struct {
	ticks   atomic.Int64
	blockCh chan struct{}
}

func (f *fakeCapture) RunTick(ctx context.Context, streamKey domain.StreamKey, sequence int64) error {
	f.ticks.Add(1)
	if f.blockCh != nil {
		<-f.blockCh
	}
	return nil
}

// countingMetrics records dropped ticks.
type countingMetrics struct {
	ports.NopMetrics
	dropped atomic.Int64
}

func (m *countingMetrics) RecordTickDropped(domain.StreamKey) {
	m.dropped.Add(1)
}

func newTestManager(capture ports.CaptureService, metrics ports.MetricsRecorder, interval, initialDelay time.Duration) ports.SessionManager {
	return NewSessionManager(capture, metrics, SessionConfig{
		Interval:     interval,
		InitialDelay: initialDelay,
	}, zap.NewNop().Sugar())
}

func TestSessionManager_StartIsIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, time.Hour, time.Hour)
	defer manager.StopAll()

	manager.OnStreamStart("cam1")
	manager.OnStreamStart("cam1")

	assert.Len(t, manager.ActiveSessions(), 1)
}

func TestSessionManager_StopRemovesSession(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, time.Hour, time.Hour)

	manager.OnStreamStart("cam1")
	manager.OnStreamStop("cam1")

	assert.Empty(t, manager.ActiveSessions())
}

func TestSessionManager_StopUnknownStreamIsNoOp(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, time.Hour, time.Hour)

	manager.OnStreamStop("never-started")

	assert.Empty(t, manager.ActiveSessions())
}

func TestSessionManager_TicksRunOnSchedule(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, 10*time.Millisecond, time.Millisecond)

	manager.OnStreamStart("cam1")
	time.Sleep(60 * time.Millisecond)
	manager.StopAll()

	assert.GreaterOrEqual(t, capture.ticks.Load(), int64(2))
}

func TestSessionManager_BusySessionDropsTicks(t *testing.T) {
	capture := &fakeCapture{blockCh: make(chan struct{})}
	metrics := &countingMetrics{}
	manager := newTestManager(capture, metrics, 5*time.Millisecond, time.Millisecond)

	manager.OnStreamStart("cam1")
	time.Sleep(60 * time.Millisecond)

	// The first tick is still blocked, so later ticks must have been dropped
	// rather than queued.
	assert.Equal(t, int64(1), capture.ticks.Load())
	assert.GreaterOrEqual(t, metrics.dropped.Load(), int64(1))

	close(capture.blockCh)
	manager.StopAll()
}

func TestSessionManager_NoTicksAfterStop(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, 5*time.Millisecond, time.Millisecond)

	manager.OnStreamStart("cam1")
	time.Sleep(20 * time.Millisecond)
	manager.OnStreamStop("cam1")

	settled := capture.ticks.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, settled, capture.ticks.Load())
}

func TestSessionManager_IndependentStreams(t *testing.T) {
	capture := &fakeCapture{}
	manager := newTestManager(capture, ports.NopMetrics{}, time.Hour, time.Hour)
	defer manager.StopAll()

	manager.OnStreamStart("cam1")
	manager.OnStreamStart("cam2")
	manager.OnStreamStop("cam1")

	sessions := manager.ActiveSessions()
	assert.Len(t, sessions, 1)
	assert.Equal(t, domain.StreamKey("cam2"), sessions[0])
}
