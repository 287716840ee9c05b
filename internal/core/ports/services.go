package ports

import (
	"context"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
)

// SessionManager owns the per-stream tick scheduling. Start and Stop are
// idempotent; Stop guarantees no new tick begins after it returns.
type SessionManager interface {
	OnStreamStart(streamKey domain.StreamKey)
	OnStreamStop(streamKey domain.StreamKey)
	ActiveSessions() []domain.StreamKey
	StopAll()
}

// CaptureService runs one full tick for a stream: extract, classify, assess,
// persist, alert. Errors are terminal for the tick, never for the session.
type CaptureService interface {
	RunTick(ctx context.Context, streamKey domain.StreamKey, sequence int64) error
}

// ThreatAssessor combines the pattern and contextual scorers into one verdict.
type ThreatAssessor interface {
	Assess(ctx context.Context, description, imagePath string) domain.ThreatAssessment
}
