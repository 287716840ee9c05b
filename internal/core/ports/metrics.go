package ports

import (
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
)

// MetricsRecorder receives operational events from the pipeline and its
// surroundings. The prometheus collector implements it; NopMetrics is for
// tests and wiring without monitoring.
type MetricsRecorder interface {
	RecordTick(streamKey domain.StreamKey)
	RecordTickDropped(streamKey domain.StreamKey)
	ObserveTickDuration(d time.Duration)
	RecordCaptureFailure(stage string)
	RecordClassification(success bool)
	RecordAssessment(level domain.ThreatLevel)
	RecordAlert(delivered bool)
	RecordRetentionDeletions(dir string, count int)
	SetActiveSessions(count int)
}

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) RecordTick(domain.StreamKey)          {}
func (NopMetrics) RecordTickDropped(domain.StreamKey)   {}
func (NopMetrics) ObserveTickDuration(time.Duration)    {}
func (NopMetrics) RecordCaptureFailure(string)          {}
func (NopMetrics) RecordClassification(bool)            {}
func (NopMetrics) RecordAssessment(domain.ThreatLevel)  {}
func (NopMetrics) RecordAlert(bool)                     {}
func (NopMetrics) RecordRetentionDeletions(string, int) {}
func (NopMetrics) SetActiveSessions(int)                {}
