package domain

import (
	"time"
)

type StreamKey string

// ThreatLevel is a projection of the integer threat score. LevelError is
// outside the score scale and marks assessments that failed internally.
type ThreatLevel string

const (
	LevelNone     ThreatLevel = "NONE"
	LevelLow      ThreatLevel = "LOW"
	LevelMedium   ThreatLevel = "MEDIUM"
	LevelHigh     ThreatLevel = "HIGH"
	LevelCritical ThreatLevel = "CRITICAL"
	LevelError    ThreatLevel = "ERROR"
)

// RecommendedAction is a fixed lookup from ThreatLevel.
type RecommendedAction string

const (
	ActionNone                   RecommendedAction = "none"
	ActionLogForReview           RecommendedAction = "log_for_review"
	ActionMonitorClosely         RecommendedAction = "monitor_closely"
	ActionInvestigateImmediately RecommendedAction = "investigate_immediately"
	ActionImmediateResponse      RecommendedAction = "immediate_response"
)

// LevelFromScore projects an integer score onto a threat level.
func LevelFromScore(score int) ThreatLevel {
	switch {
	case score >= 5:
		return LevelCritical
	case score >= 4:
		return LevelHigh
	case score >= 3:
		return LevelMedium
	case score >= 2:
		return LevelLow
	default:
		return LevelNone
	}
}

// ActionForLevel returns the recommended operator action for a level.
func ActionForLevel(level ThreatLevel) RecommendedAction {
	switch level {
	case LevelCritical:
		return ActionImmediateResponse
	case LevelHigh:
		return ActionInvestigateImmediately
	case LevelMedium:
		return ActionMonitorClosely
	case LevelLow:
		return ActionLogForReview
	default:
		return ActionNone
	}
}

// PatternResult is the output of the pattern scorer.
type PatternResult struct {
	Score   int
	Reasons []string
}

// ContextResult is the output of the contextual scorer. Score 0 means the
// contextual stage produced no usable opinion.
type ContextResult struct {
	Score   int
	Factors []string
}

// ThreatAssessment is the combined verdict for one classified frame.
// Immutable once produced.
type ThreatAssessment struct {
	StreamKey  StreamKey         `json:"stream_key"`
	ImageFile  string            `json:"image_file"`
	Level      ThreatLevel       `json:"level"`
	Score      int               `json:"score"`
	Confidence int               `json:"confidence"`
	Reasons    []string          `json:"reasons"`
	Triggered  bool              `json:"triggered"`
	Action     RecommendedAction `json:"recommended_action"`
	AssessedAt time.Time         `json:"assessed_at"`
}
