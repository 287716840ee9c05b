package services

import (
	"context"
	"fmt"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"go.uber.org/zap"
)

// AssessmentConfig carries the tunable scoring constants. The defaults match
// the historical behavior: 40 for each scorer that produced output, plus a 20
// point bonus when both flagged something above baseline, capped at 100.
type AssessmentConfig struct {
	NotificationThreshold int
	PatternConfidence     int
	ContextConfidence     int
	AgreementBonus        int
	DetailedAnalysis      bool
}

// DefaultAssessmentConfig returns the standard scoring constants.
func DefaultAssessmentConfig() AssessmentConfig {
	return AssessmentConfig{
		NotificationThreshold: 3,
		PatternConfidence:     40,
		ContextConfidence:     40,
		AgreementBonus:        20,
	}
}

type assessmentService struct {
	patterns   *PatternScorer
	contextual *ContextScorer
	cfg        AssessmentConfig
	logger     *zap.SugaredLogger
}

// NewAssessmentService combines the pattern scorer with the optional
// contextual scorer into one verdict engine.
func NewAssessmentService(
	patterns *PatternScorer,
	contextual *ContextScorer,
	cfg AssessmentConfig,
	logger *zap.SugaredLogger,
) ports.ThreatAssessor {
	return &assessmentService{
		patterns:   patterns,
		contextual: contextual,
		cfg:        cfg,
		logger:     logger,
	}
}

// Assess produces the combined threat verdict for one scene description.
// Nothing may escape this boundary: an internal panic is converted into a
// terminal ERROR assessment so the pipeline tick survives.
func (s *assessmentService) Assess(ctx context.Context, description, imagePath string) (out domain.ThreatAssessment) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("assessment engine failure", "panic", r)
			out = domain.ThreatAssessment{
				Level:      domain.LevelError,
				Score:      0,
				Confidence: 0,
				Reasons:    []string{fmt.Sprintf("assessment failed internally: %v", r)},
				Triggered:  false,
				Action:     domain.ActionNone,
				AssessedAt: time.Now(),
			}
		}
	}()

	patternResult := s.patterns.Score(description)

	var contextResult domain.ContextResult
	if s.cfg.DetailedAnalysis && s.contextual != nil {
		contextResult = s.contextual.Score(ctx, description, imagePath)
	}

	score := patternResult.Score
	if contextResult.Score > score {
		score = contextResult.Score
	}

	reasons := make([]string, 0, len(patternResult.Reasons)+len(contextResult.Factors))
	reasons = append(reasons, patternResult.Reasons...)
	reasons = append(reasons, contextResult.Factors...)

	confidence := 0
	if len(patternResult.Reasons) > 0 {
		confidence += s.cfg.PatternConfidence
	}
	if len(contextResult.Factors) > 0 {
		confidence += s.cfg.ContextConfidence
	}
	if patternResult.Score > 1 && contextResult.Score > 1 {
		confidence += s.cfg.AgreementBonus
	}
	if confidence > 100 {
		confidence = 100
	}

	level := domain.LevelFromScore(score)

	return domain.ThreatAssessment{
		Level:      level,
		Score:      score,
		Confidence: confidence,
		Reasons:    reasons,
		Triggered:  score >= s.cfg.NotificationThreshold,
		Action:     domain.ActionForLevel(level),
		AssessedAt: time.Now(),
	}
}
