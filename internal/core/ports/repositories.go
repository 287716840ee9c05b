package ports

import (
	"context"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
)

// ResultStore persists per-frame classification results and the append-only
// summary log. Only the capture pipeline writes through this interface.
type ResultStore interface {
	SaveResult(ctx context.Context, result *domain.ClassificationResult) (string, error)
	AppendSummary(ctx context.Context, entry *domain.SummaryEntry) error
}

// AssessmentRepository keeps a bounded history of assessments for the admin
// API. Implementations: in-memory ring, redis list.
type AssessmentRepository interface {
	Save(ctx context.Context, assessment *domain.ThreatAssessment) error
	ListRecent(ctx context.Context, limit int) ([]*domain.ThreatAssessment, error)
}
