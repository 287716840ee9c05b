package memory

import (
	"context"
	"sync"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"
)

// MemoryAssessmentRepository keeps the most recent assessments in a bounded
// in-process ring, newest first.
type MemoryAssessmentRepository struct {
	mu          sync.RWMutex
	assessments []*domain.ThreatAssessment
	capacity    int
}

func NewMemoryAssessmentRepository(capacity int) ports.AssessmentRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryAssessmentRepository{
		assessments: make([]*domain.ThreatAssessment, 0, capacity),
		capacity:    capacity,
	}
}

func (r *MemoryAssessmentRepository) Save(ctx context.Context, assessment *domain.ThreatAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assessments = append([]*domain.ThreatAssessment{assessment}, r.assessments...)
	if len(r.assessments) > r.capacity {
		r.assessments = r.assessments[:r.capacity]
	}
	return nil
}

func (r *MemoryAssessmentRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ThreatAssessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.assessments) {
		limit = len(r.assessments)
	}

	out := make([]*domain.ThreatAssessment, limit)
	copy(out, r.assessments[:limit])
	return out, nil
}
