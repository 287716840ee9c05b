package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisAssessmentRepository keeps the recent-assessment history in a capped
// Redis list, newest first, so history survives process restarts.
type RedisAssessmentRepository struct {
	client      *redis.Client
	key         string
	historySize int
}

func NewRedisAssessmentRepository(client *redis.Client, historySize int) ports.AssessmentRepository {
	if historySize <= 0 {
		historySize = 100
	}
	return &RedisAssessmentRepository{
		client:      client,
		key:         "aerial:assessments:recent",
		historySize: historySize,
	}
}

func (r *RedisAssessmentRepository) Save(ctx context.Context, assessment *domain.ThreatAssessment) error {
	data, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(r.historySize-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push assessment to Redis: %w", err)
	}
	return nil
}

func (r *RedisAssessmentRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ThreatAssessment, error) {
	if limit <= 0 || limit > r.historySize {
		limit = r.historySize
	}

	entries, err := r.client.LRange(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read assessments from Redis: %w", err)
	}

	assessments := make([]*domain.ThreatAssessment, 0, len(entries))
	for _, entry := range entries {
		var assessment domain.ThreatAssessment
		if err := json.Unmarshal([]byte(entry), &assessment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
		}
		assessments = append(assessments, &assessment)
	}
	return assessments, nil
}
