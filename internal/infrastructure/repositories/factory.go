package repositories

import (
	"context"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"
	"github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/repositories/memory"
	redisrepo "github.com/blaketylerfullerton/aerialintelligence/internal/infrastructure/repositories/redis"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support: Redis when
// enabled and reachable, in-memory otherwise.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	historySize int
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis:    cfg.Redis.Enabled,
		historySize: cfg.Redis.HistorySize,
		logger:      logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateAssessmentRepository creates the assessment history repository.
func (f *RepositoryFactory) CreateAssessmentRepository() ports.AssessmentRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisAssessmentRepository(f.redisClient, f.historySize)
	}
	return memory.NewMemoryAssessmentRepository(f.historySize)
}

// Close closes the Redis connection if used.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
