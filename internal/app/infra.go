package app

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/sweenec/Secrets/internal/config"
	"github.com/sweenec/Secrets/internal/db"
	"github.com/sweenec/Secrets/internal/logger"
	"github.com/sweenec/Secrets/internal/redis"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client // nil when REDIS_ADDR is unset
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, sqlDB); err != nil {
		return nil, err
	}

	logger.Info("database ready", nil)

	infra := &Infra{DB: &db.DB{DB: sqlDB}}

	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, sessions held in process memory", nil)
		return infra, nil
	}

	redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}

	logger.Info("redis ready", nil)
	infra.Redis = redisClient

	return infra, nil
}
