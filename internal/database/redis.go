package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/config"
	"github.com/nsxzhou1114/blog-comment/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// Redis 全局Redis客户端实例
	Redis    *redis.Client
	redisOne sync.Once
)

// OpenRedis 初始化Redis连接
func OpenRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接redis失败: %v", err)
	}

	Redis = client
	logger.Info("redis连接成功", zap.String("addr", cfg.Addr()))
	return client, nil
}

// GetRedis 获取Redis客户端实例
func GetRedis() *redis.Client {
	redisOne.Do(func() {
		if Redis != nil {
			return
		}
		var err error
		Redis, err = OpenRedis(&config.GlobalConfig.Redis)
		if err != nil {
			panic(fmt.Sprintf("redis初始化失败: %v", err))
		}
	})
	return Redis
}
