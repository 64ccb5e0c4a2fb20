package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss 缓存不存在
var ErrMiss = redis.Nil

// IsMiss 判断是否为缓存未命中
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存
	Get(ctx context.Context, key string) (string, error)

	// Set 设置缓存
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// SetNX 设置缓存（不存在时才设置）
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)

	// SetIfEqual 仅当 guardKey 的值等于 guard 时设置缓存，guard 为空串表示 guardKey 不存在
	SetIfEqual(ctx context.Context, guardKey, guard, key string, value any, expiration time.Duration) (bool, error)

	// Incr 自增并返回新值
	Incr(ctx context.Context, key string) (int64, error)

	// Delete 删除缓存
	Delete(ctx context.Context, keys ...string) error

	// Exists 检查key是否存在
	Exists(ctx context.Context, keys ...string) (int64, error)

	// TTL 剩余存活时间，key不存在时返回负值
	TTL(ctx context.Context, key string) (time.Duration, error)

	// GetJSON 获取JSON格式的缓存并反序列化
	GetJSON(ctx context.Context, key string, dest any) error

	// SetJSON 序列化为JSON并设置缓存
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error

	// Close 关闭连接
	Close() error
}

// 缓存键
const (
	CommentCountKey       = "comment:count:article:%d" // 文章未删除评论数
	CommentCountGenKey    = "comment:count:gen:%d"     // 评论数失效代数
	CommentCooldownKey    = "comment:cooldown:user:%d" // 作者发帖冷却
	BloomFilterArticleKey = "bloom:article:exists"     // 文章存在性布隆过滤器
)

// 缓存过期时间
const (
	CommentCountExpiration = 30 * time.Minute
	BloomFilterExpiration  = 24 * time.Hour
)
