package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options 缓存组件参数
type Options struct {
	CountTTL      time.Duration
	Cooldown      time.Duration
	BloomCapacity uint
	BloomFPRate   float64
	Logger        *zap.SugaredLogger
}

// Manager 缓存管理器，持有评论服务用到的全部缓存组件
type Manager struct {
	cache       *RedisCache
	counters    *CounterCache
	cooldown    *Cooldown
	articles    *RedisBloomFilter
	mutex       sync.RWMutex
	initialized bool
}

var (
	instance *Manager
	once     sync.Once
)

// GetManager 获取缓存管理器单例
func GetManager() *Manager {
	once.Do(func() {
		instance = &Manager{}
	})
	return instance
}

// NewManager 创建独立的缓存管理器
func NewManager(client *redis.Client, opts Options) (*Manager, error) {
	m := &Manager{}
	if err := m.Initialize(client, opts); err != nil {
		return nil, err
	}
	return m, nil
}

// Initialize 初始化缓存管理器
func (m *Manager) Initialize(client *redis.Client, opts Options) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.initialized {
		return nil
	}
	if opts.BloomCapacity == 0 {
		opts.BloomCapacity = 100000
	}
	if opts.BloomFPRate <= 0 {
		opts.BloomFPRate = 0.01
	}

	m.cache = NewRedisCache(client)
	m.counters = NewCounterCache(m.cache, opts.CountTTL, opts.Logger)
	m.cooldown = NewCooldown(m.cache, opts.Cooldown)
	m.articles = NewRedisBloomFilter(client, BloomFilterArticleKey, opts.BloomCapacity, opts.BloomFPRate)

	if err := m.articles.LoadFromRedis(context.Background()); err != nil {
		return fmt.Errorf("load article bloom filter failed: %w", err)
	}

	m.initialized = true
	return nil
}

// GetCache 获取基础缓存接口
func (m *Manager) GetCache() Cache {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.cache
}

// Counters 评论数缓存
func (m *Manager) Counters() *CounterCache {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters
}

// Cooldown 发帖冷却
func (m *Manager) Cooldown() *Cooldown {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.cooldown
}

// Articles 文章存在性过滤器
func (m *Manager) Articles() *RedisBloomFilter {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.articles
}

// WarmUpArticles 用全部文章ID重建过滤器并保存
func (m *Manager) WarmUpArticles(ctx context.Context, ids []int64) error {
	filter := m.Articles()
	if filter == nil {
		return fmt.Errorf("cache manager not initialized")
	}
	filter.Reset(ids)
	return filter.SaveToRedis(ctx)
}

// IsInitialized 检查是否已初始化
func (m *Manager) IsInitialized() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.initialized
}

// Close 保存过滤器并关闭连接
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.initialized {
		return nil
	}

	saveErr := m.articles.SaveToRedis(context.Background())
	if err := m.cache.Close(); err != nil {
		return fmt.Errorf("close cache failed: %w", err)
	}
	m.initialized = false
	if saveErr != nil {
		return fmt.Errorf("save bloom filter failed: %w", saveErr)
	}
	return nil
}
