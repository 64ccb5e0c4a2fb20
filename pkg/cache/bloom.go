package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
)

// ExistenceFilter 存在性过滤器，用于拦截不存在ID的查询
type ExistenceFilter interface {
	// Add 添加ID
	Add(id int64)
	// Test ID可能存在时返回true，一定不存在时返回false
	Test(id int64) bool
	// Reset 用给定ID集合重建过滤器
	Reset(ids []int64)
}

// RedisBloomFilter 本地布隆过滤器，可持久化到Redis供其他实例加载
type RedisBloomFilter struct {
	filter    *bloom.BloomFilter
	redisKey  string
	client    *redis.Client
	mutex     sync.RWMutex
	capacity  uint
	errorRate float64
}

// NewRedisBloomFilter 创建布隆过滤器，client 为空时只在本地生效
func NewRedisBloomFilter(client *redis.Client, redisKey string, capacity uint, errorRate float64) *RedisBloomFilter {
	return &RedisBloomFilter{
		filter:    bloom.NewWithEstimates(capacity, errorRate),
		redisKey:  redisKey,
		client:    client,
		capacity:  capacity,
		errorRate: errorRate,
	}
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Add 添加ID
func (bf *RedisBloomFilter) Add(id int64) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()
	bf.filter.AddString(idKey(id))
}

// Test 测试ID是否可能存在
func (bf *RedisBloomFilter) Test(id int64) bool {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	return bf.filter.TestString(idKey(id))
}

// Reset 重建过滤器
func (bf *RedisBloomFilter) Reset(ids []int64) {
	filter := bloom.NewWithEstimates(bf.capacity, bf.errorRate)
	for _, id := range ids {
		filter.AddString(idKey(id))
	}
	bf.mutex.Lock()
	bf.filter = filter
	bf.mutex.Unlock()
}

// SaveToRedis 保存布隆过滤器到Redis
func (bf *RedisBloomFilter) SaveToRedis(ctx context.Context) error {
	if bf.client == nil {
		return nil
	}
	bf.mutex.RLock()
	data, err := bf.filter.GobEncode()
	bf.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("encode bloom filter failed: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return bf.client.Set(ctx, bf.redisKey, encoded, BloomFilterExpiration).Err()
}

// LoadFromRedis 从Redis加载布隆过滤器，不存在时保留当前过滤器
func (bf *RedisBloomFilter) LoadFromRedis(ctx context.Context) error {
	if bf.client == nil {
		return nil
	}
	encoded, err := bf.client.Get(ctx, bf.redisKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("get bloom filter from redis failed: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode bloom filter data failed: %w", err)
	}

	filter := &bloom.BloomFilter{}
	if err := filter.GobDecode(data); err != nil {
		return fmt.Errorf("decode bloom filter failed: %w", err)
	}

	bf.mutex.Lock()
	err = bf.filter.Merge(filter)
	bf.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("merge bloom filter failed: %w", err)
	}
	return nil
}
