package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CounterCache 文章评论数缓存。未命中时通过 singleflight 合并并发回源。
// 每次失效都会递增文章的代数，回源结果只在代数未变时写回，
// 避免读到旧值的回源覆盖掉并发写入之后的失效。
type CounterCache struct {
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.SugaredLogger
}

// NewCounterCache 创建评论数缓存
func NewCounterCache(c Cache, ttl time.Duration, logger *zap.SugaredLogger) *CounterCache {
	if ttl <= 0 {
		ttl = CommentCountExpiration
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CounterCache{cache: c, ttl: ttl, logger: logger}
}

func countKey(articleID int64) string {
	return fmt.Sprintf(CommentCountKey, articleID)
}

func genKey(articleID int64) string {
	return fmt.Sprintf(CommentCountGenKey, articleID)
}

// generation 当前代数，不存在时为空串
func (c *CounterCache) generation(ctx context.Context, articleID int64) (string, error) {
	gen, err := c.cache.Get(ctx, genKey(articleID))
	if IsMiss(err) {
		return "", nil
	}
	return gen, err
}

// fill 代数未变时写回评论数
func (c *CounterCache) fill(ctx context.Context, articleID int64, gen string, n int64) {
	ok, err := c.cache.SetIfEqual(ctx, genKey(articleID), gen, countKey(articleID), n, c.ttl)
	if err != nil {
		c.logger.Warnw("回填评论数缓存失败", "article_id", articleID, "error", err)
		return
	}
	if !ok {
		c.logger.Debugw("评论数在回源期间发生变化，放弃回填", "article_id", articleID)
	}
}

// Get 读取评论数，未命中或缓存不可用时调用 load 回源并回填
func (c *CounterCache) Get(ctx context.Context, articleID int64, load func(context.Context) (int64, error)) (int64, error) {
	key := countKey(articleID)
	if s, err := c.cache.Get(ctx, key); err == nil {
		if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			return n, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// 代数必须在回源之前读取
		gen, genErr := c.generation(ctx, articleID)
		n, err := load(ctx)
		if err != nil {
			return int64(0), err
		}
		if genErr != nil {
			c.logger.Warnw("读取评论数缓存代数失败", "article_id", articleID, "error", genErr)
			return n, nil
		}
		c.fill(ctx, articleID, gen, n)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Refresh 批量回源并写回，load 返回的统计中缺失的文章记为0
func (c *CounterCache) Refresh(ctx context.Context, articleIDs []int64, load func(context.Context) (map[int64]int64, error)) error {
	gens := make(map[int64]string, len(articleIDs))
	for _, id := range articleIDs {
		gen, err := c.generation(ctx, id)
		if err != nil {
			return fmt.Errorf("读取评论数缓存代数失败: %w", err)
		}
		gens[id] = gen
	}
	counts, err := load(ctx)
	if err != nil {
		return err
	}
	for _, id := range articleIDs {
		if _, err := c.cache.SetIfEqual(ctx, genKey(id), gens[id], countKey(id), counts[id], c.ttl); err != nil {
			return fmt.Errorf("写入评论数缓存失败: %w", err)
		}
	}
	return nil
}

// Set 直接写入评论数
func (c *CounterCache) Set(ctx context.Context, articleID, n int64) error {
	return c.cache.Set(ctx, countKey(articleID), n, c.ttl)
}

// Invalidate 递增代数并删除评论数缓存
func (c *CounterCache) Invalidate(ctx context.Context, articleID int64) error {
	if _, err := c.cache.Incr(ctx, genKey(articleID)); err != nil {
		return err
	}
	return c.cache.Delete(ctx, countKey(articleID))
}
