package cache

import (
	"context"
	"fmt"
	"time"
)

// Cooldown 作者两次提交之间的最小间隔
type Cooldown struct {
	cache    Cache
	interval time.Duration
}

// NewCooldown 创建冷却器，interval 不大于0时不限制
func NewCooldown(c Cache, interval time.Duration) *Cooldown {
	return &Cooldown{cache: c, interval: interval}
}

// Interval 冷却间隔
func (c *Cooldown) Interval() time.Duration {
	return c.interval
}

func cooldownKey(userID int64) string {
	return fmt.Sprintf(CommentCooldownKey, userID)
}

// Remaining 距离冷却结束的剩余时间，为0表示可以提交
func (c *Cooldown) Remaining(ctx context.Context, userID int64) (time.Duration, error) {
	if c.interval <= 0 {
		return 0, nil
	}
	ttl, err := c.cache.TTL(ctx, cooldownKey(userID))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Touch 记录一次成功提交，开始新的冷却
func (c *Cooldown) Touch(ctx context.Context, userID int64) error {
	if c.interval <= 0 {
		return nil
	}
	return c.cache.Set(ctx, cooldownKey(userID), time.Now().Unix(), c.interval)
}
