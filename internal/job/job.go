package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// "0 */10 * * * *"   每隔10分钟（00:10:00, 00:20:00, ...）
// "0 0 * * * *"      每小时的开始
// "0 0 4 * * *"      每天凌晨4点

// Recounter 重新统计评论数
type Recounter interface {
	Recount(ctx context.Context) (int, error)
}

// Warmer 重建文章存在性过滤器
type Warmer interface {
	WarmUp(ctx context.Context) (int, error)
}

// WarmerFunc 函数形式的 Warmer
type WarmerFunc func(ctx context.Context) (int, error)

// WarmUp 调用函数本身
func (f WarmerFunc) WarmUp(ctx context.Context) (int, error) {
	return f(ctx)
}

// Scheduler 定时维护任务：校正评论计数缓存并重建文章过滤器
type Scheduler struct {
	cron    *cron.Cron
	counts  Recounter
	warmer  Warmer
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewScheduler 创建定时任务，spec 为带秒的cron表达式，timezone 为空时使用本地时区
func NewScheduler(spec, timezone string, counts Recounter, warmer Warmer, logger *zap.SugaredLogger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("加载时区失败: %w", err)
		}
		loc = l
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		counts:  counts,
		warmer:  warmer,
		timeout: time.Minute,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("无效的cron表达式 %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Errorw("定时维护任务失败", "error", err)
	}
}

// RunOnce 立即执行一次维护
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.warmer != nil {
		n, err := s.warmer.WarmUp(ctx)
		if err != nil {
			return fmt.Errorf("重建文章过滤器失败: %w", err)
		}
		s.logger.Debugw("文章过滤器已重建", "articles", n)
	}
	n, err := s.counts.Recount(ctx)
	if err != nil {
		return fmt.Errorf("校正评论数失败: %w", err)
	}
	s.logger.Infow("评论数已校正", "articles", n)
	return nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
