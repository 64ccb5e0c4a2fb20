package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
	"github.com/nsxzhou1114/blog-comment/pkg/cache"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
)

// errStaleVersion 内容指针已被并发修改，需要重新读取后重试
var errStaleVersion = errors.New("stale comment version")

// CommentDeps 评论服务的依赖，缓存相关依赖可以为空
type CommentDeps struct {
	Store       *store.Store
	IDs         *idgen.Node
	Limits      *validation.Limits
	Counters    *cache.CounterCache
	Cooldown    *cache.Cooldown
	Articles    cache.ExistenceFilter
	Sensitive   *SensitiveService
	EditRetries uint
	Logger      *zap.SugaredLogger
}

// CommentService 评论服务：编号、回复关系、编辑修订、软删除与计数
type CommentService struct {
	store     *store.Store
	ids       *idgen.Node
	limits    *validation.Limits
	counters  *cache.CounterCache
	cooldown  *cache.Cooldown
	articles  cache.ExistenceFilter
	sensitive *SensitiveService
	retries   uint
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewCommentService 创建评论服务
func NewCommentService(d CommentDeps) *CommentService {
	if d.Limits == nil {
		d.Limits = validation.NewLimits(nil)
	}
	if d.EditRetries == 0 {
		d.EditRetries = 5
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.IDs == nil {
		d.IDs = idgen.Default()
	}
	return &CommentService{
		store:     d.Store,
		ids:       d.IDs,
		limits:    d.Limits,
		counters:  d.Counters,
		cooldown:  d.Cooldown,
		articles:  d.Articles,
		sensitive: d.Sensitive,
		retries:   d.EditRetries,
		logger:    d.Logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// CreateInput 发表评论参数
type CreateInput struct {
	ArticleID int64
	ReplyTo   *int64
	Content   string
}

// Thread 一篇文章的评论串原始数据，按发布时间升序
type Thread struct {
	Article  *model.ArticleDetail
	Comments []model.CommentDetail
	Authors  map[int64]*model.User
}

// loadArticle 获取访问者可见的文章，非公开文章只对管理员可见
func (s *CommentService) loadArticle(ctx context.Context, articleID int64, actor Actor) (*model.ArticleDetail, error) {
	article, err := s.store.Articles.Get(ctx, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取文章失败: %w", err)
	}
	if !article.Content.Public && !actor.Admin {
		return nil, ErrArticleNotFound
	}
	return article, nil
}

// checkCooldown 非管理员在冷却期内不能提交
func (s *CommentService) checkCooldown(ctx context.Context, actor Actor) error {
	if s.cooldown == nil || actor.Admin {
		return nil
	}
	remaining, err := s.cooldown.Remaining(ctx, actor.ID)
	if err != nil {
		// 冷却依赖Redis，不可用时放行
		s.logger.Warnw("读取冷却状态失败", "user_id", actor.ID, "error", err)
		return nil
	}
	if remaining > 0 {
		return &CooldownError{Remaining: remaining}
	}
	return nil
}

func (s *CommentService) touchCooldown(ctx context.Context, actor Actor) {
	if s.cooldown == nil || actor.Admin {
		return
	}
	if err := s.cooldown.Touch(ctx, actor.ID); err != nil {
		s.logger.Warnw("写入冷却状态失败", "user_id", actor.ID, "error", err)
	}
}

func (s *CommentService) invalidateCount(ctx context.Context, articleID int64) {
	if s.counters == nil {
		return
	}
	if err := s.counters.Invalidate(ctx, articleID); err != nil {
		s.logger.Warnw("清除评论数缓存失败", "article_id", articleID, "error", err)
	}
}

func (s *CommentService) mask(content string) string {
	if s.sensitive == nil {
		return content
	}
	if words := s.sensitive.Find(content); len(words) > 0 {
		s.logger.Infow("评论内容包含敏感词已被过滤", "words", words)
		return s.sensitive.Mask(content)
	}
	return content
}

// Create 发表评论，评论与首个内容修订在同一事务中写入
func (s *CommentService) Create(ctx context.Context, actor Actor, in CreateInput) (*model.CommentDetail, error) {
	if !actor.LoggedIn() {
		return nil, ErrForbidden
	}
	article, err := s.loadArticle(ctx, in.ArticleID, actor)
	if err != nil {
		return nil, err
	}
	if article.Content.CommentsLocked {
		return nil, ErrArticleLocked
	}
	if err := s.limits.Validate(validation.SurfaceFor(in.ReplyTo != nil), in.Content); err != nil {
		return nil, err
	}
	if err := s.checkCooldown(ctx, actor); err != nil {
		return nil, err
	}

	if in.ReplyTo != nil {
		parent, err := s.store.Comments.GetRow(ctx, *in.ReplyTo)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("获取父评论失败: %w", err)
		}
		if parent.ArticleID != in.ArticleID {
			return nil, ErrParentNotFound
		}
	}

	content := s.mask(in.Content)
	now := s.now()
	rev := &model.CommentContent{
		ID:       s.ids.Next(),
		EditDate: now,
		Content:  content,
	}
	comment := &model.Comment{
		ID:        s.ids.Next(),
		ArticleID: in.ArticleID,
		ReplyTo:   in.ReplyTo,
		AuthorID:  actor.ID,
		PostDate:  now,
		ContentID: rev.ID,
	}
	rev.CommentID = comment.ID

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.Comments.Insert(ctx, comment, rev)
	})
	if err != nil {
		return nil, fmt.Errorf("保存评论失败: %w", err)
	}

	s.invalidateCount(ctx, in.ArticleID)
	s.touchCooldown(ctx, actor)
	s.logger.Infow("评论已发表", "comment_id", comment.ID, "article_id", in.ArticleID, "author_id", actor.ID)

	return &model.CommentDetail{Comment: *comment, EditDate: rev.EditDate, Content: rev.Content}, nil
}

// Edit 追加内容修订并移动内容指针。
// 并发编辑以最后提交者为准且每个修订都会保留，已删除的评论不能再编辑
func (s *CommentService) Edit(ctx context.Context, actor Actor, commentID int64, content string) (*model.CommentDetail, error) {
	row, err := s.getRow(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !actor.canModify(row.AuthorID) {
		return nil, ErrForbidden
	}
	if row.Removed() {
		return nil, ErrRemoved
	}
	if err := s.limits.Validate(validation.SurfaceFor(row.IsReply()), content); err != nil {
		return nil, err
	}
	if err := s.checkCooldown(ctx, actor); err != nil {
		return nil, err
	}
	content = s.mask(content)

	// 行锁让同一评论的编辑依次执行，CAS 兜底不支持行锁的存储
	err = retry.Do(
		func() error {
			return s.store.Transaction(ctx, func(tx *store.Store) error {
				cur, err := tx.Comments.LockRow(ctx, commentID)
				if errors.Is(err, store.ErrNotFound) {
					return ErrNotFound
				}
				if err != nil {
					return err
				}
				if cur.Removed() {
					return ErrRemoved
				}
				rev := &model.CommentContent{
					ID:        s.ids.Next(),
					CommentID: commentID,
					EditDate:  s.now(),
					Content:   content,
				}
				if err := tx.Comments.AppendRevision(ctx, rev); err != nil {
					return err
				}
				ok, err := tx.Comments.AdvanceContent(ctx, commentID, rev.ID, cur.Version)
				if err != nil {
					return err
				}
				if !ok {
					return errStaleVersion
				}
				return nil
			})
		},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(5*time.Millisecond),
		retry.MaxJitter(5*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errStaleVersion)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debugw("评论版本冲突，重试编辑", "comment_id", commentID, "attempt", n+1)
		}),
	)
	switch {
	case err == nil:
	case errors.Is(err, ErrRemoved), errors.Is(err, ErrNotFound):
		return nil, err
	case errors.Is(err, errStaleVersion):
		return nil, ErrConflict
	default:
		return nil, fmt.Errorf("保存评论修订失败: %w", err)
	}

	s.touchCooldown(ctx, actor)
	return s.Get(ctx, commentID)
}

// Remove 软删除评论。重复删除直接返回成功，评论数只减少一次
func (s *CommentService) Remove(ctx context.Context, actor Actor, commentID int64) error {
	row, err := s.getRow(ctx, commentID)
	if err != nil {
		return err
	}
	if !actor.canModify(row.AuthorID) {
		return ErrForbidden
	}
	if row.Removed() {
		return nil
	}

	removed, err := s.store.Comments.MarkRemoved(ctx, commentID, s.now())
	if err != nil {
		return fmt.Errorf("删除评论失败: %w", err)
	}
	if removed {
		s.invalidateCount(ctx, row.ArticleID)
		s.logger.Infow("评论已删除", "comment_id", commentID, "by", actor.ID, "admin", actor.Admin)
	}
	return nil
}

func (s *CommentService) getRow(ctx context.Context, id int64) (*model.Comment, error) {
	row, err := s.store.Comments.GetRow(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取评论失败: %w", err)
	}
	return row, nil
}

// Get 获取评论及其当前内容，包括已删除的评论
func (s *CommentService) Get(ctx context.Context, id int64) (*model.CommentDetail, error) {
	d, err := s.store.Comments.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取评论失败: %w", err)
	}
	return d, nil
}

// ListByArticle 文章下全部评论（含已删除），按发布时间升序，时间相同按ID升序
func (s *CommentService) ListByArticle(ctx context.Context, articleID int64) ([]model.CommentDetail, error) {
	list, err := s.store.Comments.ListByArticle(ctx, articleID, true)
	if err != nil {
		return nil, fmt.Errorf("获取评论列表失败: %w", err)
	}
	return list, nil
}

// Count 文章下未删除的评论数
func (s *CommentService) Count(ctx context.Context, articleID int64) (int64, error) {
	load := func(ctx context.Context) (int64, error) {
		return s.store.Comments.CountByArticle(ctx, articleID)
	}
	if s.counters == nil {
		return load(ctx)
	}
	return s.counters.Get(ctx, articleID, load)
}

// PublicCount 供匿名接口使用的评论数，文章必须存在且可见
func (s *CommentService) PublicCount(ctx context.Context, articleID int64, actor Actor) (int64, error) {
	if s.articles != nil && !s.articles.Test(articleID) {
		return 0, ErrArticleNotFound
	}
	if _, err := s.loadArticle(ctx, articleID, actor); err != nil {
		return 0, err
	}
	return s.Count(ctx, articleID)
}

// Thread 获取文章的评论串及作者信息
func (s *CommentService) Thread(ctx context.Context, articleID int64, actor Actor) (*Thread, error) {
	if s.articles != nil && !s.articles.Test(articleID) {
		return nil, ErrArticleNotFound
	}
	article, err := s.loadArticle(ctx, articleID, actor)
	if err != nil {
		return nil, err
	}
	comments, err := s.ListByArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	authorIDs := make([]int64, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	authors, err := s.store.Users.ByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("获取评论作者失败: %w", err)
	}
	return &Thread{Article: article, Comments: comments, Authors: authors}, nil
}

// View 获取单条评论的渲染数据。已删除评论只对管理员可见；
// 顶层评论会带上回复
func (s *CommentService) View(ctx context.Context, id int64, actor Actor) (*Thread, *model.CommentDetail, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.Removed() && !actor.Admin {
		return nil, nil, ErrNotFound
	}
	thread, err := s.Thread(ctx, c.ArticleID, actor)
	if errors.Is(err, ErrArticleNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return thread, c, nil
}

// History 评论的全部修订，按编辑时间升序，仅作者与管理员可见
func (s *CommentService) History(ctx context.Context, actor Actor, commentID int64) ([]model.CommentContent, error) {
	row, err := s.getRow(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !actor.canModify(row.AuthorID) {
		return nil, ErrForbidden
	}
	revs, err := s.store.Comments.Revisions(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("获取评论修订失败: %w", err)
	}
	return revs, nil
}

// Recount 重新统计全部文章的评论数并写入缓存，返回统计的文章数
func (s *CommentService) Recount(ctx context.Context) (int, error) {
	if s.counters == nil {
		counts, err := s.store.Comments.CountAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("统计评论数失败: %w", err)
		}
		return len(counts), nil
	}
	ids, err := s.store.Articles.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取文章ID失败: %w", err)
	}
	err = s.counters.Refresh(ctx, ids, func(ctx context.Context) (map[int64]int64, error) {
		counts, err := s.store.Comments.CountAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("统计评论数失败: %w", err)
		}
		return counts, nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
