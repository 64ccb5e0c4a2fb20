package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/pkg/cache"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
)

// ArticleService 文章服务。文章内容同样只追加修订，评论锁定也是一次修订
type ArticleService struct {
	store    *store.Store
	ids      *idgen.Node
	articles cache.ExistenceFilter
	logger   *zap.SugaredLogger
}

// NewArticleService 创建文章服务，articles 为空时不维护存在性过滤器
func NewArticleService(s *store.Store, ids *idgen.Node, articles cache.ExistenceFilter, logger *zap.SugaredLogger) *ArticleService {
	if ids == nil {
		ids = idgen.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ArticleService{store: s, ids: ids, articles: articles, logger: logger}
}

// ArticleInput 文章内容
type ArticleInput struct {
	Title          string
	Description    string
	CoverURL       string
	Body           string
	Tags           []string
	Public         bool
	Sponsor        bool
	CommentsLocked bool
}

func (in ArticleInput) content(id, articleID int64, at time.Time) *model.ArticleContent {
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return &model.ArticleContent{
		ID:             id,
		ArticleID:      articleID,
		EditDate:       at,
		Title:          in.Title,
		Description:    in.Description,
		CoverURL:       in.CoverURL,
		Body:           in.Body,
		Tags:           strings.Join(tags, ","),
		Public:         in.Public,
		Sponsor:        in.Sponsor,
		CommentsLocked: in.CommentsLocked,
	}
}

// Create 创建文章
func (s *ArticleService) Create(ctx context.Context, in ArticleInput) (*model.ArticleDetail, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	article := &model.Article{ID: s.ids.Next(), PostDate: now}
	content := in.content(s.ids.Next(), article.ID, now)
	article.ContentID = content.ID

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.Articles.Insert(ctx, article, content)
	})
	if err != nil {
		return nil, fmt.Errorf("创建文章失败: %w", err)
	}
	if s.articles != nil {
		s.articles.Add(article.ID)
	}
	s.logger.Infow("文章已创建", "article_id", article.ID, "title", in.Title)
	return &model.ArticleDetail{Article: *article, Content: *content}, nil
}

// Update 以新修订替换文章内容
func (s *ArticleService) Update(ctx context.Context, id int64, in ArticleInput) (*model.ArticleDetail, error) {
	if _, err := s.Get(ctx, id, Actor{Admin: true}); err != nil {
		return nil, err
	}
	return s.revise(ctx, id, in)
}

// SetCommentsLocked 锁定或解锁文章评论
func (s *ArticleService) SetCommentsLocked(ctx context.Context, id int64, locked bool) (*model.ArticleDetail, error) {
	current, err := s.Get(ctx, id, Actor{Admin: true})
	if err != nil {
		return nil, err
	}
	if current.Content.CommentsLocked == locked {
		return current, nil
	}
	c := current.Content
	in := ArticleInput{
		Title:          c.Title,
		Description:    c.Description,
		CoverURL:       c.CoverURL,
		Body:           c.Body,
		Tags:           c.TagList(),
		Public:         c.Public,
		Sponsor:        c.Sponsor,
		CommentsLocked: locked,
	}
	return s.revise(ctx, id, in)
}

func (s *ArticleService) revise(ctx context.Context, id int64, in ArticleInput) (*model.ArticleDetail, error) {
	content := in.content(s.ids.Next(), id, time.Now().UTC().Truncate(time.Millisecond))
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.Articles.AppendRevision(ctx, content)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("更新文章失败: %w", err)
	}
	return s.Get(ctx, id, Actor{Admin: true})
}

// Get 获取文章，非公开文章只对管理员可见
func (s *ArticleService) Get(ctx context.Context, id int64, actor Actor) (*model.ArticleDetail, error) {
	a, err := s.store.Articles.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取文章失败: %w", err)
	}
	if !a.Content.Public && !actor.Admin {
		return nil, ErrArticleNotFound
	}
	return a, nil
}

// List 文章列表，按发布时间倒序
func (s *ArticleService) List(ctx context.Context, actor Actor) ([]model.ArticleDetail, error) {
	list, err := s.store.Articles.List(ctx, !actor.Admin)
	if err != nil {
		return nil, fmt.Errorf("获取文章列表失败: %w", err)
	}
	return list, nil
}

// History 文章的全部修订
func (s *ArticleService) History(ctx context.Context, id int64) ([]model.ArticleContent, error) {
	if _, err := s.Get(ctx, id, Actor{Admin: true}); err != nil {
		return nil, err
	}
	revs, err := s.store.Articles.Revisions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("获取文章修订失败: %w", err)
	}
	return revs, nil
}

// WarmUp 用全部文章ID重建存在性过滤器
func (s *ArticleService) WarmUp(ctx context.Context, m *cache.Manager) (int, error) {
	ids, err := s.store.Articles.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取文章ID失败: %w", err)
	}
	if err := m.WarmUpArticles(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
