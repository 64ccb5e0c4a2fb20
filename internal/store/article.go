package store

import (
	"context"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"gorm.io/gorm"
)

// ArticleRepository 文章仓储
type ArticleRepository struct {
	db *gorm.DB
}

// Insert 写入文章及首个内容修订
func (r *ArticleRepository) Insert(ctx context.Context, a *model.Article, content *model.ArticleContent) error {
	if err := r.db.WithContext(ctx).Create(content).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// Get 获取文章及当前内容
func (r *ArticleRepository) Get(ctx context.Context, id int64) (*model.ArticleDetail, error) {
	var a model.Article
	if err := r.db.WithContext(ctx).Take(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	var c model.ArticleContent
	if err := r.db.WithContext(ctx).Take(&c, "id = ?", a.ContentID).Error; err != nil {
		return nil, notFound(err)
	}
	return &model.ArticleDetail{Article: a, Content: c}, nil
}

// AppendRevision 追加内容修订并移动内容指针
func (r *ArticleRepository) AppendRevision(ctx context.Context, content *model.ArticleContent) error {
	if err := r.db.WithContext(ctx).Create(content).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&model.Article{}).
		Where("id = ?", content.ArticleID).
		Update("content_id", content.ID)
	if res.Error != nil {
		return res.Error
	}
	// 新修订ID总是不同于旧指针，影响行数为0说明文章不存在
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Revisions 文章的全部内容修订
func (r *ArticleRepository) Revisions(ctx context.Context, articleID int64) ([]model.ArticleContent, error) {
	var revs []model.ArticleContent
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("edit_date ASC").Order("id ASC").
		Find(&revs).Error
	return revs, err
}

// List 按发布时间倒序列出文章及当前内容，publicOnly 时只返回公开文章
func (r *ArticleRepository) List(ctx context.Context, publicOnly bool) ([]model.ArticleDetail, error) {
	var articles []model.Article
	if err := r.db.WithContext(ctx).Order("post_date DESC").Find(&articles).Error; err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}

	contentIDs := make([]int64, 0, len(articles))
	for _, a := range articles {
		contentIDs = append(contentIDs, a.ContentID)
	}
	var contents []model.ArticleContent
	if err := r.db.WithContext(ctx).Where("id IN ?", contentIDs).Find(&contents).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.ArticleContent, len(contents))
	for _, c := range contents {
		byID[c.ID] = c
	}

	list := make([]model.ArticleDetail, 0, len(articles))
	for _, a := range articles {
		c, ok := byID[a.ContentID]
		if !ok || (publicOnly && !c.Public) {
			continue
		}
		list = append(list, model.ArticleDetail{Article: a, Content: c})
	}
	return list, nil
}

// IDs 全部文章ID
func (r *ArticleRepository) IDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Article{}).Pluck("id", &ids).Error
	return ids, err
}
