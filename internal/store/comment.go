package store

import (
	"context"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository 评论仓储
type CommentRepository struct {
	db *gorm.DB
}

func (r *CommentRepository) detailQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("comment").
		Select("comment.*, comment_content.edit_date AS edit_date, comment_content.content AS content").
		Joins("JOIN comment_content ON comment_content.id = comment.content_id")
}

// Insert 写入评论及其首个内容修订，调用方负责放在同一事务中
func (r *CommentRepository) Insert(ctx context.Context, c *model.Comment, content *model.CommentContent) error {
	if err := r.db.WithContext(ctx).Create(content).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// Get 获取评论及当前内容
func (r *CommentRepository) Get(ctx context.Context, id int64) (*model.CommentDetail, error) {
	var d model.CommentDetail
	err := r.detailQuery(ctx).Where("comment.id = ?", id).Take(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// GetRow 只获取评论行
func (r *CommentRepository) GetRow(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Take(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// LockRow 在事务中以 FOR UPDATE 读取评论行，同一评论的写入在此排队
func (r *CommentRepository) LockRow(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Take(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByArticle 文章下的评论，按发布时间升序，时间相同按ID升序
func (r *CommentRepository) ListByArticle(ctx context.Context, articleID int64, withRemoved bool) ([]model.CommentDetail, error) {
	q := r.detailQuery(ctx).Where("comment.article_id = ?", articleID)
	if !withRemoved {
		q = q.Where("comment.removed_at IS NULL")
	}
	var list []model.CommentDetail
	err := q.Order("comment.post_date ASC").Order("comment.id ASC").Scan(&list).Error
	return list, err
}

// CountByArticle 统计文章下未删除的评论数
func (r *CommentRepository) CountByArticle(ctx context.Context, articleID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("article_id = ? AND removed_at IS NULL", articleID).
		Count(&n).Error
	return n, err
}

type articleCount struct {
	ArticleID int64
	N         int64
}

// CountAll 统计每篇文章未删除的评论数
func (r *CommentRepository) CountAll(ctx context.Context) (map[int64]int64, error) {
	var rows []articleCount
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Select("article_id, COUNT(*) AS n").
		Where("removed_at IS NULL").
		Group("article_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.ArticleID] = row.N
	}
	return counts, nil
}

// AppendRevision 追加内容修订
func (r *CommentRepository) AppendRevision(ctx context.Context, rev *model.CommentContent) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

// AdvanceContent 把内容指针移动到 contentID。
// 仅当版本号仍为 version 且评论未删除时成功，返回是否更新
func (r *CommentRepository) AdvanceContent(ctx context.Context, id, contentID, version int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND version = ? AND removed_at IS NULL", id, version).
		Updates(map[string]any{
			"content_id": contentID,
			"version":    gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkRemoved 写入删除标记，已删除的评论不受影响，返回本次是否生效
func (r *CommentRepository) MarkRemoved(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND removed_at IS NULL", id).
		Updates(map[string]any{
			"removed_at": at,
			"version":    gorm.Expr("version + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

// Revisions 评论的全部内容修订，按编辑时间升序
func (r *CommentRepository) Revisions(ctx context.Context, commentID int64) ([]model.CommentContent, error) {
	var revs []model.CommentContent
	err := r.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("edit_date ASC").Order("id ASC").
		Find(&revs).Error
	return revs, err
}
