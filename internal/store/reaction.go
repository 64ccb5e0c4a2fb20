package store

import (
	"context"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"gorm.io/gorm"
)

// ReactionRepository 表态仓储
type ReactionRepository struct {
	db *gorm.DB
}

// Find 查找 (评论, 作者, 类型) 对应的表态，包括已撤销的
func (r *ReactionRepository) Find(ctx context.Context, commentID, authorID int64, kind string) (*model.Reaction, error) {
	var re model.Reaction
	err := r.db.WithContext(ctx).
		Where("comment_id = ? AND author_id = ? AND kind = ?", commentID, authorID, kind).
		Take(&re).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &re, nil
}

// Insert 新增表态，(评论, 作者, 类型) 已存在时返回 ErrDuplicate
func (r *ReactionRepository) Insert(ctx context.Context, re *model.Reaction) error {
	return duplicate(r.db.WithContext(ctx).Create(re).Error)
}

// SetRemoved 设置或清除撤销标记
func (r *ReactionRepository) SetRemoved(ctx context.Context, id int64, at *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("id = ?", id).
		Update("removed_at", at).Error
}

type kindCount struct {
	Kind string
	N    int64
}

// Counts 评论各类型有效表态的数量
func (r *ReactionRepository) Counts(ctx context.Context, commentID int64) (map[string]int64, error) {
	var rows []kindCount
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Select("kind, COUNT(*) AS n").
		Where("comment_id = ? AND removed_at IS NULL", commentID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.N
	}
	return counts, nil
}
