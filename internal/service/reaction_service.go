package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
)

// ReactionKinds 允许的表态类型
var ReactionKinds = map[string]struct{}{
	"+1":       {},
	"-1":       {},
	"heart":    {},
	"laugh":    {},
	"hooray":   {},
	"confused": {},
	"eyes":     {},
	"rocket":   {},
}

// ReactionService 表态服务，同一作者对同一评论的同一类型表态只能有一条
type ReactionService struct {
	store *store.Store
	ids   *idgen.Node
}

// NewReactionService 创建表态服务
func NewReactionService(s *store.Store, ids *idgen.Node) *ReactionService {
	if ids == nil {
		ids = idgen.Default()
	}
	return &ReactionService{store: s, ids: ids}
}

// ReactionResult 切换表态后的状态
type ReactionResult struct {
	Active bool             `json:"active"`
	Counts map[string]int64 `json:"counts"`
}

// Toggle 切换表态：没有则添加，已有则撤销，撤销后再次切换重新生效
func (s *ReactionService) Toggle(ctx context.Context, actor Actor, commentID int64, kind string) (*ReactionResult, error) {
	if !actor.LoggedIn() {
		return nil, ErrForbidden
	}
	if _, ok := ReactionKinds[kind]; !ok {
		return nil, ErrInvalidReaction
	}

	comment, err := s.store.Comments.GetRow(ctx, commentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取评论失败: %w", err)
	}
	if comment.Removed() {
		return nil, ErrRemoved
	}

	var active bool
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		existing, err := tx.Reactions.Find(ctx, commentID, actor.ID, kind)
		if errors.Is(err, store.ErrNotFound) {
			active = true
			return tx.Reactions.Insert(ctx, &model.Reaction{
				ID:        s.ids.Next(),
				CommentID: commentID,
				AuthorID:  actor.ID,
				Kind:      kind,
				CreatedAt: time.Now().UTC(),
			})
		}
		if err != nil {
			return err
		}
		if existing.RemovedAt == nil {
			now := time.Now().UTC()
			return tx.Reactions.SetRemoved(ctx, existing.ID, &now)
		}
		active = true
		return tx.Reactions.SetRemoved(ctx, existing.ID, nil)
	})
	if errors.Is(err, store.ErrDuplicate) {
		// 并发的首次表态已经写入，结果同样是生效
		active, err = true, nil
	}
	if err != nil {
		return nil, fmt.Errorf("切换表态失败: %w", err)
	}

	counts, err := s.Counts(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return &ReactionResult{Active: active, Counts: counts}, nil
}

// Counts 评论各类型的有效表态数
func (s *ReactionService) Counts(ctx context.Context, commentID int64) (map[string]int64, error) {
	counts, err := s.store.Reactions.Counts(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("统计表态失败: %w", err)
	}
	return counts, nil
}
