// Package store 内容存储层：评论与文章的只追加修订、内容指针与删除标记。
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
)

// Store 聚合各仓储，共享同一个连接或事务
type Store struct {
	db        *gorm.DB
	Comments  *CommentRepository
	Articles  *ArticleRepository
	Reactions *ReactionRepository
	Users     *UserRepository
}

// New 创建存储
func New(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Comments:  &CommentRepository{db: db},
		Articles:  &ArticleRepository{db: db},
		Reactions: &ReactionRepository{db: db},
		Users:     &UserRepository{db: db},
	}
}

// DB 底层连接
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction 在事务中执行 fn，fn 内只能使用传入的 Store
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
