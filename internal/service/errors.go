package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/validation"
)

// 评论引擎的错误分类，错误信息会原样返回给客户端
var (
	ErrValidationFailed = validation.ErrInvalid
	ErrArticleNotFound  = errors.New("article not found")
	ErrArticleLocked    = errors.New("comments are locked for this article")
	ErrParentNotFound   = errors.New("parent comment not found")
	ErrNotFound         = errors.New("comment not found")
	ErrForbidden        = errors.New("forbidden")
	ErrRemoved          = errors.New("deleted comment")
	ErrConflict         = errors.New("comment was modified concurrently, retry")
	ErrCooldown         = errors.New("cooldown")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidReaction  = errors.New("invalid reaction")
)

// CooldownError 作者仍在冷却期内
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("wait %s before retrying", e.Remaining.Round(time.Second))
}

// Is 使 errors.Is(err, ErrCooldown) 成立
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// Actor 发起操作的作者
type Actor struct {
	ID    int64
	Admin bool
}

// Anonymous 未登录访问者
var Anonymous = Actor{}

// LoggedIn 是否已登录
func (a Actor) LoggedIn() bool {
	return a.ID != 0
}

// canModify 作者本人或管理员
func (a Actor) canModify(authorID int64) bool {
	return a.LoggedIn() && (a.ID == authorID || a.Admin)
}
