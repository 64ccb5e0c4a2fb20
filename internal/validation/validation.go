package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrInvalid 内容校验失败
	ErrInvalid = errors.New("validation failed")
	// ErrEmpty 内容为空（去除空白后）
	ErrEmpty = fmt.Errorf("%w: no content provided", ErrInvalid)
	// ErrTooLong 内容字节数超过上限
	ErrTooLong = fmt.Errorf("%w: content is too long", ErrInvalid)
)

// Surface 内容提交入口，不同入口可以有不同的长度上限
type Surface string

const (
	// SurfaceComment 评论发布与编辑
	SurfaceComment Surface = "comment"
	// SurfaceArticle 文章下的顶层评论
	SurfaceArticle Surface = "article"
)

// SurfaceFor 评论所属的入口：回复走评论上限，顶层评论走文章上限
func SurfaceFor(isReply bool) Surface {
	if isReply {
		return SurfaceComment
	}
	return SurfaceArticle
}

const (
	DefaultCommentLimit = 5000
	DefaultArticleLimit = 10000
)

// Length 内容长度，按UTF-8字节计
func Length(content string) int {
	return len(content)
}

// ValidateContent 校验内容：去除空白后不能为空，字节数不能超过 limit
func ValidateContent(content string, limit int) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmpty
	}
	if Length(content) > limit {
		return ErrTooLong
	}
	return nil
}

// Limits 各入口的长度上限，支持配置热更新
type Limits struct {
	mu     sync.RWMutex
	limits map[Surface]int
}

// NewLimits 创建上限表，缺省项使用默认值
func NewLimits(cfg map[string]int) *Limits {
	l := &Limits{}
	l.Update(cfg)
	return l
}

// Update 替换上限表
func (l *Limits) Update(cfg map[string]int) {
	limits := map[Surface]int{
		SurfaceComment: DefaultCommentLimit,
		SurfaceArticle: DefaultArticleLimit,
	}
	for k, v := range cfg {
		if v > 0 {
			limits[Surface(k)] = v
		}
	}
	l.mu.Lock()
	l.limits = limits
	l.mu.Unlock()
}

// For 获取入口的上限，未知入口回退到评论上限
func (l *Limits) For(s Surface) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.limits[s]; ok {
		return v
	}
	return l.limits[SurfaceComment]
}

// Validate 按入口上限校验内容
func (l *Limits) Validate(s Surface, content string) error {
	return ValidateContent(content, l.For(s))
}
