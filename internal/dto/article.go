package dto

import "time"

// ArticleRequest 创建或更新文章
type ArticleRequest struct {
	Title          string   `json:"title" binding:"required,max=255"`
	Description    string   `json:"description"`
	CoverURL       string   `json:"cover_url" binding:"omitempty,url,max=255"`
	Body           string   `json:"body"`
	Tags           []string `json:"tags" binding:"max=20,dive,max=32"`
	Public         bool     `json:"public"`
	Sponsor        bool     `json:"sponsor"`
	CommentsLocked bool     `json:"comments_locked"`
}

// ArticleLockRequest 锁定或解锁评论
type ArticleLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// ArticleResponse 文章及当前内容
type ArticleResponse struct {
	ID             ID        `json:"id"`
	PostDate       time.Time `json:"post_date"`
	EditDate       time.Time `json:"edit_date"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CoverURL       string    `json:"cover_url"`
	Body           string    `json:"body,omitempty"`
	Tags           []string  `json:"tags"`
	Public         bool      `json:"public"`
	Sponsor        bool      `json:"sponsor"`
	CommentsLocked bool      `json:"comments_locked"`
	Comments       int64     `json:"comments"`
}

// ArticleRevisionResponse 文章修订
type ArticleRevisionResponse struct {
	ID       ID        `json:"id"`
	EditDate time.Time `json:"edit_date"`
	Title    string    `json:"title"`
	Public   bool      `json:"public"`
	Locked   bool      `json:"comments_locked"`
}
