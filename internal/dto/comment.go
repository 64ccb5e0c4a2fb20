package dto

import "time"

// CommentCreateRequest 发表评论请求，reply_to 与旧客户端使用的 response_to 等价
type CommentCreateRequest struct {
	ArticleID  ID     `json:"article_id" form:"article_id" binding:"required"`
	ReplyTo    *ID    `json:"reply_to" form:"reply_to"`
	ResponseTo *ID    `json:"response_to" form:"response_to"`
	Content    string `json:"content" form:"content" binding:"maxbytes=65536"`
}

// Parent 回复的评论
func (r *CommentCreateRequest) Parent() *int64 {
	if p := r.ReplyTo.Ptr(); p != nil {
		return p
	}
	return r.ResponseTo.Ptr()
}

// CommentEditRequest 编辑评论请求
type CommentEditRequest struct {
	CommentID ID     `json:"comment_id" form:"comment_id" binding:"required"`
	Content   string `json:"content" form:"content" binding:"maxbytes=65536"`
}

// CommentCreatedResponse 发表成功后返回的评论ID
type CommentCreatedResponse struct {
	ID ID `json:"id"`
}

// CommentCountResponse 评论数
type CommentCountResponse struct {
	Count int64 `json:"count"`
}

// ReactionRequest 切换表态请求
type ReactionRequest struct {
	Kind string `json:"kind" form:"kind" binding:"required,max=32"`
}

// RevisionResponse 内容修订
type RevisionResponse struct {
	ID       ID        `json:"id"`
	EditDate time.Time `json:"edit_date"`
	Content  string    `json:"content"`
}
