package model

import "time"

// Comment 评论。内容通过 ContentID 指向最新的 CommentContent 修订，
// 删除只写入 RemovedAt，任何记录都不会被物理删除
type Comment struct {
	ID        int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ArticleID int64      `gorm:"not null;index:idx_comment_article_date,priority:1" json:"article_id,string"`
	ReplyTo   *int64     `gorm:"index" json:"reply_to,string,omitempty"`
	AuthorID  int64      `gorm:"not null;index" json:"author_id,string"`
	PostDate  time.Time  `gorm:"not null;index:idx_comment_article_date,priority:2" json:"post_date"`
	ContentID int64      `gorm:"not null" json:"content_id,string"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	// Version 每次移动内容指针或标记删除时递增，用于乐观并发控制
	Version int64 `gorm:"not null;default:0" json:"-"`
}

// TableName 指定表名
func (Comment) TableName() string {
	return "comment"
}

// Removed 是否已删除
func (c *Comment) Removed() bool {
	return c.RemovedAt != nil
}

// IsReply 是否为回复
func (c *Comment) IsReply() bool {
	return c.ReplyTo != nil
}

// CommentContent 评论内容修订，只追加
type CommentContent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	CommentID int64     `gorm:"not null;index" json:"comment_id,string"`
	EditDate  time.Time `gorm:"not null" json:"edit_date"`
	Content   string    `gorm:"type:text;not null" json:"content"`
}

// TableName 指定表名
func (CommentContent) TableName() string {
	return "comment_content"
}

// CommentDetail 评论与其当前内容的联合视图
type CommentDetail struct {
	Comment
	EditDate time.Time `json:"edit_date"`
	Content  string    `json:"content"`
}

// Edited 当前内容是否晚于发布时间
func (d *CommentDetail) Edited() bool {
	return d.EditDate.After(d.PostDate)
}

// Reaction 对评论的表态，(评论, 作者, 类型) 唯一
type Reaction struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	CommentID int64     `gorm:"not null;uniqueIndex:idx_reaction_unique,priority:1" json:"comment_id,string"`
	AuthorID  int64     `gorm:"not null;uniqueIndex:idx_reaction_unique,priority:2" json:"author_id,string"`
	Kind      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_reaction_unique,priority:3" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	// RemovedAt 撤销表态时写入，再次表态时清空
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// TableName 指定表名
func (Reaction) TableName() string {
	return "reaction"
}
