package model

import (
	"strings"
	"time"
)

// Article 文章，正文保存在只追加的 ArticleContent 修订中
type Article struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	PostDate  time.Time `gorm:"not null;index" json:"post_date"`
	ContentID int64     `gorm:"not null" json:"content_id,string"`
}

// TableName 指定表名
func (Article) TableName() string {
	return "article"
}

// ArticleContent 文章内容修订
type ArticleContent struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ArticleID      int64     `gorm:"not null;index" json:"article_id,string"`
	EditDate       time.Time `gorm:"not null" json:"edit_date"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	CoverURL       string    `gorm:"type:varchar(255)" json:"cover_url"`
	Body           string    `gorm:"type:text" json:"body"`
	Tags           string    `gorm:"type:varchar(255)" json:"tags"` // 逗号分隔
	Public         bool      `gorm:"not null;default:false" json:"public"`
	Sponsor        bool      `gorm:"not null;default:false" json:"sponsor"`
	CommentsLocked bool      `gorm:"not null;default:false" json:"comments_locked"`
}

// TableName 指定表名
func (ArticleContent) TableName() string {
	return "article_content"
}

// TagList 返回去除空白后的标签列表
func (c *ArticleContent) TagList() []string {
	var tags []string
	for _, t := range strings.Split(c.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ArticleDetail 文章及其当前内容
type ArticleDetail struct {
	Article
	Content ArticleContent `gorm:"-" json:"content"`
}
