package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
	"gorm.io/gorm"
)

// IDs 测试共用的ID节点，服务与夹具共享以避免重复ID
var IDs = idgen.MustNew(1)

// ArticleOption 文章夹具选项
type ArticleOption func(*model.ArticleContent)

// Locked 关闭评论
func Locked() ArticleOption {
	return func(c *model.ArticleContent) { c.CommentsLocked = true }
}

// Private 非公开文章
func Private() ArticleOption {
	return func(c *model.ArticleContent) { c.Public = false }
}

// CreateUser 创建测试用户
func CreateUser(t *testing.T, db *gorm.DB, login string, admin bool) *model.User {
	t.Helper()

	user := &model.User{
		Base:      model.Base{ID: IDs.Next()},
		Login:     login,
		HTMLURL:   fmt.Sprintf("https://github.com/%s", login),
		AvatarURL: fmt.Sprintf("/avatar/%s", login),
		Admin:     admin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

// CreateArticle 创建测试文章，默认公开且开放评论
func CreateArticle(t *testing.T, db *gorm.DB, opts ...ArticleOption) *model.ArticleDetail {
	t.Helper()

	now := time.Now().UTC()
	articleID := IDs.Next()
	content := model.ArticleContent{
		ID:        IDs.Next(),
		ArticleID: articleID,
		EditDate:  now,
		Title:     "Test article",
		Body:      "body",
		Public:    true,
	}
	for _, opt := range opts {
		opt(&content)
	}
	article := model.Article{ID: articleID, PostDate: now, ContentID: content.ID}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&content).Error; err != nil {
			return err
		}
		return tx.Create(&article).Error
	})
	if err != nil {
		t.Fatalf("创建测试文章失败: %v", err)
	}
	return &model.ArticleDetail{Article: article, Content: content}
}
