package service_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/internal/testutil"
)

func TestArticleService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	articles := service.NewArticleService(store.New(db), testutil.IDs, nil, nil)

	a, err := articles.Create(ctx, service.ArticleInput{
		Title:  "Hello",
		Body:   "body",
		Tags:   []string{" go ", "", "blog"},
		Public: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "go,blog", a.Content.Tags)
	assert.Equal(t, a.ContentID, a.Content.ID)

	locked, err := articles.SetCommentsLocked(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, locked.Content.CommentsLocked)
	assert.Equal(t, "Hello", locked.Content.Title)
	assert.NotEqual(t, a.ContentID, locked.ContentID)

	same, err := articles.SetCommentsLocked(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Equal(t, locked.ContentID, same.ContentID, "状态未变化时不追加修订")

	hidden, err := articles.Update(ctx, a.ID, service.ArticleInput{Title: "Hidden", Public: false})
	require.NoError(t, err)
	assert.False(t, hidden.Content.Public)

	_, err = articles.Get(ctx, a.ID, service.Anonymous)
	assert.ErrorIs(t, err, service.ErrArticleNotFound)
	_, err = articles.Get(ctx, a.ID, service.Actor{ID: 1, Admin: true})
	assert.NoError(t, err)

	public, err := articles.List(ctx, service.Anonymous)
	require.NoError(t, err)
	assert.Empty(t, public)
	all, err := articles.List(ctx, service.Actor{ID: 1, Admin: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	revs, err := articles.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, revs, 3)

	_, err = articles.Update(ctx, 777, service.ArticleInput{Title: "x"})
	assert.ErrorIs(t, err, service.ErrArticleNotFound)
}

func TestReactionService_Toggle(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)
	reactions := service.NewReactionService(e.store, testutil.IDs)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "hi"})
	require.NoError(t, err)

	res, err := reactions.Toggle(ctx, e.bob, c.ID, "heart")
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, int64(1), res.Counts["heart"])

	res, err = reactions.Toggle(ctx, e.alice, c.ID, "heart")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Counts["heart"])

	res, err = reactions.Toggle(ctx, e.bob, c.ID, "heart")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, int64(1), res.Counts["heart"])

	res, err = reactions.Toggle(ctx, e.bob, c.ID, "heart")
	require.NoError(t, err)
	assert.True(t, res.Active, "撤销后可以重新表态")
	assert.Equal(t, int64(2), res.Counts["heart"])

	_, err = reactions.Toggle(ctx, e.bob, c.ID, "bogus")
	assert.ErrorIs(t, err, service.ErrInvalidReaction)
	_, err = reactions.Toggle(ctx, service.Anonymous, c.ID, "heart")
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = reactions.Toggle(ctx, e.bob, 31337, "heart")
	assert.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, e.comments.Remove(ctx, e.alice, c.ID))
	_, err = reactions.Toggle(ctx, e.bob, c.ID, "eyes")
	assert.ErrorIs(t, err, service.ErrRemoved)
}

func TestReactionService_ConcurrentFirstToggle(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)
	reactions := service.NewReactionService(e.store, testutil.IDs)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "hi"})
	require.NoError(t, err)

	// 在本次写入之前插入同一表态，模拟并发的首次表态先提交
	var once sync.Once
	err = e.db.Callback().Create().Before("gorm:create").Register("test:concurrent_reaction", func(tx *gorm.DB) {
		if tx.Statement.Table != "reaction" {
			return
		}
		once.Do(func() {
			tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO reaction (id, comment_id, author_id, kind, created_at) VALUES (?, ?, ?, ?, ?)",
				testutil.IDs.Next(), c.ID, e.bob.ID, "heart", time.Now().UTC())
		})
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.db.Callback().Create().Remove("test:concurrent_reaction") })

	res, err := reactions.Toggle(ctx, e.bob, c.ID, "heart")
	require.NoError(t, err)
	assert.True(t, res.Active)
}

func TestUserService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	users := service.NewUserService(store.New(db), testutil.IDs, nil)

	u, err := users.Create(ctx, "carol", "https://github.com/carol", false)
	require.NoError(t, err)
	assert.Equal(t, "/avatar/carol", u.AvatarURL)

	_, err = users.Create(ctx, "carol", "", false)
	assert.ErrorIs(t, err, service.ErrValidationFailed)
	_, err = users.Create(ctx, "  ", "", false)
	assert.ErrorIs(t, err, service.ErrValidationFailed)

	actor, _, err := users.Actor(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, actor.Admin)

	require.NoError(t, users.SetAdmin(ctx, u.ID, true))
	actor, _, err = users.Actor(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, actor.Admin)
	assert.Equal(t, u.ID, actor.ID)

	assert.ErrorIs(t, users.SetAdmin(ctx, 5, true), service.ErrUserNotFound)
	_, _, err = users.Actor(ctx, 5)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	byLogin, err := users.GetByLogin(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byLogin.ID)

	list, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSensitiveService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	content := base64.StdEncoding.EncodeToString([]byte("badword")) + "\n\nnot-base64!!\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s := service.NewSensitiveService(nil)
	assert.False(t, s.Contains("badword"), "空词典不过滤")
	require.NoError(t, s.LoadFile(path))

	assert.True(t, s.Contains("a badword here"))
	assert.Equal(t, []string{"badword"}, s.Find("a badword here"))
	assert.Equal(t, "a ******* here\nkeep  spacing", s.Mask("a badword here\nkeep  spacing"))
	assert.Equal(t, "clean text", s.Mask("clean text"))

	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.txt")))
}
