package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/internal/testutil"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
	"github.com/nsxzhou1114/blog-comment/pkg/cache"
)

type env struct {
	db       *gorm.DB
	store    *store.Store
	mr       *miniredis.Miniredis
	manager  *cache.Manager
	comments *service.CommentService
	alice    service.Actor
	bob      service.Actor
	admin    service.Actor
}

func newEnv(t *testing.T, cooldown time.Duration) *env {
	t.Helper()

	db := testutil.SetupTestDB(t)
	client, mr := testutil.SetupTestRedis(t)
	manager, err := cache.NewManager(client, cache.Options{Cooldown: cooldown, BloomCapacity: 10000, BloomFPRate: 0.0001})
	require.NoError(t, err)

	s := store.New(db)
	comments := service.NewCommentService(service.CommentDeps{
		Store:    s,
		IDs:      testutil.IDs,
		Limits:   validation.NewLimits(map[string]int{"comment": 16, "article": 32}),
		Counters: manager.Counters(),
		Cooldown: manager.Cooldown(),
	})

	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)
	root := testutil.CreateUser(t, db, "root", true)

	return &env{
		db:       db,
		store:    s,
		mr:       mr,
		manager:  manager,
		comments: comments,
		alice:    service.Actor{ID: alice.ID},
		bob:      service.Actor{ID: bob.ID},
		admin:    service.Actor{ID: root.ID, Admin: true},
	}
}

func ptr(v int64) *int64 { return &v }

func TestCommentService_Create(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, article.ID, c.ArticleID)
	assert.Equal(t, e.alice.ID, c.AuthorID)
	assert.Nil(t, c.ReplyTo)
	assert.Equal(t, "hello", c.Content)
	assert.False(t, c.Edited())

	stored, err := e.comments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ContentID, stored.ContentID)
	assert.Equal(t, "hello", stored.Content)

	revs, err := e.comments.History(ctx, e.alice, c.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, c.ContentID, revs[0].ID)

	reply, err := e.comments.Create(ctx, e.bob, service.CreateInput{ArticleID: article.ID, ReplyTo: &c.ID, Content: "re"})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, c.ID, *reply.ReplyTo)
	assert.Greater(t, reply.ID, c.ID, "父评论ID总是小于回复")
}

func TestCommentService_CreateErrors(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)
	other := testutil.CreateArticle(t, e.db)
	locked := testutil.CreateArticle(t, e.db, testutil.Locked())
	private := testutil.CreateArticle(t, e.db, testutil.Private())

	foreign, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: other.ID, Content: "elsewhere"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor service.Actor
		in    service.CreateInput
		want  error
	}{
		{name: "文章不存在", actor: e.alice, in: service.CreateInput{ArticleID: 1, Content: "x"}, want: service.ErrArticleNotFound},
		{name: "非公开文章", actor: e.alice, in: service.CreateInput{ArticleID: private.ID, Content: "x"}, want: service.ErrArticleNotFound},
		{name: "评论已锁定", actor: e.alice, in: service.CreateInput{ArticleID: locked.ID, Content: "x"}, want: service.ErrArticleLocked},
		{name: "管理员也不能在锁定文章下评论", actor: e.admin, in: service.CreateInput{ArticleID: locked.ID, Content: "x"}, want: service.ErrArticleLocked},
		{name: "内容为空", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, Content: " \n\t"}, want: validation.ErrEmpty},
		{name: "顶层评论超长", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, Content: strings.Repeat("a", 33)}, want: validation.ErrTooLong},
		{name: "回复超长", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, ReplyTo: &foreign.ID, Content: strings.Repeat("a", 17)}, want: service.ErrValidationFailed},
		{name: "多字节字符按字节计", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, Content: strings.Repeat("你", 11)}, want: validation.ErrTooLong},
		{name: "父评论不存在", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, ReplyTo: ptr(12345), Content: "x"}, want: service.ErrParentNotFound},
		{name: "父评论属于其他文章", actor: e.alice, in: service.CreateInput{ArticleID: article.ID, ReplyTo: &foreign.ID, Content: "x"}, want: service.ErrParentNotFound},
		{name: "未登录", actor: service.Anonymous, in: service.CreateInput{ArticleID: article.ID, Content: "x"}, want: service.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.comments.Create(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := e.comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "失败的请求不会写入评论")

	_, err = e.comments.Create(ctx, e.admin, service.CreateInput{ArticleID: private.ID, Content: "draft note"})
	assert.NoError(t, err, "管理员可以在非公开文章下评论")
}

func TestCommentService_Edit(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "first"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	edited, err := e.comments.Edit(ctx, e.alice, c.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, c.ID, edited.ID)
	assert.Equal(t, "second", edited.Content)
	assert.True(t, c.PostDate.Equal(edited.PostDate))
	assert.NotEqual(t, c.ContentID, edited.ContentID)
	assert.True(t, edited.Edited())

	_, err = e.comments.Edit(ctx, e.admin, c.ID, "moderated")
	require.NoError(t, err, "管理员可以编辑他人评论")

	_, err = e.comments.Edit(ctx, e.bob, c.ID, "hijack")
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = e.comments.Edit(ctx, e.alice, 999, "x")
	assert.ErrorIs(t, err, service.ErrNotFound)

	before, err := e.comments.Get(ctx, c.ID)
	require.NoError(t, err)
	_, err = e.comments.Edit(ctx, e.alice, c.ID, strings.Repeat("a", 33))
	assert.ErrorIs(t, err, service.ErrValidationFailed)
	after, err := e.comments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ContentID, after.ContentID, "校验失败不移动内容指针")

	revs, err := e.comments.History(ctx, e.alice, c.ID)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, []string{"first", "second", "moderated"}, []string{revs[0].Content, revs[1].Content, revs[2].Content})

	_, err = e.comments.History(ctx, e.bob, c.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestCommentService_RemoveAndCount(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	_, err := e.comments.Create(ctx, e.bob, service.CreateInput{ArticleID: article.ID, Content: "existing"})
	require.NoError(t, err)
	before, err := e.comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), before)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "hello"})
	require.NoError(t, err)
	n, err := e.comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, n)

	_, err = e.comments.Edit(ctx, e.alice, c.ID, "hello again")
	require.NoError(t, err)

	assert.ErrorIs(t, e.comments.Remove(ctx, e.bob, c.ID), service.ErrForbidden)
	require.NoError(t, e.comments.Remove(ctx, e.alice, c.ID))
	require.NoError(t, e.comments.Remove(ctx, e.alice, c.ID), "重复删除是成功的空操作")
	require.NoError(t, e.comments.Remove(ctx, e.admin, c.ID))

	n, err = e.comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, before, n, "创建、编辑、删除后评论数不变")

	row, err := e.store.Comments.GetRow(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, row.Removed(), "评论行保留并带删除标记")
	revs, err := e.store.Comments.Revisions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, revs, 2)

	list, err := e.comments.ListByArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2, "列表包含墓碑")

	_, err = e.comments.Edit(ctx, e.alice, c.ID, "zombie")
	assert.ErrorIs(t, err, service.ErrRemoved)

	assert.ErrorIs(t, e.comments.Remove(ctx, e.alice, 424242), service.ErrNotFound)
}

func TestCommentService_RemoveKeepsReplies(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	parent, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "parent"})
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, e.bob, service.CreateInput{ArticleID: article.ID, ReplyTo: &parent.ID, Content: "child"})
	require.NoError(t, err)
	require.NoError(t, e.comments.Remove(ctx, e.admin, parent.ID))

	thread, err := e.comments.Thread(ctx, article.ID, e.bob)
	require.NoError(t, err)
	require.Len(t, thread.Comments, 2)
	assert.Equal(t, parent.ID, *thread.Comments[1].ReplyTo)
	assert.Contains(t, thread.Authors, e.bob.ID)

	_, _, err = e.comments.View(ctx, parent.ID, e.bob)
	assert.ErrorIs(t, err, service.ErrNotFound, "已删除评论只对管理员可见")
	_, c, err := e.comments.View(ctx, parent.ID, e.admin)
	require.NoError(t, err)
	assert.True(t, c.Removed())
}

func TestCommentService_Cooldown(t *testing.T) {
	e := newEnv(t, 10*time.Second)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "one"})
	require.NoError(t, err)

	_, err = e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "two"})
	require.ErrorIs(t, err, service.ErrCooldown)
	var cd *service.CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Greater(t, cd.Remaining, 9*time.Second)

	_, err = e.comments.Edit(ctx, e.alice, c.ID, "edited")
	assert.ErrorIs(t, err, service.ErrCooldown)

	_, err = e.comments.Create(ctx, e.bob, service.CreateInput{ArticleID: article.ID, Content: "bob"})
	assert.NoError(t, err, "冷却按作者隔离")
	_, err = e.comments.Create(ctx, e.admin, service.CreateInput{ArticleID: article.ID, Content: "a1"})
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, e.admin, service.CreateInput{ArticleID: article.ID, Content: "a2"})
	assert.NoError(t, err, "管理员不受冷却限制")

	e.mr.FastForward(11 * time.Second)
	_, err = e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "three"})
	assert.NoError(t, err)
}

func TestCommentService_ConcurrentEdits(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "v0"})
	require.NoError(t, err)

	contents := []string{"v1", "v2", "v3", "v4"}
	var wg sync.WaitGroup
	errs := make([]error, len(contents))
	for i, content := range contents {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			_, errs[i] = e.comments.Edit(ctx, e.alice, c.ID, content)
		}(i, content)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	revs, err := e.store.Comments.Revisions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, revs, len(contents)+1, "每次编辑都保留修订")

	final, err := e.comments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, contents, final.Content)

	var newest model.CommentContent
	for _, r := range revs {
		if r.ID > newest.ID {
			newest = r
		}
	}
	assert.Equal(t, newest.ID, final.ContentID, "指针指向最后提交的修订")

	row, err := e.store.Comments.GetRow(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(contents)), row.Version)
}

func TestCommentService_EditsSerializeBeyondRetryBudget(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)
	comments := service.NewCommentService(service.CommentDeps{
		Store:       e.store,
		IDs:         testutil.IDs,
		Limits:      validation.NewLimits(map[string]int{"comment": 16, "article": 32}),
		EditRetries: 1,
	})

	c, err := comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "v0"})
	require.NoError(t, err)

	const editors = 12
	var wg sync.WaitGroup
	errs := make([]error, editors)
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = comments.Edit(ctx, e.alice, c.ID, "edit")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err, "同一评论的编辑排队执行，不返回冲突")
	}

	revs, err := e.store.Comments.Revisions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, revs, editors+1)
	row, err := e.store.Comments.GetRow(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(editors), row.Version)
}

func TestCommentService_EditRacingRemove(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	for i := 0; i < 5; i++ {
		c, err := e.comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "race"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var editErr, removeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, editErr = e.comments.Edit(ctx, e.alice, c.ID, "late edit")
		}()
		go func() {
			defer wg.Done()
			removeErr = e.comments.Remove(ctx, e.admin, c.ID)
		}()
		wg.Wait()

		require.NoError(t, removeErr)
		if editErr != nil {
			assert.ErrorIs(t, editErr, service.ErrRemoved)
		}

		row, err := e.store.Comments.GetRow(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, row.Removed(), "删除总是生效")

		_, err = e.comments.Edit(ctx, e.alice, c.ID, "after")
		assert.ErrorIs(t, err, service.ErrRemoved)
	}
}

func TestCommentService_PublicCountUsesArticleFilter(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	comments := service.NewCommentService(service.CommentDeps{
		Store:    e.store,
		IDs:      testutil.IDs,
		Counters: e.manager.Counters(),
		Articles: e.manager.Articles(),
	})

	_, err := comments.PublicCount(ctx, article.ID, service.Anonymous)
	assert.ErrorIs(t, err, service.ErrArticleNotFound, "过滤器未预热时文章视为不存在")

	articles := service.NewArticleService(e.store, testutil.IDs, e.manager.Articles(), nil)
	n, err := articles.WarmUp(ctx, e.manager)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := comments.PublicCount(ctx, article.ID, service.Anonymous)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCommentService_Recount(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	a1 := testutil.CreateArticle(t, e.db)
	a2 := testutil.CreateArticle(t, e.db)

	for i := 0; i < 3; i++ {
		_, err := e.comments.Create(ctx, e.admin, service.CreateInput{ArticleID: a1.ID, Content: "x"})
		require.NoError(t, err)
	}

	// 缓存中写入错误的值，重算后恢复
	require.NoError(t, e.manager.Counters().Set(ctx, a1.ID, 99))
	n, err := e.comments.Recount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := e.comments.Count(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	count, err = e.comments.Count(ctx, a2.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// raceCache 在评论数回填前执行一次 before，模拟回源与写入交错
type raceCache struct {
	cache.Cache
	once   sync.Once
	before func()
}

func (c *raceCache) SetIfEqual(ctx context.Context, guardKey, guard, key string, value any, expiration time.Duration) (bool, error) {
	c.once.Do(c.before)
	return c.Cache.SetIfEqual(ctx, guardKey, guard, key, value, expiration)
}

func TestCommentService_CountSurvivesInterleavedWrites(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)
	client, _ := testutil.SetupTestRedis(t)

	hook := &raceCache{Cache: cache.NewRedisCache(client)}
	comments := service.NewCommentService(service.CommentDeps{
		Store:    e.store,
		IDs:      testutil.IDs,
		Counters: cache.NewCounterCache(hook, time.Minute, nil),
	})

	var created *model.CommentDetail
	hook.before = func() {
		var err error
		created, err = comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "late"})
		require.NoError(t, err)
	}

	n, err := comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "回源发生在写入之前")

	n, err = comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "旧值不能覆盖写入后的失效")

	// 重算期间发生删除，重算结果不写回
	hook.once = sync.Once{}
	hook.before = func() {
		require.NoError(t, comments.Remove(ctx, e.alice, created.ID))
	}
	_, err = comments.Recount(ctx)
	require.NoError(t, err)

	n, err = comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommentService_SensitiveMask(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	article := testutil.CreateArticle(t, e.db)

	filter := service.NewSensitiveService(nil)
	filter.AddWords("spam")
	comments := service.NewCommentService(service.CommentDeps{Store: e.store, IDs: testutil.IDs, Sensitive: filter})

	c, err := comments.Create(ctx, e.alice, service.CreateInput{ArticleID: article.ID, Content: "buy spam now"})
	require.NoError(t, err)
	assert.Equal(t, "buy **** now", c.Content)
}
