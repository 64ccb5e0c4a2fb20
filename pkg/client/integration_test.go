package client_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsxzhou1114/blog-comment/internal/render"
	"github.com/nsxzhou1114/blog-comment/internal/router"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/internal/testutil"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
	"github.com/nsxzhou1114/blog-comment/pkg/auth"
	"github.com/nsxzhou1114/blog-comment/pkg/cache"
	"github.com/nsxzhou1114/blog-comment/pkg/client"
)

// 对真实路由跑一遍发表、回复、编辑、删除
func TestEngine_AgainstServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.RegisterGin())

	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)
	manager, err := cache.NewManager(rdb, cache.Options{})
	require.NoError(t, err)
	s := store.New(db)
	limits := validation.NewLimits(nil)
	md, err := render.NewMarkdown(render.EngineGoldmark)
	require.NoError(t, err)

	comments := service.NewCommentService(service.CommentDeps{Store: s, IDs: testutil.IDs, Limits: limits, Counters: manager.Counters()})
	articles := service.NewArticleService(s, testutil.IDs, nil, nil)
	signer := auth.NewSigner("secret", "blog-comment", time.Hour)
	srv := httptest.NewServer(router.New(router.Deps{
		Comments:  comments,
		Articles:  articles,
		Reactions: service.NewReactionService(s, testutil.IDs),
		Users:     service.NewUserService(s, testutil.IDs, nil),
		Renderer:  render.NewRenderer(md, limits),
		Signer:    signer,
	}))
	defer srv.Close()

	alice := testutil.CreateUser(t, db, "alice", false)
	article, err := articles.Create(context.Background(), service.ArticleInput{Title: "t", Public: true})
	require.NoError(t, err)
	token, _, err := signer.Issue(alice.ID, auth.RoleUser)
	require.NoError(t, err)

	// 页面初始内容来自评论串接口
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/article/%d/comments", srv.URL, article.ID), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	list, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view, err := client.NewDocumentView(`<div id="comments"><span id="comment-count">0</span>` + string(list) + `</div>`)
	require.NoError(t, err)
	engine := client.NewEngine(
		client.Config{ArticleID: article.ID},
		client.NewHTTPTransport(srv.URL, token, 5*time.Second),
		view,
		client.NewMemoryStorage(),
		client.ConfirmFunc(func(int64) bool { return true }),
	)
	require.NoError(t, engine.Load(""))
	ctx := context.Background()

	engine.Input(client.Editor{Row: client.NullRow, Action: "post"}, "first **post**")
	require.NoError(t, engine.Post(ctx, nil))
	assert.Equal(t, 1, view.Count())

	all, err := comments.ListByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	root := all[0].ID
	assert.True(t, view.Has(client.FragmentID(root)))
	assert.True(t, view.Has(client.RepliesSlot(root)))

	engine.ToggleReply(root)
	engine.Input(client.Editor{Row: client.RowKey(&root), Action: "post"}, "a reply")
	require.NoError(t, engine.Post(ctx, &root))
	assert.Equal(t, 2, view.Count())

	engine.ToggleEdit(root)
	engine.Input(client.Editor{Row: client.RowKey(&root), Action: "edit"}, "edited")
	require.NoError(t, engine.Edit(ctx, root))
	assert.Contains(t, view.HTML(), "edited")
	assert.Contains(t, view.HTML(), "a reply", "替换后的根评论带着回复")

	require.NoError(t, engine.Delete(ctx, root))
	assert.Equal(t, 1, view.Count())
	assert.False(t, view.Has(client.FragmentID(root)))

	n, err := comments.Count(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "页面计数与服务端一致")
}
