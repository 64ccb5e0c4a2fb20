package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/dto"
	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/render"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/pkg/response"
)

// maxPreviewBytes 预览请求体上限
const maxPreviewBytes = 1 << 20

// CommentApi 评论API控制器
type CommentApi struct {
	logger    *zap.SugaredLogger
	comments  *service.CommentService
	reactions *service.ReactionService
	users     *service.UserService
	renderer  *render.Renderer
}

// NewCommentApi 创建评论API控制器
func NewCommentApi(
	comments *service.CommentService,
	reactions *service.ReactionService,
	users *service.UserService,
	renderer *render.Renderer,
	logger *zap.SugaredLogger,
) *CommentApi {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CommentApi{
		logger:    logger,
		comments:  comments,
		reactions: reactions,
		users:     users,
		renderer:  renderer,
	}
}

func articleURL(articleID int64) string {
	return "/a/" + strconv.FormatInt(articleID, 10)
}

// Create 发表评论
func (api *CommentApi) Create(c *gin.Context) {
	actor, _, ok := requireActor(c, api.users)
	if !ok {
		return
	}

	var req dto.CommentCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := api.comments.Create(c.Request.Context(), actor, service.CreateInput{
		ArticleID: req.ArticleID.Int64(),
		ReplyTo:   req.Parent(),
		Content:   req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CommentCreatedResponse{ID: dto.ID(comment.ID)})
}

// Get 获取单条评论渲染后的片段
func (api *CommentApi) Get(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrNotFound.Error(), nil)
		return
	}
	actor, user, err := resolveActor(c, api.users)
	if err != nil {
		handleError(c, err)
		return
	}

	thread, comment, err := api.comments.View(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err)
		return
	}

	view := findView(render.Group(thread.Comments, thread.Authors), comment)
	fragment, err := api.renderer.RenderFragment(view, render.Context{
		Viewer:        viewerOf(actor, user),
		ArticleURL:    articleURL(comment.ArticleID),
		ArticleLocked: thread.Article.Content.CommentsLocked,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("X-Fragment-Slot", fragment.Slot)
	response.HTML(c, fragment.HTML)
}

// findView 在评论串中找到目标评论，被丢弃的回复单独构造
func findView(views []render.CommentView, target *model.CommentDetail) render.CommentView {
	for _, v := range views {
		if v.Comment.ID == target.ID {
			return v
		}
		for _, r := range v.Replies {
			if r.Comment.ID == target.ID {
				return r
			}
		}
	}
	v := render.CommentView{Comment: *target}
	if !target.IsReply() {
		v.Replies = []render.CommentView{}
	}
	return v
}

// Edit 编辑评论
func (api *CommentApi) Edit(c *gin.Context) {
	actor, _, ok := requireActor(c, api.users)
	if !ok {
		return
	}

	var req dto.CommentEditRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, err := api.comments.Edit(c.Request.Context(), actor, req.CommentID.Int64(), req.Content); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}

// Delete 删除评论
func (api *CommentApi) Delete(c *gin.Context) {
	actor, _, ok := requireActor(c, api.users)
	if !ok {
		return
	}
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrNotFound.Error(), nil)
		return
	}

	if err := api.comments.Remove(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}

// Preview 预览markdown，请求体为原始markdown，也接受 content 查询参数
func (api *CommentApi) Preview(c *gin.Context) {
	source := c.Query("content")
	if source == "" && c.Request.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPreviewBytes))
		if err != nil {
			response.Text(c, http.StatusRequestEntityTooLarge, "content is too long", err)
			return
		}
		source = string(body)
	}

	html, err := api.renderer.RenderPreview(source)
	if err != nil {
		handleError(c, err)
		return
	}
	response.HTML(c, html)
}

// Thread 文章的完整评论区
func (api *CommentApi) Thread(c *gin.Context) {
	articleID, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}
	actor, user, err := resolveActor(c, api.users)
	if err != nil {
		handleError(c, err)
		return
	}

	thread, err := api.comments.Thread(c.Request.Context(), articleID, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	html, err := api.renderer.RenderList(render.Group(thread.Comments, thread.Authors), render.Context{
		Viewer:        viewerOf(actor, user),
		ArticleURL:    articleURL(articleID),
		ArticleLocked: thread.Article.Content.CommentsLocked,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.HTML(c, html)
}

// Count 文章未删除的评论数
func (api *CommentApi) Count(c *gin.Context) {
	articleID, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}
	actor, _, err := resolveActor(c, api.users)
	if err != nil {
		handleError(c, err)
		return
	}

	n, err := api.comments.PublicCount(c.Request.Context(), articleID, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CommentCountResponse{Count: n})
}

// History 评论的编辑历史
func (api *CommentApi) History(c *gin.Context) {
	actor, _, ok := requireActor(c, api.users)
	if !ok {
		return
	}
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrNotFound.Error(), nil)
		return
	}

	revs, err := api.comments.History(c.Request.Context(), actor, id)
	if err != nil {
		handleError(c, err)
		return
	}
	list := make([]dto.RevisionResponse, 0, len(revs))
	for _, r := range revs {
		list = append(list, dto.RevisionResponse{ID: dto.ID(r.ID), EditDate: r.EditDate, Content: r.Content})
	}
	response.Success(c, "获取成功", list)
}

// ToggleReaction 切换表态
func (api *CommentApi) ToggleReaction(c *gin.Context) {
	actor, _, ok := requireActor(c, api.users)
	if !ok {
		return
	}
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrNotFound.Error(), nil)
		return
	}

	var req dto.ReactionRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := api.reactions.Toggle(c.Request.Context(), actor, id, req.Kind)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reactions 评论的表态统计
func (api *CommentApi) Reactions(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrNotFound.Error(), nil)
		return
	}
	counts, err := api.reactions.Counts(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
