package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/dto"
	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/pkg/response"
)

// ArticleApi 文章控制器
type ArticleApi struct {
	logger   *zap.SugaredLogger
	articles *service.ArticleService
	comments *service.CommentService
	users    *service.UserService
}

// NewArticleApi 创建文章控制器
func NewArticleApi(articles *service.ArticleService, comments *service.CommentService, users *service.UserService, logger *zap.SugaredLogger) *ArticleApi {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ArticleApi{logger: logger, articles: articles, comments: comments, users: users}
}

func articleInput(in dto.ArticleRequest) service.ArticleInput {
	return service.ArticleInput{
		Title:          in.Title,
		Description:    in.Description,
		CoverURL:       in.CoverURL,
		Body:           in.Body,
		Tags:           in.Tags,
		Public:         in.Public,
		Sponsor:        in.Sponsor,
		CommentsLocked: in.CommentsLocked,
	}
}

func toArticleResponse(a *model.ArticleDetail, comments int64, withBody bool) dto.ArticleResponse {
	resp := dto.ArticleResponse{
		ID:             dto.ID(a.ID),
		PostDate:       a.PostDate,
		EditDate:       a.Content.EditDate,
		Title:          a.Content.Title,
		Description:    a.Content.Description,
		CoverURL:       a.Content.CoverURL,
		Tags:           a.Content.TagList(),
		Public:         a.Content.Public,
		Sponsor:        a.Content.Sponsor,
		CommentsLocked: a.Content.CommentsLocked,
		Comments:       comments,
	}
	if withBody {
		resp.Body = a.Content.Body
	}
	return resp
}

// Create 创建文章
func (api *ArticleApi) Create(c *gin.Context) {
	var req dto.ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := api.articles.Create(c.Request.Context(), articleInput(req))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "创建成功", toArticleResponse(article, 0, true))
}

// Update 更新文章内容
func (api *ArticleApi) Update(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}
	var req dto.ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := api.articles.Update(c.Request.Context(), id, articleInput(req))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "更新成功", toArticleResponse(article, 0, true))
}

// Lock 锁定或解锁评论
func (api *ArticleApi) Lock(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}
	var req dto.ArticleLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := api.articles.SetCommentsLocked(c.Request.Context(), id, *req.Locked)
	if err != nil {
		handleError(c, err)
		return
	}
	api.logger.Infow("评论锁定状态已更新", "article_id", id, "locked", *req.Locked)
	response.Success(c, "更新成功", toArticleResponse(article, 0, false))
}

// Get 获取文章
func (api *ArticleApi) Get(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}
	actor, _, err := resolveActor(c, api.users)
	if err != nil {
		handleError(c, err)
		return
	}

	article, err := api.articles.Get(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err)
		return
	}
	n, err := api.comments.Count(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "获取成功", toArticleResponse(article, n, true))
}

// List 文章列表
func (api *ArticleApi) List(c *gin.Context) {
	actor, _, err := resolveActor(c, api.users)
	if err != nil {
		handleError(c, err)
		return
	}

	list, err := api.articles.List(c.Request.Context(), actor)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := make([]dto.ArticleResponse, 0, len(list))
	for i := range list {
		n, err := api.comments.Count(c.Request.Context(), list[i].ID)
		if err != nil {
			handleError(c, err)
			return
		}
		resp = append(resp, toArticleResponse(&list[i], n, false))
	}
	response.Success(c, "获取成功", resp)
}

// History 文章修订历史
func (api *ArticleApi) History(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrArticleNotFound.Error(), nil)
		return
	}

	revs, err := api.articles.History(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	list := make([]dto.ArticleRevisionResponse, 0, len(revs))
	for _, r := range revs {
		list = append(list, dto.ArticleRevisionResponse{
			ID:       dto.ID(r.ID),
			EditDate: r.EditDate,
			Title:    r.Title,
			Public:   r.Public,
			Locked:   r.CommentsLocked,
		})
	}
	c.JSON(http.StatusOK, list)
}
