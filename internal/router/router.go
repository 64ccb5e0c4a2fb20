package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/config"
	"github.com/nsxzhou1114/blog-comment/internal/controller"
	"github.com/nsxzhou1114/blog-comment/internal/logger"
	"github.com/nsxzhou1114/blog-comment/internal/middleware"
	"github.com/nsxzhou1114/blog-comment/internal/render"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/pkg/auth"
)

// Deps 路由依赖的服务
type Deps struct {
	Comments  *service.CommentService
	Articles  *service.ArticleService
	Reactions *service.ReactionService
	Users     *service.UserService
	Renderer  *render.Renderer
	Signer    *auth.Signer
	Logger    *zap.SugaredLogger
	// TokenBuffer 令牌即将过期的提示阈值
	TokenBuffer time.Duration
	// RequestTimeout 单个请求的处理时限，0 表示不限制
	RequestTimeout time.Duration
	Cors           config.CorsConfig
}

// New 创建gin引擎并注册全部路由
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(), gin.Recovery(), middleware.Cors(d.Cors))
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	Setup(r, d)
	return r
}

// Setup 设置路由
func Setup(r *gin.Engine, d Deps) {
	a := middleware.NewAuth(d.Signer, d.TokenBuffer)

	setupCommentRoutes(r, a, d)
	setupArticleRoutes(r, a, d)
	setupUserRoutes(r, a, d)
}

// setupCommentRoutes 评论相关路由
func setupCommentRoutes(r *gin.Engine, a *middleware.Auth, d Deps) {
	commentApi := controller.NewCommentApi(d.Comments, d.Reactions, d.Users, d.Renderer, d.Logger)

	// 公开路由，携带令牌时按登录身份渲染
	commentRoutes := r.Group("/comment", a.OptionalAuth())
	{
		commentRoutes.GET("/preview", commentApi.Preview)
		commentRoutes.POST("/preview", commentApi.Preview)
		commentRoutes.GET("/:id", commentApi.Get)
		commentRoutes.GET("/:id/reactions", commentApi.Reactions)
	}

	// 需要认证的路由
	authCommentRoutes := r.Group("/comment", a.JWTAuth())
	{
		authCommentRoutes.POST("", commentApi.Create)
		authCommentRoutes.PATCH("", commentApi.Edit)
		authCommentRoutes.DELETE("/:id", commentApi.Delete)
		authCommentRoutes.GET("/:id/history", commentApi.History)
		authCommentRoutes.POST("/:id/reactions", commentApi.ToggleReaction)
	}

	articleComments := r.Group("/article/:id/comments", a.OptionalAuth())
	{
		articleComments.GET("", commentApi.Thread)
		articleComments.GET("/count", commentApi.Count)
	}
}

// setupArticleRoutes 文章相关路由
func setupArticleRoutes(r *gin.Engine, a *middleware.Auth, d Deps) {
	articleApi := controller.NewArticleApi(d.Articles, d.Comments, d.Users, d.Logger)

	articleRoutes := r.Group("/article", a.OptionalAuth())
	{
		articleRoutes.GET("", articleApi.List)
		articleRoutes.GET("/:id", articleApi.Get)
	}

	// 需要管理员权限的路由
	adminArticleRoutes := r.Group("/article", a.AdminAuth(), controller.RequireAdmin(d.Users))
	{
		adminArticleRoutes.POST("", articleApi.Create)
		adminArticleRoutes.PATCH("/:id", articleApi.Update)
		adminArticleRoutes.PUT("/:id/lock", articleApi.Lock)
		adminArticleRoutes.GET("/:id/history", articleApi.History)
	}
}

// setupUserRoutes 作者相关路由
func setupUserRoutes(r *gin.Engine, a *middleware.Auth, d Deps) {
	userApi := controller.NewUserApi(d.Users, d.Signer, d.Logger)

	r.GET("/user/me", a.JWTAuth(), userApi.Me)

	adminUserRoutes := r.Group("/user", a.AdminAuth(), controller.RequireAdmin(d.Users))
	{
		adminUserRoutes.GET("", userApi.List)
		adminUserRoutes.POST("", userApi.Create)
		adminUserRoutes.PUT("/:id/admin", userApi.SetAdmin)
		adminUserRoutes.POST("/:id/token", userApi.Token)
	}
}
