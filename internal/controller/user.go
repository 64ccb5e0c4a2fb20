package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/dto"
	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/pkg/auth"
	"github.com/nsxzhou1114/blog-comment/pkg/response"
)

// UserApi 作者目录控制器
type UserApi struct {
	logger *zap.SugaredLogger
	users  *service.UserService
	signer *auth.Signer
}

// NewUserApi 创建作者目录控制器
func NewUserApi(users *service.UserService, signer *auth.Signer, logger *zap.SugaredLogger) *UserApi {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserApi{logger: logger, users: users, signer: signer}
}

func toUserResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        dto.ID(u.ID),
		Login:     u.Login,
		HTMLURL:   u.HTMLURL,
		AvatarURL: u.AvatarURL,
		Admin:     u.Admin,
	}
}

// Me 当前登录的作者
func (api *UserApi) Me(c *gin.Context) {
	_, user, ok := requireActor(c, api.users)
	if !ok {
		return
	}
	response.Success(c, "获取成功", toUserResponse(user))
}

// List 作者列表
func (api *UserApi) List(c *gin.Context) {
	users, err := api.users.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	response.Success(c, "获取成功", list)
}

// Create 登记作者
func (api *UserApi) Create(c *gin.Context) {
	var req dto.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := api.users.Create(c.Request.Context(), req.Login, req.HTMLURL, req.Admin)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "创建成功", toUserResponse(u))
}

// SetAdmin 设置管理员标记
func (api *UserApi) SetAdmin(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrUserNotFound.Error(), nil)
		return
	}
	var req dto.UserAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := api.users.SetAdmin(c.Request.Context(), id, *req.Admin); err != nil {
		handleError(c, err)
		return
	}
	api.logger.Infow("管理员标记已更新", "user_id", id, "admin", *req.Admin)
	response.OK(c)
}

// Token 为作者签发访问令牌
func (api *UserApi) Token(c *gin.Context) {
	id, ok := dto.ParseID(c.Param("id"))
	if !ok {
		response.NotFound(c, service.ErrUserNotFound.Error(), nil)
		return
	}
	u, err := api.users.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	token, expires, err := api.signer.Issue(u.ID, auth.RoleFor(u.Admin))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339)})
}
