package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nsxzhou1114/blog-comment/internal/logger"
	"github.com/nsxzhou1114/blog-comment/internal/middleware"
	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/render"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
	"github.com/nsxzhou1114/blog-comment/pkg/response"
)

// resolveActor 根据令牌中的用户ID加载作者，管理员标记以数据库为准。
// 未登录或作者不存在时返回匿名
func resolveActor(c *gin.Context, users *service.UserService) (service.Actor, *model.User, error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return service.Anonymous, nil, nil
	}
	actor, user, err := users.Actor(c.Request.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		return service.Anonymous, nil, nil
	}
	return actor, user, err
}

// requireActor 必须是已登记的作者，失败时已写入响应
func requireActor(c *gin.Context, users *service.UserService) (service.Actor, *model.User, bool) {
	actor, user, err := resolveActor(c, users)
	if err != nil {
		handleError(c, err)
		return actor, nil, false
	}
	if !actor.LoggedIn() {
		response.Unauthorized(c, "you must be logged in", nil)
		return actor, nil, false
	}
	return actor, user, true
}

func viewerOf(actor service.Actor, user *model.User) render.Viewer {
	v := render.Viewer{UserID: actor.ID, Admin: actor.Admin}
	if user != nil {
		v.Login = user.Login
	}
	return v
}

// bindError 请求参数绑定失败
func bindError(c *gin.Context, err error) {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 && errs[0].Tag() == "maxbytes" {
		response.Text(c, http.StatusRequestEntityTooLarge, validation.FormatValidationError(err), err)
		return
	}
	response.BadRequest(c, validation.FormatValidationError(err), err)
}

// reason 去掉校验错误的公共前缀，得到给用户看的原因
func reason(err error) string {
	return strings.TrimPrefix(err.Error(), validation.ErrInvalid.Error()+": ")
}

// handleError 把服务层错误映射为状态码与纯文本原因
func handleError(c *gin.Context, err error) {
	var cooldown *service.CooldownError
	switch {
	case errors.Is(err, validation.ErrTooLong):
		response.Text(c, http.StatusRequestEntityTooLarge, reason(err), err)
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrInvalidReaction),
		errors.Is(err, service.ErrParentNotFound):
		response.BadRequest(c, reason(err), err)
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error(), err)
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrArticleNotFound),
		errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, err.Error(), err)
	case errors.Is(err, service.ErrRemoved):
		response.Text(c, http.StatusGone, err.Error(), err)
	case errors.Is(err, service.ErrArticleLocked):
		response.Text(c, http.StatusLocked, err.Error(), err)
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.Itoa(int(cooldown.Remaining.Seconds()+0.999)))
		response.Text(c, http.StatusTooManyRequests, err.Error(), err)
	case errors.Is(err, service.ErrConflict):
		response.Text(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		response.Text(c, http.StatusServiceUnavailable, "request timed out", err)
	default:
		logger.Errorf("请求处理失败: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		response.InternalServerError(c, err)
	}
}

// RequireAdmin 以数据库中的管理员标记为准再确认一次，令牌签发后被取消的管理员会被拒绝
func RequireAdmin(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _, ok := requireActor(c, users)
		if !ok {
			c.Abort()
			return
		}
		if !actor.Admin {
			response.Forbidden(c, "admin privileges required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
