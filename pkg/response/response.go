package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一JSON响应结构，用于管理接口
type Response struct {
	Code    int    `json:"code"`           // 状态码
	Message string `json:"message"`        // 响应消息
	Data    any    `json:"data"`           // 响应数据
	Meta    any    `json:"meta,omitempty"` // 元数据
}

// Success 返回成功响应
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error JSON错误响应
func Error(c *gin.Context, code int, message string, err error) {
	// 记录详细错误信息，但不向客户端暴露
	if err != nil {
		_ = c.Error(err)
	}

	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// Text 纯文本失败原因，评论接口的客户端会原样展示给用户
func Text(c *gin.Context, code int, reason string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.String(code, reason)
}

// HTML 返回HTML片段
func HTML(c *gin.Context, markup string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

// OK 无响应体的成功
func OK(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Unauthorized 401纯文本响应
func Unauthorized(c *gin.Context, reason string, err error) {
	Text(c, http.StatusUnauthorized, reason, err)
}

// Forbidden 403纯文本响应
func Forbidden(c *gin.Context, reason string, err error) {
	Text(c, http.StatusForbidden, reason, err)
}

// BadRequest 400纯文本响应
func BadRequest(c *gin.Context, reason string, err error) {
	Text(c, http.StatusBadRequest, reason, err)
}

// NotFound 404纯文本响应
func NotFound(c *gin.Context, reason string, err error) {
	Text(c, http.StatusNotFound, reason, err)
}

// InternalServerError 500纯文本响应，不向客户端暴露内部错误
func InternalServerError(c *gin.Context, err error) {
	Text(c, http.StatusInternalServerError, "internal server error", err)
}
