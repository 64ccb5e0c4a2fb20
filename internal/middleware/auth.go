package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nsxzhou1114/blog-comment/internal/logger"
	"github.com/nsxzhou1114/blog-comment/pkg/auth"
	"github.com/nsxzhou1114/blog-comment/pkg/response"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// Auth 基于访问令牌的认证中间件
type Auth struct {
	signer *auth.Signer
	// buffer 令牌剩余有效期小于该值时提示客户端刷新
	buffer time.Duration
}

// NewAuth 创建认证中间件
func NewAuth(signer *auth.Signer, buffer time.Duration) *Auth {
	return &Auth{signer: signer, buffer: buffer}
}

// parse 解析 Authorization 头，没有携带令牌时返回 nil, nil
func (a *Auth) parse(c *gin.Context) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return nil, auth.ErrInvalidToken
	}
	return a.signer.Parse(parts[1])
}

func (a *Auth) apply(c *gin.Context, claims *auth.Claims) {
	if claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) < a.buffer {
		c.Header("X-Token-Expire-Soon", "true")
	}
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserRole, claims.Role)
}

// authenticate 校验令牌，失败时写入401并中止
func (a *Auth) authenticate(c *gin.Context) bool {
	claims, err := a.parse(c)
	if err != nil {
		logger.Warnf("无效的令牌: %v", err)
		response.Unauthorized(c, "invalid token", err)
		c.Abort()
		return false
	}
	if claims == nil {
		response.Unauthorized(c, "you must be logged in", nil)
		c.Abort()
		return false
	}
	a.apply(c, claims)
	return true
}

// JWTAuth 必须登录
func (a *Auth) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.authenticate(c) {
			c.Next()
		}
	}
}

// OptionalAuth 可选认证，令牌有效时写入用户信息，否则按匿名访问处理
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c)
		if err != nil {
			logger.Warnf("无效的令牌: %v", err)
		}
		if claims != nil {
			a.apply(c, claims)
		}
		c.Next()
	}
}

// AdminAuth 需要管理员角色
func (a *Auth) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		if role, _ := GetUserRole(c); role != auth.RoleAdmin {
			response.Forbidden(c, "admin privileges required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID 从上下文中获取用户ID
func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// GetUserRole 从上下文中获取用户角色
func GetUserRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
