package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin 管理员角色
const RoleAdmin = "admin"

// RoleUser 普通作者角色
const RoleUser = "user"

// RoleFor 根据管理员标记选择角色
func RoleFor(admin bool) string {
	if admin {
		return RoleAdmin
	}
	return RoleUser
}

// ErrInvalidToken 令牌无效
var ErrInvalidToken = errors.New("无效的令牌")

// Claims 访问令牌声明，只携带不透明的作者身份
type Claims struct {
	UserID int64  `json:"user_id,string"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Signer 令牌签发与校验
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSigner 创建签发器
func NewSigner(secret, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue 签发访问令牌，返回令牌与过期时间
func (s *Signer) Issue(userID int64, role string) (string, time.Time, error) {
	now := time.Now()
	expireAt := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.FormatInt(now.UnixNano(), 36),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签发令牌失败: %w", err)
	}
	return token, expireAt, nil
}

// Parse 解析并校验访问令牌
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
