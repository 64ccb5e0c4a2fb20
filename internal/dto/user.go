package dto

// UserCreateRequest 登记作者
type UserCreateRequest struct {
	Login   string `json:"login" binding:"required,notblank,max=64"`
	HTMLURL string `json:"html_url" binding:"omitempty,url,max=255"`
	Admin   bool   `json:"admin"`
}

// UserAdminRequest 设置管理员标记
type UserAdminRequest struct {
	Admin *bool `json:"admin" binding:"required"`
}

// UserResponse 作者信息
type UserResponse struct {
	ID        ID     `json:"id"`
	Login     string `json:"login"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
	Admin     bool   `json:"admin"`
}

// TokenResponse 访问令牌
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
