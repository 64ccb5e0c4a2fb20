package model

// User 评论作者。身份签发不在本服务内，这里只保存展示信息与管理员标记
type User struct {
	Base
	Login     string `gorm:"type:varchar(64);not null;uniqueIndex" json:"login"`
	HTMLURL   string `gorm:"type:varchar(255)" json:"html_url"`
	AvatarURL string `gorm:"type:varchar(255)" json:"avatar_url"`
	Admin     bool   `gorm:"not null;default:false" json:"admin"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
