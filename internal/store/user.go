package store

import (
	"context"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"gorm.io/gorm"
)

// UserRepository 作者目录仓储
type UserRepository struct {
	db *gorm.DB
}

// Get 按ID获取作者
func (r *UserRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Take(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByLogin 按登录名获取作者
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Take(&u, "login = ?", login).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ByIDs 批量获取作者
func (r *UserRepository) ByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var list []model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		users[list[i].ID] = &list[i]
	}
	return users, nil
}

// Create 新增作者
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// SetAdmin 设置管理员标记
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, admin bool) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("admin", admin).Error
}

// List 全部作者
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var list []model.User
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&list).Error
	return list, err
}
