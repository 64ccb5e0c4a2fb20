package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
)

// UserService 作者目录。身份由外部签发，这里只维护展示信息和管理员标记
type UserService struct {
	store  *store.Store
	ids    *idgen.Node
	logger *zap.SugaredLogger
}

// NewUserService 创建作者目录服务
func NewUserService(s *store.Store, ids *idgen.Node, logger *zap.SugaredLogger) *UserService {
	if ids == nil {
		ids = idgen.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{store: s, ids: ids, logger: logger}
}

// Create 登记作者，登录名唯一
func (s *UserService) Create(ctx context.Context, login, htmlURL string, admin bool) (*model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("%w: login is required", ErrValidationFailed)
	}
	if _, err := s.store.Users.GetByLogin(ctx, login); err == nil {
		return nil, fmt.Errorf("%w: login %q already exists", ErrValidationFailed, login)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("查询作者失败: %w", err)
	}

	u := &model.User{
		Base:      model.Base{ID: s.ids.Next()},
		Login:     login,
		HTMLURL:   htmlURL,
		AvatarURL: "/avatar/" + login,
		Admin:     admin,
	}
	if err := s.store.Users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("创建作者失败: %w", err)
	}
	s.logger.Infow("作者已登记", "user_id", u.ID, "login", login, "admin", admin)
	return u, nil
}

// Get 按ID获取作者
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.store.Users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取作者失败: %w", err)
	}
	return u, nil
}

// GetByLogin 按登录名获取作者
func (s *UserService) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := s.store.Users.GetByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取作者失败: %w", err)
	}
	return u, nil
}

// Actor 把作者转换为操作者，管理员标记以数据库为准
func (s *UserService) Actor(ctx context.Context, id int64) (Actor, *model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return Anonymous, nil, err
	}
	return Actor{ID: u.ID, Admin: u.Admin}, u, nil
}

// SetAdmin 设置管理员标记
func (s *UserService) SetAdmin(ctx context.Context, id int64, admin bool) error {
	err := s.store.Users.SetAdmin(ctx, id, admin)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("设置管理员失败: %w", err)
	}
	return nil
}

// List 全部作者
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取作者列表失败: %w", err)
	}
	return users, nil
}
