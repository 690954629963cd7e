// Package account 提供登录与用户管理
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"rbac-rag-api/internal/application/rbac"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/domain/repository"
	apperrors "rbac-rag-api/pkg/errors"
	"rbac-rag-api/pkg/logger"
	"rbac-rag-api/pkg/utils"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt 上限
	maxUsernameLen = 64
)

// PolicyProvider 提供当前生效的权限表
type PolicyProvider interface {
	Policy() *rbac.Policy
}

// TokenIssuer 签发访问令牌
type TokenIssuer interface {
	GenerateAccessToken(id utils.Identity, ttl time.Duration) (string, error)
}

// PrincipalCache 请求主体缓存
type PrincipalCache interface {
	Get(ctx context.Context, userID string) (entity.Principal, bool, error)
	Set(ctx context.Context, p entity.Principal) error
	Invalidate(ctx context.Context, userID string) error
}

// Service 账户服务
type Service struct {
	users      repository.UserRepository
	tx         repository.Transactor
	policy     PolicyProvider
	tokens     TokenIssuer
	tokenTTL   time.Duration
	principals PrincipalCache
}

// NewService 创建账户服务
func NewService(users repository.UserRepository, tx repository.Transactor, policy PolicyProvider, tokens TokenIssuer, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Service{users: users, tx: tx, policy: policy, tokens: tokens, tokenTTL: tokenTTL}
}

// WithPrincipalCache 为 ResolvePrincipal 挂上缓存
func (s *Service) WithPrincipalCache(cache PrincipalCache) *Service {
	s.principals = cache
	return s
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *entity.User
}

// Login 校验用户名密码并签发令牌
//
// 用户不存在与密码错误返回同一错误。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrBadCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load user")
	}
	if user == nil || !user.CheckPassword(password) {
		logger.Info(ctx, "login rejected", "username", username)
		return nil, apperrors.ErrBadCredentials
	}

	token, err := s.tokens.GenerateAccessToken(utils.Identity{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
		Department: string(user.Department),
	}, s.tokenTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to issue token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Warn(ctx, "failed to update last login time", "error", err, "user_id", user.ID)
	}

	return &LoginResult{AccessToken: token, ExpiresIn: s.tokenTTL, User: user}, nil
}

// Me 获取当前用户
func (s *Service) Me(ctx context.Context, userID string) (*entity.User, error) {
	return s.getUser(ctx, userID)
}

// ResolvePrincipal 按用户 ID 从身份存储解析当前主体
//
// 角色与部门以存储为准而不是令牌，降级或删除在下一次请求即生效。
// 用户不存在时返回 ErrUserNotFound。缓存故障按未命中处理。
func (s *Service) ResolvePrincipal(ctx context.Context, userID string) (entity.Principal, error) {
	if s.principals != nil {
		p, ok, err := s.principals.Get(ctx, userID)
		if err != nil {
			logger.Warn(ctx, "principal cache unavailable", "error", err, "user_id", userID)
		} else if ok {
			return p, nil
		}
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return entity.Principal{}, err
	}
	p := user.Principal()

	if s.principals != nil {
		if err := s.principals.Set(ctx, p); err != nil {
			logger.Warn(ctx, "failed to cache principal", "error", err, "user_id", userID)
		}
	}
	return p, nil
}

// ListUsers 分页列出用户
func (s *Service) ListUsers(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.User], error) {
	res, err := s.users.List(ctx, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list users")
	}
	return res, nil
}

// CreateUserInput 创建用户参数
type CreateUserInput struct {
	Username   string
	Password   string
	Role       string
	Department string
}

// CreateUser 创建用户；部门缺省时取角色授权集合中的第一个非 general 部门
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || len(username) > maxUsernameLen {
		return nil, apperrors.ErrInvalidParam.WithDetail("username must be 1-64 characters")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	role := entity.ParseRole(in.Role)
	dept, err := s.resolveDepartment(role, in.Department)
	if err != nil {
		return nil, err
	}

	user := entity.NewUser(username)
	user.Role = role
	user.Department = dept
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to hash password")
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrConflict.WithDetail("username already exists")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create user")
	}

	logger.Info(ctx, "user created", "user_id", user.ID, "role", string(user.Role), "department", string(user.Department))
	return user, nil
}

// UpdateUserInput 更新用户参数，nil 字段保持不变
type UpdateUserInput struct {
	Password   *string
	Role       *string
	Department *string
}

// UpdateUser 更新用户角色、部门或密码；不允许降级最后一个管理员
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	var out *entity.User
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.getUser(ctx, id)
		if err != nil {
			return err
		}

		role := user.Role
		if in.Role != nil {
			role = entity.ParseRole(*in.Role)
		}
		deptInput := string(user.Department)
		if in.Department != nil {
			deptInput = *in.Department
		} else if role != user.Role && !s.policy.Policy().PermissionsFor(role).Allows(user.Department) {
			deptInput = ""
		}
		dept, err := s.resolveDepartment(role, deptInput)
		if err != nil {
			return err
		}

		if user.Role == entity.RoleAdmin && role != entity.RoleAdmin {
			if err := s.ensureAnotherAdmin(ctx); err != nil {
				return err
			}
		}

		if in.Password != nil {
			if err := validatePassword(*in.Password); err != nil {
				return err
			}
			if err := user.SetPassword(*in.Password); err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternalError, "failed to hash password")
			}
		}
		user.Role = role
		user.Department = dept

		if err := s.users.Update(ctx, user); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update user")
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forgetPrincipal(ctx, out.ID)

	logger.Info(ctx, "user updated", "user_id", out.ID, "role", string(out.Role), "department", string(out.Department))
	return out, nil
}

// DeleteUser 删除用户；不能删除自己，也不能删除最后一个管理员
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperrors.ErrInvalidParam.WithDetail("cannot delete the current user")
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.getUser(ctx, id)
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			if err := s.ensureAnotherAdmin(ctx); err != nil {
				return err
			}
		}
		if err := s.users.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.forgetPrincipal(ctx, id)
	logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// EnsureAdmin 首次启动时创建管理员；已存在同名用户则跳过
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	existing, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load user")
	}
	if existing != nil {
		return false, nil
	}
	_, err = s.CreateUser(ctx, CreateUserInput{
		Username: username,
		Password: password,
		Role:     string(entity.RoleAdmin),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) getUser(ctx context.Context, id string) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load user")
	}
	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

// forgetPrincipal 失效缓存主体；失败时旧主体最多保留到缓存 TTL
func (s *Service) forgetPrincipal(ctx context.Context, userID string) {
	if s.principals == nil {
		return
	}
	if err := s.principals.Invalidate(ctx, userID); err != nil {
		logger.Warn(ctx, "failed to invalidate cached principal", "error", err, "user_id", userID)
	}
}

func (s *Service) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.users.CountByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count admins")
	}
	if n <= 1 {
		return apperrors.ErrConflict.WithDetail("at least one admin must remain")
	}
	return nil
}

// resolveDepartment 解析并校验部门；为空时按角色推导默认部门
func (s *Service) resolveDepartment(role entity.Role, raw string) (entity.Department, error) {
	policy := s.policy.Policy()
	if !policy.Knows(role) {
		return "", apperrors.ErrInvalidParam.WithDetail("unknown role")
	}

	var dept entity.Department
	if strings.TrimSpace(raw) == "" {
		dept = defaultDepartment(policy.PermissionsFor(role))
	} else {
		d, ok := entity.ParseDepartment(raw)
		if !ok {
			return "", apperrors.ErrInvalidParam.WithDetail("unknown department")
		}
		dept = d
	}

	if err := policy.ValidateAssignment(role, dept); err != nil {
		return "", apperrors.ErrInvalidParam.WithDetail(err.Error())
	}
	return dept, nil
}

func defaultDepartment(perms rbac.PermissionSet) entity.Department {
	if perms.Unrestricted() {
		return entity.DepartmentGeneral
	}
	for _, d := range perms.Departments() {
		if d != entity.DepartmentGeneral {
			return d
		}
	}
	return entity.DepartmentGeneral
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen || len(p) > maxPasswordLen {
		return apperrors.ErrInvalidParam.WithDetail("password must be 8-72 characters")
	}
	return nil
}
