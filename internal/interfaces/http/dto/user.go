package dto

import (
	"time"

	"rbac-rag-api/internal/domain/entity"
)

// UserResponse 用户响应
type UserResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	RoleDisplayName string     `json:"role_display_name"`
	Department      string     `json:"department"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UserListResponse 用户列表响应
type UserListResponse struct {
	Items []*UserResponse `json:"items"`
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username   string `json:"username" binding:"required,max=64"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
}

// UpdateUserRequest 更新用户请求，缺省字段不变
type UpdateUserRequest struct {
	Password   *string `json:"password" binding:"omitempty,min=8,max=72"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
}

// ToUserResponse 实体转换为响应
func ToUserResponse(u *entity.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:              u.ID,
		Username:        u.Username,
		Role:            string(u.Role),
		RoleDisplayName: u.Role.DisplayName(),
		Department:      string(u.Department),
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// ToUserListResponse 实体列表转换为响应
func ToUserListResponse(users []*entity.User) *UserListResponse {
	items := make([]*UserResponse, len(users))
	for i, u := range users {
		items[i] = ToUserResponse(u)
	}
	return &UserListResponse{Items: items}
}
