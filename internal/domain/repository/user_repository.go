// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"rbac-rag-api/internal/domain/entity"
)

// UserRepository 用户仓储接口
//
// 查询不到记录时 Get* 返回 (nil, nil)；用户名冲突时 Create 返回 ErrDuplicate。
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.User], error)
	UpdateLastLogin(ctx context.Context, id string) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CountByRole(ctx context.Context, role entity.Role) (int64, error)
}
