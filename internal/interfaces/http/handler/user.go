package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/application/account"
	"rbac-rag-api/internal/domain/entity"
	"rbac-rag-api/internal/domain/repository"
	"rbac-rag-api/internal/interfaces/http/dto"
	"rbac-rag-api/internal/interfaces/http/middleware"
	"rbac-rag-api/pkg/logger"
)

// UserManager 用户管理
type UserManager interface {
	ListUsers(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.User], error)
	CreateUser(ctx context.Context, in account.CreateUserInput) (*entity.User, error)
	UpdateUser(ctx context.Context, id string, in account.UpdateUserInput) (*entity.User, error)
	DeleteUser(ctx context.Context, actorID, id string) error
}

// UserHandler 管理员用户管理处理器
type UserHandler struct {
	users UserManager
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers 用户列表
// @Summary 用户列表
// @Tags Admin
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.UserListResponse]
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	res, err := h.users.ListUsers(ctx, repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list users", err)
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToUserListResponse(res.Items), dto.NewPageMeta(res.Page, res.PageSize, int(res.Total)))
}

// CreateUser 创建用户
// @Summary 创建用户
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body dto.CreateUserRequest true "用户"
// @Success 201 {object} dto.Response[dto.UserResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/admin/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.users.CreateUser(ctx, account.CreateUserInput{
		Username:   req.Username,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.ToUserResponse(user))
}

// UpdateUser 更新用户角色、部门或密码
// @Summary 更新用户
// @Tags Admin
// @Accept json
// @Produce json
// @Param uid path string true "用户 ID"
// @Param body body dto.UpdateUserRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.UserResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/admin/users/{uid} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.users.UpdateUser(ctx, c.Param("uid"), account.UpdateUserInput{
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, dto.ToUserResponse(user))
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Tags Admin
// @Param uid path string true "用户 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/admin/users/{uid} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	p, ok := middleware.PrincipalFromGin(c)
	if !ok {
		dto.Unauthorized(c, "missing principal")
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), p.UserID, c.Param("uid")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}
