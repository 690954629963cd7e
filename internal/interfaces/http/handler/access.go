package handler

import (
	"github.com/gin-gonic/gin"

	"rbac-rag-api/internal/interfaces/http/dto"
)

// AccessHandler 权限表查询
type AccessHandler struct {
	policy PolicyProvider
}

// NewAccessHandler 创建权限表处理器
func NewAccessHandler(policy PolicyProvider) *AccessHandler {
	return &AccessHandler{policy: policy}
}

// ListRoles 角色及其可读部门
// @Summary 角色列表
// @Tags Admin
// @Produce json
// @Success 200 {object} dto.Response[[]dto.RoleResponse]
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/admin/roles [get]
func (h *AccessHandler) ListRoles(c *gin.Context) {
	dto.Success(c, dto.ToRoleResponses(h.policy.Policy().Roles()))
}
