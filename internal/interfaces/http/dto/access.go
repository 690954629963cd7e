package dto

import "rbac-rag-api/internal/application/rbac"

// RoleResponse 角色与其可读部门
type RoleResponse struct {
	Role         string   `json:"role"`
	DisplayName  string   `json:"display_name"`
	Departments  []string `json:"departments"`
	Unrestricted bool     `json:"unrestricted"`
}

// ToRoleResponses 转换权限表
func ToRoleResponses(roles []rbac.RolePermissions) []*RoleResponse {
	out := make([]*RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, &RoleResponse{
			Role:         string(r.Role),
			DisplayName:  r.Role.DisplayName(),
			Departments:  departmentStrings(r.Permissions.Departments()),
			Unrestricted: r.Permissions.Unrestricted(),
		})
	}
	return out
}
