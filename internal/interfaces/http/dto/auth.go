package dto

import "rbac-rag-api/internal/domain/entity"

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

// AuthResponse 登录响应
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"` // 秒
	User        *UserResponse `json:"user"`
}

// PrincipalResponse 当前请求主体
type PrincipalResponse struct {
	UserID          string   `json:"user_id"`
	Username        string   `json:"username"`
	Role            string   `json:"role"`
	RoleDisplayName string   `json:"role_display_name"`
	Department      string   `json:"department,omitempty"`
	Departments     []string `json:"departments"`
	Unrestricted    bool     `json:"unrestricted"`
}

// ToPrincipalResponse 主体与其可读部门
func ToPrincipalResponse(p entity.Principal, departments []entity.Department, unrestricted bool) *PrincipalResponse {
	return &PrincipalResponse{
		UserID:          p.UserID,
		Username:        p.Username,
		Role:            string(p.Role),
		RoleDisplayName: p.Role.DisplayName(),
		Department:      string(p.Department),
		Departments:     departmentStrings(departments),
		Unrestricted:    unrestricted,
	}
}

func departmentStrings(ds []entity.Department) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, string(d))
	}
	return out
}
