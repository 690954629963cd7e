package rbac

import (
	"fmt"
	"strings"

	"rbac-rag-api/internal/domain/entity"
)

// Decision 访问决策，单次请求有效，不跨请求缓存
type Decision struct {
	Allowed bool
	// Reason 拒绝时面向用户的说明
	Reason string
	// Denied 触发拒绝的部门（固定顺序）
	Denied []entity.Department
}

// Allow 放行决策
func Allow() Decision {
	return Decision{Allowed: true}
}

// Decide 结合主体权限与查询意图做出访问决策
//
// 意图中只要有一个部门不在授权集合内即拒绝整个查询。
// 该检查只用于提前、可解释的拒绝，真正的边界是 BuildFilter。
func Decide(role entity.Role, perms PermissionSet, intent []entity.Department) Decision {
	if perms.Unrestricted() || len(intent) == 0 {
		return Allow()
	}

	var denied []entity.Department
	seen := make(map[entity.Department]struct{}, len(intent))
	for _, d := range intent {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if !perms.Allows(d) {
			denied = append(denied, d)
		}
	}
	if len(denied) == 0 {
		return Allow()
	}

	entity.SortDepartments(denied)
	return Decision{
		Allowed: false,
		Reason:  DenialReason(role, denied),
		Denied:  denied,
	}
}

// Decide 按主体角色查询权限表后做出决策
func (p *Policy) Decide(principal entity.Principal, intent []entity.Department) Decision {
	return Decide(principal.Role, p.PermissionsFor(principal.Role), intent)
}

// DenialReason 生成拒绝说明，引用角色展示名与涉及的部门
func DenialReason(role entity.Role, denied []entity.Department) string {
	names := make([]string, 0, len(denied))
	for _, d := range denied {
		names = append(names, d.DisplayName())
	}
	noun := "department"
	if len(names) > 1 {
		noun = "departments"
	}
	return fmt.Sprintf(
		"Sorry, based on your '%s' role, you do not have permission to access information related to the %s %s.",
		role.DisplayName(), strings.Join(names, " or "), noun,
	)
}
