package rbac

import (
	"rbac-rag-api/internal/domain/entity"
)

// Filter 检索期部门过滤器，每次请求重新计算，不持久化
type Filter struct {
	departments  []entity.Department
	unrestricted bool
}

// BuildFilter 将权限集合转换为检索过滤器
//
// 只依赖权限模型，查询文本不参与计算，任何措辞都无法扩大范围。
// unrestricted 时返回部门全集。
func BuildFilter(perms PermissionSet) Filter {
	if perms.Unrestricted() {
		return Filter{departments: entity.AllDepartments(), unrestricted: true}
	}
	return Filter{departments: perms.Departments()}
}

// FilterFor 按主体角色构建过滤器
func (p *Policy) FilterFor(principal entity.Principal) Filter {
	return BuildFilter(p.PermissionsFor(principal.Role))
}

// NewFilter 直接由部门列表构建过滤器（测试与适配层使用）
func NewFilter(departments ...entity.Department) Filter {
	return Filter{departments: NewPermissionSet(false, departments...).departments}
}

// Departments 允许的部门（副本）
func (f Filter) Departments() []entity.Department {
	out := make([]entity.Department, len(f.departments))
	copy(out, f.departments)
	return out
}

// Unrestricted 是否由 unrestricted 权限构建
func (f Filter) Unrestricted() bool {
	return f.unrestricted
}

// Contains 部门是否在过滤器内
func (f Filter) Contains(d entity.Department) bool {
	for _, x := range f.departments {
		if x == d {
			return true
		}
	}
	return false
}

// IsEmpty 过滤器是否不允许任何部门
func (f Filter) IsEmpty() bool {
	return len(f.departments) == 0
}
