// Package rbac 实现角色到部门的权限模型、访问决策与检索过滤器构建
package rbac

import (
	"rbac-rag-api/internal/domain/entity"
)

// PermissionSet 角色可读的部门集合
//
// 零值为空集合且非 unrestricted，即“拒绝一切”。
type PermissionSet struct {
	departments  []entity.Department
	unrestricted bool
}

// NewPermissionSet 创建权限集合，部门按固定顺序去重排序
func NewPermissionSet(unrestricted bool, departments ...entity.Department) PermissionSet {
	seen := make(map[entity.Department]struct{}, len(departments))
	ds := make([]entity.Department, 0, len(departments))
	for _, d := range departments {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		ds = append(ds, d)
	}
	entity.SortDepartments(ds)
	return PermissionSet{departments: ds, unrestricted: unrestricted}
}

// Unrestricted 是否可读全部（含未来新增）部门
func (p PermissionSet) Unrestricted() bool {
	return p.unrestricted
}

// Departments 显式授权的部门（副本）
func (p PermissionSet) Departments() []entity.Department {
	out := make([]entity.Department, len(p.departments))
	copy(out, p.departments)
	return out
}

// Allows 是否可读指定部门
func (p PermissionSet) Allows(d entity.Department) bool {
	if p.unrestricted {
		return true
	}
	for _, x := range p.departments {
		if x == d {
			return true
		}
	}
	return false
}

// IsEmpty 是否不授予任何访问
func (p PermissionSet) IsEmpty() bool {
	return !p.unrestricted && len(p.departments) == 0
}
