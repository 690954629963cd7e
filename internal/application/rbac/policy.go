package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/domain/entity"
)

// ErrInvalidPolicy 角色权限表不合法（启动期配置错误）
var ErrInvalidPolicy = errors.New("invalid access policy")

// RoleSpec 角色权限表中的一行（未解析的原始配置）
type RoleSpec struct {
	Departments  []string
	Unrestricted bool
}

// Policy 不可变的角色权限表
//
// 构建后只读，可在并发请求间无锁共享。
type Policy struct {
	sets map[entity.Role]PermissionSet
}

// DefaultRoleTable 内置角色权限表
func DefaultRoleTable() map[string]RoleSpec {
	return map[string]RoleSpec{
		string(entity.RoleAdmin):       {Unrestricted: true},
		string(entity.RoleExecutive):   {Unrestricted: true},
		string(entity.RoleFinance):     {Departments: []string{"finance"}},
		string(entity.RoleMarketing):   {Departments: []string{"marketing"}},
		string(entity.RoleHR):          {Departments: []string{"hr"}},
		string(entity.RoleEngineering): {Departments: []string{"engineering"}},
		string(entity.RoleEmployee):    {Departments: []string{"general"}},
	}
}

// PolicyFromConfig 从配置构建权限表；配置为空时使用内置默认表
func PolicyFromConfig(cfg config.AccessConfig) (*Policy, error) {
	if len(cfg.Roles) == 0 {
		return LoadPolicy(DefaultRoleTable())
	}
	table := make(map[string]RoleSpec, len(cfg.Roles))
	for name, rc := range cfg.Roles {
		table[name] = RoleSpec{Departments: rc.Departments, Unrestricted: rc.Unrestricted}
	}
	return LoadPolicy(table)
}

// LoadPolicy 校验并构建权限表
//
// 表必须覆盖全部已知角色；每个角色至少有一个部门或为 unrestricted；
// 出现未知角色或部门编码即失败。general 对每个已知角色隐式可见。
func LoadPolicy(table map[string]RoleSpec) (*Policy, error) {
	var problems []string
	sets := make(map[entity.Role]PermissionSet, len(table))

	for name, spec := range table {
		role := entity.Role(strings.ToLower(strings.TrimSpace(name)))
		if !role.IsKnown() {
			problems = append(problems, fmt.Sprintf("unknown role %q", name))
			continue
		}
		if _, dup := sets[role]; dup {
			problems = append(problems, fmt.Sprintf("role %q defined more than once", role))
			continue
		}

		departments := make([]entity.Department, 0, len(spec.Departments)+1)
		for _, raw := range spec.Departments {
			d, ok := entity.ParseDepartment(raw)
			if !ok {
				problems = append(problems, fmt.Sprintf("role %q references unknown department %q", role, raw))
				continue
			}
			departments = append(departments, d)
		}
		if len(departments) == 0 && !spec.Unrestricted {
			problems = append(problems, fmt.Sprintf("role %q grants no department and is not unrestricted", role))
			continue
		}
		departments = append(departments, entity.DepartmentGeneral)
		if spec.Unrestricted {
			departments = entity.AllDepartments()
		}
		sets[role] = NewPermissionSet(spec.Unrestricted, departments...)
	}

	for _, role := range entity.AllRoles() {
		if _, ok := sets[role]; !ok && !hasProblemFor(problems, role) {
			problems = append(problems, fmt.Sprintf("role %q has no permission entry", role))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(problems, "; "))
	}
	return &Policy{sets: sets}, nil
}

func hasProblemFor(problems []string, role entity.Role) bool {
	needle := fmt.Sprintf("role %q", role)
	for _, p := range problems {
		if strings.HasPrefix(p, needle) {
			return true
		}
	}
	return false
}

// PermissionsFor 返回角色的权限集合
//
// 全函数：未知角色返回空集合（非 unrestricted），绝不返回错误。
func (p *Policy) PermissionsFor(role entity.Role) PermissionSet {
	if p == nil {
		return PermissionSet{}
	}
	set, ok := p.sets[role]
	if !ok {
		return PermissionSet{}
	}
	return set
}

// Knows 角色是否在权限表中
func (p *Policy) Knows(role entity.Role) bool {
	if p == nil {
		return false
	}
	_, ok := p.sets[role]
	return ok
}

// RolePermissions 角色及其权限（用于管理端展示）
type RolePermissions struct {
	Role        entity.Role
	Permissions PermissionSet
}

// Roles 按固定顺序列出全部角色权限
func (p *Policy) Roles() []RolePermissions {
	out := make([]RolePermissions, 0, len(entity.AllRoles()))
	for _, role := range entity.AllRoles() {
		out = append(out, RolePermissions{Role: role, Permissions: p.PermissionsFor(role)})
	}
	return out
}

// ValidateAssignment 校验为用户分配的角色与部门组合
//
// 部门限定角色的部门必须落在该角色的授权集合内；不限角色可挂任意已知部门。
func (p *Policy) ValidateAssignment(role entity.Role, department entity.Department) error {
	if !p.Knows(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidAssignment, role)
	}
	if !department.IsKnown() {
		return fmt.Errorf("%w: unknown department %q", ErrInvalidAssignment, department)
	}
	if !p.PermissionsFor(role).Allows(department) {
		return fmt.Errorf("%w: department %q is outside role %q", ErrInvalidAssignment, department, role)
	}
	return nil
}

// ErrInvalidAssignment 用户角色/部门组合不合法
var ErrInvalidAssignment = errors.New("invalid role assignment")
