// Package entity 定义领域实体
package entity

import (
	"sort"
	"strings"
)

// Role 角色（封闭枚举）
type Role string

const (
	RoleUnknown     Role = ""
	RoleAdmin       Role = "admin"
	RoleExecutive   Role = "executive"
	RoleFinance     Role = "finance"
	RoleMarketing   Role = "marketing"
	RoleHR          Role = "hr"
	RoleEngineering Role = "engineering"
	RoleEmployee    Role = "employee"
)

var roleDisplayNames = map[Role]string{
	RoleAdmin:       "Admin",
	RoleExecutive:   "C-Level Executives",
	RoleFinance:     "Finance Team",
	RoleMarketing:   "Marketing Team",
	RoleHR:          "HR Team",
	RoleEngineering: "Engineering Department",
	RoleEmployee:    "Employee Level",
}

// AllRoles 返回全部已知角色（固定顺序）
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleExecutive, RoleFinance, RoleMarketing, RoleHR, RoleEngineering, RoleEmployee}
}

// IsKnown 是否为已知角色
func (r Role) IsKnown() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// DisplayName 角色展示名；未知角色返回原始值
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	if r == RoleUnknown {
		return "Unknown"
	}
	return string(r)
}

// ParseRole 按编码或展示名（不区分大小写）解析角色，无法识别时返回 RoleUnknown
func ParseRole(s string) Role {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return RoleUnknown
	}
	for role, name := range roleDisplayNames {
		if key == string(role) || key == strings.ToLower(name) {
			return role
		}
	}
	return RoleUnknown
}

// Department 部门（封闭枚举）
type Department string

const (
	DepartmentFinance     Department = "finance"
	DepartmentMarketing   Department = "marketing"
	DepartmentHR          Department = "hr"
	DepartmentEngineering Department = "engineering"
	DepartmentGeneral     Department = "general"
)

var departmentDisplayNames = map[Department]string{
	DepartmentFinance:     "Finance",
	DepartmentMarketing:   "Marketing",
	DepartmentHR:          "HR",
	DepartmentEngineering: "Engineering",
	DepartmentGeneral:     "General",
}

// AllDepartments 返回部门全集（固定顺序）
func AllDepartments() []Department {
	return []Department{DepartmentFinance, DepartmentMarketing, DepartmentHR, DepartmentEngineering, DepartmentGeneral}
}

// IsKnown 是否为已知部门
func (d Department) IsKnown() bool {
	_, ok := departmentDisplayNames[d]
	return ok
}

// DisplayName 部门展示名
func (d Department) DisplayName() string {
	if name, ok := departmentDisplayNames[d]; ok {
		return name
	}
	return string(d)
}

// ParseDepartment 解析部门编码（不区分大小写）
func ParseDepartment(s string) (Department, bool) {
	d := Department(strings.ToLower(strings.TrimSpace(s)))
	return d, d.IsKnown()
}

// SortDepartments 按 AllDepartments 的顺序原地排序
func SortDepartments(ds []Department) {
	order := make(map[Department]int, len(departmentDisplayNames))
	for i, d := range AllDepartments() {
		order[d] = i
	}
	sort.SliceStable(ds, func(i, j int) bool {
		oi, iok := order[ds[i]]
		oj, jok := order[ds[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return ds[i] < ds[j]
	})
}

// Principal 已认证的请求主体，来自身份提供方的声明，请求期间不可变
type Principal struct {
	UserID     string
	Username   string
	Role       Role
	Department Department
}
