package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/config"
	"rbac-rag-api/internal/domain/entity"
)

func defaultPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := LoadPolicy(DefaultRoleTable())
	require.NoError(t, err)
	return p
}

func TestLoadPolicy_DefaultTable(t *testing.T) {
	p := defaultPolicy(t)

	for _, role := range entity.AllRoles() {
		assert.True(t, p.Knows(role), role)
		assert.True(t, p.PermissionsFor(role).Allows(entity.DepartmentGeneral), "general is implicit for %s", role)
	}

	finance := p.PermissionsFor(entity.RoleFinance)
	assert.False(t, finance.Unrestricted())
	assert.Equal(t, []entity.Department{entity.DepartmentFinance, entity.DepartmentGeneral}, finance.Departments())
	assert.False(t, finance.Allows(entity.DepartmentMarketing))

	assert.True(t, p.PermissionsFor(entity.RoleAdmin).Unrestricted())
	assert.True(t, p.PermissionsFor(entity.RoleExecutive).Unrestricted())
	assert.Equal(t, []entity.Department{entity.DepartmentGeneral}, p.PermissionsFor(entity.RoleEmployee).Departments())
}

func TestLoadPolicy_RejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name  string
		table map[string]RoleSpec
		want  string
	}{
		{
			name:  "unknown role",
			table: withRole(DefaultRoleTable(), "intern", RoleSpec{Departments: []string{"general"}}),
			want:  `unknown role "intern"`,
		},
		{
			name:  "unknown department",
			table: withRole(DefaultRoleTable(), "finance", RoleSpec{Departments: []string{"legal"}}),
			want:  `unknown department "legal"`,
		},
		{
			name:  "empty grant",
			table: withRole(DefaultRoleTable(), "hr", RoleSpec{}),
			want:  `role "hr" grants no department`,
		},
		{
			name:  "missing role",
			table: withoutRole(DefaultRoleTable(), "engineering"),
			want:  `role "engineering" has no permission entry`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadPolicy(tt.table)
			require.ErrorIs(t, err, ErrInvalidPolicy)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(config.AccessConfig{})
	require.NoError(t, err)
	assert.True(t, p.PermissionsFor(entity.RoleAdmin).Unrestricted())

	cfg := config.AccessConfig{Roles: map[string]config.RolePolicyConfig{}}
	for name, spec := range DefaultRoleTable() {
		cfg.Roles[name] = config.RolePolicyConfig{Departments: spec.Departments, Unrestricted: spec.Unrestricted}
	}
	cfg.Roles["marketing"] = config.RolePolicyConfig{Departments: []string{"marketing", "finance"}}

	p, err = PolicyFromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, p.PermissionsFor(entity.RoleMarketing).Allows(entity.DepartmentFinance))
}

func TestPermissionsFor_UnknownRoleFailsClosed(t *testing.T) {
	p := defaultPolicy(t)

	for _, role := range []entity.Role{entity.RoleUnknown, entity.Role("contractor")} {
		perms := p.PermissionsFor(role)
		assert.True(t, perms.IsEmpty())
		assert.False(t, perms.Unrestricted())
		assert.False(t, perms.Allows(entity.DepartmentGeneral))
		assert.True(t, p.FilterFor(entity.Principal{Role: role}).IsEmpty())
	}

	var nilPolicy *Policy
	assert.True(t, nilPolicy.PermissionsFor(entity.RoleAdmin).IsEmpty())
}

func TestDecide(t *testing.T) {
	p := defaultPolicy(t)
	fin := entity.Principal{UserID: "u1", Role: entity.RoleFinance}

	t.Run("unclassified query is allowed", func(t *testing.T) {
		d := p.Decide(fin, nil)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Denied)
	})

	t.Run("own department is allowed", func(t *testing.T) {
		d := p.Decide(fin, []entity.Department{entity.DepartmentFinance, entity.DepartmentGeneral})
		assert.True(t, d.Allowed)
	})

	t.Run("any unpermitted department denies the whole query", func(t *testing.T) {
		d := p.Decide(fin, []entity.Department{entity.DepartmentHR, entity.DepartmentFinance, entity.DepartmentMarketing})
		assert.False(t, d.Allowed)
		assert.Equal(t, []entity.Department{entity.DepartmentMarketing, entity.DepartmentHR}, d.Denied)
		assert.Equal(t,
			"Sorry, based on your 'Finance Team' role, you do not have permission to access information related to the Marketing or HR departments.",
			d.Reason)
	})

	t.Run("single department uses singular noun", func(t *testing.T) {
		d := p.Decide(entity.Principal{Role: entity.RoleEngineering}, []entity.Department{entity.DepartmentFinance})
		assert.False(t, d.Allowed)
		assert.Equal(t,
			"Sorry, based on your 'Engineering Department' role, you do not have permission to access information related to the Finance department.",
			d.Reason)
	})

	t.Run("unrestricted roles are never denied", func(t *testing.T) {
		for _, role := range []entity.Role{entity.RoleAdmin, entity.RoleExecutive} {
			d := p.Decide(entity.Principal{Role: role}, entity.AllDepartments())
			assert.True(t, d.Allowed, role)
		}
	})

	t.Run("unknown role is denied on any classified query", func(t *testing.T) {
		d := p.Decide(entity.Principal{Role: entity.Role("contractor")}, []entity.Department{entity.DepartmentGeneral})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "'contractor' role")
	})
}

func TestBuildFilter(t *testing.T) {
	p := defaultPolicy(t)

	for _, role := range entity.AllRoles() {
		perms := p.PermissionsFor(role)
		f := p.FilterFor(entity.Principal{Role: role})
		for _, d := range f.Departments() {
			assert.True(t, perms.Allows(d), "filter for %s leaks %s", role, d)
		}
	}

	admin := p.FilterFor(entity.Principal{Role: entity.RoleAdmin})
	assert.True(t, admin.Unrestricted())
	assert.ElementsMatch(t, entity.AllDepartments(), admin.Departments())

	hr := p.FilterFor(entity.Principal{Role: entity.RoleHR})
	assert.False(t, hr.Unrestricted())
	assert.True(t, hr.Contains(entity.DepartmentHR))
	assert.True(t, hr.Contains(entity.DepartmentGeneral))
	assert.False(t, hr.Contains(entity.DepartmentFinance))

	ds := hr.Departments()
	ds[0] = entity.DepartmentFinance
	assert.False(t, hr.Contains(entity.DepartmentFinance), "Departments must return a copy")
}

func TestValidateAssignment(t *testing.T) {
	p := defaultPolicy(t)

	require.NoError(t, p.ValidateAssignment(entity.RoleFinance, entity.DepartmentFinance))
	require.NoError(t, p.ValidateAssignment(entity.RoleFinance, entity.DepartmentGeneral))
	require.NoError(t, p.ValidateAssignment(entity.RoleAdmin, entity.DepartmentHR))

	assert.ErrorIs(t, p.ValidateAssignment(entity.RoleFinance, entity.DepartmentHR), ErrInvalidAssignment)
	assert.ErrorIs(t, p.ValidateAssignment(entity.RoleUnknown, entity.DepartmentGeneral), ErrInvalidAssignment)
	assert.ErrorIs(t, p.ValidateAssignment(entity.RoleFinance, entity.Department("legal")), ErrInvalidAssignment)
}

func TestRoles_FixedOrder(t *testing.T) {
	roles := defaultPolicy(t).Roles()
	require.Len(t, roles, len(entity.AllRoles()))
	for i, role := range entity.AllRoles() {
		assert.Equal(t, role, roles[i].Role)
	}
}

func withRole(table map[string]RoleSpec, name string, spec RoleSpec) map[string]RoleSpec {
	table[name] = spec
	return table
}

func withoutRole(table map[string]RoleSpec, name string) map[string]RoleSpec {
	delete(table, name)
	return table
}
