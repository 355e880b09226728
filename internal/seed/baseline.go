package seed

import "github.com/vahri/branchguard/internal/models"

// Baseline is the single declarative policy document applied at startup.
// It replaces a history of incremental grant migrations: the whole
// role-grant matrix lives here, keyed by one version marker recorded in
// policy_versions.
type Baseline struct {
	VersionKey  string
	Description string
	Branches    []BranchSeed
	Roles       []RoleSeed
	Resources   []ResourceSeed
	Grants      []GrantSeed
	AdminUser   AdminSeed
}

type BranchSeed struct {
	Code string
	Name string
}

type RoleSeed struct {
	Key      string
	Name     string
	IsSystem bool
}

type ResourceSeed struct {
	Key          string
	Name         string
	RoutePattern string
	Type         models.ResourceType
	SortOrder    int
}

type GrantSeed struct {
	RoleKey     string
	ResourceKey string
	ActionKey   string
	Effect      models.Effect
	Scope       models.Scope
}

type AdminSeed struct {
	Email    string
	Name     string
	Password string
	RoleKey  string
}

// Default is the shipped baseline. Deny rows carry scope none by
// convention; readers derive the decision from the effect alone.
func Default() Baseline {
	allowAll := func(role, resource string) []GrantSeed {
		var out []GrantSeed
		for _, action := range models.ActionKeys() {
			out = append(out, GrantSeed{role, resource, action, models.EffectAllow, models.ScopeAll})
		}
		return out
	}

	resources := []ResourceSeed{
		{Key: "dashboard", Name: "Dashboard", RoutePattern: "/dashboard", Type: models.ResourcePage, SortOrder: 10},
		{Key: "orders", Name: "Orders", RoutePattern: "/api/v1/orders", Type: models.ResourceAPI, SortOrder: 20},
		{Key: "users", Name: "Users", RoutePattern: "/api/v1/users", Type: models.ResourceAPI, SortOrder: 30},
		{Key: "grants", Name: "Role Grants", RoutePattern: "/api/v1/grants", Type: models.ResourceAPI, SortOrder: 40},
		{Key: "overrides", Name: "User Overrides", RoutePattern: "/api/v1/overrides", Type: models.ResourceAPI, SortOrder: 50},
		{Key: "approvals", Name: "Override Approvals", RoutePattern: "/api/v1/approvals", Type: models.ResourceAPI, SortOrder: 60},
		{Key: "audit", Name: "Audit Trail", RoutePattern: "/api/v1/audit", Type: models.ResourceAPI, SortOrder: 70},
		{Key: "catalog", Name: "Resource Catalog", RoutePattern: "/api/v1/resources", Type: models.ResourceMenu, SortOrder: 80},
	}

	var grants []GrantSeed

	// Admin carries explicit allow/all grants; it has no resolver-level
	// bypass, so its reach is visible to the access review report.
	for _, res := range resources {
		grants = append(grants, allowAll("admin", res.Key)...)
	}

	// Manager: branch-wide on business data, read-only elsewhere.
	grants = append(grants,
		GrantSeed{"manager", "dashboard", models.ActionAccess, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "orders", models.ActionAccess, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "orders", models.ActionView, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "orders", models.ActionCreate, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "orders", models.ActionUpdate, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "orders", models.ActionDelete, models.EffectDeny, models.ScopeNone},
		GrantSeed{"manager", "users", models.ActionView, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "audit", models.ActionView, models.EffectAllow, models.ScopeBranch},
		GrantSeed{"manager", "catalog", models.ActionView, models.EffectAllow, models.ScopeBranch},
	)

	// Employee: own rows only, no deletes.
	grants = append(grants,
		GrantSeed{"employee", "dashboard", models.ActionAccess, models.EffectAllow, models.ScopeOwn},
		GrantSeed{"employee", "orders", models.ActionAccess, models.EffectAllow, models.ScopeOwn},
		GrantSeed{"employee", "orders", models.ActionView, models.EffectAllow, models.ScopeOwn},
		GrantSeed{"employee", "orders", models.ActionCreate, models.EffectAllow, models.ScopeOwn},
		GrantSeed{"employee", "orders", models.ActionUpdate, models.EffectAllow, models.ScopeOwn},
		GrantSeed{"employee", "orders", models.ActionDelete, models.EffectDeny, models.ScopeNone},
		GrantSeed{"employee", "catalog", models.ActionView, models.EffectAllow, models.ScopeOwn},
	)

	return Baseline{
		VersionKey:  "baseline-2026.08",
		Description: "Initial role-grant matrix: admin/manager/employee over core resources",
		Branches: []BranchSeed{
			{Code: "hq", Name: "Headquarters"},
		},
		Roles: []RoleSeed{
			{Key: "admin", Name: "Administrator", IsSystem: true},
			{Key: "manager", Name: "Branch Manager"},
			{Key: "employee", Name: "Employee"},
		},
		Resources: resources,
		Grants:    grants,
		AdminUser: AdminSeed{
			Email:    "admin@example.com",
			Name:     "Admin User",
			Password: "admin123", // change after first login
			RoleKey:  "admin",
		},
	}
}
