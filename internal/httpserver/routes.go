package httpserver

import (
	"runtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/approval"
	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/httpserver/handlers"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/policy"
)

// TargetFunc loads the concrete row an object-scope check runs against.
type TargetFunc func(c *gin.Context, db *gorm.DB, id int64) (policy.Target, error)

// Route is one entry of the typed route registry. Routes are data, not
// string literals scattered through handler wiring: the router mounts
// them and the static verifier audits them from the same structure.
type Route struct {
	Method string
	Path   string

	// Resource and Action declare the permission the route guard
	// resolves. Empty on Public routes and on Unguarded routes such
	// as the whoami endpoint.
	Resource string
	Action   string

	// ObjectScope marks routes that take a target id and must re-check
	// the resolved scope against the loaded row before the handler
	// runs.
	ObjectScope bool
	Target      TargetFunc

	// Public routes skip authentication entirely (login, logout).
	Public bool

	// Unguarded marks authenticated routes exempt from the permission
	// check; the static verifier treats anything else without a
	// Resource as a violation.
	Unguarded bool

	// Registration site, recorded for verifier output.
	File string
	Line int

	Handler gin.HandlerFunc
}

// Registry collects routes, stamping each with its registration site.
type Registry struct {
	routes []Route
}

func (r *Registry) Add(route Route) {
	if _, file, line, ok := runtime.Caller(1); ok {
		route.File = file
		route.Line = line
	}
	r.routes = append(r.routes, route)
}

func (r *Registry) Routes() []Route { return r.routes }

// Routes builds the full route table. db may be nil when the table is
// built only for static verification; handler factories close over it
// without touching it.
func Routes(db *gorm.DB, cfg config.Config, logger *zap.Logger) []Route {
	rec := audit.Recorder{Log: logger}
	approvals := approval.Service{DB: db, Audit: rec, Log: logger}

	reg := &Registry{}

	// Bootstrap allowlist: authentication endpoints bypass the guard.
	reg.Add(Route{Method: "POST", Path: "/api/v1/auth/login", Public: true,
		Handler: handlers.Login(db, cfg.JWTSecret)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/auth/logout", Public: true,
		Handler: handlers.Logout()})
	reg.Add(Route{Method: "GET", Path: "/api/v1/me", Unguarded: true,
		Handler: handlers.Me(db)})

	// Catalog.
	reg.Add(Route{Method: "GET", Path: "/api/v1/resources",
		Resource: "catalog", Action: models.ActionView,
		Handler: handlers.ListResources(db)})

	// Orders: the branch-scoped business surface.
	reg.Add(Route{Method: "GET", Path: "/api/v1/orders",
		Resource: "orders", Action: models.ActionView,
		Handler: handlers.ListOrders(db)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/orders",
		Resource: "orders", Action: models.ActionCreate,
		Handler: handlers.CreateOrder(db)})
	reg.Add(Route{Method: "GET", Path: "/api/v1/orders/:id",
		Resource: "orders", Action: models.ActionView,
		ObjectScope: true, Target: handlers.LoadOrderTarget,
		Handler: handlers.GetOrder(db)})
	reg.Add(Route{Method: "PUT", Path: "/api/v1/orders/:id",
		Resource: "orders", Action: models.ActionUpdate,
		ObjectScope: true, Target: handlers.LoadOrderTarget,
		Handler: handlers.UpdateOrder(db)})
	reg.Add(Route{Method: "DELETE", Path: "/api/v1/orders/:id",
		Resource: "orders", Action: models.ActionDelete,
		ObjectScope: true, Target: handlers.LoadOrderTarget,
		Handler: handlers.DeleteOrder(db)})

	// Users.
	reg.Add(Route{Method: "GET", Path: "/api/v1/users",
		Resource: "users", Action: models.ActionView,
		Handler: handlers.ListUsers(db)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/users/:id/disable",
		Resource: "users", Action: models.ActionUpdate,
		ObjectScope: true, Target: handlers.LoadUserTarget,
		Handler: handlers.DisableUser(db, rec, logger)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/users/:id/offboard",
		Resource: "users", Action: models.ActionDelete,
		ObjectScope: true, Target: handlers.LoadUserTarget,
		Handler: handlers.OffboardUser(db, rec, logger)})

	// Role-grant matrix (admin management surface).
	reg.Add(Route{Method: "GET", Path: "/api/v1/grants",
		Resource: "grants", Action: models.ActionView,
		Handler: handlers.ListRoleGrants(db)})
	reg.Add(Route{Method: "PUT", Path: "/api/v1/grants",
		Resource: "grants", Action: models.ActionUpdate,
		Handler: handlers.UpsertRoleGrant(db, rec)})
	reg.Add(Route{Method: "DELETE", Path: "/api/v1/grants/:id",
		Resource: "grants", Action: models.ActionDelete,
		Handler: handlers.DeleteRoleGrant(db, rec)})

	// User overrides (direct edits + revocation).
	reg.Add(Route{Method: "GET", Path: "/api/v1/overrides",
		Resource: "overrides", Action: models.ActionView,
		Handler: handlers.ListUserOverrides(db)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/overrides",
		Resource: "overrides", Action: models.ActionCreate,
		Handler: handlers.CreateUserOverride(db, rec)})
	reg.Add(Route{Method: "DELETE", Path: "/api/v1/overrides/:id",
		Resource: "overrides", Action: models.ActionDelete,
		Handler: handlers.RevokeUserOverride(db, rec)})

	// Approval workflow.
	reg.Add(Route{Method: "GET", Path: "/api/v1/approvals",
		Resource: "approvals", Action: models.ActionView,
		Handler: handlers.ListApprovalRequests(db)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/approvals",
		Resource: "approvals", Action: models.ActionCreate,
		Handler: handlers.CreateApprovalRequest(approvals)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/approvals/:id/approve",
		Resource: "approvals", Action: models.ActionUpdate,
		Handler: handlers.ApproveRequest(approvals)})
	reg.Add(Route{Method: "POST", Path: "/api/v1/approvals/:id/reject",
		Resource: "approvals", Action: models.ActionUpdate,
		Handler: handlers.RejectRequest(approvals)})

	// Audit trail (branch-scoped by row security).
	reg.Add(Route{Method: "GET", Path: "/api/v1/audit",
		Resource: "audit", Action: models.ActionView,
		Handler: handlers.ListAuditEntries(db)})

	return reg.Routes()
}
