// Package routecheck is the build-time route-guard verifier. It walks
// the typed route registry and reports every route whose declaration is
// weaker than the rules require, turning a forgotten guard into a CI
// failure instead of a runtime incident.
package routecheck

import (
	"fmt"
	"strings"

	"github.com/vahri/branchguard/internal/httpserver"
)

// Critical names a (resource, action) combination that must carry an
// object-scope check whenever its route takes a target id.
type Critical struct {
	Resource string
	Action   string
}

// DefaultCritical is the maintained critical-route list: id-scoped
// mutations of users and orders must re-check the target row, not just
// the coarse route-level permission.
func DefaultCritical() []Critical {
	return []Critical{
		{Resource: "users", Action: "update"},
		{Resource: "users", Action: "delete"},
		{Resource: "orders", Action: "update"},
		{Resource: "orders", Action: "delete"},
	}
}

type Violation struct {
	Route   httpserver.Route
	Problem string
}

func (v Violation) String() string {
	rule := "-"
	if v.Route.Resource != "" {
		rule = v.Route.Resource + ":" + v.Route.Action
	}
	return fmt.Sprintf("%s:%d %s %s (%s) %s",
		v.Route.File, v.Route.Line, v.Route.Method, v.Route.Path, rule, v.Problem)
}

func mutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

func hasIDParam(path string) bool {
	return strings.Contains(path, "/:")
}

// Verify checks every route against the guard rules:
//
//  1. a mutating or id-scoped route must declare a permission, unless
//     it is on the public bootstrap allowlist or explicitly marked
//     unguarded;
//  2. a route matching the critical list that takes an id must declare
//     the object-scope check;
//  3. an object-scope declaration must come with a target loader.
func Verify(routes []httpserver.Route, critical []Critical) []Violation {
	var violations []Violation

	for _, rt := range routes {
		if rt.Public {
			continue
		}

		if rt.Resource == "" {
			if rt.Unguarded && !mutating(rt.Method) && !hasIDParam(rt.Path) {
				continue
			}
			violations = append(violations, Violation{Route: rt,
				Problem: "missing permission check"})
			continue
		}

		if rt.ObjectScope && rt.Target == nil {
			violations = append(violations, Violation{Route: rt,
				Problem: "object-scope declared without a target loader"})
		}

		if !hasIDParam(rt.Path) || rt.ObjectScope {
			continue
		}
		for _, crit := range critical {
			if rt.Resource == crit.Resource && rt.Action == crit.Action {
				violations = append(violations, Violation{Route: rt,
					Problem: "critical route missing object-scope check"})
				break
			}
		}
	}

	return violations
}
