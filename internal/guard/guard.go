// Package guard holds the single access-control decision function. Every
// role-gated navigation funnels through Decide; the transport layer only
// performs the side effect the returned decision names.
package guard

import "ats-be/internal/domain"

// Decision is the outcome of evaluating a navigation request.
type Decision int

const (
	// DecisionPending means session or profile is still resolving; no
	// redirect may be issued yet.
	DecisionPending Decision = iota
	DecisionRender
	DecisionRedirectToLogin
	DecisionRedirectToRoleHome
	DecisionRedirectToUnauthorizedNotice
)

// String implements fmt.Stringer for log output and test failure messages.
func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionRender:
		return "render"
	case DecisionRedirectToLogin:
		return "redirect_to_login"
	case DecisionRedirectToRoleHome:
		return "redirect_to_role_home"
	case DecisionRedirectToUnauthorizedNotice:
		return "redirect_to_unauthorized_notice"
	default:
		return "unknown"
	}
}

// Request carries everything Decide is allowed to see. Errors from the
// session or profile layers never reach it; they have already been folded
// into Role (nil) and Loading.
type Request struct {
	// Loading is true while the session or the profile is still resolving.
	Loading bool
	// Authenticated is true when a session exists.
	Authenticated bool
	// Role is nil until a profile has been resolved. A nil role denies every
	// role-gated route.
	Role *domain.Role
	// RequiredRoles is nil for unrestricted routes. An empty non-nil slice
	// denies everyone.
	RequiredRoles []domain.Role
	// PreferNotice selects an explanatory unauthorized page over a silent
	// redirect. The notice's action leads to the same role home.
	PreferNotice bool
}

// Decide evaluates the decision table top-down, first match wins:
//
//	loading                      -> Pending
//	no session                   -> RedirectToLogin
//	no role restriction          -> Render
//	role in required set         -> Render
//	otherwise                    -> RedirectToRoleHome or the notice variant
func Decide(req Request) Decision {
	if req.Loading {
		return DecisionPending
	}
	if !req.Authenticated {
		return DecisionRedirectToLogin
	}
	if req.RequiredRoles == nil {
		return DecisionRender
	}
	if domain.HasPermission(req.Role, req.RequiredRoles) {
		return DecisionRender
	}
	if req.PreferNotice {
		return DecisionRedirectToUnauthorizedNotice
	}
	return DecisionRedirectToRoleHome
}

// Role home paths. The unknown-role fallback is the public home, never a
// role dashboard.
const (
	AdminHome     = "/admin"
	HRHome        = "/hr"
	JobSeekerHome = "/dashboard"
	PublicHome    = "/"
	LoginPath     = "/login"
)

// RoleHome maps a resolved role to its landing page. Unknown or missing
// roles land on the public home.
func RoleHome(role *domain.Role) string {
	if role == nil {
		return PublicHome
	}
	switch *role {
	case domain.RoleAdmin:
		return AdminHome
	case domain.RoleHR:
		return HRHome
	case domain.RoleJobSeeker:
		return JobSeekerHome
	default:
		return PublicHome
	}
}
