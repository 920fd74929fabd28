package guard

import (
	"testing"

	"ats-be/internal/domain"
	"github.com/stretchr/testify/assert"
)

func rolePtr(r domain.Role) *domain.Role { return &r }

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		expected Decision
	}{
		{
			name:     "Loading always pends",
			req:      Request{Loading: true, Authenticated: true, Role: rolePtr(domain.RoleAdmin), RequiredRoles: []domain.Role{domain.RoleAdmin}},
			expected: DecisionPending,
		},
		{
			name:     "Loading pends even when anonymous",
			req:      Request{Loading: true},
			expected: DecisionPending,
		},
		{
			name:     "Anonymous goes to login",
			req:      Request{Authenticated: false},
			expected: DecisionRedirectToLogin,
		},
		{
			name:     "Anonymous goes to login regardless of required roles",
			req:      Request{Authenticated: false, RequiredRoles: []domain.Role{domain.RoleAdmin}},
			expected: DecisionRedirectToLogin,
		},
		{
			name:     "Unrestricted route renders without a role",
			req:      Request{Authenticated: true, Role: nil, RequiredRoles: nil},
			expected: DecisionRender,
		},
		{
			name:     "Unrestricted route renders with a role",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleJobSeeker), RequiredRoles: nil},
			expected: DecisionRender,
		},
		{
			name:     "Role in required set renders",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleAdmin), RequiredRoles: []domain.Role{domain.RoleAdmin}},
			expected: DecisionRender,
		},
		{
			name:     "Admin allowed on hr+admin route",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleAdmin), RequiredRoles: []domain.Role{domain.RoleHR, domain.RoleAdmin}},
			expected: DecisionRender,
		},
		{
			name:     "HR denied on admin route redirects home",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleHR), RequiredRoles: []domain.Role{domain.RoleAdmin}},
			expected: DecisionRedirectToRoleHome,
		},
		{
			name:     "Denied with notice preference",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleJobSeeker), RequiredRoles: []domain.Role{domain.RoleHR, domain.RoleAdmin}, PreferNotice: true},
			expected: DecisionRedirectToUnauthorizedNotice,
		},
		{
			name:     "Nil role denied on role-gated route",
			req:      Request{Authenticated: true, Role: nil, RequiredRoles: []domain.Role{domain.RoleJobSeeker}},
			expected: DecisionRedirectToRoleHome,
		},
		{
			name:     "Empty non-nil required set denies everyone",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleAdmin), RequiredRoles: []domain.Role{}},
			expected: DecisionRedirectToRoleHome,
		},
		{
			name:     "Notice preference never affects renders",
			req:      Request{Authenticated: true, Role: rolePtr(domain.RoleHR), RequiredRoles: []domain.Role{domain.RoleHR}, PreferNotice: true},
			expected: DecisionRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decide(tt.req), "decision mismatch")
		})
	}
}

// Every role against every single-role restriction: only the matching pair
// renders.
func TestDecide_RoleMatrix(t *testing.T) {
	for _, have := range domain.AllRoles {
		for _, want := range domain.AllRoles {
			decision := Decide(Request{
				Authenticated: true,
				Role:          rolePtr(have),
				RequiredRoles: []domain.Role{want},
			})
			if have == want {
				assert.Equal(t, DecisionRender, decision, "%s on %s route", have, want)
			} else {
				assert.Equal(t, DecisionRedirectToRoleHome, decision, "%s on %s route", have, want)
			}
		}
	}
}

// Anonymous principals land on login for every restriction shape, so the
// login redirect always wins over role handling.
func TestDecide_AnonymousAlwaysLogin(t *testing.T) {
	requiredSets := [][]domain.Role{
		nil,
		{},
		{domain.RoleAdmin},
		{domain.RoleHR, domain.RoleAdmin},
		{domain.RoleJobSeeker},
	}

	for _, required := range requiredSets {
		assert.Equal(t, DecisionRedirectToLogin, Decide(Request{Authenticated: false, RequiredRoles: required}))
	}
}

func TestRoleHome(t *testing.T) {
	tests := []struct {
		name     string
		role     *domain.Role
		expected string
	}{
		{name: "Admin home", role: rolePtr(domain.RoleAdmin), expected: "/admin"},
		{name: "HR home", role: rolePtr(domain.RoleHR), expected: "/hr"},
		{name: "Job seeker home", role: rolePtr(domain.RoleJobSeeker), expected: "/dashboard"},
		{name: "Nil role lands on public home", role: nil, expected: "/"},
		{name: "Unknown role lands on public home", role: rolePtr(domain.Role("superuser")), expected: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RoleHome(tt.role))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "pending", DecisionPending.String())
	assert.Equal(t, "render", DecisionRender.String())
	assert.Equal(t, "redirect_to_login", DecisionRedirectToLogin.String())
	assert.Equal(t, "redirect_to_role_home", DecisionRedirectToRoleHome.String())
	assert.Equal(t, "redirect_to_unauthorized_notice", DecisionRedirectToUnauthorizedNotice.String())
	assert.Equal(t, "unknown", Decision(99).String())
}
