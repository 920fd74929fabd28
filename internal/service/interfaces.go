package service

import (
	"context"

	"ats-be/internal/domain"
)

// SessionEvent names a change pushed by the identity provider.
type SessionEvent string

const (
	SessionSignedIn       SessionEvent = "SIGNED_IN"
	SessionTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
	SessionSignedOut      SessionEvent = "SIGNED_OUT"
	SessionExpired        SessionEvent = "SESSION_EXPIRED"
)

// SignUpParams carries identity credentials plus the profile attributes
// written alongside the new account.
type SignUpParams struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	Role      domain.Role
}

// IdentityProvider is the external service that issues and validates
// sessions. It is a consumed contract; the wire format behind it is not ours.
type IdentityProvider interface {
	// GetCurrentSession returns any existing valid session, or nil.
	GetCurrentSession(ctx context.Context) (*domain.Session, error)

	// SignInWithPassword exchanges credentials for a session. The new session
	// is delivered through the OnSessionChange channel, not the return value,
	// so there is exactly one state transition per sign-in.
	SignInWithPassword(ctx context.Context, email, password string) error

	// SignUp creates a new identity and returns its user id. A session may or
	// may not be issued depending on the provider's confirmation settings.
	SignUp(ctx context.Context, params SignUpParams) (string, error)

	// SignOut invalidates the current session with the provider.
	SignOut(ctx context.Context) error

	// OnSessionChange registers for push notifications (session created,
	// refreshed, or invalidated out of band). Callbacks for one subscriber
	// are invoked serially in arrival order. Returns an unsubscribe func.
	OnSessionChange(fn func(event SessionEvent, session *domain.Session)) func()
}
