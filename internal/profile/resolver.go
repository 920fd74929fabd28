// Package profile keeps a profile row in sync with the session's identity
// and derives the role every access-control decision reads.
package profile

import (
	"context"
	"sync"
	"time"

	"ats-be/internal/domain"
	"ats-be/internal/repository"
	"ats-be/internal/session"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
)

const fetchTimeout = 10 * time.Second

// Snapshot is the read-only view of the resolver's state. Role is nil until
// a profile has been resolved; consumers must treat nil as deny, not as
// job_seeker.
type Snapshot struct {
	Profile *domain.Profile
	Role    *domain.Role
	Loading bool
	Err     error
}

// Resolver owns the profile. Nothing outside this package mutates it.
type Resolver struct {
	store  repository.ProfileStore
	logger *logger.Logger

	mu      sync.Mutex
	gen     uint64
	userID  string
	profile *domain.Profile
	loading bool
	err     error
	subs    map[int]func(Snapshot)
	nextID  int

	notifyMu sync.Mutex
}

func NewResolver(store repository.ProfileStore, logger *logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
		subs:   map[int]func(Snapshot){},
	}
}

// Bind wires the resolver to a session store: a non-nil session triggers a
// re-fetch for its user id, an anonymous settled session clears the profile.
// Returns the unsubscribe func.
func (r *Resolver) Bind(store *session.Store) func() {
	return store.Subscribe(func(snap session.Snapshot) {
		if snap.Loading {
			return
		}
		if snap.Session != nil {
			r.SetUser(snap.Session.UserID)
		} else {
			r.SetUser("")
		}
	})
}

// SetUser switches the identity the profile tracks. The empty id clears the
// profile. Each call advances the generation counter, so a fetch issued for
// an earlier identity can never repopulate state after a switch or a
// sign-out, whatever order the results arrive in.
func (r *Resolver) SetUser(userID string) {
	r.mu.Lock()
	if userID == r.userID && (userID == "" || r.profile != nil || r.loading) {
		// Same identity, nothing to converge
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	r.userID = userID
	r.profile = nil
	r.err = nil
	r.loading = userID != ""
	r.mu.Unlock()
	r.notify()

	if userID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		r.fetch(ctx, userID, gen)
	}()
}

// Refresh re-fetches the current identity's row synchronously.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	userID := r.userID
	gen := r.gen
	r.mu.Unlock()

	if userID == "" {
		return apperrors.NewAuthenticationError("no authenticated user")
	}
	return r.fetch(ctx, userID, gen)
}

// fetch looks up the row and applies the result only if the generation is
// still current. Not-found and backend errors are soft: logged, folded into
// Err, profile left empty so the role stays nil (deny), never job_seeker.
func (r *Resolver) fetch(ctx context.Context, userID string, gen uint64) error {
	profile, err := r.store.GetByID(ctx, userID)

	r.mu.Lock()
	if gen != r.gen {
		// A newer identity won; discard this result
		r.mu.Unlock()
		r.logger.WithField("user_id", userID).Debug("Discarding stale profile fetch")
		return nil
	}
	r.loading = false
	if err != nil {
		r.err = err
		r.mu.Unlock()
		r.notify()
		r.logger.WithError(err).WithField("user_id", userID).Error("Profile fetch failed")
		return err
	}
	if profile == nil {
		r.err = apperrors.NewNotFoundError("profile not found")
		r.mu.Unlock()
		r.notify()
		r.logger.WithField("user_id", userID).Warn("No profile row for authenticated user; denying role-gated access")
		return nil
	}
	r.profile = profile
	r.err = nil
	r.mu.Unlock()
	r.notify()
	return nil
}

// Update writes the patch through to the backend keyed by the current user,
// then re-fetches so the exposed state reflects server truth rather than a
// client-side merge. Failure leaves the profile untouched.
func (r *Resolver) Update(ctx context.Context, patch domain.ProfileUpdate) error {
	r.mu.Lock()
	userID := r.userID
	r.mu.Unlock()

	if userID == "" {
		return apperrors.NewAuthenticationError("no authenticated user")
	}

	if err := r.store.Update(ctx, userID, patch); err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Error("Profile update failed")
		return err
	}

	return r.Refresh(ctx)
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Resolver) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: r.loading, Err: r.err}
	if r.profile != nil {
		copied := *r.profile
		snap.Profile = &copied
		role := copied.EffectiveRole()
		snap.Role = &role
	}
	return snap
}

// Subscribe registers for state change notifications and returns an
// unsubscribe func.
func (r *Resolver) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	snap := r.snapshotLocked()
	r.mu.Unlock()

	fn(snap)

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Resolver) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	snap := r.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Role returns the derived role, nil when no profile is resolved.
func (r *Resolver) Role() *domain.Role {
	return r.Snapshot().Role
}

// IsAdmin reports whether the resolved role is admin.
func (r *Resolver) IsAdmin() bool { return r.is(domain.RoleAdmin) }

// IsHR reports whether the resolved role is hr.
func (r *Resolver) IsHR() bool { return r.is(domain.RoleHR) }

// IsJobSeeker reports whether the resolved role is job_seeker.
func (r *Resolver) IsJobSeeker() bool { return r.is(domain.RoleJobSeeker) }

func (r *Resolver) is(role domain.Role) bool {
	current := r.Role()
	return current != nil && *current == role
}

// HasPermission reports whether the resolved role is in the required set.
// Always false while the role is nil.
func (r *Resolver) HasPermission(required []domain.Role) bool {
	return domain.HasPermission(r.Role(), required)
}
