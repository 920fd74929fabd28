// Package session holds the single-principal session state machine:
// uninitialized -> loading -> anonymous|authenticated, with authenticated
// and anonymous reachable from each other through sign-in, sign-out, and
// out-of-band invalidation pushed by the identity provider.
package session

import (
	"context"
	"sync"
	"time"

	"ats-be/internal/domain"
	"ats-be/internal/repository"
	"ats-be/internal/service"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
)

// Snapshot is the read-only view handed to subscribers. Errors are state
// here, not panics; the route guard ignores Err by design.
type Snapshot struct {
	Session *domain.Session
	Loading bool
	Err     error
}

// Store owns the session. Nothing outside this package mutates it.
type Store struct {
	provider service.IdentityProvider
	profiles repository.ProfileStore
	logger   *logger.Logger

	mu      sync.Mutex
	session *domain.Session
	loading bool
	err     error
	subs    map[int]func(Snapshot)
	nextID  int

	initOnce    sync.Once
	unsubscribe func()

	// notifyMu keeps subscriber callbacks in the order state changes were
	// applied
	notifyMu sync.Mutex

	// upsertRetries bounds the background retry of a failed signup profile
	// write; retryDelay is shortened by tests
	upsertRetries int
	retryDelay    time.Duration
}

// New creates a session store over the given provider and profile table
// service.
func New(provider service.IdentityProvider, profiles repository.ProfileStore, logger *logger.Logger) *Store {
	return &Store{
		provider:      provider,
		profiles:      profiles,
		logger:        logger,
		subs:          map[int]func(Snapshot){},
		upsertRetries: 3,
		retryDelay:    2 * time.Second,
	}
}

// Initialize asks the provider for any existing valid session. It runs
// exactly once per process; later calls observe the already-settled state
// and change nothing.
func (s *Store) Initialize(ctx context.Context) error {
	var initErr error
	s.initOnce.Do(func() {
		s.mu.Lock()
		s.loading = true
		s.mu.Unlock()
		s.notify()

		// Register for pushes before the initial fetch so a session change
		// racing the fetch is not lost; arrival order at apply() decides.
		s.unsubscribe = s.provider.OnSessionChange(func(event service.SessionEvent, session *domain.Session) {
			s.logger.WithField("event", string(event)).Debug("Session change received")
			s.apply(session, nil)
		})

		existing, err := s.provider.GetCurrentSession(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to restore existing session")
			s.apply(nil, err)
			initErr = err
			return
		}
		s.apply(existing, nil)
	})
	return initErr
}

// Close detaches the store from the provider's push channel.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var session *domain.Session
	if s.session != nil {
		copied := *s.session
		session = &copied
	}
	return Snapshot{Session: session, Loading: s.loading, Err: s.err}
}

// Subscribe registers for state change notifications and returns an
// unsubscribe func. The current snapshot is delivered immediately.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SignIn exchanges credentials for a session. On success the store does not
// set the session itself; the provider's push notification converges the
// state, so there is exactly one transition per sign-in.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.notify()

	if err := s.provider.SignInWithPassword(ctx, email, password); err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		s.notify()
		return err
	}

	return nil
}

// SignUp creates an identity and provisions its profile row. An identity
// failure aborts; a profile failure after the identity exists is surfaced as
// a distinct partial-signup condition and retried in the background.
func (s *Store) SignUp(ctx context.Context, params service.SignUpParams) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.notify()

	userID, err := ProvisionAccount(ctx, s.provider, s.profiles, params, s.logger)

	s.mu.Lock()
	s.loading = false
	s.err = err
	s.mu.Unlock()
	s.notify()

	if apperrors.IsPartialSignup(err) {
		go s.retryProfileUpsert(userID, params)
	}
	return err
}

// SignOut asks the provider to invalidate the session. The local session is
// cleared regardless of the provider's answer so the caller can never be
// stuck looking authenticated after a user-initiated sign-out.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	// The provider push normally clears the state; apply locally too in case
	// the provider failed before announcing anything.
	s.apply(nil, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Provider sign-out failed, local session cleared")
	}
	return err
}

// apply atomically replaces the session and clears loading. Pushes and local
// transitions funnel through here, so last writer wins.
func (s *Store) apply(session *domain.Session, err error) {
	s.mu.Lock()
	s.session = session
	s.loading = false
	s.err = err
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) retryProfileUpsert(userID string, params service.SignUpParams) {
	profile := profileForSignup(userID, params)
	for attempt := 1; attempt <= s.upsertRetries; attempt++ {
		time.Sleep(s.retryDelay * time.Duration(attempt))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.profiles.Upsert(ctx, profile)
		cancel()

		if err == nil {
			s.logger.WithFields(map[string]interface{}{
				"user_id": userID,
				"attempt": attempt,
			}).Info("Deferred profile provisioning succeeded")
			return
		}
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"attempt": attempt,
		}).Warn("Deferred profile provisioning failed")
	}
	s.logger.WithField("user_id", userID).Error("Profile provisioning exhausted retries; account has no profile row")
}

// ProvisionAccount runs the two-step signup: identity first, then the
// profile upsert. Returns the new user id together with any error; a
// partial-signup error still carries the id so the caller can reconcile.
func ProvisionAccount(ctx context.Context, provider service.IdentityProvider, profiles repository.ProfileStore, params service.SignUpParams, log *logger.Logger) (string, error) {
	userID, err := provider.SignUp(ctx, params)
	if err != nil {
		return "", err
	}

	if err := profiles.Upsert(ctx, profileForSignup(userID, params)); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Profile write failed after identity creation")
		return userID, apperrors.NewPartialSignupError(userID, err)
	}

	log.WithField("user_id", userID).Info("Account provisioned")
	return userID, nil
}

func profileForSignup(userID string, params service.SignUpParams) *domain.Profile {
	role := params.Role
	if !role.Valid() {
		role = domain.RoleJobSeeker
	}
	return &domain.Profile{
		ID:        userID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Role:      role,
	}
}
