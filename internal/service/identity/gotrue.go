// Package identity talks to the hosted GoTrue identity service: password
// grant, signup, logout, and out-of-band session change notifications driven
// by a refresh-token renewal loop.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ats-be/internal/domain"
	"ats-be/internal/service"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
)

// refreshSkew is how long before token expiry the renewal loop fires.
const refreshSkew = 30 * time.Second

// Client is an IdentityProvider backed by a GoTrue endpoint. It owns at most
// one live session and pushes every session transition to subscribers in
// arrival order.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *logger.Logger

	mu       sync.Mutex
	current  *domain.Session
	watchers map[int]func(service.SessionEvent, *domain.Session)
	nextID   int
	timer    *time.Timer

	// dispatchMu serializes callback invocation so subscribers observe
	// events in the order they were applied
	dispatchMu sync.Mutex
}

// NewClient creates a GoTrue client for {baseURL}/auth/v1.
func NewClient(baseURL, anonKey string, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:   logger,
		watchers: map[int]func(service.SessionEvent, *domain.Session){},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e *errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "identity provider rejected the request"
}

// GetCurrentSession returns the live session, renewing it first if the
// access token has already expired and a refresh token is on hand.
func (c *Client) GetCurrentSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	if session.Expired(time.Now()) && session.RefreshToken != "" {
		if err := c.refresh(ctx, session.RefreshToken); err != nil {
			return nil, nil
		}
		c.mu.Lock()
		session = c.current
		c.mu.Unlock()
	}

	copied := *session
	return &copied, nil
}

// SignInWithPassword performs the password grant. The resulting session is
// applied locally and announced via OnSessionChange; the caller gets only
// the error channel.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.post(ctx, "/token?grant_type=password", body, "")
	if err != nil {
		return apperrors.NewTransientError("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return apperrors.NewAuthenticationError(errResp.text())
	}
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return apperrors.NewInternalError("failed to decode token response", err)
	}

	c.applySession(service.SessionSignedIn, sessionFromToken(&token))
	return nil
}

// SignUp creates an identity. Profile provisioning is the caller's job; the
// provider only stores the attributes as signup metadata.
func (c *Client) SignUp(ctx context.Context, params service.SignUpParams) (string, error) {
	metadata := map[string]interface{}{}
	if params.FirstName != nil {
		metadata["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		metadata["last_name"] = *params.LastName
	}
	if params.Role.Valid() {
		metadata["role"] = string(params.Role)
	}

	body := map[string]interface{}{
		"email":    params.Email,
		"password": params.Password,
		"data":     metadata,
	}

	resp, err := c.post(ctx, "/signup", body, "")
	if err != nil {
		return "", apperrors.NewTransientError("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", apperrors.NewValidationError(errResp.text(), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	// With autoconfirm the response is a full token payload; with email
	// confirmation pending it is just the user object
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewInternalError("failed to read signup response", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(raw, &token); err == nil && token.AccessToken != "" {
		c.applySession(service.SessionSignedIn, sessionFromToken(&token))
		return token.User.ID, nil
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return "", apperrors.NewInternalError("signup response carried no user id", err)
	}

	return user.ID, nil
}

// SignOut revokes the session with the provider and always clears the local
// one, so a failed revocation cannot leave a signed-in looking state behind.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	var revokeErr error
	if session != nil {
		resp, err := c.post(ctx, "/logout", nil, session.AccessToken)
		if err != nil {
			revokeErr = apperrors.NewTransientError("identity provider unreachable", err)
		} else {
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
				revokeErr = fmt.Errorf("logout returned status %d", resp.StatusCode)
			}
		}
	}

	c.applySession(service.SessionSignedOut, nil)

	if revokeErr != nil {
		c.logger.WithError(revokeErr).Warn("Session revocation failed, local session cleared anyway")
	}
	return revokeErr
}

// OnSessionChange registers a watcher; returns its unsubscribe func.
func (c *Client) OnSessionChange(fn func(service.SessionEvent, *domain.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

// refresh exchanges the refresh token for a new session and announces it.
func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	resp, err := c.post(ctx, "/token?grant_type=refresh_token", body, "")
	if err != nil {
		return apperrors.NewTransientError("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.applySession(service.SessionExpired, nil)
		return apperrors.NewAuthenticationError("session refresh rejected")
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return apperrors.NewInternalError("failed to decode token response", err)
	}

	c.applySession(service.SessionTokenRefreshed, sessionFromToken(&token))
	return nil
}

// applySession replaces the current session, reschedules the renewal loop,
// and notifies watchers in order.
func (c *Client) applySession(event service.SessionEvent, session *domain.Session) {
	c.mu.Lock()
	c.current = session
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if session != nil && session.RefreshToken != "" && !session.ExpiresAt.IsZero() {
		wait := time.Until(session.ExpiresAt) - refreshSkew
		if wait < time.Second {
			wait = time.Second
		}
		refreshToken := session.RefreshToken
		c.timer = time.AfterFunc(wait, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.refresh(ctx, refreshToken); err != nil {
				c.logger.WithError(err).Warn("Background session refresh failed")
			}
		})
	}
	watchers := make([]func(service.SessionEvent, *domain.Session), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.Unlock()

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	for _, fn := range watchers {
		var copied *domain.Session
		if session != nil {
			s := *session
			copied = &s
		}
		fn(event, copied)
	}

	c.logger.WithFields(map[string]interface{}{
		"event":         string(event),
		"authenticated": session != nil,
	}).Debug("Session change applied")
}

func (c *Client) post(ctx context.Context, path string, body interface{}, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(body))
	if resp.StatusCode >= 500 {
		return apperrors.NewTransientError("identity provider error", err)
	}
	return apperrors.NewInternalError("unexpected identity provider response", err)
}

func sessionFromToken(token *tokenResponse) *domain.Session {
	return &domain.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		UserID:       token.User.ID,
		Email:        token.User.Email,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
}
