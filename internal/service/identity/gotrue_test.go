package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"ats-be/internal/domain"
	"ats-be/internal/service"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	event   service.SessionEvent
	session *domain.Session
}

func collectEvents(c *Client) (*[]recordedEvent, *sync.Mutex, func()) {
	var mu sync.Mutex
	events := []recordedEvent{}
	unsubscribe := c.OnSessionChange(func(event service.SessionEvent, session *domain.Session) {
		mu.Lock()
		events = append(events, recordedEvent{event: event, session: session})
		mu.Unlock()
	})
	return &events, &mu, unsubscribe
}

func TestClient_SignInWithPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "user-1", "email": "ada@example.com"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "anon-key", logger.NewNop())
	events, mu, unsubscribe := collectEvents(client)
	defer unsubscribe()

	t.Run("Wrong password", func(t *testing.T) {
		err := client.SignInWithPassword(context.Background(), "ada@example.com", "wrong")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))

		session, err := client.GetCurrentSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("Successful grant announces the session", func(t *testing.T) {
		require.NoError(t, client.SignInWithPassword(context.Background(), "ada@example.com", "secret"))

		session, err := client.GetCurrentSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "user-1", session.UserID)
		assert.Equal(t, "access-1", session.AccessToken)

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, *events)
		last := (*events)[len(*events)-1]
		assert.Equal(t, service.SessionSignedIn, last.event)
		require.NotNil(t, last.session)
		assert.Equal(t, "user-1", last.session.UserID)
	})
}

func TestClient_SignUp(t *testing.T) {
	t.Run("Autoconfirm returns token payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/signup", r.URL.Path)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			metadata, _ := body["data"].(map[string]interface{})
			assert.Equal(t, "Ada", metadata["first_name"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-9",
				"refresh_token": "refresh-9",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-9", "email": "ada@example.com"},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "anon-key", logger.NewNop())
		first := "Ada"
		userID, err := client.SignUp(context.Background(), service.SignUpParams{
			Email:     "ada@example.com",
			Password:  "secret",
			FirstName: &first,
		})
		require.NoError(t, err)
		assert.Equal(t, "user-9", userID)

		// Autoconfirm issues a session right away
		session, err := client.GetCurrentSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "user-9", session.UserID)
	})

	t.Run("Confirmation pending returns bare user", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"id": "user-9", "email": "ada@example.com"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "anon-key", logger.NewNop())
		userID, err := client.SignUp(context.Background(), service.SignUpParams{Email: "ada@example.com", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, "user-9", userID)

		session, err := client.GetCurrentSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session, "no session until the email is confirmed")
	})

	t.Run("Duplicate email is a validation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"msg": "User already registered"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "anon-key", logger.NewNop())
		_, err := client.SignUp(context.Background(), service.SignUpParams{Email: "dup@example.com", Password: "secret"})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestClient_SignOut(t *testing.T) {
	var sawLogout atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-1", "email": "ada@example.com"},
			})
		case "/auth/v1/logout":
			sawLogout.Store(true)
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "anon-key", logger.NewNop())
	events, mu, unsubscribe := collectEvents(client)
	defer unsubscribe()

	require.NoError(t, client.SignInWithPassword(context.Background(), "ada@example.com", "secret"))
	require.NoError(t, client.SignOut(context.Background()))

	assert.True(t, sawLogout.Load())
	session, err := client.GetCurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	mu.Lock()
	defer mu.Unlock()
	last := (*events)[len(*events)-1]
	assert.Equal(t, service.SessionSignedOut, last.event)
	assert.Nil(t, last.session)
}

func TestClient_SignOutClearsLocallyWhenRevocationFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-1", "email": "ada@example.com"},
			})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "anon-key", logger.NewNop())
	require.NoError(t, client.SignInWithPassword(context.Background(), "ada@example.com", "secret"))

	err := client.SignOut(context.Background())
	assert.Error(t, err)

	session, getErr := client.GetCurrentSession(context.Background())
	require.NoError(t, getErr)
	assert.Nil(t, session, "local session must clear even when revocation fails")
}

func TestClient_SignOutWithoutSession(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "anon-key", logger.NewNop())
	assert.NoError(t, client.SignOut(context.Background()), "sign-out with no session never hits the network")
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "anon-key", logger.NewNop())
	err := client.SignInWithPassword(context.Background(), "ada@example.com", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransient))
}
