package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ats-be/internal/domain"
	apperrors "ats-be/pkg/errors"
	"ats-be/pkg/logger"
)

// RESTProfileStore implements ProfileStore against the hosted row service's
// REST surface (PostgREST), for deployments without direct database access.
type RESTProfileStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRESTProfileStore creates a profile store talking to {baseURL}/rest/v1.
func NewRESTProfileStore(baseURL, serviceKey string, logger *logger.Logger) *RESTProfileStore {
	return &RESTProfileStore{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (r *RESTProfileStore) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+"/rest/v1"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// GetByID fetches a single row via id=eq.{id}. A missing row is (nil, nil).
func (r *RESTProfileStore) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	path := "/profiles?id=eq." + url.QueryEscape(id)
	req, err := r.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	// Singular representation: 406 instead of an empty array when absent
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransientError("profile service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, r.statusError(resp)
	}

	var profile domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile row: %w", err)
	}

	return &profile, nil
}

// Upsert writes a full row, merging duplicates on the primary key so a row
// created by a signup trigger does not make the write fail.
func (r *RESTProfileStore) Upsert(ctx context.Context, profile *domain.Profile) error {
	row := map[string]interface{}{
		"id":         profile.ID,
		"first_name": profile.FirstName,
		"last_name":  profile.LastName,
		"bio":        profile.Bio,
		"avatar_url": profile.AvatarURL,
	}
	if profile.Role.Valid() {
		row["role"] = string(profile.Role)
	}

	req, err := r.newRequest(ctx, http.MethodPost, "/profiles", row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	return r.doWrite(req, "upsert")
}

// Update applies a partial patch via PATCH id=eq.{id}
func (r *RESTProfileStore) Update(ctx context.Context, id string, patch domain.ProfileUpdate) error {
	if patch.IsEmpty() {
		return nil
	}

	path := "/profiles?id=eq." + url.QueryEscape(id)
	req, err := r.newRequest(ctx, http.MethodPatch, path, patch)
	if err != nil {
		return err
	}

	return r.doWrite(req, "update")
}

// List returns all profile rows, newest first
func (r *RESTProfileStore) List(ctx context.Context) ([]domain.Profile, error) {
	req, err := r.newRequest(ctx, http.MethodGet, "/profiles?order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewTransientError("profile service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, r.statusError(resp)
	}

	var profiles []domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profile rows: %w", err)
	}

	return profiles, nil
}

// SetRole changes the stored role for a user
func (r *RESTProfileStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	path := "/profiles?id=eq." + url.QueryEscape(id)
	req, err := r.newRequest(ctx, http.MethodPatch, path, map[string]string{"role": string(role)})
	if err != nil {
		return err
	}

	return r.doWrite(req, "set role")
}

func (r *RESTProfileStore) doWrite(req *http.Request, op string) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperrors.NewTransientError("profile service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.WithFields(map[string]interface{}{
			"op":          op,
			"status_code": resp.StatusCode,
		}).Error("Profile service write failed")
		return r.statusError(resp)
	}

	return nil
}

func (r *RESTProfileStore) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	if resp.StatusCode >= 500 {
		return apperrors.NewTransientError("profile service error", err)
	}
	return err
}
