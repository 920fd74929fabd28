package repository

import (
	"context"
	"fmt"
	"strings"

	"ats-be/internal/domain"
	"ats-be/pkg/database"
	"github.com/jackc/pgx/v5"
)

// PostgresProfileStore implements ProfileStore against a profiles table.
type PostgresProfileStore struct {
	db *database.PostgresDB
}

func NewPostgresProfileStore(db *database.PostgresDB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

// GetByID fetches a single profile row by user id
func (r *PostgresProfileStore) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	var role *string
	query := `
		SELECT id, first_name, last_name, bio, avatar_url, role, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Bio,
		&p.AvatarURL,
		&role,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if role != nil {
		p.Role = domain.Role(*role)
	}
	return &p, nil
}

// Upsert writes a full profile row, merging over any partial row a signup
// trigger may have created
func (r *PostgresProfileStore) Upsert(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, first_name, last_name, bio, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (id) DO UPDATE SET
			first_name = COALESCE(EXCLUDED.first_name, profiles.first_name),
			last_name  = COALESCE(EXCLUDED.last_name, profiles.last_name),
			bio        = COALESCE(EXCLUDED.bio, profiles.bio),
			avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
			role       = COALESCE(EXCLUDED.role, profiles.role),
			updated_at = now()
	`

	_, err := r.db.Pool.Exec(ctx, query,
		profile.ID,
		profile.FirstName,
		profile.LastName,
		profile.Bio,
		profile.AvatarURL,
		string(profile.Role),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// Update applies a partial patch keyed by id
func (r *PostgresProfileStore) Update(ctx context.Context, id string, patch domain.ProfileUpdate) error {
	if patch.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	add := func(column string, value *string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FirstName != nil {
		add("first_name", patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", patch.LastName)
	}
	if patch.Bio != nil {
		add("bio", patch.Bio)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", patch.AvatarURL)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// List returns all profile rows, newest first
func (r *PostgresProfileStore) List(ctx context.Context) ([]domain.Profile, error) {
	query := `
		SELECT id, first_name, last_name, bio, avatar_url, role, created_at, updated_at
		FROM profiles
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		var role *string
		err := rows.Scan(
			&p.ID,
			&p.FirstName,
			&p.LastName,
			&p.Bio,
			&p.AvatarURL,
			&role,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		if role != nil {
			p.Role = domain.Role(*role)
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

// SetRole changes the stored role for a user
func (r *PostgresProfileStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	query := `UPDATE profiles SET role = $1, updated_at = now() WHERE id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, string(role), id)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}
