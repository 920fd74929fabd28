package domain

import "time"

// Profile is the backend-stored user record, 1:1 with an authenticated
// identity (ID equals the session's user id). Display attributes are each
// independently nullable; Role may be empty in a raw row.
type Profile struct {
	ID        string    `json:"id"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Bio       *string   `json:"bio"`
	AvatarURL *string   `json:"avatar_url"`
	Role      Role      `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EffectiveRole applies the read-time fallback: a stored row without a valid
// role presents as job_seeker. The stored row is never mutated to match.
func (p *Profile) EffectiveRole() Role {
	if p.Role.Valid() {
		return p.Role
	}
	return RoleJobSeeker
}

// ProfileUpdate is a partial write-through patch. Nil fields are untouched.
// Role changes do not travel through profile updates; they go through the
// admin role-management operation.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Bio == nil && u.AvatarURL == nil
}
