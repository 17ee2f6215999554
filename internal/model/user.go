package model

import "time"

// Role is the flat access role stored in users.role.  There is no
// hierarchy; each route declares the set of roles it accepts.
type Role string

const (
	RoleAdminProducer Role = "ADMIN_PRODUCER"
	RoleProducer      Role = "PRODUCER"
	RoleCoordinator   Role = "COORDINATOR"
	RoleAccountant    Role = "ACCOUNTANT"
	RoleCrew          Role = "CREW"
	RoleTalent        Role = "TALENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdminProducer, RoleProducer, RoleCoordinator, RoleAccountant, RoleCrew, RoleTalent:
		return true
	}
	return false
}

// RoleSet is the set of roles allowed through an authorization check.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

var (
	// AdminRoles may register accounts and manage all users.
	AdminRoles = NewRoleSet(RoleAdminProducer)
	// OperationalRoles may read and write production resources.
	OperationalRoles = NewRoleSet(RoleAdminProducer, RoleProducer, RoleCoordinator, RoleAccountant)
	// ProjectCreatorRoles may open new projects.
	ProjectCreatorRoles = NewRoleSet(RoleAdminProducer, RoleProducer)
)

// SeesAllProjects reports whether role may read projects it does not own.
func SeesAllProjects(role Role) bool {
	return role == RoleAdminProducer || role == RoleAccountant
}

// CanEditOwned reports whether a caller may mutate a resource owned by
// ownerID.  The administrative role bypasses ownership.
func CanEditOwned(role Role, ownerID, callerID string) bool {
	return role == RoleAdminProducer || (ownerID != "" && ownerID == callerID)
}

// UserType classifies the person behind an account.
type UserType string

const (
	UserTypeInternalStaff UserType = "INTERNAL_STAFF"
	UserTypeCrew          UserType = "CREW"
	UserTypeTalent        UserType = "TALENT"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeInternalStaff, UserTypeCrew, UserTypeTalent:
		return true
	}
	return false
}

// User represents a row in the `users` table.  Users are never hard
// deleted; deactivation sets Active to false.  PasswordResetToken holds the
// SHA-256 hex digest of the outstanding reset token, never the token itself.
type User struct {
	ID                   string     // users.id
	Email                string     // users.email
	PasswordHash         string     // users.password_hash
	FullName             string     // users.full_name
	Role                 Role       // users.role
	UserType             UserType   // users.user_type
	Active               bool       // users.active
	Phone                *string    // users.phone (nullable)
	PasswordResetToken   *string    // users.password_reset_token (nullable)
	PasswordResetExpires *time.Time // users.password_reset_expires (nullable)
	CreatedAt            time.Time  // users.created_at
	UpdatedAt            time.Time  // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The ID is
// the random token identifier embedded in the signed refresh token, so a
// token is only usable while its row exists, is not revoked and has not
// expired.
type RefreshToken struct {
	ID        string     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Usable reports whether the token may still be exchanged at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
