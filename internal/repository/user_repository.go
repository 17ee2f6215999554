package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/prodhub/production-api/internal/model"
)

const userColumns = "id,email,password_hash,full_name,role,user_type,active,phone,password_reset_token,password_reset_expires,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// UserUpdate carries the optional fields of a partial user update.  Nil
// fields are left untouched.
type UserUpdate struct {
	FullName *string
	Phone    *string
	Role     *model.Role
	UserType *model.UserType
	Active   *bool
}

// UserFilter narrows List results.
type UserFilter struct {
	Active *bool
	Role   *model.Role
	Limit  int
	Offset int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		phone     sql.NullString
		resetHash sql.NullString
		resetExp  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.UserType,
		&u.Active, &phone, &resetHash, &resetExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if resetHash.Valid {
		u.PasswordResetToken = &resetHash.String
	}
	if resetExp.Valid {
		u.PasswordResetExpires = &resetExp.Time
	}
	return u, nil
}

// Count returns the number of users regardless of status.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// Create inserts a fully populated user.  The email is normalized first.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, full_name, role, user_type, active, phone) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.UserType, u.Active, u.Phone)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByResetToken finds the user holding the given reset-token digest
// whose reset window is still open at now.
func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE password_reset_token=? AND password_reset_expires > ? LIMIT 1",
		tokenHash, now))
}

// Update applies a partial update and returns the fresh row.
func (r *UserRepo) Update(ctx context.Context, id string, upd UserUpdate) (model.User, error) {
	var (
		sets []string
		args []any
	)
	if upd.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *upd.FullName)
	}
	if upd.Phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *upd.Phone)
	}
	if upd.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *upd.Role)
	}
	if upd.UserType != nil {
		sets = append(sets, "user_type=?")
		args = append(args, *upd.UserType)
	}
	if upd.Active != nil {
		sets = append(sets, "active=?")
		args = append(args, *upd.Active)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// SetResetToken stores the digest and expiry of a freshly issued reset token,
// replacing any previous one.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?",
		tokenHash, expires, id)
	return err
}

// ResetPassword stores a new password hash and clears the reset-token
// fields, but only while tokenHash is still the user's pending reset token.
// ErrNotFound means the token was already consumed.
func (r *UserRepo) ResetPassword(ctx context.Context, id, tokenHash, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_reset_token=NULL, password_reset_expires=NULL WHERE id=? AND password_reset_token=?",
		passwordHash, id, tokenHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of users, newest first, and the total match count.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]model.User, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Active != nil {
		where = append(where, "active=?")
		args = append(args, *f.Active)
	}
	if f.Role != nil {
		where = append(where, "role=?")
		args = append(args, *f.Role)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]model.User, 0, f.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}
