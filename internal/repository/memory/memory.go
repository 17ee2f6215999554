// Package memory holds map-backed implementations of the user, refresh
// token and project stores.  They mirror the MySQL repositories' semantics
// and back the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
)

// Users is an in-memory users table.
type Users struct {
	mu   sync.Mutex
	rows map[string]model.User
	seq  map[string]int
	next int
	now  func() time.Time
}

func NewUsers() *Users {
	return &Users{rows: map[string]model.User{}, seq: map[string]int{}, now: time.Now}
}

func (s *Users) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

func (s *Users) Create(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.rows[u.ID] = *u
	s.next++
	s.seq[u.ID] = s.next
	return nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Email == email {
			return r, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) GetByID(ctx context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		return r, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.PasswordResetToken != nil && *r.PasswordResetToken == tokenHash &&
			r.PasswordResetExpires != nil && r.PasswordResetExpires.After(now) {
			return r, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Users) Update(ctx context.Context, id string, upd repository.UserUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if upd.FullName != nil {
		r.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		phone := *upd.Phone
		r.Phone = &phone
	}
	if upd.Role != nil {
		r.Role = *upd.Role
	}
	if upd.UserType != nil {
		r.UserType = *upd.UserType
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	r.UpdatedAt = s.now().UTC()
	s.rows[id] = r
	return r, nil
}

func (s *Users) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.PasswordResetToken = &tokenHash
	r.PasswordResetExpires = &expires
	s.rows[id] = r
	return nil
}

func (s *Users) ResetPassword(ctx context.Context, id, tokenHash, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.PasswordResetToken == nil || *r.PasswordResetToken != tokenHash {
		return repository.ErrNotFound
	}
	r.PasswordHash = passwordHash
	r.PasswordResetToken = nil
	r.PasswordResetExpires = nil
	s.rows[id] = r
	return nil
}

// List returns users newest first.
func (s *Users) List(ctx context.Context, f repository.UserFilter) ([]model.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, r := range s.rows {
		if f.Active != nil && r.Active != *f.Active {
			continue
		}
		if f.Role != nil && r.Role != *f.Role {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] > s.seq[out[j].ID] })
	total := len(out)
	if f.Offset >= total {
		return []model.User{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

// Tokens is an in-memory refresh_tokens table.
type Tokens struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
}

func NewTokens() *Tokens {
	return &Tokens{rows: map[string]model.RefreshToken{}}
}

func (s *Tokens) Create(ctx context.Context, t model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[t.ID]; ok {
		return repository.ErrConflict
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.rows[t.ID] = t
	return nil
}

func (s *Tokens) FindByID(ctx context.Context, id string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.rows[id]; ok {
		return t, nil
	}
	return model.RefreshToken{}, repository.ErrNotFound
}

// Revoke marks a live token revoked and reports whether it changed.
func (s *Tokens) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	t.RevokedAt = &at
	s.rows[id] = t
	return true, nil
}

func (s *Tokens) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.rows {
		if t.UserID == userID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *Tokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.rows {
		if t.ExpiresAt.Before(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many rows are stored.
func (s *Tokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Projects is an in-memory projects table.
type Projects struct {
	mu   sync.Mutex
	rows map[string]model.Project
	seq  map[string]int
	next int
}

func NewProjects() *Projects {
	return &Projects{rows: map[string]model.Project{}, seq: map[string]int{}}
}

func (s *Projects) CountCodePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.rows {
		if strings.HasPrefix(p.Code, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *Projects) Create(ctx context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Code == p.Code {
			return repository.ErrConflict
		}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.rows[p.ID] = *p
	s.next++
	s.seq[p.ID] = s.next
	return nil
}

func (s *Projects) GetByID(ctx context.Context, id string) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[id]; ok {
		return p, nil
	}
	return model.Project{}, repository.ErrNotFound
}

func (s *Projects) Update(ctx context.Context, id string, upd repository.ProjectUpdate) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return model.Project{}, repository.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		d := *upd.Description
		p.Description = &d
	}
	if upd.Type != nil {
		p.Type = *upd.Type
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.OwnerID != nil {
		p.OwnerID = *upd.OwnerID
	}
	p.UpdatedAt = time.Now().UTC()
	s.rows[id] = p
	return p, nil
}

func (s *Projects) Archive(ctx context.Context, id string, at time.Time) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return model.Project{}, repository.ErrNotFound
	}
	p.Status = model.ProjectArchived
	p.ArchivedAt = &at
	s.rows[id] = p
	return p, nil
}

// List returns projects newest first.
func (s *Projects) List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []model.Project
	for _, p := range s.rows {
		if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Code), search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] > s.seq[out[j].ID] })
	total := len(out)
	if f.Offset >= total {
		return []model.Project{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}
