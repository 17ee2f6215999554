package service

import (
	"context"
	"errors"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
)

// Page limits for user listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserService backs the administrator user-management endpoints.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	if users == nil {
		panic("nil store passed to NewUserService")
	}
	return &UserService{users: users}
}

// ListQuery selects one page of users.
type ListQuery struct {
	Page   int
	Limit  int
	Active *bool
	Role   *model.Role
}

// Pagination describes the page returned by List.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// List returns users newest first.  Page and limit are clamped.
func (s *UserService) List(ctx context.Context, q ListQuery) ([]model.User, Pagination, error) {
	page := max(q.Page, 1)
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	limit = min(max(limit, 1), MaxPageSize)

	users, total, err := s.users.List(ctx, repository.UserFilter{
		Active: q.Active,
		Role:   q.Role,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, Pagination{}, err
	}
	return users, Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Update applies an administrator's partial update.
func (s *UserService) Update(ctx context.Context, id string, upd repository.UserUpdate) (model.User, error) {
	u, err := s.users.Update(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// Deactivate soft-deletes a user by clearing the active flag.
func (s *UserService) Deactivate(ctx context.Context, id string) (model.User, error) {
	inactive := false
	return s.Update(ctx, id, repository.UserUpdate{Active: &inactive})
}
