package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
	"github.com/prodhub/production-api/internal/repository/memory"
)

func seedUsers(t *testing.T, store *memory.Users, n int) []model.User {
	t.Helper()
	out := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		u := model.User{
			ID:       fmt.Sprintf("u-%02d", i),
			Email:    fmt.Sprintf("user%02d@x.com", i),
			FullName: "User",
			Role:     model.RoleCrew,
			UserType: model.UserTypeCrew,
			Active:   i%2 == 0,
		}
		require.NoError(t, store.Create(context.Background(), &u))
		out = append(out, u)
	}
	return out
}

func TestUserServiceListPagination(t *testing.T) {
	store := memory.NewUsers()
	seedUsers(t, store, 25)
	svc := NewUserService(store)

	tests := []struct {
		name      string
		q         ListQuery
		wantLen   int
		wantPage  Pagination
		wantFirst string
	}{
		{"defaults", ListQuery{}, 20, Pagination{Total: 25, Page: 1, Limit: 20, TotalPages: 2}, "u-24"},
		{"second page", ListQuery{Page: 2}, 5, Pagination{Total: 25, Page: 2, Limit: 20, TotalPages: 2}, "u-04"},
		{"limit clamped", ListQuery{Limit: 1000}, 25, Pagination{Total: 25, Page: 1, Limit: 100, TotalPages: 1}, "u-24"},
		{"past the end", ListQuery{Page: 9, Limit: 10}, 0, Pagination{Total: 25, Page: 9, Limit: 10, TotalPages: 3}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, page, err := svc.List(context.Background(), tt.q)
			require.NoError(t, err)
			assert.Len(t, users, tt.wantLen)
			assert.Equal(t, tt.wantPage, page)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, users[0].ID)
			}
		})
	}
}

func TestUserServiceListFilters(t *testing.T) {
	store := memory.NewUsers()
	seedUsers(t, store, 6)
	svc := NewUserService(store)

	active := true
	users, page, err := svc.List(context.Background(), ListQuery{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	for _, u := range users {
		assert.True(t, u.Active)
	}

	role := model.RoleTalent
	users, page, err = svc.List(context.Background(), ListQuery{Role: &role})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 0, page.TotalPages)
}

func TestUserServiceUpdateAndDeactivate(t *testing.T) {
	store := memory.NewUsers()
	seeded := seedUsers(t, store, 1)
	svc := NewUserService(store)
	ctx := context.Background()

	role := model.RoleCoordinator
	u, err := svc.Update(ctx, seeded[0].ID, repository.UserUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleCoordinator, u.Role)

	u, err = svc.Deactivate(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.False(t, u.Active)

	_, err = svc.Deactivate(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
