package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodhub/production-api/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestTokenRepoCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	exp := time.Now().Add(time.Hour).UTC()

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs("tok-1", "user-1", exp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), model.RefreshToken{ID: "tok-1", UserID: "user-1", ExpiresAt: exp}))
}

func TestTokenRepoCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), model.RefreshToken{ID: "tok-1", UserID: "user-1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTokenRepoFindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, user_id, expires_at, revoked_at, created_at FROM refresh_tokens").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "revoked_at", "created_at"}).
			AddRow("tok-1", "user-1", now.Add(time.Hour), now, now))

	tok, err := repo.FindByID(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.UserID)
	require.NotNil(t, tok.RevokedAt)
	assert.False(t, tok.Usable(now))
}

func TestTokenRepoFindByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoRevokeIsConditional(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE id=\? AND revoked_at IS NULL`).
		WithArgs(at, "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE id=\? AND revoked_at IS NULL`).
		WithArgs(at, "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Revoke(context.Background(), "tok-1", at)
	require.NoError(t, err)
	second, err := repo.Revoke(context.Background(), "tok-1", at)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestTokenRepoDeleteAllForUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE user_id=").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestTokenRepoDeleteExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at <").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
