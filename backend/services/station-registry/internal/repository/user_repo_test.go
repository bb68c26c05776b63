package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evregistry/backend/services/station-registry/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedID(t *testing.T, id string) {
	t.Helper()
	orig := idGenerator
	idGenerator = func() string { return id }
	t.Cleanup(func() { idGenerator = orig })
}

func TestUserCreateNormalizesEmail(t *testing.T) {
	db, mock := newMockDB(t)
	fixedID(t, "u-1")
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u-1", "Ann", "ann@x.com", "hash", sql.NullString{String: "user", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	user := &models.User{Name: "Ann", Email: "  Ann@X.com ", PasswordHash: "hash", Role: "user"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "ann@x.com", user.Email)
	assert.Equal(t, now, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := NewUserRepository(db).Create(context.Background(), &models.User{Name: "A", Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserCreateOtherError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("boom"))

	err := NewUserRepository(db).Create(context.Background(), &models.User{Name: "A", Email: "a@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailTaken)
}

func TestUserFindByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	cols := []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}

	mock.ExpectQuery("FROM users").
		WithArgs("legacy@x.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u-2", "Leg", "legacy@x.com", "h", nil, now, now))

	user, err := NewUserRepository(db).FindByEmail(context.Background(), "Legacy@X.com")
	require.NoError(t, err)
	assert.Equal(t, "u-2", user.ID)
	assert.Empty(t, user.Role)
}

func TestUserFindByEmailMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)

	_, err := NewUserRepository(db).FindByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserUpdateRole(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE users").WithArgs("u-2", "user").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users").WithArgs("u-3", "user").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepository(db)
	require.NoError(t, repo.UpdateRole(context.Background(), "u-2", "user"))
	assert.ErrorIs(t, repo.UpdateRole(context.Background(), "u-3", "user"), ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
