package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"useradmin/config"
	"useradmin/db"
	"useradmin/models"
)

func newSQLiteStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	handle, err := db.Open(t.Context(), config.DriverSQLite, filepath.Join(t.TempDir(), "userinfo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { handle.Close() })
	require.NoError(t, db.Migrate(t.Context(), handle, config.DriverSQLite, zerolog.Nop()))
	return NewSQLStore(handle), handle
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	handle, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		handle.Close()
	})
	return NewSQLStore(handle), mock
}

func TestSQLStoreLifecycle(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := t.Context()

	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	aliceID, err := s.Create(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Positive(t, aliceID)

	bobID, err := s.Create(ctx, "bob", "pw-bob")
	require.NoError(t, err)
	assert.NotEqual(t, aliceID, bobID)

	users, err = s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.User{
		{ID: aliceID, Username: "alice"},
		{ID: bobID, Username: "bob"},
	}, users)

	got, err := s.Get(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, models.User{ID: aliceID, Username: "alice", Password: "pw-alice"}, got)

	got, err = s.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bobID, got.ID)

	_, err = s.Get(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByUsername(ctx, "carol")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, bobID))
	require.NoError(t, s.Delete(ctx, bobID), "deleting a missing id is not an error")
	_, err = s.Get(ctx, bobID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreCreateDuplicate(t *testing.T) {
	s, handle := newSQLiteStore(t)
	ctx := t.Context()

	_, err := s.Create(ctx, "alice", "first")
	require.NoError(t, err)

	_, err = s.Create(ctx, "alice", "second")
	require.ErrorIs(t, err, ErrUsernameTaken)

	var count int
	require.NoError(t, handle.QueryRow("SELECT COUNT(*) FROM userinfo WHERE username = ?", "alice").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLStoreUpdate(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := t.Context()

	id, err := s.Create(ctx, "alice", "original")
	require.NoError(t, err)
	_, err = s.Create(ctx, "bob", "pw")
	require.NoError(t, err)

	t.Run("blank password keeps the stored one", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, id, "alice2", ""))
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice2", got.Username)
		assert.Equal(t, "original", got.Password)
	})

	t.Run("new password replaces the stored one", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, id, "alice2", "replaced"))
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "replaced", got.Password)
	})

	t.Run("keeping own username is allowed", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, id, "alice2", ""))
	})

	t.Run("another user's username is rejected", func(t *testing.T) {
		err := s.Update(ctx, id, "bob", "")
		require.ErrorIs(t, err, ErrUsernameTaken)
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice2", got.Username)
	})
}

func TestSQLStoreCreateCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM userinfo WHERE username = ? AND id != ?")).
		WithArgs("alice", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO userinfo (username, password) VALUES (?, ?)")).
		WithArgs("alice", "pw").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	id, err := s.Create(t.Context(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestSQLStoreCreateRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM userinfo WHERE username = ? AND id != ?")).
		WithArgs("alice", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO userinfo")).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := s.Create(t.Context(), "alice", "pw")
	require.ErrorContains(t, err, "db down")
	assert.NotErrorIs(t, err, ErrUsernameTaken)
}

func TestSQLStoreCreateMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM userinfo")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO userinfo")).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	_, err := s.Create(t.Context(), "alice", "pw")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSQLStoreUpdateWithoutPassword(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM userinfo WHERE username = ? AND id != ?")).
		WithArgs("alice", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE userinfo SET username = ? WHERE id = ?")).
		WithArgs("alice", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Update(t.Context(), 3, "alice", ""))
}

func TestSQLStoreListError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username FROM userinfo")).
		WillReturnError(errors.New("connection refused"))

	users, err := s.List(t.Context())
	require.ErrorContains(t, err, "failed to query users")
	assert.Nil(t, users)
}

func TestSQLStoreGetError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password FROM userinfo WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnError(errors.New("timeout"))

	_, err := s.Get(t.Context(), 5)
	require.ErrorContains(t, err, "timeout")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLStoreDeleteCommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM userinfo WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err := s.Delete(t.Context(), 1)
	require.ErrorContains(t, err, "failed to commit transaction")
}
