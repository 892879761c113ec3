// Package store provides access to the userinfo table.
//
// Every operation acquires a dedicated connection from the pool and releases
// it before returning, whatever the outcome. Mutations run inside a
// transaction that is committed on success and rolled back otherwise.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"useradmin/db"
	"useradmin/models"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// Users is the set of userinfo operations the application needs.
type Users interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id int64) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	// Create inserts a new record and returns its id. ErrUsernameTaken is
	// returned when the username is already in use.
	Create(ctx context.Context, username, password string) (int64, error)
	// Update renames the record and, when password is not empty, replaces
	// its stored password. ErrUsernameTaken is returned when another record
	// already uses username.
	Update(ctx context.Context, id int64, username, password string) error
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id int64) error
}

// SQLStore implements Users over a database/sql handle.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore returns a store using db for every operation.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// withConn hands fn a connection that is released on every exit path.
func (s *SQLStore) withConn(ctx context.Context, fn func(*sql.Conn) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("failed to release connection: %w", cerr))
		}
	}()
	return fn(conn)
}

// withTx runs fn in a transaction on a dedicated connection.
func (s *SQLStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT id, username FROM userinfo")
		if err != nil {
			return fmt.Errorf("failed to query users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u models.User
			if err := rows.Scan(&u.ID, &u.Username); err != nil {
				return fmt.Errorf("failed to scan user row: %w", err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating user rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, "SELECT id, username, password FROM userinfo WHERE id = ?", id).
			Scan(&u.ID, &u.Username, &u.Password)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user %d: %w", id, err)
		}
		return nil
	})
	return u, err
}

func (s *SQLStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, "SELECT id, username, password FROM userinfo WHERE username = ?", username).
			Scan(&u.ID, &u.Username, &u.Password)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get user %q: %w", username, err)
		}
		return nil
	})
	return u, err
}

func (s *SQLStore) Create(ctx context.Context, username, password string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		taken, err := usernameTaken(ctx, tx, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		res, err := tx.ExecContext(ctx, "INSERT INTO userinfo (username, password) VALUES (?, ?)", username, password)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) Update(ctx context.Context, id int64, username, password string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		taken, err := usernameTaken(ctx, tx, username, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		if password != "" {
			_, err = tx.ExecContext(ctx, "UPDATE userinfo SET username = ?, password = ? WHERE id = ?", username, password, id)
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE userinfo SET username = ? WHERE id = ?", username, id)
		}
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("failed to update user %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM userinfo WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete user %d: %w", id, err)
		}
		return nil
	})
}

// usernameTaken reports whether a record other than excludeID uses username.
// An excludeID of 0 matches no record.
func usernameTaken(ctx context.Context, tx *sql.Tx, username string, excludeID int64) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM userinfo WHERE username = ? AND id != ?", username, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return true, nil
}
