package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/vbonduro/shelfinv/internal/domain"
)

// ErrCorruptSession is returned when a stored session row cannot be turned
// back into a user.
var ErrCorruptSession = errors.New("stored session is corrupt")

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save replaces any stored session with s. Only one user is signed in at a
// time.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, username, name, role) VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.User.ID.String(), sess.User.Username, sess.User.Name, sess.User.Role)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Latest returns the stored session, or nil when nobody is signed in.
func (s *SessionStore) Latest(ctx context.Context) (*domain.Session, error) {
	var (
		sess   domain.Session
		userID string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, name, role, created_at FROM sessions
		ORDER BY created_at DESC LIMIT 1
	`).Scan(&sess.ID, &userID, &sess.User.Username, &sess.User.Name, &sess.User.Role, &sess.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || sess.User.Username == "" {
		return nil, fmt.Errorf("%w: user %q", ErrCorruptSession, userID)
	}
	sess.User.ID = domain.ID(id)

	return &sess, nil
}

func (s *SessionStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
