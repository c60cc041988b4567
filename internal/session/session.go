package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/resource"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSignInFailed       = errors.New("an error occurred during sign in")
)

// sessionRepository is the subset of store.SessionStore that Session requires.
type sessionRepository interface {
	Save(ctx context.Context, sess *domain.Session) error
	Latest(ctx context.Context) (*domain.Session, error)
	DeleteAll(ctx context.Context) error
}

// Session holds the signed-in user, if any. It is safe for concurrent use
// and satisfies inventory.Gate.
type Session struct {
	store  sessionRepository
	client *resource.Client
	logger *slog.Logger

	mu      sync.RWMutex
	current *domain.Session
}

func New(store sessionRepository, client *resource.Client, logger *slog.Logger) *Session {
	return &Session{store: store, client: client, logger: logger}
}

// Hydrate restores the persisted session. A corrupt record is removed and
// leaves the session signed out.
func (s *Session) Hydrate(ctx context.Context) error {
	sess, err := s.store.Latest(ctx)
	if err != nil {
		s.logger.Warn("discarding stored session", "error", err)
		if derr := s.store.DeleteAll(ctx); derr != nil {
			return fmt.Errorf("failed to remove stored session: %w", derr)
		}
		sess = nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if sess != nil {
		s.logger.Info("session restored", "username", sess.User.Username)
	}
	return nil
}

// SignIn checks the credentials against the users collection. On success
// the user, without its password, becomes the current session.
func (s *Session) SignIn(ctx context.Context, username, password string) (domain.User, error) {
	users, err := resource.GetList[domain.User](ctx, s.client, "users", nil)
	if err != nil {
		s.logger.Error("sign in failed", "error", err)
		return domain.User{}, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	var found *domain.User
	for i := range users {
		if users[i].Username == username && users[i].Password == password {
			found = &users[i]
			break
		}
	}
	if found == nil {
		s.logger.Info("sign in rejected", "username", username)
		return domain.User{}, ErrInvalidCredentials
	}

	user := *found
	user.Password = ""
	sess := &domain.Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("signed in", "username", user.Username, "session_id", sess.ID)
	return user, nil
}

func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// User returns the signed-in user.
func (s *Session) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.User{}, false
	}
	return s.current.User, true
}
