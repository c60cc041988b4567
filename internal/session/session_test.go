package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/logging"
	"github.com/vbonduro/shelfinv/internal/resource"
	"github.com/vbonduro/shelfinv/internal/store"
	"github.com/vbonduro/shelfinv/internal/testutil"
)

func newTestSession(t *testing.T) (*Session, *store.SessionStore, *testutil.Upstream) {
	t.Helper()
	up := testutil.NewUpstream(t, testutil.DefaultFixture())
	client := resource.NewClient(resource.Endpoint{BaseURL: up.URL()}, logging.Discard(), nil)
	st := store.NewSessionStore(testutil.OpenDB(t))
	return New(st, client, logging.Discard()), st, up
}

func TestSignInAndPersist(t *testing.T) {
	s, st, _ := newTestSession(t)
	ctx := context.Background()
	assert.False(t, s.IsAuthenticated())

	user, err := s.SignIn(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.Empty(t, user.Password)
	assert.True(t, s.IsAuthenticated())

	stored, err := st.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "admin", stored.User.Username)
	assert.Empty(t, stored.User.Password)

	// A fresh session over the same store picks the user back up.
	restored := New(st, nil, logging.Discard())
	require.NoError(t, restored.Hydrate(ctx))
	assert.True(t, restored.IsAuthenticated())
	got, ok := restored.User()
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s, st, _ := newTestSession(t)
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, s.IsAuthenticated())

	stored, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSignInUpstreamFailure(t *testing.T) {
	s, _, up := newTestSession(t)
	up.Fail(http.MethodGet, "users", http.StatusInternalServerError)

	_, err := s.SignIn(context.Background(), "admin", "secret")
	assert.ErrorIs(t, err, ErrSignInFailed)
	assert.ErrorIs(t, err, resource.ErrNetwork)
	assert.False(t, s.IsAuthenticated())
}

func TestSignOutClears(t *testing.T) {
	s, st, _ := newTestSession(t)
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "secret")
	require.NoError(t, err)
	require.NoError(t, s.SignOut(ctx))

	assert.False(t, s.IsAuthenticated())
	_, ok := s.User()
	assert.False(t, ok)

	restored := New(st, nil, logging.Discard())
	require.NoError(t, restored.Hydrate(ctx))
	assert.False(t, restored.IsAuthenticated())
}

type corruptStore struct {
	deleted bool
}

func (c *corruptStore) Save(context.Context, *domain.Session) error { return nil }
func (c *corruptStore) Latest(context.Context) (*domain.Session, error) {
	return nil, store.ErrCorruptSession
}
func (c *corruptStore) DeleteAll(context.Context) error {
	c.deleted = true
	return nil
}

func TestHydrateDropsCorruptSession(t *testing.T) {
	st := &corruptStore{}
	s := New(st, nil, logging.Discard())

	require.NoError(t, s.Hydrate(context.Background()))
	assert.False(t, s.IsAuthenticated())
	assert.True(t, st.deleted)
}
