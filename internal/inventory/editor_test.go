package inventory

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/library"
	"github.com/vbonduro/shelfinv/internal/logging"
	"github.com/vbonduro/shelfinv/internal/resource"
	"github.com/vbonduro/shelfinv/internal/testutil"
)

type staticGate bool

func (g staticGate) IsAuthenticated() bool { return bool(g) }

// recordingNotifier captures failure notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *recordingNotifier) Notify(op string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, op)
}

func (n *recordingNotifier) Notices() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notices...)
}

var confirmYes = ConfirmFunc(func(string) bool { return true })

type fixture struct {
	up       *testutil.Upstream
	view     *library.View
	editor   *Editor
	notifier *recordingNotifier
}

func newFixture(t *testing.T, f testutil.Fixture, storeID domain.ID) *fixture {
	t.Helper()
	up := testutil.NewUpstream(t, f)
	client := resource.NewClient(resource.Endpoint{BaseURL: up.URL()}, logging.Discard(), nil)
	view, err := library.NewLoader(client, logging.Discard(), nil).Load(context.Background(), storeID, "")
	require.NoError(t, err)

	n := &recordingNotifier{}
	return &fixture{
		up:       up,
		view:     view,
		editor:   NewEditor(view, client, staticGate(true), n, logging.Discard(), nil),
		notifier: n,
	}
}

func findItem(items []domain.InventoryItem, id domain.ID) (domain.InventoryItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}

func TestEditAndCancel(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)

	require.NoError(t, fx.editor.Edit(7))
	assert.Equal(t, Editing, fx.editor.State(7))
	working, ok := fx.editor.WorkingPrice(7)
	require.True(t, ok)
	assert.Equal(t, "10", working)

	require.NoError(t, fx.editor.SetWorkingPrice(7, "99"))
	fx.editor.Cancel(7)

	assert.Equal(t, Viewing, fx.editor.State(7))
	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 10, item.Price, 1e-9)
	for _, req := range fx.up.Requests() {
		assert.NotContains(t, req, "PATCH")
	}
}

func TestEditUnknownRow(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	assert.ErrorIs(t, fx.editor.Edit(404), ErrUnknownRow)
	assert.ErrorIs(t, fx.editor.SetWorkingPrice(404, "1"), ErrNotEditing)
}

func TestSaveAppliesOptimisticallyAndPersists(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	release := fx.up.Hold()

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "12.50"))
	done, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	// Applied before the request settles, and the row is back to viewing.
	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 12.5, item.Price, 1e-9)
	assert.Equal(t, Viewing, fx.editor.State(7))
	assert.InDelta(t, 12.5, *fx.view.StoreBooks()[0].Price, 1e-9)

	release()
	require.NoError(t, <-done)

	item, _ = findItem(fx.up.Inventory(), 7)
	assert.InDelta(t, 12.5, item.Price, 1e-9)
	assert.Empty(t, fx.notifier.Notices())
}

func TestSaveInvalidPriceStaysEditing(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "twelve"))
	done, err := fx.editor.Save(context.Background(), 7)

	assert.Nil(t, done)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "price", vErr.Field)
	assert.Equal(t, Editing, fx.editor.State(7))
	for _, req := range fx.up.Requests() {
		assert.NotContains(t, req, "PATCH")
	}
}

func TestSaveWithoutEditing(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	_, err := fx.editor.Save(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestSaveFailureRollsBack(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.up.Fail(http.MethodPatch, "inventory", http.StatusInternalServerError)
	release := fx.up.Hold()

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "12.50"))
	done, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 12.5, item.Price, 1e-9)

	release()
	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrNetwork)

	item, _ = findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 10, item.Price, 1e-9)
	assert.Equal(t, []string{"save"}, fx.notifier.Notices())
}

func TestSaveFailureAfterReloadIsDiscarded(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.up.Fail(http.MethodPatch, "inventory", http.StatusInternalServerError)
	release := fx.up.Hold()

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "1"))
	done, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, fx.view.Reload(context.Background()))
	fx.view.UpdateInventory(func(items []domain.InventoryItem) []domain.InventoryItem {
		for i := range items {
			if items[i].ID == 7 {
				items[i].Price = 1
			}
		}
		return items
	})

	release()
	require.Error(t, <-done)

	// The rollback belonged to the old load and was dropped.
	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 1, item.Price, 1e-9)
}

func TestDeleteWithoutConfirmationChangesNothing(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	before := fx.view.Inventory()

	var prompt string
	done, err := fx.editor.Delete(context.Background(), 7, ConfirmFunc(func(p string) bool {
		prompt = p
		return false
	}))

	assert.Nil(t, done)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, before, fx.view.Inventory())
	assert.Contains(t, prompt, "The Go Programming Language")

	_, err = fx.editor.Delete(context.Background(), 7, nil)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, before, fx.view.Inventory())
}

func TestDeleteConfirmed(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	release := fx.up.Hold()

	done, err := fx.editor.Delete(context.Background(), 7, confirmYes)
	require.NoError(t, err)

	_, present := findItem(fx.view.Inventory(), 7)
	assert.False(t, present)
	assert.Len(t, fx.view.StoreBooks(), 1)

	release()
	require.NoError(t, <-done)
	_, present = findItem(fx.up.Inventory(), 7)
	assert.False(t, present)
}

func TestDeleteFailureRestoresRowInPlace(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.up.Fail(http.MethodDelete, "inventory", http.StatusNotFound)
	before := fx.view.Inventory()

	done, err := fx.editor.Delete(context.Background(), 7, confirmYes)
	require.NoError(t, err)
	require.Error(t, <-done)

	assert.Equal(t, before, fx.view.Inventory())
	assert.Equal(t, []string{"delete"}, fx.notifier.Notices())
}

func TestAddOptimisticThenServerRow(t *testing.T) {
	f := testutil.DefaultFixture()
	f.Inventory = nil
	fx := newFixture(t, f, 2)
	require.Empty(t, fx.view.Inventory())

	release := fx.up.Hold()
	optimistic, done, err := fx.editor.Add(context.Background(), 5, "9.99")
	require.NoError(t, err)

	items := fx.view.Inventory()
	require.Len(t, items, 1)
	assert.Equal(t, optimistic, items[0])
	assert.Less(t, int64(items[0].ID), int64(0))
	assert.Equal(t, domain.ID(5), items[0].BookID)
	assert.Equal(t, domain.ID(2), items[0].StoreID)
	assert.InDelta(t, 9.99, items[0].Price, 1e-9)

	release()
	require.NoError(t, <-done)

	items = fx.view.Inventory()
	require.Len(t, items, 1)
	assert.Equal(t, domain.ID(1), items[0].ID)
	assert.Equal(t, domain.ID(5), items[0].BookID)
	require.Len(t, fx.view.StoreBooks(), 1)
	assert.Equal(t, "Concurrency in Go", fx.view.StoreBooks()[0].Name)
}

func TestAddFailureRemovesRow(t *testing.T) {
	f := testutil.DefaultFixture()
	f.Inventory = nil
	fx := newFixture(t, f, 2)
	fx.up.Fail(http.MethodPost, "inventory", http.StatusInternalServerError)

	_, done, err := fx.editor.Add(context.Background(), 5, "9.99")
	require.NoError(t, err)
	require.Error(t, <-done)

	assert.Empty(t, fx.view.Inventory())
	assert.Equal(t, []string{"add"}, fx.notifier.Notices())
}

func TestAddValidation(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 2)

	cases := []struct {
		name   string
		bookID domain.ID
		price  string
		want   error
	}{
		{"no book", 0, "5", ErrNoBookSelected},
		{"no price", 5, " ", ErrNoBookSelected},
		{"not a number", 5, "abc", ErrInvalidPrice},
		{"zero", 5, "0", ErrInvalidPrice},
		{"negative", 5, "-3", ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, done, err := fx.editor.Add(context.Background(), tc.bookID, tc.price)
			assert.Nil(t, done)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Len(t, fx.view.Inventory(), 1)
	for _, req := range fx.up.Requests() {
		assert.NotContains(t, req, "POST")
	}
}

func TestAddNeedsStore(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 0)
	_, _, err := fx.editor.Add(context.Background(), 5, "1")
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestTemporaryIDsAreUnique(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 2)
	release := fx.up.Hold()
	defer release()

	a, _, err := fx.editor.Add(context.Background(), 1, "1")
	require.NoError(t, err)
	b, _, err := fx.editor.Add(context.Background(), 5, "2")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	release()
	fx.editor.Wait()
	assert.Len(t, fx.view.Inventory(), 3)
}

func TestMutationsRequireAuthentication(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.editor.gate = staticGate(false)
	before := fx.view.Inventory()

	assert.ErrorIs(t, fx.editor.Edit(7), ErrUnauthenticated)
	_, err := fx.editor.Delete(context.Background(), 7, confirmYes)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, _, err = fx.editor.Add(context.Background(), 5, "1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Equal(t, before, fx.view.Inventory())
}

func TestNewerSaveWinsOverOlderFailure(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.up.Fail(http.MethodPatch, "inventory", http.StatusInternalServerError)
	release := fx.up.Hold()

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "11"))
	first, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "12"))
	second, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	release()
	require.Error(t, <-first)
	require.Error(t, <-second)

	// Only the newest save rolls back, to the price it replaced.
	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 11, item.Price, 1e-9)
}

func TestAddSettlesAfterFailedReload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fx := newFixture(t, testutil.DefaultFixture(), 2)
		release := fx.up.Hold()

		_, done, err := fx.editor.Add(context.Background(), 5, "9.99")
		require.NoError(t, err)

		fx.up.Fail(http.MethodGet, "books", http.StatusInternalServerError)
		require.Error(t, fx.view.Reload(context.Background()))

		release()
		require.NoError(t, <-done)

		items := fx.view.Inventory()
		require.Len(t, items, 2)
		for _, item := range items {
			assert.Greater(t, int64(item.ID), int64(0))
		}
		_, ok := findItem(items, 10)
		assert.True(t, ok)
	})

	t.Run("failure", func(t *testing.T) {
		fx := newFixture(t, testutil.DefaultFixture(), 2)
		fx.up.Fail(http.MethodPost, "inventory", http.StatusInternalServerError)
		release := fx.up.Hold()

		_, done, err := fx.editor.Add(context.Background(), 5, "9.99")
		require.NoError(t, err)

		fx.up.Fail(http.MethodGet, "books", http.StatusInternalServerError)
		require.Error(t, fx.view.Reload(context.Background()))

		release()
		require.Error(t, <-done)

		items := fx.view.Inventory()
		require.Len(t, items, 1)
		assert.Equal(t, domain.ID(9), items[0].ID)
	})
}

func TestSaveRollsBackAfterFailedReload(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 1)
	fx.up.Fail(http.MethodPatch, "inventory", http.StatusInternalServerError)
	release := fx.up.Hold()

	require.NoError(t, fx.editor.Edit(7))
	require.NoError(t, fx.editor.SetWorkingPrice(7, "12.50"))
	done, err := fx.editor.Save(context.Background(), 7)
	require.NoError(t, err)

	fx.up.Fail(http.MethodGet, "authors", http.StatusInternalServerError)
	require.Error(t, fx.view.Reload(context.Background()))

	release()
	require.Error(t, <-done)

	item, _ := findItem(fx.view.Inventory(), 7)
	assert.InDelta(t, 10, item.Price, 1e-9)
}

func TestPendingRowsCannotBeChanged(t *testing.T) {
	fx := newFixture(t, testutil.DefaultFixture(), 2)
	release := fx.up.Hold()
	defer release()

	added, _, err := fx.editor.Add(context.Background(), 5, "9.99")
	require.NoError(t, err)

	assert.ErrorIs(t, fx.editor.Edit(added.ID), ErrRowPending)
	_, err = fx.editor.Save(context.Background(), added.ID)
	assert.ErrorIs(t, err, ErrRowPending)
	_, err = fx.editor.Delete(context.Background(), added.ID, confirmYes)
	assert.ErrorIs(t, err, ErrRowPending)

	_, present := findItem(fx.view.Inventory(), added.ID)
	assert.True(t, present)
	for _, req := range fx.up.Requests() {
		assert.NotContains(t, req, "PATCH")
		assert.NotContains(t, req, "DELETE")
	}
}
