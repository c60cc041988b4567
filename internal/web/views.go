package web

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/inventory"
	"github.com/vbonduro/shelfinv/internal/library"
)

// allStores keys the unfiltered view.
const allStores domain.ID = 0

// storeState is one loaded store view and the editor bound to it. Evicting
// it from the cache abandons any response still in flight for it.
type storeState struct {
	storeID domain.ID
	// stale is set when inventory changed through another view; the next
	// request reloads before serving.
	stale atomic.Bool

	mu     sync.Mutex
	view   *library.View
	editor *inventory.Editor

	noticeMu sync.Mutex
	notice   string
}

// setNotice records a failed mutation for the next inventory read.
func (st *storeState) setNotice(msg string) {
	st.noticeMu.Lock()
	defer st.noticeMu.Unlock()
	st.notice = msg
}

// takeNotice returns the pending notice and clears it.
func (st *storeState) takeNotice() string {
	st.noticeMu.Lock()
	defer st.noticeMu.Unlock()
	msg := st.notice
	st.notice = ""
	return msg
}

// storeView returns the loaded state for storeID, loading it on first use.
// A failed load leaves the state unloaded so the next request retries.
// With refresh set, or when the view was marked stale, an already loaded view
// is reloaded; a failed reload keeps the previous data and is reported.
func (s *Server) storeView(ctx context.Context, storeID domain.ID, refresh bool) (*storeState, error) {
	s.mu.Lock()
	st, ok := s.views.Get(storeID)
	if !ok {
		st = &storeState{storeID: storeID}
		s.views.Add(storeID, st)
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.view == nil {
		view, err := s.loader.Load(ctx, storeID, "")
		if err != nil {
			return nil, err
		}
		var gate inventory.Gate
		if s.session != nil {
			gate = s.session
		}
		st.view = view
		st.editor = inventory.NewEditor(view, s.client, gate, s.notifier(st, storeID), s.logger, s.metrics)
		return st, nil
	}

	stale := st.stale.Swap(false)
	if refresh || stale {
		if err := st.view.Reload(ctx); err != nil {
			if stale {
				st.stale.Store(true)
			}
			return nil, err
		}
	}
	return st, nil
}

// propagate marks every other cached view stale once a mutation made through
// st has been accepted upstream. The view that made it is already current.
func (s *Server) propagate(st *storeState, done <-chan error) {
	go func() {
		if err := <-done; err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range s.views.Keys() {
			if id == st.storeID {
				continue
			}
			if other, ok := s.views.Peek(id); ok {
				other.stale.Store(true)
			}
		}
	}()
}

func (s *Server) notifier(st *storeState, storeID domain.ID) inventory.Notifier {
	return inventory.NotifierFunc(func(op string, err error) {
		s.logger.Error("inventory change failed", "op", op, "store_id", storeID, "error", err)
		st.setNotice(noticeFor(op))
	})
}

func noticeFor(op string) string {
	switch op {
	case "save":
		return "Failed to update price"
	case "delete":
		return "Failed to delete item"
	case "add":
		return "Failed to add book to inventory"
	default:
		return "Request failed"
	}
}
