package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/metrics"
	"github.com/vbonduro/shelfinv/internal/resource"
)

// LoadError reports a failed four-collection load. Nothing from the failed
// load is committed; the load can be retried.
type LoadError struct {
	StoreID domain.ID
	Err     error
}

func (e *LoadError) Error() string {
	if e.StoreID == 0 {
		return fmt.Sprintf("failed to load library: %v", e.Err)
	}
	return fmt.Sprintf("failed to load library for store %d: %v", e.StoreID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches the books, authors, stores and inventory collections.
type Loader struct {
	client  *resource.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewLoader(client *resource.Client, logger *slog.Logger, m *metrics.Metrics) *Loader {
	return &Loader{client: client, logger: logger, metrics: m}
}

// Load returns a loaded view for storeID (0 for all stores) and search term.
func (l *Loader) Load(ctx context.Context, storeID domain.ID, search string) (*View, error) {
	v := NewView(l, storeID, search)
	if err := v.Reload(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// fetch runs the four requests concurrently. The first failure cancels the
// rest and is returned as a *LoadError.
func (l *Loader) fetch(ctx context.Context, storeID domain.ID) (Snapshot, error) {
	start := time.Now()

	var query url.Values
	if storeID != 0 {
		query = url.Values{"store_id": {storeID.String()}}
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Stores, err = resource.GetList[domain.Store](gctx, l.client, "stores", nil)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Books, err = resource.GetList[domain.Book](gctx, l.client, "books", nil)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Authors, err = resource.GetList[domain.Author](gctx, l.client, "authors", nil)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Inventory, err = resource.GetList[domain.InventoryItem](gctx, l.client, "inventory", query)
		return err
	})

	if err := g.Wait(); err != nil {
		l.metrics.Load("error", time.Since(start))
		l.logger.Error("failed to load library", "store_id", storeID, "error", err)
		return Snapshot{}, &LoadError{StoreID: storeID, Err: err}
	}

	l.metrics.Load("ok", time.Since(start))
	if storeID != 0 && len(snap.Inventory) == 0 {
		l.logger.Warn("no inventory found for store", "store_id", storeID)
	}
	l.logger.Debug("library loaded",
		"store_id", storeID,
		"books", len(snap.Books),
		"authors", len(snap.Authors),
		"stores", len(snap.Stores),
		"inventory", len(snap.Inventory),
	)
	return snap, nil
}
