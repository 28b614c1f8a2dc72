package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/deerbay/olympics-dashboard/internal/metrics"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

type Options struct {
	CacheTTL time.Duration
	// CacheCapacity bounds the result cache; 0 disables it.
	CacheCapacity int
}

// Engine answers view queries over a built Dataset. Queries never mutate
// shared state, so an Engine is safe for concurrent use.
type Engine struct {
	ds    *Dataset
	cache *resultCache
}

func New(ds *Dataset, opts Options) *Engine {
	return &Engine{ds: ds, cache: newResultCache(opts.CacheTTL, opts.CacheCapacity)}
}

// Query evaluates the named view under sel. The returned table is shared
// and must not be modified.
//
// Errors: ErrUnknownView (wrapped) for an unregistered view,
// *InvalidSelectionError for values outside the dimension index, fields the
// view does not accept or a bad sort mode.
func (e *Engine) Query(view string, sel Selection) (*models.Table, error) {
	start := time.Now()
	t, err := e.query(view, sel)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrUnknownView):
		outcome, view = metrics.OutcomeUnknownView, "unknown"
	case IsSelectionError(err):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.Queries.WithLabelValues(view, outcome).Inc()
	metrics.QueryDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	return t, err
}

func (e *Engine) query(view string, sel Selection) (*models.Table, error) {
	v, ok := e.ds.views[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	f, err := e.ds.index.Resolve(sel)
	if err != nil {
		return nil, err
	}
	order, mode, err := v.order(f.sortMode)
	if err != nil {
		return nil, err
	}
	f.sortMode = mode
	if err := v.check(f); err != nil {
		return nil, err
	}

	if f.Empty() {
		return e.ds.defaults[defaultKey(v.name, mode)], nil
	}

	key := v.name + "|" + f.key()
	if t := e.cache.get(key); t != nil {
		metrics.CacheHits.Inc()
		return t, nil
	}
	t := e.ds.compute(v, order, f)
	e.cache.set(key, t)
	return t, nil
}

// Empty returns the view's schema with no rows and the given warning, the
// response to a selection that could not be applied.
func (e *Engine) Empty(view, sortMode, warning string) (*models.Table, error) {
	v, ok := e.ds.views[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	order, _, err := v.order(sortMode)
	if err != nil {
		order, _, _ = v.order("")
	}
	return &models.Table{View: v.name, Columns: v.columns(order), Rows: []models.Row{}, Warning: warning}, nil
}

func (e *Engine) Views() []models.ViewInfo { return e.ds.Views() }

func (e *Engine) Index() *DimensionIndex { return e.ds.index }

func (e *Engine) Dataset() *Dataset { return e.ds }
