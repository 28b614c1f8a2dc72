package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deerbay/olympics-dashboard/internal/config"
	"github.com/deerbay/olympics-dashboard/internal/metrics"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

type DatasetOptions struct {
	TopN int
	// FocusCountry enables the single-country views; empty disables them.
	FocusCountry string
	Workers      int
	Logger       *slog.Logger
}

func (o *DatasetOptions) defaults() {
	if o.TopN <= 0 {
		o.TopN = config.DefaultTopN
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Dataset is everything built once at startup: the record store, its
// dimension index, the cube lattice and every view's unfiltered table.
// It is read-only after NewDataset returns and safe for concurrent use.
type Dataset struct {
	store  *ColumnStore
	index  *DimensionIndex
	cubes  []*Cube
	views  map[string]*viewDef
	names  []string
	lat    []float64 // by country ID
	lon    []float64
	gender []genderRow
	// defaults holds the no-selection table of every view and sort mode.
	defaults map[string]*models.Table
	topN     int
}

func defaultKey(view, mode string) string { return view + "|" + mode }

// Build loads the configured tables and builds the dataset.
func Build(ctx context.Context, log *slog.Logger, cfg *config.Config) (*Dataset, error) {
	start := time.Now()
	opts := LoadOptions{Columns: cfg.Data.Columns, MaxRows: cfg.Data.MaxRows, Logger: log}

	store, err := LoadColumnar(cfg.Data.EventsPath, opts)
	if err != nil {
		return nil, err
	}
	var gender []models.GenderRatio
	if cfg.Data.GenderPath != "" {
		if gender, err = LoadGenderRatios(cfg.Data.GenderPath, opts); err != nil {
			return nil, err
		}
	}

	ds, err := NewDataset(ctx, store, gender, DatasetOptions{
		TopN:         cfg.Engine.TopN,
		FocusCountry: cfg.Focus(),
		Workers:      cfg.Engine.Workers,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordsLoaded.Set(float64(store.Len()))
	metrics.BuildDuration.Set(time.Since(start).Seconds())
	return ds, nil
}

// NewDataset builds the dimension index, cubes and default tables over an
// already loaded store. gender may be nil, in which case the gender view is
// not registered.
func NewDataset(ctx context.Context, store *ColumnStore, gender []models.GenderRatio, opts DatasetOptions) (*Dataset, error) {
	opts.defaults()
	start := time.Now()

	ds := &Dataset{
		store:    store,
		index:    NewDimensionIndex(store),
		views:    make(map[string]*viewDef),
		defaults: make(map[string]*models.Table),
		topN:     opts.TopN,
	}

	views := standardViews()
	if opts.FocusCountry != "" {
		id, ok := ds.index.lookup(models.DimCountry, opts.FocusCountry)
		if !ok {
			return nil, &AggregationError{View: ViewFocusTopSports, Column: string(models.ColCountry),
				cause: fmt.Errorf("focus country %q not in dimension index", opts.FocusCountry)}
		}
		views = append(views, focusViews(id)...)
	}
	if gender != nil {
		rows, err := resolveGender(ds.index, gender)
		if err != nil {
			return nil, err
		}
		ds.gender = rows
		views = append(views, genderView())
	}

	if err := ds.resolveCoordinates(views); err != nil {
		return nil, err
	}

	base, err := store.Aggregate(ctx, opts.Workers)
	if err != nil {
		return nil, &AggregationError{View: "base", cause: err}
	}
	var need []fieldSet
	for _, v := range views {
		need = append(need, v.needs()...)
	}
	if ds.cubes, err = buildLattice(ctx, base, need); err != nil {
		return nil, err
	}

	for _, v := range views {
		ds.views[v.name] = v
		ds.names = append(ds.names, v.name)
		for _, m := range v.modes {
			order, mode, err := v.order(m)
			if err != nil {
				return nil, &AggregationError{View: v.name, cause: err}
			}
			ds.defaults[defaultKey(v.name, mode)] = ds.compute(v, order, &Filter{sortMode: mode})
		}
	}

	opts.Logger.Info("dataset built",
		"views", len(ds.views),
		"cubes", len(ds.cubes),
		"cells", base.Len(),
		"duration", time.Since(start))
	return ds, nil
}

// resolveCoordinates fixes one coordinate per country for map views. A
// country that never carries coordinates cannot be placed on a map.
func (ds *Dataset) resolveCoordinates(views []*viewDef) error {
	var mapView *viewDef
	for _, v := range views {
		if v.coords && !v.gender {
			mapView = v
			break
		}
	}
	if mapView == nil {
		return nil
	}
	lat, lon, ok := ds.store.countryCoordinates()
	for id, has := range ok {
		if !has {
			return &AggregationError{View: mapView.name, Column: string(models.ColLatitude),
				cause: fmt.Errorf("no coordinates for country %q", ds.store.CountryDict[id])}
		}
	}
	ds.lat, ds.lon = lat, lon
	return nil
}

// buildLattice derives every needed cube from the finest already built
// superset, one level (field count) at a time, rolling up a level's cubes
// concurrently.
func buildLattice(ctx context.Context, base *Cube, need []fieldSet) ([]*Cube, error) {
	cubes := []*Cube{base}
	built := map[fieldSet]bool{base.fields: true}

	for size := numFields - 1; size >= 1; size-- {
		var level []fieldSet
		for _, fs := range need {
			if fs.size() == int(size) && !built[fs] {
				built[fs] = true
				level = append(level, fs)
			}
		}
		if len(level) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make([]*Cube, len(level))
		g, _ := errgroup.WithContext(ctx)
		for i, fs := range level {
			src := coarsest(cubes, fs)
			g.Go(func() error {
				c, err := src.Rollup(fs)
				out[i] = c
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, &AggregationError{View: "lattice", cause: err}
		}
		cubes = append(cubes, out...)
	}
	return cubes, nil
}

// coarsest returns the smallest cube whose fields cover need. The base cube
// covers everything, so there is always one.
func coarsest(cubes []*Cube, need fieldSet) *Cube {
	var best *Cube
	for _, c := range cubes {
		if c.fields.covers(need) && (best == nil || c.Len() < best.Len()) {
			best = c
		}
	}
	return best
}

// compute evaluates view v for filter f. It never returns nil: a selection
// that matches nothing gives the view's columns with zero rows.
func (ds *Dataset) compute(v *viewDef, order []field, f *Filter) *models.Table {
	t := &models.Table{View: v.name, Columns: v.columns(order), Rows: []models.Row{}}
	f = f.and(v.fixed)
	if f.matchesNothing() {
		return t
	}
	if v.gender {
		t.Rows = genderTable(ds.gender, order, f)
		return t
	}

	display := setOf(order...)
	cube := coarsest(ds.cubes, display|f.fields())
	reduced := cube.aggregate(cube.match(f), display)

	groups := make([]group, 0, len(reduced))
	for k, r := range reduced {
		groups = append(groups, group{key: k, red: *r})
	}
	groups = sortGroups(groups, order, v.ranking, ds.topN)

	t.Rows = make([]models.Row, 0, len(groups))
	for _, g := range groups {
		t.Rows = append(t.Rows, ds.row(g.key, order, g.red, v.coords))
	}
	return t
}

func (ds *Dataset) Store() *ColumnStore { return ds.store }

func (ds *Dataset) Index() *DimensionIndex { return ds.index }

// Views describes the registered views in registration order.
func (ds *Dataset) Views() []models.ViewInfo {
	out := make([]models.ViewInfo, 0, len(ds.names))
	for _, name := range ds.names {
		out = append(out, ds.views[name].info())
	}
	return out
}

// NewColumnStore encodes in-memory events the way LoadColumnar encodes a
// file. Events with an empty country, sport, season or participant are
// rejected.
func NewColumnStore(events []models.Event) (*ColumnStore, error) {
	if len(events) == 0 {
		return nil, errors.New("no events")
	}
	store := &ColumnStore{}
	seasons, countries, sports, participants := newDict(), newDict(), newDict(), newDict()
	participantIDs := make([]int32, 0, len(events))
	for i, e := range events {
		if e.Country == "" || e.Sport == "" || e.Season == "" || e.Participant == "" || e.Year <= 0 {
			return nil, fmt.Errorf("event %d: missing required field", i)
		}
		store.Years = append(store.Years, int32(e.Year))
		store.Medals = append(store.Medals, e.Medal)
		store.Latitudes = append(store.Latitudes, e.Latitude)
		store.Longitudes = append(store.Longitudes, e.Longitude)
		store.SeasonIDs = append(store.SeasonIDs, seasons.id(string(e.Season)))
		store.CountryIDs = append(store.CountryIDs, countries.id(e.Country))
		store.SportIDs = append(store.SportIDs, sports.id(e.Sport))
		participantIDs = append(participantIDs, participants.id(e.Participant))
	}
	store.SeasonDict = seasons.sortInto(store.SeasonIDs)
	store.CountryDict = countries.sortInto(store.CountryIDs)
	store.SportDict = sports.sortInto(store.SportIDs)
	store.ParticipantDict = participants.sortInto(participantIDs)
	store.ParticipantIDs = make([]uint32, len(participantIDs))
	for k, id := range participantIDs {
		store.ParticipantIDs[k] = uint32(id)
	}
	return store, nil
}
