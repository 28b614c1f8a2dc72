package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"golang.org/x/sync/errgroup"

	"github.com/deerbay/olympics-dashboard/internal/config"
	"github.com/deerbay/olympics-dashboard/internal/models"
)

const defaultChunkRows = 16384

// nullValues are the source markers read as null.
var nullValues = []string{"", "NA"}

type LoadOptions struct {
	Columns config.Columns
	// MaxRows caps the accepted row count; 0 means no limit.
	MaxRows   int
	ChunkRows int
	Logger    *slog.Logger
}

func (o *LoadOptions) defaults() {
	if o.Columns == (config.Columns{}) {
		o.Columns = config.DefaultColumns()
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = defaultChunkRows
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// --- 1. CSV READER ---

// csvSource is an open arrow CSV reader restricted to the listed columns.
type csvSource struct {
	path string
	file *os.File
	r    *csv.Reader
}

func openCSV(path string, types map[string]arrow.DataType, chunk int) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, loadErr(path, 0, "", err)
	}
	body, err := firstRows(f)
	if err != nil {
		f.Close()
		return nil, loadErr(path, 0, "", err)
	}
	include := make([]string, 0, len(types))
	for name := range types {
		include = append(include, name)
	}
	slices.Sort(include)

	r := csv.NewInferringReader(body,
		csv.WithHeader(true),
		csv.WithChunk(chunk),
		csv.WithNullReader(true, nullValues...),
		csv.WithIncludeColumns(include),
		csv.WithColumnTypes(types),
	)
	return &csvSource{path: path, file: f, r: r}, nil
}

// firstRows checks that r holds a header and at least one non-blank data
// line, and returns a reader over the same content. The inferring reader
// cannot build a schema from a header alone.
func firstRows(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if strings.TrimSpace(header) == "" {
		return nil, errors.New("empty file")
	}
	for {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if !strings.HasSuffix(header, "\n") {
				header += "\n"
			}
			return io.MultiReader(strings.NewReader(header), strings.NewReader(line), br), nil
		}
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no data rows")
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *csvSource) Close() {
	s.r.Release()
	s.file.Close()
}

// columnIndex resolves a header name in the record schema.
func (s *csvSource) columnIndex(schema *arrow.Schema, name string) (int, error) {
	idx := schema.FieldIndices(name)
	if len(idx) == 0 {
		return 0, loadErr(s.path, 0, name, errors.New("required column missing"))
	}
	return idx[0], nil
}

func column[T arrow.Array](s *csvSource, rec arrow.Record, idx int) (T, error) {
	col, ok := rec.Column(idx).(T)
	if !ok {
		var zero T
		name := rec.Schema().Field(idx).Name
		return zero, loadErr(s.path, 0, name, fmt.Errorf("unexpected column type %s", rec.Column(idx).DataType()))
	}
	return col, nil
}

// --- 2. DICTIONARIES ---

// dict assigns IDs in first-seen order while loading; sortInto later
// renumbers them so ID order matches value order.
type dict struct {
	ids  map[string]int32
	list []string
}

func newDict() *dict { return &dict{ids: make(map[string]int32)} }

func (d *dict) id(s string) int32 {
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := int32(len(d.list))
	s = strings.Clone(s) // detach from the arrow batch buffer
	d.list = append(d.list, s)
	d.ids[s] = id
	return id
}

// sortInto sorts the dictionary, rewrites ids in place and returns the
// sorted values.
func (d *dict) sortInto(ids []int32) []string {
	sorted := slices.Clone(d.list)
	slices.Sort(sorted)
	remap := make([]int32, len(d.list))
	for newID, s := range sorted {
		remap[d.ids[s]] = int32(newID)
	}
	for k, id := range ids {
		ids[k] = remap[id]
	}
	return sorted
}

// --- 3. MAIN LOADER ---

// LoadColumnar reads the event table at path into a ColumnStore.
// Any missing file, missing column or malformed row yields a *DataLoadError.
func LoadColumnar(path string, opts LoadOptions) (*ColumnStore, error) {
	opts.defaults()
	start := time.Now()
	cols := opts.Columns
	opts.Logger.Debug("loading events", "path", path)

	src, err := openCSV(path, map[string]arrow.DataType{
		cols.Participant: arrow.BinaryTypes.String,
		cols.Year:        arrow.PrimitiveTypes.Int64,
		cols.Season:      arrow.BinaryTypes.String,
		cols.Country:     arrow.BinaryTypes.String,
		cols.Sport:       arrow.BinaryTypes.String,
		cols.Medal:       arrow.BinaryTypes.String,
		cols.Latitude:    arrow.PrimitiveTypes.Float64,
		cols.Longitude:   arrow.PrimitiveTypes.Float64,
	}, opts.ChunkRows)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	store := &ColumnStore{}
	seasons, countries, sports, participants := newDict(), newDict(), newDict(), newDict()
	var participantIDs []int32

	type indices struct{ id, year, season, country, sport, medal, lat, lon int }
	var idx *indices
	row := 0

	for src.r.Next() {
		rec := src.r.Record()

		if idx == nil {
			schema := rec.Schema()
			idx = &indices{}
			for _, c := range []struct {
				dst  *int
				name string
			}{
				{&idx.id, cols.Participant}, {&idx.year, cols.Year}, {&idx.season, cols.Season},
				{&idx.country, cols.Country}, {&idx.sport, cols.Sport}, {&idx.medal, cols.Medal},
				{&idx.lat, cols.Latitude}, {&idx.lon, cols.Longitude},
			} {
				if *c.dst, err = src.columnIndex(schema, c.name); err != nil {
					return nil, err
				}
			}
		}

		ids, err := column[*array.String](src, rec, idx.id)
		if err != nil {
			return nil, err
		}
		years, err := column[*array.Int64](src, rec, idx.year)
		if err != nil {
			return nil, err
		}
		seasonCol, err := column[*array.String](src, rec, idx.season)
		if err != nil {
			return nil, err
		}
		countryCol, err := column[*array.String](src, rec, idx.country)
		if err != nil {
			return nil, err
		}
		sportCol, err := column[*array.String](src, rec, idx.sport)
		if err != nil {
			return nil, err
		}
		medalCol, err := column[*array.String](src, rec, idx.medal)
		if err != nil {
			return nil, err
		}
		lats, err := column[*array.Float64](src, rec, idx.lat)
		if err != nil {
			return nil, err
		}
		lons, err := column[*array.Float64](src, rec, idx.lon)
		if err != nil {
			return nil, err
		}

		required := []struct {
			arr  *array.String
			name string
		}{
			{ids, cols.Participant}, {seasonCol, cols.Season}, {countryCol, cols.Country}, {sportCol, cols.Sport},
		}

		// HOT LOOP: one pass per batch, dictionary encoding as we go
		for j := 0; j < int(rec.NumRows()); j++ {
			row++
			if opts.MaxRows > 0 && row > opts.MaxRows {
				return nil, loadErr(path, row, "", fmt.Errorf("row limit %d exceeded", opts.MaxRows))
			}

			for _, c := range required {
				if c.arr.IsNull(j) {
					return nil, loadErr(path, row, c.name, errors.New("value is required"))
				}
			}
			if years.IsNull(j) || years.Value(j) <= 0 || years.Value(j) > math.MaxInt32 {
				return nil, loadErr(path, row, cols.Year, errors.New("year must be a positive integer"))
			}
			season, ok := models.ParseSeason(seasonCol.Value(j))
			if !ok {
				return nil, loadErr(path, row, cols.Season, fmt.Errorf("unknown season %q", seasonCol.Value(j)))
			}
			medal := models.MedalNone
			if !medalCol.IsNull(j) {
				if medal, err = models.ParseMedal(medalCol.Value(j)); err != nil {
					return nil, loadErr(path, row, cols.Medal, err)
				}
			}
			lat, lon := math.NaN(), math.NaN()
			if !lats.IsNull(j) && !lons.IsNull(j) {
				lat, lon = lats.Value(j), lons.Value(j)
			}

			store.Years = append(store.Years, int32(years.Value(j)))
			store.Medals = append(store.Medals, medal)
			store.Latitudes = append(store.Latitudes, lat)
			store.Longitudes = append(store.Longitudes, lon)
			store.SeasonIDs = append(store.SeasonIDs, seasons.id(string(season)))
			store.CountryIDs = append(store.CountryIDs, countries.id(countryCol.Value(j)))
			store.SportIDs = append(store.SportIDs, sports.id(sportCol.Value(j)))
			participantIDs = append(participantIDs, participants.id(ids.Value(j)))
		}
	}
	if err := src.r.Err(); err != nil {
		return nil, loadErr(path, row+1, "", err)
	}
	if row == 0 {
		return nil, loadErr(path, 0, "", errors.New("no event rows"))
	}

	// Sort Dictionaries (Parallel)
	var g errgroup.Group
	g.Go(func() error { store.SeasonDict = seasons.sortInto(store.SeasonIDs); return nil })
	g.Go(func() error { store.CountryDict = countries.sortInto(store.CountryIDs); return nil })
	g.Go(func() error { store.SportDict = sports.sortInto(store.SportIDs); return nil })
	g.Go(func() error {
		store.ParticipantDict = participants.sortInto(participantIDs)
		store.ParticipantIDs = make([]uint32, len(participantIDs))
		for k, id := range participantIDs {
			store.ParticipantIDs[k] = uint32(id)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts.Logger.Info("events loaded",
		"path", path,
		"rows", store.Len(),
		"countries", len(store.CountryDict),
		"sports", len(store.SportDict),
		"participants", len(store.ParticipantDict),
		"duration", time.Since(start))
	return store, nil
}
