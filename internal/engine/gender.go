package engine

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// Gender-ratio table headers.
const (
	genderColYear      = "Year"
	genderColCountry   = "Country"
	genderColCount     = "Count"
	genderColRatio     = "Ratio"
	genderColLatitude  = "Latitude"
	genderColLongitude = "Longitude"
)

// LoadGenderRatios reads the gender-ratio table at path. It shares the
// event loader's error policy: every problem is a *DataLoadError.
func LoadGenderRatios(path string, opts LoadOptions) ([]models.GenderRatio, error) {
	opts.defaults()
	start := time.Now()

	src, err := openCSV(path, map[string]arrow.DataType{
		genderColYear:      arrow.PrimitiveTypes.Int64,
		genderColCountry:   arrow.BinaryTypes.String,
		genderColCount:     arrow.PrimitiveTypes.Int64,
		genderColRatio:     arrow.PrimitiveTypes.Float64,
		genderColLatitude:  arrow.PrimitiveTypes.Float64,
		genderColLongitude: arrow.PrimitiveTypes.Float64,
	}, opts.ChunkRows)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var out []models.GenderRatio
	row := 0
	for src.r.Next() {
		rec := src.r.Record()
		schema := rec.Schema()

		var yi, ci, ni, ri, lai, loi int
		for _, c := range []struct {
			dst  *int
			name string
		}{
			{&yi, genderColYear}, {&ci, genderColCountry}, {&ni, genderColCount},
			{&ri, genderColRatio}, {&lai, genderColLatitude}, {&loi, genderColLongitude},
		} {
			if *c.dst, err = src.columnIndex(schema, c.name); err != nil {
				return nil, err
			}
		}
		years, err := column[*array.Int64](src, rec, yi)
		if err != nil {
			return nil, err
		}
		countries, err := column[*array.String](src, rec, ci)
		if err != nil {
			return nil, err
		}
		counts, err := column[*array.Int64](src, rec, ni)
		if err != nil {
			return nil, err
		}
		ratios, err := column[*array.Float64](src, rec, ri)
		if err != nil {
			return nil, err
		}
		lats, err := column[*array.Float64](src, rec, lai)
		if err != nil {
			return nil, err
		}
		lons, err := column[*array.Float64](src, rec, loi)
		if err != nil {
			return nil, err
		}

		for j := 0; j < int(rec.NumRows()); j++ {
			row++
			if opts.MaxRows > 0 && row > opts.MaxRows {
				return nil, loadErr(path, row, "", fmt.Errorf("row limit %d exceeded", opts.MaxRows))
			}
			if years.IsNull(j) || years.Value(j) <= 0 || years.Value(j) > math.MaxInt32 {
				return nil, loadErr(path, row, genderColYear, errors.New("year must be a positive integer"))
			}
			if countries.IsNull(j) {
				return nil, loadErr(path, row, genderColCountry, errors.New("value is required"))
			}
			if counts.IsNull(j) || counts.Value(j) < 0 {
				return nil, loadErr(path, row, genderColCount, errors.New("count must be a non-negative integer"))
			}
			if ratios.IsNull(j) {
				return nil, loadErr(path, row, genderColRatio, errors.New("value is required"))
			}
			if lats.IsNull(j) || lons.IsNull(j) {
				return nil, loadErr(path, row, genderColLatitude, errors.New("coordinates are required"))
			}
			out = append(out, models.GenderRatio{
				Year:      int(years.Value(j)),
				Country:   strings.Clone(countries.Value(j)),
				Count:     int(counts.Value(j)),
				Ratio:     ratios.Value(j),
				Latitude:  lats.Value(j),
				Longitude: lons.Value(j),
			})
		}
	}
	if err := src.r.Err(); err != nil {
		return nil, loadErr(path, row+1, "", err)
	}
	if row == 0 {
		return nil, loadErr(path, 0, "", errors.New("no gender ratio rows"))
	}
	opts.Logger.Info("gender ratios loaded", "path", path, "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// genderRow is a gender-table row keyed like a cube cell.
type genderRow struct {
	key   cellKey
	ratio models.GenderRatio
}

// resolveGender keys the gender table by the event dimension index. A year
// or country the events never mention cannot be selected and is rejected.
func resolveGender(ix *DimensionIndex, ratios []models.GenderRatio) ([]genderRow, error) {
	rows := make([]genderRow, 0, len(ratios))
	for _, gr := range ratios {
		year, ok := ix.lookupYear(gr.Year)
		if !ok {
			return nil, &AggregationError{View: ViewGenderMap, Column: genderColYear,
				cause: fmt.Errorf("year %d not in dimension index", gr.Year)}
		}
		country, ok := ix.lookup(models.DimCountry, gr.Country)
		if !ok {
			return nil, &AggregationError{View: ViewGenderMap, Column: genderColCountry,
				cause: fmt.Errorf("country %q not in dimension index", gr.Country)}
		}
		var k cellKey
		k[fieldYear], k[fieldCountry] = year, country
		rows = append(rows, genderRow{key: k, ratio: gr})
	}
	return rows, nil
}

// genderTable filters the gender rows; the table has one row per
// (year, country) so no reduction is needed, only ordering.
func genderTable(rows []genderRow, order []field, f *Filter) []models.Row {
	out := make([]models.Row, 0, len(rows))
	keep := make([]genderRow, 0, len(rows))
	for _, r := range rows {
		if f.matchKey(r.key) {
			keep = append(keep, r)
		}
	}
	slices.SortFunc(keep, func(a, b genderRow) int { return compareKeys(a.key, b.key, order) })
	for _, r := range keep {
		out = append(out, models.Row{
			Year:      r.ratio.Year,
			Country:   r.ratio.Country,
			Latitude:  r.ratio.Latitude,
			Longitude: r.ratio.Longitude,
			Count:     r.ratio.Count,
			Ratio:     r.ratio.Ratio,
		})
	}
	return out
}
