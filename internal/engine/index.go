package engine

import (
	"slices"
	"strconv"
	"strings"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// DimensionIndex holds the sorted distinct values of every selectable
// dimension. It is derived from the record store and never changes.
type DimensionIndex struct {
	years     []int
	sports    []string
	seasons   []string
	countries []string
}

func NewDimensionIndex(cs *ColumnStore) *DimensionIndex {
	seen := make(map[int32]struct{})
	years := make([]int, 0, 64)
	for _, y := range cs.Years {
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			years = append(years, int(y))
		}
	}
	slices.Sort(years)
	return &DimensionIndex{
		years:     years,
		sports:    cs.SportDict,
		seasons:   cs.SeasonDict,
		countries: cs.CountryDict,
	}
}

// ParseDimension maps a dimension name to its constant.
func ParseDimension(name string) (models.Dimension, error) {
	d := models.Dimension(strings.ToLower(strings.TrimSpace(name)))
	switch d {
	case models.DimYear, models.DimSport, models.DimSeason, models.DimCountry:
		return d, nil
	}
	return "", &UnknownDimensionError{Dimension: name}
}

// Values returns the sorted distinct values of dimension d. Years are
// ordered numerically, everything else lexicographically.
func (ix *DimensionIndex) Values(d models.Dimension) ([]string, error) {
	switch d {
	case models.DimYear:
		out := make([]string, len(ix.years))
		for i, y := range ix.years {
			out[i] = strconv.Itoa(y)
		}
		return out, nil
	case models.DimSport:
		return slices.Clone(ix.sports), nil
	case models.DimSeason:
		return slices.Clone(ix.seasons), nil
	case models.DimCountry:
		return slices.Clone(ix.countries), nil
	}
	return nil, &UnknownDimensionError{Dimension: string(d)}
}

// ValuesOf is Values for an unparsed dimension name.
func (ix *DimensionIndex) ValuesOf(name string) ([]string, error) {
	d, err := ParseDimension(name)
	if err != nil {
		return nil, err
	}
	return ix.Values(d)
}

func (ix *DimensionIndex) Years() []int { return slices.Clone(ix.years) }

func (ix *DimensionIndex) Contains(d models.Dimension, value string) bool {
	_, ok := ix.lookup(d, value)
	return ok
}

// lookup returns the cube key of value: the year itself for years, the
// dictionary ID otherwise.
func (ix *DimensionIndex) lookup(d models.Dimension, value string) (int32, bool) {
	var dict []string
	switch d {
	case models.DimYear:
		y, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return ix.lookupYear(y)
	case models.DimSport:
		dict = ix.sports
	case models.DimSeason:
		dict = ix.seasons
	case models.DimCountry:
		dict = ix.countries
	default:
		return 0, false
	}
	i, ok := slices.BinarySearch(dict, value)
	return int32(i), ok
}

func (ix *DimensionIndex) lookupYear(y int) (int32, bool) {
	_, ok := slices.BinarySearch(ix.years, y)
	return int32(y), ok
}
