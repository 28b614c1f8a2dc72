package engine

import (
	"slices"
	"strconv"
	"strings"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// dimTier names the medal-tier selection field in errors.
const dimTier models.Dimension = "tier"

// Selection is the user's choice of values per dimension. Nil or empty
// slices mean "no restriction".
type Selection struct {
	Years     []int    `json:"years,omitempty" yaml:"years"`
	Sports    []string `json:"sports,omitempty" yaml:"sports"`
	Seasons   []string `json:"seasons,omitempty" yaml:"seasons"`
	Countries []string `json:"countries,omitempty" yaml:"countries"`
	// Tier restricts medal rows to one tier (Gold, Silver, Bronze, None).
	Tier string `json:"tier,omitempty" yaml:"tier"`
	// SortMode picks the outer level of hierarchical views.
	SortMode string `json:"sort_mode,omitempty" yaml:"sort_mode"`
}

// Filter is a normalized selection: per field, a sorted set of cube key
// values. A nil set means the field is unrestricted; an empty non-nil set
// matches nothing.
type Filter struct {
	sets     [numFields][]int32
	sortMode string
}

func (f *Filter) Has(fl field) bool { return f.sets[fl] != nil }

// Empty reports whether no field is restricted.
func (f *Filter) Empty() bool { return f.fields() == 0 }

func (f *Filter) fields() fieldSet {
	var s fieldSet
	for fl := field(0); fl < numFields; fl++ {
		if f.Has(fl) {
			s |= 1 << fl
		}
	}
	return s
}

// matchesNothing reports whether some restricted field allows no value.
func (f *Filter) matchesNothing() bool {
	for fl := field(0); fl < numFields; fl++ {
		if f.sets[fl] != nil && len(f.sets[fl]) == 0 {
			return true
		}
	}
	return false
}

func (f *Filter) match(fl field, v int32) bool {
	if !f.Has(fl) {
		return true
	}
	_, ok := slices.BinarySearch(f.sets[fl], v)
	return ok
}

func (f *Filter) matchKey(k cellKey) bool {
	for fl := field(0); fl < numFields; fl++ {
		if !f.match(fl, k[fl]) {
			return false
		}
	}
	return true
}

// and returns the filter accepting exactly what both f and o accept.
func (f *Filter) and(o *Filter) *Filter {
	if o == nil {
		return f
	}
	out := &Filter{sortMode: f.sortMode}
	for fl := field(0); fl < numFields; fl++ {
		a, b := f.sets[fl], o.sets[fl]
		switch {
		case a == nil:
			out.sets[fl] = b
		case b == nil:
			out.sets[fl] = a
		default:
			both := make([]int32, 0, min(len(a), len(b)))
			for _, v := range a {
				if _, ok := slices.BinarySearch(b, v); ok {
					both = append(both, v)
				}
			}
			out.sets[fl] = both
		}
	}
	return out
}

// key is a canonical encoding of the filter, stable across equivalent
// selections.
func (f *Filter) key() string {
	var b strings.Builder
	for fl := field(0); fl < numFields; fl++ {
		if !f.Has(fl) {
			continue
		}
		b.WriteString(fl.String())
		b.WriteByte('=')
		for i, v := range f.sets[fl] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(v)))
		}
		b.WriteByte(';')
	}
	b.WriteString("sort=")
	b.WriteString(f.sortMode)
	return b.String()
}

func (f *Filter) set(fl field, values []int32) {
	slices.Sort(values)
	f.sets[fl] = slices.Compact(values)
}

// Resolve normalizes sel once at the boundary: empty fields become absent,
// duplicates collapse and every value is checked against the index.
func (ix *DimensionIndex) Resolve(sel Selection) (*Filter, error) {
	f := &Filter{sortMode: strings.TrimSpace(sel.SortMode)}

	if len(sel.Years) > 0 {
		ids := make([]int32, 0, len(sel.Years))
		for _, y := range sel.Years {
			id, ok := ix.lookupYear(y)
			if !ok {
				return nil, &InvalidSelectionError{Dimension: models.DimYear, Value: strconv.Itoa(y), Reason: "not in dimension index"}
			}
			ids = append(ids, id)
		}
		f.set(fieldYear, ids)
	}

	for _, s := range []struct {
		dim    models.Dimension
		fl     field
		values []string
	}{
		{models.DimSeason, fieldSeason, sel.Seasons},
		{models.DimCountry, fieldCountry, sel.Countries},
		{models.DimSport, fieldSport, sel.Sports},
	} {
		if len(s.values) == 0 {
			continue
		}
		ids := make([]int32, 0, len(s.values))
		for _, v := range s.values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			id, ok := ix.lookup(s.dim, v)
			if !ok {
				return nil, &InvalidSelectionError{Dimension: s.dim, Value: v, Reason: "not in dimension index"}
			}
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			f.set(s.fl, ids)
		}
	}

	if tier := strings.TrimSpace(sel.Tier); tier != "" {
		m, err := parseTier(tier)
		if err != nil {
			return nil, &InvalidSelectionError{Dimension: dimTier, Value: tier, Reason: "unknown medal tier"}
		}
		f.set(fieldMedal, []int32{int32(m.Rank())})
	}
	return f, nil
}

// parseTier is stricter than models.ParseMedal: the source null markers are
// not valid selection values.
func parseTier(s string) (models.Medal, error) {
	if s == "" || s == "NA" {
		return models.MedalNone, &InvalidSelectionError{Dimension: dimTier, Value: s}
	}
	return models.ParseMedal(s)
}

// tierFilter restricts the medal field to the given tiers.
func tierFilter(tiers ...models.Medal) *Filter {
	f := &Filter{}
	ids := make([]int32, 0, len(tiers))
	for _, m := range tiers {
		ids = append(ids, int32(m.Rank()))
	}
	f.set(fieldMedal, ids)
	return f
}
