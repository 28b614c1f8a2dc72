package models

import (
	"github.com/goccy/go-json"
)

// Column names a field of a result table. Every view documents a fixed
// column list so chart bindings never inspect content.
type Column string

const (
	ColYear         Column = "year"
	ColSeason       Column = "season"
	ColCountry      Column = "country"
	ColSport        Column = "sport"
	ColMedal        Column = "medal"
	ColLatitude     Column = "latitude"
	ColLongitude    Column = "longitude"
	ColParticipants Column = "participants"
	ColMedals       Column = "medals"
	ColCount        Column = "count"
	ColRatio        Column = "ratio"
)

// Row carries every column a view can emit; the owning Table's Columns say
// which of them are meaningful.
type Row struct {
	Year         int
	Season       string
	Country      string
	Sport        string
	Medal        string
	Latitude     float64
	Longitude    float64
	Participants int
	Medals       int
	Count        int
	Ratio        float64
}

func (r Row) Value(c Column) any {
	switch c {
	case ColYear:
		return r.Year
	case ColSeason:
		return r.Season
	case ColCountry:
		return r.Country
	case ColSport:
		return r.Sport
	case ColMedal:
		return r.Medal
	case ColLatitude:
		return r.Latitude
	case ColLongitude:
		return r.Longitude
	case ColParticipants:
		return r.Participants
	case ColMedals:
		return r.Medals
	case ColCount:
		return r.Count
	case ColRatio:
		return r.Ratio
	}
	return nil
}

// Table is the engine's result: grouping columns plus numeric columns.
// A selection that matches nothing yields a Table with zero rows and the
// same Columns, never nil.
type Table struct {
	View    string
	Columns []Column
	Rows    []Row
	Warning string
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Page returns a shallow copy restricted to rows [offset, offset+limit).
func (t *Table) Page(limit, offset int) *Table {
	out := &Table{View: t.View, Columns: t.Columns, Warning: t.Warning, Rows: []Row{}}
	if offset >= len(t.Rows) {
		return out
	}
	end := offset + limit
	if limit <= 0 || end > len(t.Rows) {
		end = len(t.Rows)
	}
	out.Rows = t.Rows[offset:end]
	return out
}

type tableJSON struct {
	View    string   `json:"view"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Warning string   `json:"warning,omitempty"`
}

// MarshalJSON emits rows as arrays aligned with Columns.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{
		View:    t.View,
		Columns: t.Columns,
		Rows:    make([][]any, 0, len(t.Rows)),
		Warning: t.Warning,
	}
	for _, r := range t.Rows {
		vals := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			vals[i] = r.Value(c)
		}
		out.Rows = append(out.Rows, vals)
	}
	return json.Marshal(out)
}

// ViewKind tells the presentation layer which chart family a view feeds.
type ViewKind string

const (
	KindMap       ViewKind = "map"
	KindHierarchy ViewKind = "hierarchy"
	KindRanking   ViewKind = "ranking"
	KindTable     ViewKind = "table"
)

// ViewInfo describes a registered view's fixed schema.
type ViewInfo struct {
	Name        string      `json:"name"`
	Kind        ViewKind    `json:"kind"`
	Columns     []Column    `json:"columns"`
	Dimensions  []Dimension `json:"dimensions"`
	SortModes   []string    `json:"sort_modes,omitempty"`
	AcceptsTier bool        `json:"accepts_tier"`
}
