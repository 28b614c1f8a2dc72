package engine

import (
	"iter"
	"math"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// ColumnStore holds the event table in Struct-of-Arrays format.
// It is immutable once LoadColumnar returns.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Years      []int32
	Medals     []models.Medal
	Latitudes  []float64 // NaN when the source row had no coordinate
	Longitudes []float64

	// Dictionary Encoded IDs (0..N). IDs follow dictionary order, so
	// comparing two IDs compares their values.
	SeasonIDs      []int32
	CountryIDs     []int32
	SportIDs       []int32
	ParticipantIDs []uint32

	// Dictionaries (ID -> String), sorted ascending
	SeasonDict      []string
	CountryDict     []string
	SportDict       []string
	ParticipantDict []string
}

func (cs *ColumnStore) Len() int { return len(cs.Years) }

// Event materializes row i.
func (cs *ColumnStore) Event(i int) models.Event {
	return models.Event{
		Year:        int(cs.Years[i]),
		Season:      models.Season(cs.SeasonDict[cs.SeasonIDs[i]]),
		Country:     cs.CountryDict[cs.CountryIDs[i]],
		Sport:       cs.SportDict[cs.SportIDs[i]],
		Medal:       cs.Medals[i],
		Participant: cs.ParticipantDict[cs.ParticipantIDs[i]],
		Latitude:    cs.Latitudes[i],
		Longitude:   cs.Longitudes[i],
	}
}

// All iterates over every event in load order.
func (cs *ColumnStore) All() iter.Seq[models.Event] {
	return func(yield func(models.Event) bool) {
		for i := range cs.Years {
			if !yield(cs.Event(i)) {
				return
			}
		}
	}
}

// key returns the finest cube key for row i.
func (cs *ColumnStore) key(i int) cellKey {
	return cellKey{
		fieldYear:    cs.Years[i],
		fieldSeason:  cs.SeasonIDs[i],
		fieldCountry: cs.CountryIDs[i],
		fieldSport:   cs.SportIDs[i],
		fieldMedal:   int32(cs.Medals[i].Rank()),
	}
}

// Select returns the positions of the rows matching f, in load order.
func (cs *ColumnStore) Select(f *Filter) []int {
	rows := make([]int, 0, cs.Len())
	for i := range cs.Years {
		if f.matchKey(cs.key(i)) {
			rows = append(rows, i)
		}
	}
	return rows
}

// Subset copies the given rows into a new store that shares dictionaries
// with cs, so IDs and filters stay valid across both.
func (cs *ColumnStore) Subset(rows []int) *ColumnStore {
	out := &ColumnStore{
		Years:           make([]int32, len(rows)),
		Medals:          make([]models.Medal, len(rows)),
		Latitudes:       make([]float64, len(rows)),
		Longitudes:      make([]float64, len(rows)),
		SeasonIDs:       make([]int32, len(rows)),
		CountryIDs:      make([]int32, len(rows)),
		SportIDs:        make([]int32, len(rows)),
		ParticipantIDs:  make([]uint32, len(rows)),
		SeasonDict:      cs.SeasonDict,
		CountryDict:     cs.CountryDict,
		SportDict:       cs.SportDict,
		ParticipantDict: cs.ParticipantDict,
	}
	for k, i := range rows {
		out.Years[k] = cs.Years[i]
		out.Medals[k] = cs.Medals[i]
		out.Latitudes[k] = cs.Latitudes[i]
		out.Longitudes[k] = cs.Longitudes[i]
		out.SeasonIDs[k] = cs.SeasonIDs[i]
		out.CountryIDs[k] = cs.CountryIDs[i]
		out.SportIDs[k] = cs.SportIDs[i]
		out.ParticipantIDs[k] = cs.ParticipantIDs[i]
	}
	return out
}

// Reduce computes the distinct-participant and medal counts over rows
// straight from the event columns.
func (cs *ColumnStore) Reduce(rows []int) Reduction {
	r := newReduction()
	for _, i := range rows {
		r.add(cs.ParticipantIDs[i], cs.Medals[i])
	}
	return r
}

// countryCoordinates returns the first known coordinate of every country,
// indexed by country ID. ok[i] is false when no row of country i carries one.
func (cs *ColumnStore) countryCoordinates() (lat, lon []float64, ok []bool) {
	n := len(cs.CountryDict)
	lat, lon, ok = make([]float64, n), make([]float64, n), make([]bool, n)
	for i, cid := range cs.CountryIDs {
		if ok[cid] || math.IsNaN(cs.Latitudes[i]) || math.IsNaN(cs.Longitudes[i]) {
			continue
		}
		lat[cid], lon[cid], ok[cid] = cs.Latitudes[i], cs.Longitudes[i], true
	}
	return lat, lon, ok
}
