package engine

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// field is a grouping key column of a cube. Years are stored as their
// value, medals as their models.Medal rank and every other field as a
// dictionary ID, so comparing two keys compares their natural order.
type field uint8

const (
	fieldYear field = iota
	fieldSeason
	fieldCountry
	fieldSport
	fieldMedal
	numFields
)

var fieldNames = [numFields]string{"year", "season", "country", "sport", "medal"}

func (f field) String() string { return fieldNames[f] }

// fieldSet is a bitmask of fields.
type fieldSet uint8

const allFields fieldSet = 1<<numFields - 1

func setOf(fs ...field) fieldSet {
	var s fieldSet
	for _, f := range fs {
		s |= 1 << f
	}
	return s
}

func (s fieldSet) has(f field) bool { return s&(1<<f) != 0 }

func (s fieldSet) covers(o fieldSet) bool { return s&o == o }

func (s fieldSet) size() int { return bits.OnesCount8(uint8(s)) }

func (s fieldSet) String() string {
	var names []string
	for f := field(0); f < numFields; f++ {
		if s.has(f) {
			names = append(names, f.String())
		}
	}
	return "[" + strings.Join(names, ",") + "]"
}

type cellKey [numFields]int32

// mask zeroes every field outside s.
func (k cellKey) mask(s fieldSet) cellKey {
	var out cellKey
	for f := field(0); f < numFields; f++ {
		if s.has(f) {
			out[f] = k[f]
		}
	}
	return out
}

func compareKeys(a, b cellKey, order []field) int {
	for _, f := range order {
		if c := cmp.Compare(a[f], b[f]); c != 0 {
			return c
		}
	}
	return 0
}

// --- REDUCERS ---

// Reduction is the summary of a row set: the set of distinct participants
// and the number of rows that carry a medal. Merging unions participant
// sets and sums counts, so reductions of disjoint partitions combine into
// exactly the reduction of their union.
type Reduction struct {
	participants *roaring.Bitmap
	medals       int
	rows         int
}

func newReduction() Reduction {
	return Reduction{participants: roaring.New()}
}

func (r *Reduction) add(participant uint32, medal models.Medal) {
	r.participants.Add(participant)
	r.rows++
	if medal.Won() {
		r.medals++
	}
}

// merge folds o into r. r must own its bitmap.
func (r *Reduction) merge(o Reduction) {
	r.participants.Or(o.participants)
	r.medals += o.medals
	r.rows += o.rows
}

// clone returns a reduction that owns a copy of the participant set.
func (r Reduction) clone() Reduction {
	return Reduction{participants: r.participants.Clone(), medals: r.medals, rows: r.rows}
}

func (r Reduction) Participants() int { return int(r.participants.GetCardinality()) }

func (r Reduction) Medals() int { return r.medals }

func (r Reduction) Rows() int { return r.rows }

// --- CUBES ---

type cell struct {
	key cellKey
	red Reduction
}

// Cube is a precomputed group-by over a fixed set of fields. Cells are kept
// sorted by key, and every field has a posting list per value (value ->
// cell positions) for filtering. Cubes are immutable after construction.
type Cube struct {
	fields   fieldSet
	cells    []cell
	postings [numFields]map[int32]*roaring.Bitmap
}

func newCube(fields fieldSet, groups map[cellKey]*Reduction) *Cube {
	c := &Cube{fields: fields, cells: make([]cell, 0, len(groups))}
	for k, r := range groups {
		c.cells = append(c.cells, cell{key: k, red: *r})
	}
	order := fields.order()
	slices.SortFunc(c.cells, func(a, b cell) int { return compareKeys(a.key, b.key, order) })

	for _, f := range order {
		c.postings[f] = make(map[int32]*roaring.Bitmap)
	}
	for pos, cl := range c.cells {
		for _, f := range order {
			bm, ok := c.postings[f][cl.key[f]]
			if !ok {
				bm = roaring.New()
				c.postings[f][cl.key[f]] = bm
			}
			bm.Add(uint32(pos))
		}
	}
	for _, f := range order {
		for _, bm := range c.postings[f] {
			bm.RunOptimize()
		}
	}
	return c
}

// order lists the fields of s in field order.
func (s fieldSet) order() []field {
	out := make([]field, 0, s.size())
	for f := field(0); f < numFields; f++ {
		if s.has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c *Cube) Fields() fieldSet { return c.fields }

func (c *Cube) Len() int { return len(c.cells) }

// match returns the positions of the cells accepted by f: OR across the
// selected values of one field, AND across fields. A nil result means every
// cell matches.
func (c *Cube) match(f *Filter) *roaring.Bitmap {
	var out *roaring.Bitmap
	for fl := field(0); fl < numFields; fl++ {
		if !f.Has(fl) {
			continue
		}
		union := roaring.New()
		for _, v := range f.sets[fl] {
			if bm, ok := c.postings[fl][v]; ok {
				union.Or(bm)
			}
		}
		if out == nil {
			out = union
		} else {
			out.And(union)
		}
		if out.IsEmpty() {
			return out
		}
	}
	return out
}

// aggregate rolls the cells at positions (all cells when positions is nil)
// up to fields. The source cube is not modified.
func (c *Cube) aggregate(positions *roaring.Bitmap, fields fieldSet) map[cellKey]*Reduction {
	groups := make(map[cellKey]*Reduction)
	add := func(cl cell) {
		k := cl.key.mask(fields)
		if r, ok := groups[k]; ok {
			r.merge(cl.red)
			return
		}
		r := cl.red.clone()
		groups[k] = &r
	}
	if positions == nil {
		for _, cl := range c.cells {
			add(cl)
		}
		return groups
	}
	it := positions.Iterator()
	for it.HasNext() {
		add(c.cells[it.Next()])
	}
	return groups
}

// Rollup derives a coarser cube by merging cells over the dropped fields.
func (c *Cube) Rollup(fields fieldSet) (*Cube, error) {
	if !c.fields.covers(fields) {
		return nil, fmt.Errorf("cannot roll cube %s up to %s", c.fields, fields)
	}
	return newCube(fields, c.aggregate(nil, fields)), nil
}
