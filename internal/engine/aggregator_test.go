package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

// referenceGroups groups store rows by their key masked to fs.
func referenceGroups(store *ColumnStore, fs fieldSet) map[cellKey][]int {
	ref := make(map[cellKey][]int)
	for i := range store.Len() {
		k := store.key(i).mask(fs)
		ref[k] = append(ref[k], i)
	}
	return ref
}

func assertCubeMatchesStore(t *testing.T, store *ColumnStore, c *Cube) {
	t.Helper()
	ref := referenceGroups(store, c.Fields())
	require.Equal(t, len(ref), c.Len(), "cells of %s", c.Fields())
	for _, cl := range c.cells {
		want := store.Reduce(ref[cl.key])
		assert.Equal(t, want.Participants(), cl.red.Participants(), "participants of %v", cl.key)
		assert.Equal(t, want.Medals(), cl.red.Medals(), "medals of %v", cl.key)
		assert.Equal(t, want.Rows(), cl.red.Rows(), "rows of %v", cl.key)
	}
}

func TestAggregate(t *testing.T) {
	// 1. Setup Mock Data
	store := newTestStore(t)

	// 2. Run Aggregation
	base, err := store.Aggregate(context.Background(), 4)
	require.NoError(t, err)

	// 3. Assertions: the base cube is the finest grouping
	assert.Equal(t, allFields, base.Fields())
	assertCubeMatchesStore(t, store, base)

	// Every chunking gives the same cells
	for _, workers := range []int{1, 2, 5, 64} {
		other, err := store.Aggregate(context.Background(), workers)
		require.NoError(t, err)
		require.Equal(t, base.Len(), other.Len(), "workers=%d", workers)
		for i := range base.cells {
			assert.Equal(t, base.cells[i].key, other.cells[i].key)
			assert.Equal(t, base.cells[i].red.Participants(), other.cells[i].red.Participants())
			assert.Equal(t, base.cells[i].red.Medals(), other.cells[i].red.Medals())
		}
	}
}

func TestRollup_ExactDistinctCounts(t *testing.T) {
	store := newTestStore(t)
	base, err := store.Aggregate(context.Background(), 2)
	require.NoError(t, err)

	for _, fs := range []fieldSet{
		setOf(fieldCountry),
		setOf(fieldSport),
		setOf(fieldYear, fieldCountry),
		setOf(fieldCountry, fieldSport, fieldMedal),
		setOf(fieldSeason),
		setOf(fieldMedal),
	} {
		c, err := base.Rollup(fs)
		require.NoError(t, err)
		assertCubeMatchesStore(t, store, c)
	}
}

func TestRollup_IsAssociative(t *testing.T) {
	store := newTestStore(t)
	base, err := store.Aggregate(context.Background(), 2)
	require.NoError(t, err)

	direct, err := base.Rollup(setOf(fieldCountry))
	require.NoError(t, err)

	mid, err := base.Rollup(setOf(fieldCountry, fieldYear))
	require.NoError(t, err)
	viaYear, err := mid.Rollup(setOf(fieldCountry))
	require.NoError(t, err)

	require.Equal(t, direct.Len(), viaYear.Len())
	for i := range direct.cells {
		assert.Equal(t, direct.cells[i].key, viaYear.cells[i].key)
		assert.Equal(t, direct.cells[i].red.Participants(), viaYear.cells[i].red.Participants())
		assert.Equal(t, direct.cells[i].red.Medals(), viaYear.cells[i].red.Medals())
	}

	// Sweden has s1 in both 2012 and 2016: summing per-year counts would give 4.
	sweden, ok := NewDimensionIndex(store).lookup(models.DimCountry, "Sweden")
	require.True(t, ok)
	for _, cl := range viaYear.cells {
		if cl.key[fieldCountry] == sweden {
			assert.Equal(t, 3, cl.red.Participants())
		}
	}

	// Rolling up never mutates the source.
	assertCubeMatchesStore(t, store, mid)
	assertCubeMatchesStore(t, store, base)
}

func TestRollup_RejectsFinerFields(t *testing.T) {
	store := newTestStore(t)
	base, err := store.Aggregate(context.Background(), 1)
	require.NoError(t, err)
	coarse, err := base.Rollup(setOf(fieldCountry))
	require.NoError(t, err)

	_, err = coarse.Rollup(setOf(fieldCountry, fieldSport))
	require.Error(t, err)
}

func TestCubeMatch(t *testing.T) {
	store := newTestStore(t)
	ix := NewDimensionIndex(store)
	base, err := store.Aggregate(context.Background(), 2)
	require.NoError(t, err)

	f, err := ix.Resolve(Selection{Countries: []string{"Sweden", "USA"}, Sports: []string{"Sailing"}})
	require.NoError(t, err)

	positions := base.match(f)
	require.NotNil(t, positions)
	it := positions.Iterator()
	n := 0
	for it.HasNext() {
		cl := base.cells[it.Next()]
		assert.True(t, f.matchKey(cl.key))
		n++
	}
	want := 0
	for _, cl := range base.cells {
		if f.matchKey(cl.key) {
			want++
		}
	}
	assert.Equal(t, want, n)

	assert.Nil(t, base.match(&Filter{}), "no restriction matches every cell")
}
