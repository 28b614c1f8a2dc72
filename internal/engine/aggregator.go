package engine

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
)

type partialAgg map[cellKey]*Reduction

// Aggregate builds the finest cube (every field) from the event columns.
// Rows are split into one chunk per worker; each worker reduces its chunk
// into a private map and the maps are merged afterwards.
func (cs *ColumnStore) Aggregate(ctx context.Context, workers int) (*Cube, error) {
	if workers <= 0 {
		workers = 1
	}
	n := cs.Len()
	chunkSize := (n + workers - 1) / workers
	if chunkSize == 0 {
		return newCube(allFields, nil), nil
	}

	pool := pond.NewResultPool[partialAgg](workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	// 1. Parallel Loop
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		group.SubmitErr(func() (partialAgg, error) {
			p := make(partialAgg)
			for i := start; i < end; i++ {
				k := cs.key(i)
				r, ok := p[k]
				if !ok {
					nr := newReduction()
					r = &nr
					p[k] = r
				}
				r.add(cs.ParticipantIDs[i], cs.Medals[i])
			}
			return p, nil
		})
	}

	partials, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}

	// 2. Merge Phase (Reducer)
	final := make(partialAgg)
	for _, p := range partials {
		for k, r := range p {
			if f, ok := final[k]; ok {
				f.merge(*r)
			} else {
				final[k] = r
			}
		}
	}
	return newCube(allFields, final), nil
}
