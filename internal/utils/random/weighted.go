package random

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOutOfRange is returned when a Source yields a value outside [0, n).
var ErrOutOfRange = errors.New("random source returned value out of range")

// PickWeighted draws up to k distinct ids without replacement, each draw
// proportional to the remaining weights. Weights below 1 count as 1. The
// population is walked in ascending id order, so the result depends only on
// the values produced by src. The returned slice is in draw order.
func PickWeighted(weights map[string]int, k int, src Source) ([]string, error) {
	if k <= 0 || len(weights) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pool := make([]int, len(ids))
	total := 0
	for i, id := range ids {
		w := weights[id]
		if w < 1 {
			w = 1
		}
		pool[i] = w
		total += w
	}

	if k > len(ids) {
		k = len(ids)
	}
	winners := make([]string, 0, k)
	for len(winners) < k {
		r, err := src.Intn(total)
		if err != nil {
			return nil, err
		}
		if r < 0 || r >= total {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, r, total)
		}

		idx, acc := 0, 0
		for ; idx < len(ids); idx++ {
			acc += pool[idx]
			if r < acc {
				break
			}
		}

		winners = append(winners, ids[idx])
		total -= pool[idx]
		ids = append(ids[:idx], ids[idx+1:]...)
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return winners, nil
}
