package random

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns the queued values in order.
type scripted struct {
	values []int
	bounds []int
}

func (s *scripted) Intn(n int) (int, error) {
	s.bounds = append(s.bounds, n)
	if len(s.values) == 0 {
		return 0, errors.New("script exhausted")
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

func TestPickWeightedExactDraws(t *testing.T) {
	// a:1 [0,1) b:3 [1,4) c:2 [4,6)
	weights := map[string]int{"b": 3, "a": 1, "c": 2}
	src := &scripted{values: []int{4, 0, 2}}

	got, err := PickWeighted(weights, 3, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)
	// totals shrink as winners leave the pool
	assert.Equal(t, []int{6, 4, 3}, src.bounds)
}

func TestPickWeightedBoundaries(t *testing.T) {
	weights := map[string]int{"a": 1, "b": 3, "c": 2}

	got, err := PickWeighted(weights, 1, &scripted{values: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)

	got, err = PickWeighted(weights, 1, &scripted{values: []int{5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

func TestPickWeightedEdgeCases(t *testing.T) {
	src := NewSeededSource(1)

	got, err := PickWeighted(map[string]int{"a": 1}, 0, src)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = PickWeighted(nil, 3, src)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = PickWeighted(map[string]int{}, 3, src)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPickWeightedSingleID(t *testing.T) {
	for k := 1; k <= 5; k++ {
		got, err := PickWeighted(map[string]int{"solo": 7}, k, NewSeededSource(int64(k)))
		require.NoError(t, err)
		assert.Equal(t, []string{"solo"}, got)
	}
}

func TestPickWeightedFloorsNonPositiveWeights(t *testing.T) {
	// a:0->1 [0,1) b:-4->1 [1,2)
	src := &scripted{values: []int{1, 0}}
	got, err := PickWeighted(map[string]int{"a": 0, "b": -4}, 2, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)
	assert.Equal(t, []int{2, 1}, src.bounds)
}

func TestPickWeightedProperties(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		n := int(seed%7) + 1
		weights := make(map[string]int, n)
		for i := 0; i < n; i++ {
			weights[fmt.Sprintf("p%d", i)] = i%4 + 1
		}
		for k := 0; k <= n+2; k++ {
			got, err := PickWeighted(weights, k, NewSeededSource(seed))
			require.NoError(t, err)

			want := k
			if want > n {
				want = n
			}
			require.Len(t, got, want)

			seen := make(map[string]bool, len(got))
			for _, id := range got {
				assert.Contains(t, weights, id)
				assert.False(t, seen[id], "duplicate %s", id)
				seen[id] = true
			}
		}
	}
}

func TestPickWeightedDeterministicForSeed(t *testing.T) {
	weights := map[string]int{"a": 5, "b": 1, "c": 1, "d": 3, "e": 2}
	first, err := PickWeighted(weights, 5, NewSeededSource(42))
	require.NoError(t, err)
	second, err := PickWeighted(weights, 5, NewSeededSource(42))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPickWeightedSourceErrors(t *testing.T) {
	_, err := PickWeighted(map[string]int{"a": 1, "b": 1}, 1, &scripted{})
	require.Error(t, err)

	_, err = PickWeighted(map[string]int{"a": 1, "b": 1}, 1, &scripted{values: []int{2}})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestPickWeightedFavoursHeavyEntries(t *testing.T) {
	weights := map[string]int{"heavy": 9, "light": 1}
	src := NewSeededSource(7)
	heavy := 0
	for i := 0; i < 2000; i++ {
		got, err := PickWeighted(weights, 1, src)
		require.NoError(t, err)
		if got[0] == "heavy" {
			heavy++
		}
	}
	assert.InDelta(t, 1800, heavy, 120)
}

func TestCryptoSource(t *testing.T) {
	src := NewCryptoSource()
	for i := 0; i < 100; i++ {
		v, err := src.Intn(3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 3)
	}
	_, err := src.Intn(0)
	assert.Error(t, err)
}
