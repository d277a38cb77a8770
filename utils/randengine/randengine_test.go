package randengine_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := randengine.New(42)
	b := randengine.New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Permutation(8), b.Permutation(8))
		assert.Equal(t, a.Choice(5), b.Choice(5))
	}
}

func TestPermutationIsPermutation(t *testing.T) {
	e := randengine.New(1)
	p := e.Permutation(16)
	sorted := append([]int(nil), p...)
	sort.Ints(sorted)
	for i, v := range sorted {
		assert.Equal(t, i, v)
	}
}

func TestChoice(t *testing.T) {
	e := randengine.New(3)
	assert.Equal(t, -1, e.Choice(0))
	for i := 0; i < 100; i++ {
		c := e.Choice(3)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 3)
	}
}

func TestPTrueBounds(t *testing.T) {
	e := randengine.New(5)
	for i := 0; i < 100; i++ {
		assert.False(t, e.PTrue(0))
		assert.True(t, e.PTrue(1))
	}
}
