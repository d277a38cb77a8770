package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils"
)

func TestFind(t *testing.T) {
	index := map[int32]string{1: "a", 2: "b"}
	all := []string{"a", "b"}

	found, missing := utils.Find(index, all, nil)
	assert.Equal(t, all, found)
	assert.Nil(t, missing)

	found, missing = utils.Find(index, all, []int32{2, 9, 1})
	assert.Equal(t, []string{"b", "a"}, found)
	assert.Equal(t, []int32{9}, missing)
}
