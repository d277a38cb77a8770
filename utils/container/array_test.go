package container_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
)

type testItem struct {
	container.IncrementalItemBase
	id int
}

func ids(a *container.IncrementalArray[*testItem]) []int {
	return lo.Map(a.Data(), func(x *testItem, _ int) int { return x.id })
}

func checkIndex(t *testing.T, a *container.IncrementalArray[*testItem]) {
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
	}
}

func TestIncrementalArrayAdd(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := lo.Times(4, func(i int) *testItem { return &testItem{id: i} })
	for _, x := range items {
		a.Add(x)
	}
	// Prepare前不可见
	assert.Equal(t, 0, a.Len())
	add, remove := a.Pending()
	assert.Equal(t, 4, add)
	assert.Equal(t, 0, remove)

	a.Prepare()
	assert.Equal(t, []int{0, 1, 2, 3}, ids(a))
	checkIndex(t, a)
}

func TestIncrementalArrayRemove(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := lo.Times(5, func(i int) *testItem { return &testItem{id: i} })
	for _, x := range items {
		a.Add(x)
	}
	a.Prepare()

	// 重复删除只生效一次
	a.Remove(items[1])
	a.Remove(items[1])
	a.Remove(items[4])
	a.Add(&testItem{id: 5})
	// 遍历中的数据不受影响
	assert.Equal(t, 5, a.Len())
	a.Prepare()

	assert.ElementsMatch(t, []int{0, 2, 3, 5}, ids(a))
	checkIndex(t, a)
	assert.Equal(t, -1, items[1].Index())
	assert.Equal(t, -1, items[4].Index())
}

func TestIncrementalArrayRemoveBeforeAdd(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	x := &testItem{id: 9}
	a.Add(x)
	a.Remove(x)
	a.Prepare()
	assert.Equal(t, 0, a.Len())
}
