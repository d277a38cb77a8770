package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.HeapPush("c", 3)
	q.HeapPush("a", 1)
	q.HeapPush("b", 2)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, "a", q.First())

	v, p := q.HeapPop()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1., p)
	v, _ = q.HeapPop()
	assert.Equal(t, "b", v)
	v, _ = q.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 0, q.Len())
}

func TestPriorityQueueFIFOOnTies(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	// 同优先级按插入顺序出队，中间穿插更高优先级的元素
	for i := 0; i < 10; i++ {
		q.HeapPush(i, 5)
		if i == 4 {
			q.HeapPush(-1, 1)
		}
	}
	v, _ := q.HeapPop()
	assert.Equal(t, -1, v)
	for i := 0; i < 10; i++ {
		v, _ := q.HeapPop()
		assert.Equal(t, i, v)
	}
}
