// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成功能，作为显式上下文在仿真步之间传递
// 说明：基于golang.org/x/exp/rand库；仿真为单线程，不做加锁
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 功能：实现伯努利分布，用于ε-greedy等概率事件
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Permutation 生成[0, n)的随机排列
// 功能：为每一步的车辆激活顺序生成新的随机排列
func (e *Engine) Permutation(n int) []int {
	return e.Perm(n)
}

// Choice 从[0, n)中等概率选择一个下标
// 说明：n<=0时返回-1
func (e *Engine) Choice(n int) int {
	if n <= 0 {
		return -1
	}
	return e.Intn(n)
}
