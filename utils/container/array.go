package container

// IIncrementalItem 支持增量更新的元素接口
// 功能：定义支持增量更新的元素必须实现的方法
// 说明：用于增量数组中元素的索引管理，确保元素能够正确跟踪自己在数组中的位置
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类
// 功能：提供增量元素的基础实现，包含索引管理功能
// 说明：可以作为其他结构体的嵌入字段，快速实现IIncrementalItem接口
type IncrementalItemBase struct {
	index int // 元素在数组中的索引，-1表示不在数组中
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组，支持增量维护元素的数组
// 功能：在一步内延迟所有增删，在Prepare时统一执行
// 说明：一步内遍历Data()时删除元素不会影响遍历；仿真为单线程执行，不做加锁
type IncrementalArray[T IIncrementalItem] struct {
	data    []T         // 主数据数组
	add     []T         // 待添加的元素列表
	remove  []T         // 待删除的元素列表
	removed map[int]int // 待删除元素的数组索引 -> remove中的位置，用于去重
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:    make([]T, 0),
		add:     make([]T, 0),
		remove:  make([]T, 0),
		removed: make(map[int]int),
	}
}

// Len 获取当前数组长度（不含待添加元素）
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取原始数据
// 说明：返回的是上一次Prepare后的数据，调用方不应修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Pending 获取待添加与待删除的元素数量
func (a *IncrementalArray[T]) Pending() (add, remove int) {
	return len(a.add), len(a.remove)
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	value.SetIndex(-1)
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 说明：重复删除同一元素只记录一次；删除尚未加入的元素则直接取消添加
func (a *IncrementalArray[T]) Remove(value T) {
	ind := value.Index()
	if ind < 0 {
		for i, x := range a.add {
			if any(x) == any(value) {
				a.add = append(a.add[:i], a.add[i+1:]...)
				return
			}
		}
		return
	}
	if _, ok := a.removed[ind]; ok {
		return
	}
	a.removed[ind] = len(a.remove)
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的删除和添加操作
// 算法说明：
// 1. 按索引从大到小删除元素，每次用末尾元素填补空位，保证待删除的索引不失效
// 2. 将待添加元素追加到数组末尾并设置索引
// 3. 清空待处理列表
func (a *IncrementalArray[T]) Prepare() {
	for len(a.removed) > 0 {
		// 取最大的待删除索引
		maxInd := -1
		for ind := range a.removed {
			if ind > maxInd {
				maxInd = ind
			}
		}
		delete(a.removed, maxInd)
		last := len(a.data) - 1
		a.data[maxInd].SetIndex(-1)
		if maxInd != last {
			a.data[maxInd] = a.data[last]
			a.data[maxInd].SetIndex(maxInd)
		}
		var zero T
		a.data[last] = zero
		a.data = a.data[:last]
	}
	for _, x := range a.add {
		x.SetIndex(len(a.data))
		a.data = append(a.data, x)
	}

	a.add = []T{}
	a.remove = []T{}
}
