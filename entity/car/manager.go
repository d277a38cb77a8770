package car

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// Runtime 全局运行时统计
type Runtime struct {
	Spawned     int32   // 已生成的车辆数
	Completed   int32   // 已到达终点并移除的车辆数
	TravelSteps int64   // 已完成车辆的总行程步数
	Reward      float64 // Q-learning车辆的累计奖励
	Transitions int64   // Q-learning车辆的累计转移次数
}

// Manager 车辆管理器
// 功能：管理所有车辆的生成、查找、激活与移除
// 说明：增删通过增量数组延迟到Prepare生效；单线程按随机顺序激活
type Manager struct {
	ctx entity.ITaskContext
	cfg config.Control

	data   map[int32]*Car
	cars   *container.IncrementalArray[*Car]
	nextID int32

	store   *QStore
	runtime Runtime
}

// NewManager 创建车辆管理器实例
// 参数：ctx-任务上下文，store-Q表仓库（为nil时新建）
func NewManager(ctx entity.ITaskContext, store *QStore) *Manager {
	if store == nil {
		store = NewQStore()
	}
	return &Manager{
		ctx:   ctx,
		cfg:   ctx.RuntimeConfig().C,
		data:  make(map[int32]*Car),
		cars:  container.NewIncrementalArray[*Car](),
		store: store,
	}
}

// Add 在pos处生成一辆前往dest的车辆
// 功能：把车辆放到占用层上并加入增量数组（下一次Prepare后参与激活）
// 返回：新车辆；pos已有车辆或不可通行时返回错误
func (m *Manager) Add(pos, dest entity.Position, learned bool) (*Car, error) {
	network := m.ctx.Network()
	if !network.IsTraversable(pos) {
		return nil, fmt.Errorf("spawn at %v: cell is not traversable", pos)
	}
	id := m.nextID
	if err := network.PlaceCar(id, pos); err != nil {
		return nil, err
	}
	m.nextID++
	c := newCar(m, id, pos, dest, m.ctx.Clock().InternalStep)
	if learned {
		c.learner = &learner{
			policy: m.store.Get(id, m.cfg.Learning.Epsilon),
			cfg:    m.cfg.Learning,
		}
	}
	m.data[id] = c
	m.cars.Add(c)
	m.runtime.Spawned++
	log.Debugf("spawn %v", c)
	return c, nil
}

// remove 车辆到达终点后移除
func (m *Manager) remove(c *Car) {
	m.cars.Remove(c)
	delete(m.data, c.id)
	m.runtime.Completed++
	m.runtime.TravelSteps += int64(c.completedAt - c.spawnedAt)
}

func (m *Manager) recordReward(r float64) {
	m.runtime.Reward += r
	m.runtime.Transitions++
}

// Get 根据ID获取车辆，如果不存在则panic
func (m *Manager) Get(id int32) entity.ICar {
	if c, ok := m.data[id]; !ok {
		log.Panicf("no id %d in car data", id)
		return nil
	} else {
		return c
	}
}

// GetOrError 根据ID获取车辆，如果不存在则返回错误
func (m *Manager) GetOrError(id int32) (entity.ICar, error) {
	if c, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in car data", id)
	} else {
		return c, nil
	}
}

// Cars 当前存活的车辆
func (m *Manager) Cars() []entity.ICar {
	return lo.FilterMap(m.all(), func(c *Car, _ int) (entity.ICar, bool) {
		return c, !c.removed
	})
}

// Find 按ID查找存活的车辆，ids为空时返回全部
// 返回：找到的车辆与不存在的ID
func (m *Manager) Find(ids []int32) ([]entity.ICar, []int32) {
	return utils.Find(lo.MapValues(m.data, func(c *Car, _ int32) entity.ICar { return c }), m.Cars(), ids)
}

// all 已生效与待加入的全部车辆，按ID升序
func (m *Manager) all() []*Car {
	cars := lo.Values(m.data)
	slices.SortFunc(cars, func(a, b *Car) int { return cmp.Compare(a.id, b.id) })
	return cars
}

// Completed 已到达终点并移除的车辆数
func (m *Manager) Completed() int32 {
	return m.runtime.Completed
}

// Runtime 全局运行时统计
func (m *Manager) Runtime() Runtime {
	return m.runtime
}

// Store Q表仓库
func (m *Manager) Store() *QStore {
	return m.store
}

// Prepare 准备阶段：车辆增删生效
func (m *Manager) Prepare() {
	m.cars.Prepare()
}

// Update 更新阶段：按新的随机排列激活每辆车一次
// 说明：移动立即写入占用层，后激活的车辆观察到先激活车辆移动后的状态
func (m *Manager) Update(generator *randengine.Engine) {
	data := m.cars.Data()
	for _, i := range generator.Permutation(len(data)) {
		data[i].update(generator)
	}
}
