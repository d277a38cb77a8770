package car

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// Car 车辆
// 功能：持有终点坐标与当前规划，每步被激活一次，完成移动、重规划、变道或等待
// 说明：终点只保存坐标值，不引用目的地实体；learner为nil时为规划式车辆，否则为Q-learning车辆
type Car struct {
	container.IncrementalItemBase

	m *Manager

	id          int32
	pos         entity.Position
	dest        entity.Position  // 真实终点
	alt         *entity.Position // 临时终点（真实终点被其他车辆占据时）
	plan        []entity.Position
	direction   entity.Direction
	status      entity.CarStatus
	removed     bool
	spawnedAt   int32
	completedAt int32

	waitCounter  int // 连续没有前进的步数
	planFailures int // 连续导航失败的次数
	blockedTicks int // 连续被前车阻挡的步数

	learner *learner
}

func newCar(m *Manager, id int32, pos, dest entity.Position, t int32) *Car {
	return &Car{
		m:         m,
		id:        id,
		pos:       pos,
		dest:      dest,
		status:    entity.CarNoPlan,
		spawnedAt: t,
	}
}

func (c *Car) ID() int32 {
	return c.id
}

func (c *Car) Position() entity.Position {
	return c.pos
}

func (c *Car) Destination() entity.Position {
	return c.dest
}

// AlternateDestination 临时终点
func (c *Car) AlternateDestination() (entity.Position, bool) {
	if c.alt == nil {
		return entity.Position{}, false
	}
	return *c.alt, true
}

func (c *Car) Direction() entity.Direction {
	return c.direction
}

func (c *Car) Status() entity.CarStatus {
	return c.status
}

func (c *Car) Learned() bool {
	return c.learner != nil
}

// Plan 当前规划（不含当前位置）
func (c *Car) Plan() []entity.Position {
	return c.plan
}

// WaitCounter 连续没有前进的步数
func (c *Car) WaitCounter() int {
	return c.waitCounter
}

// Removed 是否已到达终点并被移除
func (c *Car) Removed() bool {
	return c.removed
}

func (c *Car) String() string {
	return fmt.Sprintf("Car{id=%d pos=%v dest=%v status=%v}", c.id, c.pos, c.dest, c.status)
}

// target 当前规划的目标：临时终点优先
func (c *Car) target() entity.Position {
	if c.alt != nil {
		return *c.alt
	}
	return c.dest
}

// update 更新阶段：一次激活
func (c *Car) update(generator *randengine.Engine) {
	if c.removed {
		return
	}
	if c.pos == c.dest {
		c.complete()
		return
	}
	if c.learner != nil {
		c.updateLearned(generator)
	} else {
		c.updatePlanned(generator)
	}
}

// moveTo 提交一次移动
// 说明：移动立即反映到车辆占用层，本步后激活的车辆可以看到；到达真实终点时在同一步内完成
func (c *Car) moveTo(to entity.Position) error {
	if err := c.m.ctx.Network().MoveCar(c.id, c.pos, to); err != nil {
		return err
	}
	log.Debugf("car %d: %v -> %v", c.id, c.pos, to)
	c.direction = entity.DirectionOf(c.pos, to)
	c.pos = to
	c.waitCounter = 0
	c.blockedTicks = 0
	if c.pos == c.dest {
		c.complete()
	}
	return nil
}

// complete 到达终点：离开地图并计数，之后的激活全部跳过
func (c *Car) complete() {
	c.m.ctx.Network().RemoveCar(c.id, c.pos)
	c.removed = true
	c.status = entity.CarCompleted
	c.plan = nil
	c.completedAt = c.m.ctx.Clock().InternalStep
	c.m.remove(c)
	log.Debugf("car %d completed at %v after %d steps", c.id, c.pos, c.completedAt-c.spawnedAt)
}
