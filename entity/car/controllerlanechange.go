package car

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// laneChange 变道
// 功能：规划的下一格无法通行时打破僵局的横向移动
// 返回：是否完成了变道
// 算法说明：
// 1. 当前道路方向的两个垂直方向上，若有空闲的可通行格点则横移进入
// 2. 否则在八邻域的空闲可通行格点中随机选择一个
// 3. 都没有则原地不动
// 4. 变道成功后丢弃规划，下一步重规划；变道不受信号灯与道路方向约束
func (c *Car) laneChange(generator *randengine.Engine) bool {
	network := c.m.ctx.Network()
	heading := c.direction
	if r, ok := network.RoadAt(c.pos); ok && r.Direction != entity.DirectionNone {
		heading = r.Direction
	}

	var target *entity.Position
	for _, d := range heading.Perpendicular() {
		if p := c.pos.Step(d); isFree(network, p) {
			target = &p
			break
		}
	}
	if target == nil {
		candidates := lo.Filter(c.pos.Moore(), func(p entity.Position, _ int) bool {
			return isFree(network, p)
		})
		if i := generator.Choice(len(candidates)); i >= 0 {
			target = &candidates[i]
		}
	}
	if target == nil {
		c.status = entity.CarBlocked
		c.waitCounter++
		return false
	}
	from := c.pos
	if err := c.moveTo(*target); err != nil {
		if !isOccupiedErr(err) {
			log.Errorf("car %d: lane change %v -> %v failed: %v", c.id, from, *target, err)
		}
		c.waitCounter++
		return false
	}
	log.Debugf("car %d: lane change %v -> %v", c.id, from, *target)
	c.plan = nil
	if !c.removed {
		c.status = entity.CarReplanning
	}
	return true
}
