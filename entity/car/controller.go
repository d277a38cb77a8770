package car

import (
	"errors"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/aoi"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car/route"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/road"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// updatePlanned 规划式车辆的一次激活
// 算法说明：
// 1. 到达临时终点且真实终点已空出：切回真实终点并丢弃规划
// 2. 规划为空：调用导航；失败则原地等待
// 3. 下一格有障碍物：丢弃规划，下一步重规划
// 4. 下一格有其他车辆：保持规划原地等待（可选：阻挡超过耐心步数后变道）
// 5. 检查交通规则（执行时信号灯生效）：
//   - 合法：提交移动并弹出规划头
//   - 红灯：原地等待
//   - 不是道路：变道
//   - 方向冲突：丢弃规划，下一步重规划
func (c *Car) updatePlanned(generator *randengine.Engine) {
	network := c.m.ctx.Network()

	if c.alt != nil && c.pos == *c.alt {
		if _, occupied := network.CarAt(c.dest); !occupied {
			log.Debugf("car %d: destination %v freed, leave alternate %v", c.id, c.dest, *c.alt)
			c.alt = nil
			c.plan = nil
			c.status = entity.CarReplanning
		}
	}

	if len(c.plan) == 0 {
		c.status = entity.CarPlanning
		if !c.replan() {
			c.waitCounter++
			return
		}
		if len(c.plan) == 0 {
			// 停在临时终点等待真实终点空出
			c.status = entity.CarWaiting
			c.waitCounter++
			return
		}
	}

	next := c.plan[0]
	if network.IsObstacle(next) {
		c.plan = nil
		c.status = entity.CarReplanning
		c.waitCounter++
		return
	}
	if other, occupied := network.CarAt(next); occupied && other != c.id {
		c.status = entity.CarBlocked
		c.waitCounter++
		c.blockedTicks++
		if patience := c.m.cfg.Car.LaneChangePatience; patience > 0 && c.blockedTicks >= patience {
			c.laneChange(generator)
		}
		return
	}
	switch check := route.CheckMove(network, c.pos, next, false); check {
	case route.MoveOK:
		if err := c.moveTo(next); err != nil {
			c.waitCounter++
			log.Debugf("car %d: move to %v skipped: %v", c.id, next, err)
			return
		}
		if !c.removed {
			c.plan = c.plan[1:]
			c.status = entity.CarFollowing
		}
	case route.MoveRedLight:
		c.status = entity.CarWaiting
		c.waitCounter++
	case route.MoveNotRoad:
		c.laneChange(generator)
	default:
		log.Debugf("car %d: planned move %v -> %v rejected: %v", c.id, c.pos, next, check)
		c.plan = nil
		c.status = entity.CarReplanning
		c.waitCounter++
	}
}

// replan 重新规划
// 功能：向目标导航；失败且真实终点被其他车辆占据时，在终点的八邻域中选择临时终点
// 返回：是否得到规划（规划可能为空，表示已在目标处）
// 说明：连续失败达到阈值的整数倍时输出卡死诊断
func (c *Car) replan() bool {
	network := c.m.ctx.Network()
	router := c.m.ctx.Router()

	path, err := router.Route(c.pos, c.target())
	if err != nil && c.alt == nil {
		if other, occupied := network.CarAt(c.dest); occupied && other != c.id {
			for _, cell := range aoi.FreeCellsNear(network, c.dest, c.pos) {
				if p, e := router.Route(c.pos, cell); e == nil {
					alt := cell
					c.alt = &alt
					path, err = p, nil
					log.Debugf("car %d: destination %v occupied by car %d, use alternate %v", c.id, c.dest, other, alt)
					break
				}
			}
		}
	}
	if err != nil {
		c.planFailures++
		c.status = entity.CarNoPlan
		if !errors.Is(err, route.ErrPathNotFound) {
			log.Errorf("car %d: unexpected route error: %v", c.id, err)
		}
		if threshold := c.m.cfg.Car.StuckThreshold; threshold > 0 && c.planFailures%threshold == 0 {
			log.Warnf("car %d stuck at %v: no path to %v for %d consecutive attempts", c.id, c.pos, c.target(), c.planFailures)
		}
		return false
	}
	c.planFailures = 0
	c.plan = path[1:]
	c.status = entity.CarFollowing
	return true
}

// isFree 格点可通行且没有车辆
func isFree(network entity.IRoadNetwork, p entity.Position) bool {
	if !network.IsTraversable(p) {
		return false
	}
	_, occupied := network.CarAt(p)
	return !occupied
}

// isOccupiedErr 移动因目标格点被占据而失败
func isOccupiedErr(err error) bool {
	return errors.Is(err, road.ErrCellOccupied)
}
