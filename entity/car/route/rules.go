package route

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

// MoveCheck 单步移动的合法性检查结果
type MoveCheck int32

const (
	MoveOK             MoveCheck = iota
	MoveNotRoad                  // 越界或目标格点没有道路
	MoveObstacle                 // 目标格点有障碍物
	MoveRedLight                 // 目标格点的信号灯为红灯
	MoveWrongDirection           // 移动方向与道路方向冲突（或两格点不相邻）
)

func (c MoveCheck) String() string {
	switch c {
	case MoveOK:
		return "OK"
	case MoveNotRoad:
		return "NotRoad"
	case MoveObstacle:
		return "Obstacle"
	case MoveRedLight:
		return "RedLight"
	case MoveWrongDirection:
		return "WrongDirection"
	}
	return fmt.Sprintf("MoveCheck(%d)", int32(c))
}

// CanTurn 从当前道路转入下一道路是否合法
// 参数：current-当前格点道路方向（没有道路时为None），next-下一格点道路方向，required-到达下一格点所需的移动方向
// 返回：下一道路为None时总是合法；否则要求下一道路方向不是所需方向的反方向，且所需方向不是当前道路方向的反方向
func CanTurn(current, next, required entity.Direction) bool {
	if next == entity.DirectionNone {
		return true
	}
	if next == required.Reverse() {
		return false
	}
	return current == entity.DirectionNone || required != current.Reverse()
}

// IsLegalDirection 移动方向是否满足道路方向约束：与下一道路方向一致，或者是合法转向
func IsLegalDirection(current, next, required entity.Direction) bool {
	return required == next || CanTurn(current, next, required)
}

// CheckMove 检查从from到相邻格点to的一步移动
// 功能：按 越界/道路 -> 障碍物 -> 信号灯 -> 方向 的顺序检查，返回第一个不满足的原因
// 参数：network-道路网络，from-当前格点，to-目标格点，ignoreLights-是否忽略信号灯（规划时忽略，执行时不忽略）
// 说明：不检查车辆占用
func CheckMove(network entity.IRoadNetwork, from, to entity.Position, ignoreLights bool) MoveCheck {
	if network.IsObstacle(to) {
		return MoveObstacle
	}
	next, ok := network.RoadAt(to)
	if !ok {
		return MoveNotRoad
	}
	if from.Manhattan(to) != 1 {
		return MoveWrongDirection
	}
	if !ignoreLights {
		if l, ok := network.LightAt(to); ok && !l.IsGreen() {
			return MoveRedLight
		}
	}
	current := entity.DirectionNone
	if r, ok := network.RoadAt(from); ok {
		current = r.Direction
	}
	if !IsLegalDirection(current, next.Direction, entity.DirectionOf(from, to)) {
		return MoveWrongDirection
	}
	return MoveOK
}
