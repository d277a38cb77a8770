package trafficlight

import "github.com/tsinghua-fib-lab/gridtraffic-sim/entity"

// 信号灯配对检测
// 说明：只做检测与日志输出，不影响任何信号灯的相位切换

// opposingRange 判定为对向信号灯的最大切比雪夫距离
const opposingRange = 2

// Pairs 配对信号灯
// 功能：找出四邻接且轴相同的信号灯对（同一路口同一方向的并排信号灯）
// 返回：ID对列表，每对满足a<b，按a、b升序
func (m *Manager) Pairs() [][2]int32 {
	return m.scan(func(a, b *Light) bool {
		return a.pos.Manhattan(b.pos) == 1 && a.axis == b.axis && a.axis != entity.AxisUnknown
	})
}

// Opposites 对向信号灯
// 功能：找出切比雪夫距离不超过2且轴互相垂直的信号灯对（同一路口的冲突方向）
// 返回：ID对列表，每对满足a<b，按a、b升序
func (m *Manager) Opposites() [][2]int32 {
	return m.scan(func(a, b *Light) bool {
		if a.axis == entity.AxisUnknown || b.axis == entity.AxisUnknown || a.axis == b.axis {
			return false
		}
		return a.pos.Chebyshev(b.pos) <= opposingRange
	})
}

func (m *Manager) scan(match func(a, b *Light) bool) [][2]int32 {
	res := make([][2]int32, 0)
	for i, a := range m.lights {
		for _, b := range m.lights[i+1:] {
			if match(a, b) {
				res = append(res, [2]int32{a.id, b.id})
			}
		}
	}
	return res
}
