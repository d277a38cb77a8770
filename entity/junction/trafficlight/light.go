package trafficlight

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

// StateAt 信号灯在第t步的状态
// 功能：以纯函数形式给出周期性红绿切换的结果
// 参数：initial-初始状态，period-半周期步数，t-全局步数
// 返回：initial XOR ((t/period)为奇数)
// 说明：与逐步调用Update(1..t)的结果一致；period<=0视为永不切换
func StateAt(initial entity.LightState, period, t int32) entity.LightState {
	if period <= 0 || t < 0 {
		return initial
	}
	if (t/period)%2 == 1 {
		return initial.Flip()
	}
	return initial
}

// Light 固定周期信号灯
// 功能：两状态{Red, Green}的周期状态机，第t步若t%period==0则切换
// 说明：除(state, period)外没有其他隐藏状态；axis只用于配对检测
type Light struct {
	id      int32
	pos     entity.Position
	axis    entity.Axis
	period  int32
	initial entity.LightState
	state   entity.LightState
}

func newLight(id int32, spec entity.LightSpec, axis entity.Axis) *Light {
	return &Light{
		id:      id,
		pos:     spec.Pos,
		axis:    axis,
		period:  spec.Period,
		initial: spec.Initial,
		state:   spec.Initial,
	}
}

func (l *Light) ID() int32 {
	return l.id
}

func (l *Light) Position() entity.Position {
	return l.pos
}

func (l *Light) State() entity.LightState {
	return l.state
}

func (l *Light) IsGreen() bool {
	return l.state == entity.LightGreen
}

func (l *Light) Period() int32 {
	return l.period
}

func (l *Light) Axis() entity.Axis {
	return l.axis
}

// reset 恢复到初始状态
func (l *Light) reset() {
	l.state = l.initial
}

// update 更新阶段：第t步若t%period==0则切换状态
// 返回：是否发生了切换
func (l *Light) update(t int32) bool {
	if l.period <= 0 || t <= 0 || t%l.period != 0 {
		return false
	}
	l.state = l.state.Flip()
	return true
}

func (l *Light) String() string {
	return fmt.Sprintf("Light{id=%d pos=%v state=%v period=%d}", l.id, l.pos, l.state, l.period)
}
