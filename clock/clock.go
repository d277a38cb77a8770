package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

// Clock 仿真时钟管理器
// 功能：管理离散步的推进
// 说明：每一步的顺序为 步数+1 -> 信号灯相位 -> 车辆激活；模拟区间为[START_STEP, END_STEP)
type Clock struct {
	START_STEP int32 // 起始步
	END_STEP   int32 // 结束步，Total为0时无上限

	InternalStep int32 // 当前步数（已完成的步数）
}

// New 根据配置创建新的时钟实例
// 参数：stepConfig-控制步配置
// 返回：初始化完成的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	endStep := int32(-1)
	if stepConfig.Total > 0 {
		endStep = stepConfig.Start + stepConfig.Total
	}
	c := &Clock{
		START_STEP: stepConfig.Start,
		END_STEP:   endStep,
	}
	c.Init()
	return c
}

// Init 重置时钟状态
func (c *Clock) Init() {
	c.InternalStep = c.START_STEP
}

// Tick 推进一步并返回新的步数
func (c *Clock) Tick() int32 {
	c.InternalStep++
	return c.InternalStep
}

// Finished 是否已到达结束步
func (c *Clock) Finished() bool {
	return c.END_STEP >= 0 && c.InternalStep >= c.END_STEP
}

// Elapsed 从起始步开始已经推进的步数
func (c *Clock) Elapsed() int32 {
	return c.InternalStep - c.START_STEP
}

func (c *Clock) String() string {
	if c.END_STEP < 0 {
		return fmt.Sprintf("step %d", c.InternalStep)
	}
	return fmt.Sprintf("step %d/%d", c.InternalStep, c.END_STEP)
}
