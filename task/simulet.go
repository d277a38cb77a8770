package task

import (
	"errors"
	"flag"
	"fmt"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// Step 推进一步
// 功能：执行一个完整的仿真步
// 返回：死锁时返回ErrGridlock，之后的调用返回ErrHalted
// 算法说明：
// 1. 步数+1，输出心跳日志
// 2. 生成阶段：周期性生成与待生成车辆的放置
// 3. 准备阶段：车辆增删生效
// 4. 信号灯更新：t%period==0的信号灯切换
// 5. 车辆更新：按新的随机排列激活每辆车一次
func (ctx *Context) Step() error {
	if ctx.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, ctx.halted)
	}
	t := ctx.clock.Tick()
	if *heartBeatInterval > 0 && t%int32(*heartBeatInterval) == 0 {
		s := ctx.Stats()
		log.Infof("STEP: %d live=%d pending=%d completed=%d", t, s.Live, s.Pending, s.Completed)
	}
	if err := ctx.spawner.Step(t, ctx.generator); err != nil {
		ctx.halted = err
		log.Errorf("step %d: %v", t, err)
		return err
	}
	ctx.carManager.Prepare()
	ctx.lightManager.Update(t)
	ctx.carManager.Update(ctx.generator)
	return nil
}

// Done 是否已结束：到达结束步，或未设置总步数且所有车辆都已完成
func (ctx *Context) Done() bool {
	if ctx.clock.END_STEP >= 0 {
		return ctx.clock.Finished()
	}
	return len(ctx.carManager.Cars()) == 0 && ctx.spawner.Pending() == 0 && ctx.runtimeConfig.C.Spawn.Interval == 0
}

// Run 无界面运行直到结束
// 返回：死锁时返回ErrGridlock
func (ctx *Context) Run() error {
	log.Infof("run from %v", ctx.clock)
	for !ctx.Done() {
		if err := ctx.Step(); err != nil {
			return err
		}
	}
	s := ctx.Stats()
	log.Infof("finished at %v: completed=%d live=%d", ctx.clock, s.Completed, s.Live)
	return nil
}

// EpisodeStats 一轮训练的统计
type EpisodeStats struct {
	Episode        int
	Steps          int32
	Spawned        int32
	Completed      int32
	AverageReward  float64 // 每次转移的平均奖励
	CompletionRate float64
	Gridlock       bool
}

// Train 多轮训练
// 功能：每轮重新初始化地图与车辆，保留Q表，运行至多steps步
// 参数：episodes-轮数，steps-每轮最大步数
// 返回：每轮的统计；死锁只结束当轮，不中止训练
func (ctx *Context) Train(episodes int, steps int32) ([]EpisodeStats, error) {
	res := make([]EpisodeStats, 0, episodes)
	for e := 0; e < episodes; e++ {
		if err := ctx.Init(); err != nil {
			return res, err
		}
		stats := EpisodeStats{Episode: e}
		for i := int32(0); i < steps; i++ {
			if len(ctx.carManager.Cars()) == 0 && ctx.spawner.Pending() == 0 {
				break
			}
			if err := ctx.Step(); err != nil {
				if !errors.Is(err, ErrGridlock) {
					return res, err
				}
				stats.Gridlock = true
				break
			}
		}
		rt := ctx.carManager.Runtime()
		stats.Steps = ctx.clock.Elapsed()
		stats.Spawned = rt.Spawned
		stats.Completed = rt.Completed
		if rt.Transitions > 0 {
			stats.AverageReward = rt.Reward / float64(rt.Transitions)
		}
		if rt.Spawned > 0 {
			stats.CompletionRate = float64(rt.Completed) / float64(rt.Spawned)
		}
		log.Infof("episode %d: steps=%d completed=%d/%d avg_reward=%.3f gridlock=%v",
			e, stats.Steps, stats.Completed, stats.Spawned, stats.AverageReward, stats.Gridlock)
		res = append(res, stats)
	}
	return res, nil
}
