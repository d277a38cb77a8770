package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

const (
	AgentPlanner = "planner" // 规划式车辆
	AgentLearned = "learned" // Q-learning车辆

	AlgorithmAStar = "astar"
	AlgorithmBFS   = "bfs"

	DefaultGridlockTicks = 100 // 入口点持续堵塞判定死锁的缺省步数
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，所有缺省值在此填充
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，填充缺省值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 拷贝原始配置
// 2. 对未设置的控制参数填充缺省值
// 3. 对未设置的服务参数填充缺省值
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	c := config.Control
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.Route.Algorithm == "" {
		c.Route.Algorithm = AlgorithmAStar
	}
	if c.Route.MinDistance <= 0 {
		c.Route.MinDistance = 20
	}
	if c.Route.NodeRadius <= 0 {
		c.Route.NodeRadius = 8
	}
	if c.Car.Agent == "" {
		c.Car.Agent = AgentPlanner
	}
	if c.Car.StuckThreshold <= 0 {
		c.Car.StuckThreshold = 3
	}
	if c.Spawn.GridlockTicks == 0 {
		c.Spawn.GridlockTicks = DefaultGridlockTicks
	}
	if c.Spawn.Interval > 0 && c.Spawn.Count <= 0 {
		c.Spawn.Count = 1
	}
	l := &c.Learning
	if l.Alpha <= 0 {
		l.Alpha = 0.1
	}
	if l.Gamma <= 0 {
		l.Gamma = 0.9
	}
	if l.Epsilon <= 0 {
		l.Epsilon = 1.0
	}
	if l.EpsilonDecay <= 0 {
		l.EpsilonDecay = 0.995
	}
	if l.EpsilonMin <= 0 {
		l.EpsilonMin = 0.01
	}
	config.Control = c

	if config.Server.Listen == "" {
		config.Server.Listen = ":8585"
	}
	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{"http://localhost"}
	}

	rc.All = config
	rc.C = c

	return rc
}

// Validate 检查配置取值是否合法
func (c Config) Validate() error {
	switch c.Control.Car.Agent {
	case "", AgentPlanner, AgentLearned:
	default:
		return fmt.Errorf("control.car.agent must be %q or %q, got %q", AgentPlanner, AgentLearned, c.Control.Car.Agent)
	}
	switch c.Control.Route.Algorithm {
	case "", AlgorithmAStar, AlgorithmBFS:
	default:
		return fmt.Errorf("control.route.algorithm must be %q or %q, got %q", AlgorithmAStar, AlgorithmBFS, c.Control.Route.Algorithm)
	}
	if g := c.Control.Learning.Gamma; g < 0 || g > 1 {
		return fmt.Errorf("control.learning.gamma must be in [0, 1], got %v", g)
	}
	if a := c.Control.Learning.Alpha; a < 0 || a > 1 {
		return fmt.Errorf("control.learning.alpha must be in [0, 1], got %v", a)
	}
	if c.Control.Spawn.Agents < 0 {
		return fmt.Errorf("control.spawn.agents must not be negative")
	}
	return nil
}

// Parse 从YAML数据中严格解析配置
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
