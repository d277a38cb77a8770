package entity

import (
	"github.com/tsinghua-fib-lab/gridtraffic-sim/clock"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

// 导航模块接口
type IRouter interface {
	// 路径规划：返回从start到goal（含两端）的格点序列，无路可走时返回route.ErrPathNotFound
	Route(start, goal Position) ([]Position, error)
}

type ITaskContext interface {
	Clock() *clock.Clock
	Network() IRoadNetwork
	TrafficLightManager() ITrafficLightManager
	DestinationManager() IDestinationManager
	IntersectionGraph() IIntersectionGraph
	CarManager() ICarManager
	RuntimeConfig() *config.RuntimeConfig
	Router() IRouter
}
