package entity

import "github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"

// Manager依赖倒置

// entity/road/manager.go的依赖倒置
type IRoadNetwork interface {
	Width() int
	Height() int
	InBounds(p Position) bool

	RoadAt(p Position) (Road, bool)                // 格点上的道路
	IsObstacle(p Position) bool                    // 格点上是否有障碍物
	Neighbors(p Position) []Position               // 界内四邻域
	IsTraversable(p Position) bool                 // 界内、有道路、无障碍物
	LightAt(p Position) (ITrafficLight, bool)      // 格点上的信号灯
	DestinationAt(p Position) (IDestination, bool) // 格点上的目的地
	Occupants(p Position) []Occupant               // 格点上的全部占用者
	Obstacles() []Obstacle                         // 全部障碍物
	Roads() []Road                                 // 全部道路格点

	// 车辆占用层：同一格点至多一辆车

	CarAt(p Position) (int32, bool)
	PlaceCar(id int32, p Position) error
	MoveCar(id int32, from, to Position) error
	RemoveCar(id int32, p Position)
}

// entity/junction/trafficlight/manager.go的依赖倒置
type ITrafficLightManager interface {
	// 输入信号灯ID，查找信号灯，如果不存在则panic
	Get(id int32) ITrafficLight
	// 输入信号灯ID，查找信号灯，如果不存在则返回error
	GetOrError(id int32) (ITrafficLight, error)
	All() []ITrafficLight

	Update(t int32) // 更新阶段：按全局步数切换相位
}

// entity/aoi/manager.go的依赖倒置
type IDestinationManager interface {
	Get(id int32) IDestination
	GetOrError(id int32) (IDestination, error)
	All() []IDestination
	// 随机选择一个目的地，不存在目的地时返回false
	Random(generator *randengine.Engine) (IDestination, bool)
}

// entity/junction/manager.go的依赖倒置
type IIntersectionGraph interface {
	Nodes() []Position                              // 按节点ID排列的节点坐标
	NodeID(p Position) (int32, bool)                // 坐标对应的节点ID
	Weight(a, b int32) (int, bool)                  // 边权（道路格点距离）
	Nearest(p Position, radius int) (int32, bool)   // 半径内最近的节点
	CoarsePath(from, to int32) ([]int32, int, bool) // 粗粒度节点路径与总权重
}

// entity/car/manager.go的依赖倒置
type ICarManager interface {
	// 输入车辆ID，查找车辆，如果不存在则panic
	Get(id int32) ICar
	// 输入车辆ID，查找车辆，如果不存在则返回error
	GetOrError(id int32) (ICar, error)
	Cars() []ICar // 当前存活的车辆

	Completed() int32 // 已到达目的地并移除的车辆数

	Prepare()                            // 准备阶段：车辆增删生效
	Update(generator *randengine.Engine) // 更新阶段：按随机顺序激活每辆车一次
}
