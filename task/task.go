package task

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/clock"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/aoi"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car/route"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/junction"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/road"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/input"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// ErrGridlock 入口点持续被占据导致仿真停止
var ErrGridlock = car.ErrGridlock

// ErrHalted 仿真已因死锁停止，需要重新初始化
var ErrHalted = errors.New("simulation halted")

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，替代全局变量
// 说明：单线程执行；随机数引擎作为显式上下文在步之间传递，保证给定种子可复现
type Context struct {
	// 时钟
	clock *clock.Clock
	// 随机数引擎：激活顺序、ε-greedy、生成终点
	generator *randengine.Engine

	// 道路网络
	network *road.Network
	// 信号灯管理器
	lightManager *trafficlight.Manager
	// 目的地管理器
	destinationManager *aoi.Manager
	// 路口图
	graph *junction.IntersectionGraph
	// 车辆管理器
	carManager *car.Manager
	// 车辆生成器
	spawner *car.Spawner
	// Q表仓库，训练的多轮之间保留
	store *car.QStore

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 导航服务
	router *route.Router

	// 初始车辆数
	nAgents int
	// 用于初始化的输入
	initRes *input.Input
	// 死锁等导致的停止原因
	halted error
}

// NewContext 创建新的仿真任务上下文
// 功能：加载地图并初始化所有组件
// 参数：c-配置对象，cacheDir-地图缓存目录，nAgents-初始车辆数（<0时使用配置值），store-已有的Q表仓库（为nil时新建）
// 返回：初始化完成的Context；地图加载失败时返回input.ErrMapLoad
func NewContext(c config.Config, cacheDir string, nAgents int, store *car.QStore) (*Context, error) {
	initRes, err := input.Init(c, cacheDir)
	if err != nil {
		return nil, err
	}
	return NewContextFromInput(c, initRes, nAgents, store)
}

// NewContextFromInput 用已加载的输入创建仿真任务上下文
// 参数：store-训练得到的策略，为nil时使用空仓库
func NewContextFromInput(c config.Config, initRes *input.Input, nAgents int, store *car.QStore) (*Context, error) {
	if store == nil {
		store = car.NewQStore()
	}
	ctx := &Context{
		runtimeConfig: config.NewRuntimeConfig(c),
		initRes:       initRes,
		store:         store,
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.generator = randengine.New(ctx.runtimeConfig.C.Seed)
	ctx.nAgents = nAgents
	if nAgents < 0 {
		ctx.nAgents = ctx.runtimeConfig.C.Spawn.Agents
	}
	if err := ctx.Init(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Network() entity.IRoadNetwork {
	return ctx.network
}

func (ctx *Context) TrafficLightManager() entity.ITrafficLightManager {
	return ctx.lightManager
}

func (ctx *Context) DestinationManager() entity.IDestinationManager {
	return ctx.destinationManager
}

func (ctx *Context) IntersectionGraph() entity.IIntersectionGraph {
	return ctx.graph
}

func (ctx *Context) CarManager() entity.ICarManager {
	return ctx.carManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Router() entity.IRouter {
	return ctx.router
}

// Generator 随机数引擎
func (ctx *Context) Generator() *randengine.Engine {
	return ctx.generator
}

// Spawner 车辆生成器
func (ctx *Context) Spawner() *car.Spawner {
	return ctx.spawner
}

// Store Q表仓库
func (ctx *Context) Store() *car.QStore {
	return ctx.store
}

// Init 初始化（或重置）仿真
// 功能：从输入重新构建所有管理器，重置时钟，生成初始车辆
// 说明：Q表仓库与随机数引擎跨重置保留
// 算法说明：
// 1. 信号灯、目的地管理器
// 2. 道路网络（依赖信号灯、目的地的位置）
// 3. 路口图与导航服务
// 4. 车辆管理器、生成器，生成初始车辆
func (ctx *Context) Init() error {
	ctx.clock.Init()
	ctx.halted = nil
	mapData := ctx.initRes.Map
	rc := ctx.runtimeConfig.C

	ctx.lightManager = trafficlight.NewManager()
	ctx.lightManager.Init(mapData)
	ctx.destinationManager = aoi.NewManager()
	ctx.destinationManager.Init(mapData)
	ctx.network = road.NewManager()
	if err := ctx.network.Init(mapData, ctx.lightManager, ctx.destinationManager); err != nil {
		return fmt.Errorf("%w: %v", input.ErrMapLoad, err)
	}
	ctx.graph = junction.NewManager()
	ctx.graph.Init(ctx.network, ctx.lightManager, ctx.destinationManager, rc.Route.IncludeDestinations)
	ctx.router = route.New(ctx.network, ctx.graph, rc.Route)

	ctx.carManager = car.NewManager(ctx, ctx.store)
	ctx.spawner = car.NewSpawner(ctx.carManager, rc.Spawn, rc.Car.Agent == config.AgentLearned)
	ctx.spawner.Request(ctx.nAgents)
	if err := ctx.spawner.Step(ctx.clock.InternalStep, ctx.generator); err != nil {
		return err
	}
	ctx.carManager.Prepare()
	log.Infof("init: %d cars on %dx%d grid, %d pending, entry cells %v", len(ctx.carManager.Cars()),
		ctx.network.Width(), ctx.network.Height(), ctx.spawner.Pending(), ctx.spawner.Points())
	return nil
}

// Stats 仿真统计
type Stats struct {
	Step      int32
	Live      int
	Pending   int
	Completed int32
	Runtime   car.Runtime
	Halted    bool
}

// Stats 当前统计
func (ctx *Context) Stats() Stats {
	return Stats{
		Step:      ctx.clock.InternalStep,
		Live:      len(ctx.carManager.Cars()),
		Pending:   ctx.spawner.Pending(),
		Completed: ctx.carManager.Completed(),
		Runtime:   ctx.carManager.Runtime(),
		Halted:    ctx.halted != nil,
	}
}

// Car 根据ID获取车辆详情
func (ctx *Context) Car(id int32) (*car.Car, error) {
	c, err := ctx.carManager.GetOrError(id)
	if err != nil {
		return nil, err
	}
	return c.(*car.Car), nil
}

// Pairs 信号灯配对检测结果
func (ctx *Context) Pairs() (pairs, opposites [][2]int32) {
	return ctx.lightManager.Pairs(), ctx.lightManager.Opposites()
}

// Edges 路口图的边
func (ctx *Context) Edges() []junction.Edge {
	return ctx.graph.Edges()
}
