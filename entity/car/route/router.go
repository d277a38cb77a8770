package route

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

// Planner 格点级搜索算法
type Planner func(network entity.IRoadNetwork, start, goal entity.Position, ignoreLights bool) ([]entity.Position, error)

// Router 车辆导航服务
// 功能：规划时忽略信号灯；远距离请求先在路口图上做粗粒度搜索，再逐段拼接格点级路径
type Router struct {
	network entity.IRoadNetwork
	graph   entity.IIntersectionGraph
	cfg     config.Route
	plan    Planner
}

// New 初始化导航服务
// 参数：network-道路网络，graph-路口图（为nil或cfg.Direct时不使用分层导航），cfg-导航配置
func New(network entity.IRoadNetwork, graph entity.IIntersectionGraph, cfg config.Route) *Router {
	r := &Router{network: network, graph: graph, cfg: cfg, plan: AStar}
	if cfg.Algorithm == config.AlgorithmBFS {
		r.plan = BFS
	}
	return r
}

// Route 路径规划
// 返回：含两端的格点序列；无路可走时返回ErrPathNotFound
// 说明：分层导航的任何一步失败都回退为直接的格点级搜索
func (r *Router) Route(start, goal entity.Position) ([]entity.Position, error) {
	if r.graph != nil && !r.cfg.Direct && start.Manhattan(goal) >= r.cfg.MinDistance {
		path, err := r.hierarchical(start, goal)
		if err == nil {
			return path, nil
		}
		log.Debugf("hierarchical route %v -> %v failed, fall back to direct search: %v", start, goal, err)
	}
	return r.plan(r.network, start, goal, true)
}

// hierarchical 分层导航
// 算法说明：
// 1. 分别找到起点、终点半径内最近的路口节点，两者相同时没有必要分层
// 2. 在路口图上搜索节点路径
// 3. 依次规划 start -> 第一个节点 -> ... -> 最后一个节点 -> goal 的各段并拼接
// 4. 拼接结果若重复经过同一格点，则截去中间的环
func (r *Router) hierarchical(start, goal entity.Position) ([]entity.Position, error) {
	from, ok := r.graph.Nearest(start, r.cfg.NodeRadius)
	if !ok {
		return nil, fmt.Errorf("no intersection near start %v: %w", start, ErrPathNotFound)
	}
	to, ok := r.graph.Nearest(goal, r.cfg.NodeRadius)
	if !ok {
		return nil, fmt.Errorf("no intersection near goal %v: %w", goal, ErrPathNotFound)
	}
	if from == to {
		return nil, fmt.Errorf("start and goal share intersection %d: %w", from, ErrPathNotFound)
	}
	nodes, _, ok := r.graph.CoarsePath(from, to)
	if !ok {
		return nil, fmt.Errorf("no coarse path %d -> %d: %w", from, to, ErrPathNotFound)
	}
	positions := r.graph.Nodes()
	waypoints := make([]entity.Position, 0, len(nodes)+2)
	waypoints = append(waypoints, start)
	for _, id := range nodes {
		waypoints = append(waypoints, positions[id])
	}
	waypoints = append(waypoints, goal)

	path := []entity.Position{start}
	for i := 1; i < len(waypoints); i++ {
		segment, err := r.plan(r.network, path[len(path)-1], waypoints[i], true)
		if err != nil {
			return nil, fmt.Errorf("segment %v -> %v: %w", path[len(path)-1], waypoints[i], err)
		}
		path = append(path, segment[1:]...)
	}
	return removeLoops(path), nil
}

// removeLoops 截去路径中的环
// 说明：移动的合法性只取决于前后两个格点，截环后的每一步都是原路径中的某一步，仍然合法
func removeLoops(path []entity.Position) []entity.Position {
	index := make(map[entity.Position]int, len(path))
	res := make([]entity.Position, 0, len(path))
	for _, p := range path {
		if i, ok := index[p]; ok {
			for _, q := range res[i+1:] {
				delete(index, q)
			}
			res = res[:i+1]
			continue
		}
		index[p] = len(res)
		res = append(res, p)
	}
	return res
}
