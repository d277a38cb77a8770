package junction

import (
	"math"
	"slices"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Edge 路口图中的一条无向边，满足A<B
type Edge struct {
	A, B   int32
	Weight int // 两节点之间只经过道路格点的最短距离（格数）
}

// IntersectionGraph 路口图
// 功能：以信号灯（可选加上目的地）为节点、道路距离为边权的粗粒度图，用于分层导航
// 说明：构造完成后拓扑不再变化；节点ID按坐标(X, Y)升序分配，保证同一地图多次构造结果一致
type IntersectionGraph struct {
	nodes     []entity.Position
	ids       map[entity.Position]int32
	g         *simple.WeightedUndirectedGraph
	component map[int64]int // 节点ID -> 连通分量编号
}

// NewManager 创建空的路口图
func NewManager() *IntersectionGraph {
	return &IntersectionGraph{
		ids: make(map[entity.Position]int32),
		g:   simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
	}
}

// Init 从道路网络构造路口图
// 功能：确定节点集合并用广度优先搜索测量节点间的道路距离
// 参数：network-道路网络，includeDestinations-是否把目的地也作为节点
// 算法说明：
// 1. 节点：全部信号灯格点（以及目的地格点），去重后按(X, Y)排序分配ID
// 2. 边：从每个节点出发，在可通行格点上做无向BFS（忽略道路方向与信号灯状态），
// 每到达一个其他节点就记录一条边，权重为BFS层数，同一节点对取最小值
// 3. 连通分量：用于快速判定两节点之间不存在粗粒度路径
func (ig *IntersectionGraph) Init(network entity.IRoadNetwork, lights entity.ITrafficLightManager, destinations entity.IDestinationManager, includeDestinations bool) {
	points := make([]entity.Position, 0)
	if lights != nil {
		points = append(points, lo.Map(lights.All(), func(l entity.ITrafficLight, _ int) entity.Position { return l.Position() })...)
	}
	if includeDestinations && destinations != nil {
		points = append(points, lo.Map(destinations.All(), func(d entity.IDestination, _ int) entity.Position { return d.Position() })...)
	}
	points = lo.Uniq(lo.Filter(points, func(p entity.Position, _ int) bool { return network.IsTraversable(p) }))
	sort.Slice(points, func(i, j int) bool {
		if points[i].X != points[j].X {
			return points[i].X < points[j].X
		}
		return points[i].Y < points[j].Y
	})

	ig.nodes = points
	ig.ids = make(map[entity.Position]int32, len(points))
	ig.g = simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i, p := range points {
		ig.ids[p] = int32(i)
		ig.g.AddNode(simple.Node(i))
	}
	for i, p := range points {
		for other, dist := range ig.bfs(network, p) {
			j := ig.ids[other]
			if j == int32(i) {
				continue
			}
			if w, ok := ig.Weight(int32(i), j); ok && w <= dist {
				continue
			}
			ig.g.SetWeightedEdge(ig.g.NewWeightedEdge(simple.Node(i), simple.Node(j), float64(dist)))
		}
	}
	ig.component = make(map[int64]int, len(points))
	for c, nodes := range topo.ConnectedComponents(ig.g) {
		for _, n := range nodes {
			ig.component[n.ID()] = c
		}
	}
	log.Infof("intersection graph: %d nodes, %d edges", len(ig.nodes), ig.g.Edges().Len())
}

// bfs 从start出发的无向广度优先搜索，返回到达的每个节点及其距离
func (ig *IntersectionGraph) bfs(network entity.IRoadNetwork, start entity.Position) map[entity.Position]int {
	reached := make(map[entity.Position]int)
	dist := map[entity.Position]int{start: 0}
	queue := []entity.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := ig.ids[cur]; ok && cur != start {
			reached[cur] = dist[cur]
		}
		for _, next := range network.Neighbors(cur) {
			if _, seen := dist[next]; seen || !network.IsTraversable(next) {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return reached
}

// Nodes 按节点ID排列的节点坐标
func (ig *IntersectionGraph) Nodes() []entity.Position {
	return ig.nodes
}

// NodeID 坐标对应的节点ID
func (ig *IntersectionGraph) NodeID(p entity.Position) (int32, bool) {
	id, ok := ig.ids[p]
	return id, ok
}

// Weight 两节点之间的边权
func (ig *IntersectionGraph) Weight(a, b int32) (int, bool) {
	if a == b {
		return 0, false
	}
	e := ig.g.WeightedEdge(int64(a), int64(b))
	if e == nil {
		return 0, false
	}
	return int(e.Weight()), true
}

// Edges 全部边的快照，按(A, B)升序
func (ig *IntersectionGraph) Edges() []Edge {
	res := make([]Edge, 0)
	for a := range ig.nodes {
		for _, b := range ig.neighbors(int64(a)) {
			if b <= int64(a) {
				continue
			}
			w, _ := ig.Weight(int32(a), int32(b))
			res = append(res, Edge{A: int32(a), B: int32(b), Weight: w})
		}
	}
	return res
}

// neighbors 按ID升序的相邻节点
func (ig *IntersectionGraph) neighbors(id int64) []int64 {
	ids := lo.Map(graph.NodesOf(ig.g.From(id)), func(n graph.Node, _ int) int64 { return n.ID() })
	slices.Sort(ids)
	return ids
}

// Nearest 曼哈顿半径内离p最近的节点，距离相同时取ID较小者
func (ig *IntersectionGraph) Nearest(p entity.Position, radius int) (int32, bool) {
	best, bestDist := int32(-1), radius+1
	for i, n := range ig.nodes {
		if d := n.Manhattan(p); d < bestDist {
			best, bestDist = int32(i), d
		}
	}
	return best, best >= 0
}

// CoarsePath 粗粒度图上的A*搜索
// 功能：在路口图上寻找from到to的最短节点路径
// 参数：from-起点节点ID，to-终点节点ID
// 返回：节点路径（含两端）、总权重；不连通时返回false
// 算法说明：
// 1. 两节点不在同一连通分量时直接失败
// 2. 代价为边权，启发函数为节点坐标间的曼哈顿距离（边权是道路距离，不小于曼哈顿距离，因而可采纳）
// 3. 开放集使用稳定优先队列，相邻节点按ID升序展开，保证结果可复现
func (ig *IntersectionGraph) CoarsePath(from, to int32) ([]int32, int, bool) {
	n := int32(len(ig.nodes))
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, 0, false
	}
	if from == to {
		return []int32{from}, 0, true
	}
	if ig.component[int64(from)] != ig.component[int64(to)] {
		return nil, 0, false
	}
	goal := ig.nodes[to]
	cost := map[int32]int{from: 0}
	parent := make(map[int32]int32)
	closed := make(map[int32]bool)
	pq := container.NewPriorityQueue[int32]()
	pq.HeapPush(from, float64(ig.nodes[from].Manhattan(goal)))
	for pq.Len() > 0 {
		cur, _ := pq.HeapPop()
		if closed[cur] {
			continue
		}
		if cur == to {
			path := []int32{cur}
			for cur != from {
				cur = parent[cur]
				path = append(path, cur)
			}
			slices.Reverse(path)
			return path, cost[to], true
		}
		closed[cur] = true
		for _, nb := range ig.neighbors(int64(cur)) {
			next := int32(nb)
			if closed[next] {
				continue
			}
			w, _ := ig.Weight(cur, next)
			c := cost[cur] + w
			if old, ok := cost[next]; ok && old <= c {
				continue
			}
			cost[next] = c
			parent[next] = cur
			pq.HeapPush(next, float64(c+ig.nodes[next].Manhattan(goal)))
		}
	}
	return nil, 0, false
}
