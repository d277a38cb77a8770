package route

import (
	"errors"
	"slices"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/container"
)

// ErrPathNotFound 开放集耗尽仍未到达终点
var ErrPathNotFound = errors.New("path not found")

// AStar 遵守交通规则的格点A*搜索
// 功能：在道路网络上寻找start到goal的最短合法格点序列
// 参数：network-道路网络，start-起点，goal-终点，ignoreLights-是否忽略信号灯
// 返回：含两端的格点序列；无路可走时返回ErrPathNotFound
// 算法说明：
// 1. 启发函数为曼哈顿距离（单位代价的四邻域移动下可采纳且一致）
// 2. 后继按Up, Down, Right, Left的固定顺序生成，只保留CheckMove为OK的格点
// 3. 开放集为稳定优先队列，f值相同时先入先出；已出队的格点加入关闭集
func AStar(network entity.IRoadNetwork, start, goal entity.Position, ignoreLights bool) ([]entity.Position, error) {
	if start == goal {
		return []entity.Position{start}, nil
	}
	if !network.IsTraversable(goal) {
		return nil, ErrPathNotFound
	}
	cost := map[entity.Position]int{start: 0}
	parent := make(map[entity.Position]entity.Position)
	closed := make(map[entity.Position]bool)
	open := container.NewPriorityQueue[entity.Position]()
	open.HeapPush(start, float64(start.Manhattan(goal)))
	for open.Len() > 0 {
		cur, _ := open.HeapPop()
		if closed[cur] {
			continue
		}
		if cur == goal {
			return reconstruct(parent, start, goal), nil
		}
		closed[cur] = true
		for _, next := range network.Neighbors(cur) {
			if closed[next] || CheckMove(network, cur, next, ignoreLights) != MoveOK {
				continue
			}
			c := cost[cur] + 1
			if old, ok := cost[next]; ok && old <= c {
				continue
			}
			cost[next] = c
			parent[next] = cur
			open.HeapPush(next, float64(c+next.Manhattan(goal)))
		}
	}
	return nil, ErrPathNotFound
}

func reconstruct(parent map[entity.Position]entity.Position, start, goal entity.Position) []entity.Position {
	path := []entity.Position{goal}
	for cur := goal; cur != start; {
		cur = parent[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}
