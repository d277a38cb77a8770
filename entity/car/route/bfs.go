package route

import "github.com/tsinghua-fib-lab/gridtraffic-sim/entity"

// BFS 遵守交通规则的广度优先搜索
// 功能：与AStar使用相同的后继合法性判定，穷举求最短格点序列
// 说明：作为AStar的对照，也可通过配置直接用于导航
func BFS(network entity.IRoadNetwork, start, goal entity.Position, ignoreLights bool) ([]entity.Position, error) {
	if start == goal {
		return []entity.Position{start}, nil
	}
	parent := make(map[entity.Position]entity.Position)
	seen := map[entity.Position]bool{start: true}
	queue := []entity.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range network.Neighbors(cur) {
			if seen[next] || CheckMove(network, cur, next, ignoreLights) != MoveOK {
				continue
			}
			seen[next] = true
			parent[next] = cur
			if next == goal {
				return reconstruct(parent, start, goal), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, ErrPathNotFound
}
