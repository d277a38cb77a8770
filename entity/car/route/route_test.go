package route_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/aoi"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car/route"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/junction"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/road"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/input"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

var dict = map[string]string{
	">": "Right", "<": "Left", "^": "Up", "v": "Down",
	"#": "Obstacle", "D": "Destination", "r": "4", "G": "4",
}

func networkOf(t *testing.T, m *entity.MapData) (*road.Network, *trafficlight.Manager, *aoi.Manager) {
	lm := trafficlight.NewManager()
	lm.Init(m)
	dm := aoi.NewManager()
	dm.Init(m)
	n := road.NewManager()
	require.NoError(t, n.Init(m, lm, dm))
	return n, lm, dm
}

func parse(t *testing.T, lines ...string) (*road.Network, *trafficlight.Manager, *aoi.Manager) {
	m, err := input.Parse(lines, dict)
	require.NoError(t, err)
	return networkOf(t, m)
}

// assertValidPath 每一步都相邻且合法
func assertValidPath(t *testing.T, n entity.IRoadNetwork, path []entity.Position, start, goal entity.Position) {
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.Equal(t, goal, path[len(path)-1])
	for i := 1; i < len(path); i++ {
		assert.Equal(t, 1, path[i-1].Manhattan(path[i]), "step %d", i)
		assert.Equal(t, route.MoveOK, route.CheckMove(n, path[i-1], path[i], true), "step %d %v->%v", i, path[i-1], path[i])
	}
}

func TestCanTurnIntoNoneAlwaysLegal(t *testing.T) {
	all := []entity.Direction{entity.DirectionNone, entity.DirectionUp, entity.DirectionDown, entity.DirectionRight, entity.DirectionLeft}
	for _, current := range all {
		for _, required := range all {
			assert.True(t, route.CanTurn(current, entity.DirectionNone, required))
		}
	}
}

func TestCanTurnRules(t *testing.T) {
	// 下一道路方向与所需方向相反
	assert.False(t, route.CanTurn(entity.DirectionRight, entity.DirectionLeft, entity.DirectionRight))
	// 所需方向与当前道路方向相反
	assert.False(t, route.CanTurn(entity.DirectionRight, entity.DirectionUp, entity.DirectionLeft))
	// 普通转向
	assert.True(t, route.CanTurn(entity.DirectionRight, entity.DirectionUp, entity.DirectionUp))
	assert.True(t, route.CanTurn(entity.DirectionRight, entity.DirectionRight, entity.DirectionUp))
	// 当前格点没有方向约束
	assert.True(t, route.CanTurn(entity.DirectionNone, entity.DirectionUp, entity.DirectionRight))
	// 与下一道路同向总是满足方向约束
	assert.True(t, route.IsLegalDirection(entity.DirectionRight, entity.DirectionLeft, entity.DirectionLeft))
}

func TestCheckMove(t *testing.T) {
	n, _, _ := parse(t,
		">>r>#",
		"<<<<.",
	)
	y1 := func(x int) entity.Position { return entity.Position{X: x, Y: 1} }
	y0 := func(x int) entity.Position { return entity.Position{X: x, Y: 0} }
	assert.Equal(t, route.MoveOK, route.CheckMove(n, y1(0), y1(1), false))
	assert.Equal(t, route.MoveRedLight, route.CheckMove(n, y1(1), y1(2), false))
	assert.Equal(t, route.MoveOK, route.CheckMove(n, y1(1), y1(2), true))
	assert.Equal(t, route.MoveObstacle, route.CheckMove(n, y1(3), y1(4), true))
	assert.Equal(t, route.MoveNotRoad, route.CheckMove(n, y0(3), y0(4), true))
	assert.Equal(t, route.MoveNotRoad, route.CheckMove(n, y0(0), y0(-1), true))
	assert.Equal(t, route.MoveWrongDirection, route.CheckMove(n, y1(1), y1(0), true))
	assert.Equal(t, route.MoveWrongDirection, route.CheckMove(n, y1(0), y1(3), true))
	assert.Equal(t, "RedLight", route.MoveRedLight.String())
}

func TestAStarSimple(t *testing.T) {
	n, _, _ := parse(t,
		">>>>v",
		"^...v",
		"^<<<<",
	)
	start, goal := entity.Position{X: 0, Y: 2}, entity.Position{X: 0, Y: 0}
	path, err := route.AStar(n, start, goal, true)
	require.NoError(t, err)
	assertValidPath(t, n, path, start, goal)
	// 只能绕一整圈
	assert.Len(t, path, 11)

	path, err = route.AStar(n, start, start, true)
	require.NoError(t, err)
	assert.Equal(t, []entity.Position{start}, path)
}

func TestEnclosedDestinationHasNoPath(t *testing.T) {
	n, _, _ := parse(t,
		">>#>>",
		">#D#>",
		">>#>>",
	)
	goal := entity.Position{X: 2, Y: 1}
	_, err := route.AStar(n, entity.Position{X: 0, Y: 0}, goal, true)
	assert.ErrorIs(t, err, route.ErrPathNotFound)
	_, err = route.BFS(n, entity.Position{X: 0, Y: 0}, goal, true)
	assert.ErrorIs(t, err, route.ErrPathNotFound)
}

// randomMap 随机生成小地图：道路方向随机（含None），少量障碍物与空格点
func randomMap(g *randengine.Engine, w, h int) *entity.MapData {
	m := &entity.MapData{Width: w, Height: h}
	dirs := []entity.Direction{entity.DirectionNone, entity.DirectionUp, entity.DirectionDown, entity.DirectionRight, entity.DirectionLeft}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := entity.Position{X: x, Y: y}
			switch v := g.Float64(); {
			case v < 0.1:
				m.Obstacles = append(m.Obstacles, p)
			case v < 0.15:
			default:
				m.Roads = append(m.Roads, entity.RoadSpec{Pos: p, Direction: dirs[g.Choice(len(dirs))]})
			}
		}
	}
	return m
}

func TestAStarMatchesBFS(t *testing.T) {
	g := randengine.New(42)
	for trial := 0; trial < 60; trial++ {
		w, h := 4+g.Choice(4), 4+g.Choice(4)
		n, _, _ := networkOf(t, randomMap(g, w, h))
		for q := 0; q < 10; q++ {
			start := entity.Position{X: g.Choice(w), Y: g.Choice(h)}
			goal := entity.Position{X: g.Choice(w), Y: g.Choice(h)}
			if !n.IsTraversable(start) {
				continue
			}
			a, errA := route.AStar(n, start, goal, true)
			b, errB := route.BFS(n, start, goal, true)
			if errB != nil {
				assert.ErrorIs(t, errA, route.ErrPathNotFound, "trial %d %v->%v", trial, start, goal)
				continue
			}
			require.NoError(t, errA, "trial %d %v->%v", trial, start, goal)
			assert.Equal(t, len(b), len(a), "trial %d %v->%v", trial, start, goal)
			assertValidPath(t, n, a, start, goal)
		}
	}
}

func TestHierarchicalRouter(t *testing.T) {
	lines := []string{
		">>>>>>>>>>>>G>>>>>>>>>>>>v",
		"^........................v",
		"^........................v",
		"G........................G",
		"^........................v",
		"^<<<<<<<<<<<<G<<<<<<<<<<<<",
	}
	n, lm, dm := parse(t, lines...)
	ig := junction.NewManager()
	ig.Init(n, lm, dm, false)

	start, goal := entity.Position{X: 1, Y: 5}, entity.Position{X: 24, Y: 0}
	cfg := config.Route{Algorithm: config.AlgorithmAStar, MinDistance: 10, NodeRadius: 8}
	hier := route.New(n, ig, cfg)
	path, err := hier.Route(start, goal)
	require.NoError(t, err)
	assertValidPath(t, n, path, start, goal)

	direct := route.New(n, nil, config.Route{Algorithm: config.AlgorithmBFS})
	shortest, err := direct.Route(start, goal)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(path), len(shortest))

	// 无节点时回退到直接搜索
	fallback := route.New(n, ig, config.Route{MinDistance: 1, NodeRadius: 0})
	path, err = fallback.Route(start, goal)
	require.NoError(t, err)
	assert.Len(t, path, len(shortest))
}
