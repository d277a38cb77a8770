package car

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// ErrGridlock 待生成的车辆在入口点持续无法放置
var ErrGridlock = errors.New("gridlock: entry cells permanently occupied")

// maxDestinationDraws 重新抽取终点的最大次数（避免终点与入口点重合）
const maxDestinationDraws = 8

// Spawner 车辆生成器
// 功能：在入口点生成初始车辆与周期性车辆，终点从目的地集合中等概率抽取
// 说明：无法放置的车辆保留在待生成队列中；入口点持续全部被占据超过阈值时判定死锁
type Spawner struct {
	m   *Manager
	cfg config.Spawn

	points     []entity.Position // 可通行的入口点
	pending    int               // 待生成的车辆数
	blockedFor int32             // 入口点连续全部被占据的步数
	learned    bool
}

// NewSpawner 创建车辆生成器
// 参数：m-车辆管理器，cfg-生成配置，learned-是否生成Q-learning车辆
// 说明：未配置入口点时使用地图四角；不可通行的入口点被忽略
func NewSpawner(m *Manager, cfg config.Spawn, learned bool) *Spawner {
	network := m.ctx.Network()
	var points []entity.Position
	if len(cfg.Points) > 0 {
		points = lo.Map(cfg.Points, func(p [2]int, _ int) entity.Position { return entity.Position{X: p[0], Y: p[1]} })
	} else {
		w, h := network.Width(), network.Height()
		points = []entity.Position{{X: 0, Y: 0}, {X: w - 1, Y: 0}, {X: 0, Y: h - 1}, {X: w - 1, Y: h - 1}}
	}
	points = lo.Uniq(points)
	usable := lo.Filter(points, func(p entity.Position, _ int) bool { return network.IsTraversable(p) })
	if len(usable) < len(points) {
		log.Warnf("%d of %d entry cells are not traversable and are ignored", len(points)-len(usable), len(points))
	}
	return &Spawner{m: m, cfg: cfg, points: usable, learned: learned}
}

// Points 可用的入口点
func (s *Spawner) Points() []entity.Position {
	return s.points
}

// Pending 待生成的车辆数
func (s *Spawner) Pending() int {
	return s.pending
}

// Request 追加n辆待生成车辆
func (s *Spawner) Request(n int) {
	s.pending += n
}

// Step 生成阶段
// 功能：按周期追加待生成车辆，并尽可能在空闲入口点放置
// 参数：t-当前步数，generator-随机数引擎
// 返回：有待生成车辆且入口点连续全部被占据达到阈值步数时返回ErrGridlock
func (s *Spawner) Step(t int32, generator *randengine.Engine) error {
	if s.cfg.Interval > 0 && t > 0 && t%s.cfg.Interval == 0 {
		s.pending += s.cfg.Count
	}
	if s.pending == 0 {
		s.blockedFor = 0
		return nil
	}
	destinations := s.m.ctx.DestinationManager()
	if len(destinations.All()) == 0 || len(s.points) == 0 {
		log.Warnf("drop %d pending cars: no destinations or entry cells", s.pending)
		s.pending = 0
		return nil
	}
	network := s.m.ctx.Network()
	placed := 0
	for s.pending > 0 {
		free := lo.Filter(s.points, func(p entity.Position, _ int) bool { return isFree(network, p) })
		if len(free) == 0 {
			break
		}
		pos := free[generator.Choice(len(free))]
		dest := s.drawDestination(pos, generator)
		if _, err := s.m.Add(pos, dest, s.learned); err != nil {
			return fmt.Errorf("spawn at %v: %w", pos, err)
		}
		s.pending--
		placed++
	}
	// 本步有入口点空闲过，不计入连续堵塞
	if s.pending == 0 || placed > 0 {
		s.blockedFor = 0
		return nil
	}
	s.blockedFor++
	if s.cfg.GridlockTicks > 0 && s.blockedFor >= s.cfg.GridlockTicks {
		return fmt.Errorf("%w: %d cars pending for %d steps", ErrGridlock, s.pending, s.blockedFor)
	}
	return nil
}

// drawDestination 抽取终点，尽量避开入口点本身
func (s *Spawner) drawDestination(pos entity.Position, generator *randengine.Engine) entity.Position {
	var dest entity.Position
	for i := 0; i < maxDestinationDraws; i++ {
		d, _ := s.m.ctx.DestinationManager().Random(generator)
		dest = d.Position()
		if dest != pos {
			break
		}
	}
	return dest
}
