package road

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

var (
	ErrOutOfBounds  = errors.New("position out of bounds")
	ErrCellOccupied = errors.New("cell already occupied by a car")
	ErrInvalidMove  = errors.New("invalid move")
)

const none int32 = -1

// Network 道路网络管理器
// 功能：拥有整张格点地图，维护每个格点上的静态占用者（道路、障碍物、信号灯、目的地）以及车辆占用层
// 说明：格点以y*width+x编号；静态实体的具体数据保存在旁表中，格点上只记录(ID, 类型)；
// 信号灯与目的地的生命周期由各自的管理器负责，这里只保存位置到ID的索引
type Network struct {
	width, height int

	roads     []entity.Road
	roadAt    []int32
	obstacles []entity.Obstacle
	blocked   []bool

	lights       entity.ITrafficLightManager
	lightAt      []int32
	destinations entity.IDestinationManager
	destAt       []int32

	carAt []int32
	cars  map[int32]entity.Position // 车辆ID -> 所在格点
}

// NewManager 创建空的道路网络
func NewManager() *Network {
	return &Network{cars: make(map[int32]entity.Position)}
}

// Init 根据地图物化数据初始化道路网络
// 功能：建立格点数组与各旁表，并从信号灯、目的地管理器建立位置索引
// 参数：m-地图物化数据，lights-信号灯管理器，destinations-目的地管理器
// 返回：地图尺寸非法、坐标越界或信号灯/目的地格点下缺少道路时返回错误
// 算法说明：
// 1. 按格点数分配索引数组，全部置为none
// 2. 依次放置道路与障碍物，道路ID为其在旁表中的下标
// 3. 从两个管理器读取信号灯、目的地的位置建立索引
func (n *Network) Init(m *entity.MapData, lights entity.ITrafficLightManager, destinations entity.IDestinationManager) error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid map size %dx%d", m.Width, m.Height)
	}
	n.width, n.height = m.Width, m.Height
	size := m.Width * m.Height
	fill := func() []int32 {
		return lo.Times(size, func(int) int32 { return none })
	}
	n.roadAt, n.lightAt, n.destAt, n.carAt = fill(), fill(), fill(), fill()
	n.blocked = make([]bool, size)
	n.roads = make([]entity.Road, 0, len(m.Roads))
	n.obstacles = make([]entity.Obstacle, 0, len(m.Obstacles))
	n.cars = make(map[int32]entity.Position)
	n.lights, n.destinations = lights, destinations

	for _, spec := range m.Roads {
		if !n.InBounds(spec.Pos) {
			return fmt.Errorf("road %v: %w", spec.Pos, ErrOutOfBounds)
		}
		id := int32(len(n.roads))
		n.roads = append(n.roads, entity.Road{ID: id, Pos: spec.Pos, Direction: spec.Direction})
		n.roadAt[n.index(spec.Pos)] = id
	}
	for _, p := range m.Obstacles {
		if !n.InBounds(p) {
			return fmt.Errorf("obstacle %v: %w", p, ErrOutOfBounds)
		}
		n.obstacles = append(n.obstacles, entity.Obstacle{ID: int32(len(n.obstacles)), Pos: p})
		n.blocked[n.index(p)] = true
	}
	if lights != nil {
		for _, l := range lights.All() {
			if err := n.attach(n.lightAt, l.ID(), l.Position(), "traffic light"); err != nil {
				return err
			}
		}
	}
	if destinations != nil {
		for _, d := range destinations.All() {
			if err := n.attach(n.destAt, d.ID(), d.Position(), "destination"); err != nil {
				return err
			}
		}
	}
	log.Infof("road network %dx%d: %d roads, %d obstacles", n.width, n.height, len(n.roads), len(n.obstacles))
	return nil
}

func (n *Network) attach(index []int32, id int32, p entity.Position, kind string) error {
	if !n.InBounds(p) {
		return fmt.Errorf("%s %d at %v: %w", kind, id, p, ErrOutOfBounds)
	}
	if n.roadAt[n.index(p)] == none {
		return fmt.Errorf("%s %d at %v has no road underneath", kind, id, p)
	}
	index[n.index(p)] = id
	return nil
}

func (n *Network) index(p entity.Position) int {
	return p.Y*n.width + p.X
}

func (n *Network) Width() int {
	return n.width
}

func (n *Network) Height() int {
	return n.height
}

// InBounds 坐标是否在地图范围内
func (n *Network) InBounds(p entity.Position) bool {
	return p.X >= 0 && p.X < n.width && p.Y >= 0 && p.Y < n.height
}

func (n *Network) RoadAt(p entity.Position) (entity.Road, bool) {
	if !n.InBounds(p) {
		return entity.Road{}, false
	}
	if id := n.roadAt[n.index(p)]; id != none {
		return n.roads[id], true
	}
	return entity.Road{}, false
}

func (n *Network) IsObstacle(p entity.Position) bool {
	return n.InBounds(p) && n.blocked[n.index(p)]
}

// IsTraversable 格点可通行：界内、有道路、无障碍物
func (n *Network) IsTraversable(p entity.Position) bool {
	if !n.InBounds(p) {
		return false
	}
	i := n.index(p)
	return n.roadAt[i] != none && !n.blocked[i]
}

// Neighbors 界内的四邻域，顺序为Up, Down, Right, Left
func (n *Network) Neighbors(p entity.Position) []entity.Position {
	return lo.Filter(p.VonNeumann(), func(q entity.Position, _ int) bool {
		return n.InBounds(q)
	})
}

func (n *Network) LightAt(p entity.Position) (entity.ITrafficLight, bool) {
	if n.lights == nil || !n.InBounds(p) {
		return nil, false
	}
	if id := n.lightAt[n.index(p)]; id != none {
		return n.lights.Get(id), true
	}
	return nil, false
}

func (n *Network) DestinationAt(p entity.Position) (entity.IDestination, bool) {
	if n.destinations == nil || !n.InBounds(p) {
		return nil, false
	}
	if id := n.destAt[n.index(p)]; id != none {
		return n.destinations.Get(id), true
	}
	return nil, false
}

// Occupants 格点上的全部占用者
// 说明：顺序固定为 道路、障碍物、目的地、信号灯、车辆
func (n *Network) Occupants(p entity.Position) []entity.Occupant {
	if !n.InBounds(p) {
		return nil
	}
	i := n.index(p)
	res := make([]entity.Occupant, 0, 2)
	if id := n.roadAt[i]; id != none {
		res = append(res, entity.Occupant{ID: id, Kind: entity.KindRoad})
	}
	if n.blocked[i] {
		for _, o := range n.obstacles {
			if o.Pos == p {
				res = append(res, entity.Occupant{ID: o.ID, Kind: entity.KindObstacle})
			}
		}
	}
	if id := n.destAt[i]; id != none {
		res = append(res, entity.Occupant{ID: id, Kind: entity.KindDestination})
	}
	if id := n.lightAt[i]; id != none {
		res = append(res, entity.Occupant{ID: id, Kind: entity.KindTrafficLight})
	}
	if id := n.carAt[i]; id != none {
		res = append(res, entity.Occupant{ID: id, Kind: entity.KindCar})
	}
	return res
}

func (n *Network) Obstacles() []entity.Obstacle {
	return n.obstacles
}

func (n *Network) Roads() []entity.Road {
	return n.roads
}

// CarAt 格点上的车辆
func (n *Network) CarAt(p entity.Position) (int32, bool) {
	if !n.InBounds(p) {
		return 0, false
	}
	id := n.carAt[n.index(p)]
	return id, id != none
}

// PlaceCar 将车辆放置到格点上
// 返回：越界时返回ErrOutOfBounds，格点已有车辆时返回ErrCellOccupied
func (n *Network) PlaceCar(id int32, p entity.Position) error {
	if !n.InBounds(p) {
		return fmt.Errorf("place car %d at %v: %w", id, p, ErrOutOfBounds)
	}
	i := n.index(p)
	if n.carAt[i] != none {
		return fmt.Errorf("place car %d at %v (car %d): %w", id, p, n.carAt[i], ErrCellOccupied)
	}
	if old, ok := n.cars[id]; ok {
		return fmt.Errorf("place car %d at %v: already at %v: %w", id, p, old, ErrInvalidMove)
	}
	n.carAt[i] = id
	n.cars[id] = p
	return nil
}

// MoveCar 将车辆从from移动到八邻域内的to
// 功能：原子地完成离开from与进入to，保证同一格点至多一辆车
// 返回：车辆不在from、to不在八邻域内或越界时返回ErrInvalidMove，to已有车辆时返回ErrCellOccupied
// 说明：正常行驶只走四邻域，斜向移动只出现在变道的最后手段中
func (n *Network) MoveCar(id int32, from, to entity.Position) error {
	if cur, ok := n.cars[id]; !ok || cur != from {
		return fmt.Errorf("move car %d from %v: car not there: %w", id, from, ErrInvalidMove)
	}
	if !n.InBounds(to) || from.Chebyshev(to) != 1 {
		return fmt.Errorf("move car %d from %v to %v: %w", id, from, to, ErrInvalidMove)
	}
	j := n.index(to)
	if n.carAt[j] != none {
		return fmt.Errorf("move car %d to %v (car %d): %w", id, to, n.carAt[j], ErrCellOccupied)
	}
	n.carAt[n.index(from)] = none
	n.carAt[j] = id
	n.cars[id] = to
	return nil
}

// RemoveCar 将车辆从格点上移除，车辆不在该格点时忽略
func (n *Network) RemoveCar(id int32, p entity.Position) {
	if cur, ok := n.cars[id]; !ok || cur != p {
		log.Warnf("remove car %d at %v: car not there", id, p)
		return
	}
	n.carAt[n.index(p)] = none
	delete(n.cars, id)
}

// CarCount 车辆占用层中的车辆数
func (n *Network) CarCount() int {
	return len(n.cars)
}
