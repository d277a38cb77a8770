package aoi

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
)

// Manager 目的地管理器
// 功能：管理所有目的地，为车辆生成提供随机终点
type Manager struct {
	data         map[int32]*Destination
	destinations []*Destination
}

// NewManager 创建目的地管理器实例
func NewManager() *Manager {
	return &Manager{
		data:         make(map[int32]*Destination),
		destinations: make([]*Destination, 0),
	}
}

// Init 初始化所有目的地，ID为其在data.Destinations中的下标
func (m *Manager) Init(data *entity.MapData) {
	m.destinations = lo.Map(data.Destinations, func(spec entity.DestinationSpec, i int) *Destination {
		return &Destination{id: int32(i), pos: spec.Pos, color: spec.Color}
	})
	m.data = lo.SliceToMap(m.destinations, func(d *Destination) (int32, *Destination) {
		return d.id, d
	})
	log.Infof("%d destinations", len(m.destinations))
}

// Get 根据ID获取目的地，如果不存在则panic
func (m *Manager) Get(id int32) entity.IDestination {
	if d, ok := m.data[id]; !ok {
		log.Panicf("no id %d in destination data", id)
		return nil
	} else {
		return d
	}
}

// GetOrError 根据ID获取目的地，如果不存在则返回错误
func (m *Manager) GetOrError(id int32) (entity.IDestination, error) {
	if d, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in destination data", id)
	} else {
		return d, nil
	}
}

// All 按ID顺序返回全部目的地
func (m *Manager) All() []entity.IDestination {
	return lo.Map(m.destinations, func(d *Destination, _ int) entity.IDestination { return d })
}

// Random 等概率随机选择一个目的地
// 返回：目的地；不存在目的地时返回false
func (m *Manager) Random(generator *randengine.Engine) (entity.IDestination, bool) {
	i := generator.Choice(len(m.destinations))
	if i < 0 {
		return nil, false
	}
	return m.destinations[i], true
}

// FreeCellsNear 目的地周围的空闲道路格点
// 功能：在pos的Moore邻域中查找可通行且没有车辆的格点，按到from的曼哈顿距离升序（距离相同时保持邻域顺序）
// 参数：network-道路网络，pos-目的地坐标，from-车辆当前坐标
// 返回：候选格点列表
func FreeCellsNear(network entity.IRoadNetwork, pos, from entity.Position) []entity.Position {
	cells := lo.Filter(pos.Moore(), func(p entity.Position, _ int) bool {
		if !network.IsTraversable(p) {
			return false
		}
		_, occupied := network.CarAt(p)
		return !occupied
	})
	// 稳定插入排序
	for i := 1; i < len(cells); i++ {
		for j := i; j > 0 && cells[j].Manhattan(from) < cells[j-1].Manhattan(from); j-- {
			cells[j], cells[j-1] = cells[j-1], cells[j]
		}
	}
	return cells
}
