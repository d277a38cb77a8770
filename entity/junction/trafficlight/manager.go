package trafficlight

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

// Manager 信号灯管理器
// 功能：管理所有信号灯，按全局步数推进相位
type Manager struct {
	data   map[int32]*Light
	lights []*Light
}

// NewManager 创建信号灯管理器实例
func NewManager() *Manager {
	return &Manager{
		data:   make(map[int32]*Light),
		lights: make([]*Light, 0),
	}
}

// Init 初始化所有信号灯
// 功能：根据地图物化数据创建信号灯，信号灯ID为其在m.Lights中的下标
// 参数：m-地图物化数据
// 说明：信号灯的轴由其下方道路的方向推断，道路方向为None时轴未知
func (m *Manager) Init(data *entity.MapData) {
	roadDir := lo.SliceToMap(data.Roads, func(r entity.RoadSpec) (entity.Position, entity.Direction) {
		return r.Pos, r.Direction
	})
	m.lights = lo.Map(data.Lights, func(spec entity.LightSpec, i int) *Light {
		return newLight(int32(i), spec, entity.AxisOf(roadDir[spec.Pos]))
	})
	m.data = lo.SliceToMap(m.lights, func(l *Light) (int32, *Light) {
		return l.id, l
	})
	if pairs := m.Pairs(); len(pairs) > 0 {
		log.Debugf("detected %d paired lights: %v", len(pairs), pairs)
	}
	if opposites := m.Opposites(); len(opposites) > 0 {
		log.Debugf("detected %d opposite lights: %v", len(opposites), opposites)
	}
	log.Infof("%d traffic lights", len(m.lights))
}

// Get 根据ID获取信号灯，如果不存在则panic
func (m *Manager) Get(id int32) entity.ITrafficLight {
	if l, ok := m.data[id]; !ok {
		log.Panicf("no id %d in traffic light data", id)
		return nil
	} else {
		return l
	}
}

// GetOrError 根据ID获取信号灯，如果不存在则返回错误
func (m *Manager) GetOrError(id int32) (entity.ITrafficLight, error) {
	if l, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in traffic light data", id)
	} else {
		return l, nil
	}
}

// All 按ID顺序返回全部信号灯
func (m *Manager) All() []entity.ITrafficLight {
	return lo.Map(m.lights, func(l *Light, _ int) entity.ITrafficLight { return l })
}

// Reset 将全部信号灯恢复到初始状态
func (m *Manager) Reset() {
	for _, l := range m.lights {
		l.reset()
	}
}

// Update 更新阶段，按全局步数t推进所有信号灯
func (m *Manager) Update(t int32) {
	flipped := 0
	for _, l := range m.lights {
		if l.update(t) {
			flipped++
		}
	}
	if flipped > 0 {
		log.Debugf("step %d: %d lights switched", t, flipped)
	}
}
