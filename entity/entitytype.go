package entity

import (
	"fmt"
	"strings"
)

// Position 格点坐标
// 说明：0 <= X < width，0 <= Y < height，Y轴向上（地图文本第r行对应y=height-r-1）
type Position struct {
	X int `json:"x" yaml:"x" bson:"x"`
	Y int `json:"y" yaml:"y" bson:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Add 坐标平移
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Step 沿方向前进一格
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return p.Add(dx, dy)
}

// Manhattan 曼哈顿距离 |Δx|+|Δy|
func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

// Chebyshev 切比雪夫距离 max(|Δx|,|Δy|)
func (p Position) Chebyshev(o Position) int {
	return max(abs(p.X-o.X), abs(p.Y-o.Y))
}

// VonNeumann 四邻域（不做越界检查）
// 说明：顺序固定为 Up, Down, Right, Left
func (p Position) VonNeumann() []Position {
	res := make([]Position, 0, 4)
	for _, d := range MoveDirections {
		res = append(res, p.Step(d))
	}
	return res
}

// Moore 八邻域（不做越界检查）
// 说明：按dy从上到下、dx从左到右的固定顺序
func (p Position) Moore() []Position {
	res := make([]Position, 0, 8)
	for dy := 1; dy >= -1; dy-- {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			res = append(res, p.Add(dx, dy))
		}
	}
	return res
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Direction 道路方向/移动方向
type Direction int32

const (
	DirectionNone Direction = iota // 开放格点，任意方向都可以转入
	DirectionUp
	DirectionDown
	DirectionRight
	DirectionLeft
)

// MoveDirections 四个单位移动方向
// 说明：顺序与Q-learning动作编号、阻塞位掩码的位序一致
var MoveDirections = [4]Direction{DirectionUp, DirectionDown, DirectionRight, DirectionLeft}

var directionNames = map[Direction]string{
	DirectionNone:  "None",
	DirectionUp:    "Up",
	DirectionDown:  "Down",
	DirectionRight: "Right",
	DirectionLeft:  "Left",
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", int32(d))
}

// MarshalText 以名字形式输出方向（JSON/YAML）
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 从名字解析方向
func (d *Direction) UnmarshalText(text []byte) error {
	v, ok := ParseDirection(string(text))
	if !ok {
		return fmt.Errorf("unknown direction %q", text)
	}
	*d = v
	return nil
}

// ParseDirection 解析方向名（大小写不敏感）
func ParseDirection(s string) (Direction, bool) {
	for d, name := range directionNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return d, true
		}
	}
	return DirectionNone, false
}

// Delta 方向对应的单位位移
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirectionUp:
		return 0, 1
	case DirectionDown:
		return 0, -1
	case DirectionRight:
		return 1, 0
	case DirectionLeft:
		return -1, 0
	}
	return 0, 0
}

// Reverse 反方向，None的反方向仍为None
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	case DirectionRight:
		return DirectionLeft
	case DirectionLeft:
		return DirectionRight
	}
	return DirectionNone
}

// Perpendicular 垂直于该方向的两个方向
// 说明：None没有垂直方向
func (d Direction) Perpendicular() []Direction {
	switch d {
	case DirectionUp, DirectionDown:
		return []Direction{DirectionRight, DirectionLeft}
	case DirectionRight, DirectionLeft:
		return []Direction{DirectionUp, DirectionDown}
	}
	return nil
}

// IsHorizontal 是否为水平方向
func (d Direction) IsHorizontal() bool {
	return d == DirectionRight || d == DirectionLeft
}

// IsVertical 是否为竖直方向
func (d Direction) IsVertical() bool {
	return d == DirectionUp || d == DirectionDown
}

// DirectionOf 从from移动到to所需的方向
// 说明：先判断x再判断y；from==to时返回None
func DirectionOf(from, to Position) Direction {
	dx := to.X - from.X
	dy := to.Y - from.Y
	switch {
	case dx > 0:
		return DirectionRight
	case dx < 0:
		return DirectionLeft
	case dy > 0:
		return DirectionUp
	case dy < 0:
		return DirectionDown
	}
	return DirectionNone
}

// EntityKind 格点占用者的类型标签
type EntityKind int32

const (
	KindRoad EntityKind = iota
	KindObstacle
	KindDestination
	KindTrafficLight
	KindCar
)

func (k EntityKind) String() string {
	switch k {
	case KindRoad:
		return "Road"
	case KindObstacle:
		return "Obstacle"
	case KindDestination:
		return "Destination"
	case KindTrafficLight:
		return "TrafficLight"
	case KindCar:
		return "Car"
	}
	return fmt.Sprintf("EntityKind(%d)", int32(k))
}

// Occupant 格点上的一个占用者：(ID, 类型) 二元组
// 说明：ID只在同一类型内唯一，具体数据通过网络的旁表按ID查找
type Occupant struct {
	ID   int32
	Kind EntityKind
}

// LightState 信号灯状态
type LightState int32

const (
	LightRed LightState = iota
	LightGreen
)

func (s LightState) String() string {
	if s == LightGreen {
		return "Green"
	}
	return "Red"
}

// Flip 红绿切换
func (s LightState) Flip() LightState {
	if s == LightGreen {
		return LightRed
	}
	return LightGreen
}

// Axis 信号灯所控方向的轴（用于将来的协调相位分组）
type Axis int32

const (
	AxisUnknown Axis = iota
	AxisHorizontal
	AxisVertical
)

func (a Axis) String() string {
	switch a {
	case AxisHorizontal:
		return "horizontal"
	case AxisVertical:
		return "vertical"
	}
	return "unknown"
}

// AxisOf 道路方向所在的轴
func AxisOf(d Direction) Axis {
	switch {
	case d.IsHorizontal():
		return AxisHorizontal
	case d.IsVertical():
		return AxisVertical
	}
	return AxisUnknown
}

// Road 道路段：附着在格点上，具有方向
type Road struct {
	ID        int32
	Pos       Position
	Direction Direction
}

// Obstacle 障碍物：阻挡一切通行与搜索
type Obstacle struct {
	ID  int32
	Pos Position
}

// entity/junction/trafficlight的依赖倒置
type ITrafficLight interface {
	ID() int32
	Position() Position
	State() LightState
	IsGreen() bool
	Period() int32
	Axis() Axis
}

// entity/aoi的依赖倒置
type IDestination interface {
	ID() int32
	Position() Position
	Color() string
}

// CarStatus 车辆状态机中的状态
type CarStatus int32

const (
	CarNoPlan CarStatus = iota
	CarPlanning
	CarFollowing
	CarWaiting
	CarReplanning
	CarBlocked
	CarCompleted
)

func (s CarStatus) String() string {
	switch s {
	case CarNoPlan:
		return "NoPlan"
	case CarPlanning:
		return "Planning"
	case CarFollowing:
		return "Following"
	case CarWaiting:
		return "Waiting"
	case CarReplanning:
		return "Replanning"
	case CarBlocked:
		return "Blocked"
	case CarCompleted:
		return "Completed"
	}
	return fmt.Sprintf("CarStatus(%d)", int32(s))
}

// entity/car的依赖倒置：规划式车辆与学习式车辆共同遵守的外部契约
type ICar interface {
	ID() int32
	Position() Position
	Destination() Position
	Direction() Direction
	Status() CarStatus
	Learned() bool // 是否为Q-learning车辆

	String() string
}
