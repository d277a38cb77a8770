package input

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

const (
	obstacleSymbol    = "#"
	destinationSymbol = "D"
	obstacleValue     = "Obstacle"
	destinationValue  = "Destination"
)

// 目的地的装饰性颜色，按出现顺序循环分配
var destinationPalette = []string{"lightgreen", "gold", "orchid", "tomato", "skyblue", "orange"}

// symbolClass 地图符号的类别
type symbolClass int

const (
	symbolEmpty symbolClass = iota
	symbolRoad
	symbolLight
	symbolObstacle
	symbolDestination
)

// symbol 单个地图字符的解析结果
type symbol struct {
	class     symbolClass
	direction entity.Direction // 道路方向
	period    int32            // 信号灯半周期
	initial   entity.LightState
}

// classify 根据符号字典解析一个地图字符
// 功能：将字符归类为道路、信号灯、障碍物、目的地或空格点
// 参数：c-地图字符，dict-符号字典
// 返回：解析结果；字典中给出了无法识别的值时返回错误
// 算法说明：
// 1. 障碍物与目的地：固定符号或字典值为Obstacle/Destination
// 2. 道路：字典值为方向名（None表示开放格点）
// 3. 信号灯：字母符号且字典值为整数步数，小写为初始红灯，大写为初始绿灯
// 4. 其余字符为空格点
func classify(c rune, dict map[string]string) (symbol, error) {
	key := string(c)
	value, ok := dict[key]
	value = strings.TrimSpace(value)
	switch {
	case key == obstacleSymbol || (ok && strings.EqualFold(value, obstacleValue)):
		return symbol{class: symbolObstacle}, nil
	case key == destinationSymbol || (ok && strings.EqualFold(value, destinationValue)):
		return symbol{class: symbolDestination}, nil
	case !ok:
		return symbol{class: symbolEmpty}, nil
	}
	if d, ok := entity.ParseDirection(value); ok {
		return symbol{class: symbolRoad, direction: d}, nil
	}
	if period, err := strconv.Atoi(value); err == nil && unicode.IsLetter(c) {
		if period <= 0 {
			return symbol{}, fmt.Errorf("light symbol %q has non-positive period %d", key, period)
		}
		initial := entity.LightGreen
		if unicode.IsLower(c) {
			initial = entity.LightRed
		}
		return symbol{class: symbolLight, period: int32(period), initial: initial}, nil
	}
	return symbol{}, fmt.Errorf("symbol %q has unrecognized dictionary value %q", key, value)
}

// Parse 将地图文本与符号字典物化为初始放置
// 功能：逐字符解析地图，生成道路、障碍物、信号灯、目的地
// 参数：lines-地图文本（每行一行格点），dict-符号字典
// 返回：地图物化数据；地图为空、行长不一致或字典非法时返回ErrMapLoad
// 说明：第r行映射为y=height-r-1；信号灯下的道路方向取相邻竖直道路，其次相邻水平道路，否则为None；目的地下的道路方向为None
func Parse(lines []string, dict map[string]string) (*entity.MapData, error) {
	rows := lo.Map(lines, func(l string, _ int) []rune {
		return []rune(strings.TrimRight(l, "\r\n"))
	})
	// 去掉末尾空行
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty map", ErrMapLoad)
	}
	width := len(rows[0])
	height := len(rows)
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrMapLoad, r, len(row), width)
		}
	}

	symbols := make([][]symbol, height)
	for r, row := range rows {
		symbols[r] = make([]symbol, width)
		for c, ch := range row {
			s, err := classify(ch, dict)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d col %d: %v", ErrMapLoad, r, c, err)
			}
			symbols[r][c] = s
		}
	}
	roadDirAt := func(r, c int) entity.Direction {
		if r < 0 || r >= height || c < 0 || c >= width || symbols[r][c].class != symbolRoad {
			return entity.DirectionNone
		}
		return symbols[r][c].direction
	}

	m := &entity.MapData{Width: width, Height: height}
	for r := range rows {
		for c := range rows[r] {
			s := symbols[r][c]
			pos := entity.Position{X: c, Y: height - r - 1}
			switch s.class {
			case symbolRoad:
				m.Roads = append(m.Roads, entity.RoadSpec{Pos: pos, Direction: s.direction})
			case symbolObstacle:
				m.Obstacles = append(m.Obstacles, pos)
			case symbolDestination:
				m.Destinations = append(m.Destinations, entity.DestinationSpec{
					Pos:   pos,
					Color: destinationPalette[len(m.Destinations)%len(destinationPalette)],
				})
				m.Roads = append(m.Roads, entity.RoadSpec{Pos: pos, Direction: entity.DirectionNone})
			case symbolLight:
				m.Lights = append(m.Lights, entity.LightSpec{Pos: pos, Initial: s.initial, Period: s.period})
				dir := entity.DirectionNone
				for _, d := range []entity.Direction{roadDirAt(r-1, c), roadDirAt(r+1, c)} {
					if d.IsVertical() && dir == entity.DirectionNone {
						dir = d
					}
				}
				for _, d := range []entity.Direction{roadDirAt(r, c-1), roadDirAt(r, c+1)} {
					if d.IsHorizontal() && dir == entity.DirectionNone {
						dir = d
					}
				}
				m.Roads = append(m.Roads, entity.RoadSpec{Pos: pos, Direction: dir})
			}
		}
	}
	return m, nil
}

// normalizeDictionary 将字典值统一转为字符串
// 说明：JSON/BSON中的信号灯步数为数字，方向为字符串
func normalizeDictionary(raw map[string]interface{}) map[string]string {
	return lo.MapValues(raw, func(v interface{}, _ string) string {
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return fmt.Sprint(x)
		}
	})
}
