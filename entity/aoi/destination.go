package aoi

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

// Destination 目的地
// 功能：车辆的终点格点，带有装饰性的颜色标签
// 说明：车辆只保存目的地坐标，不持有目的地实体本身
type Destination struct {
	id    int32
	pos   entity.Position
	color string
}

func (d *Destination) ID() int32 {
	return d.id
}

func (d *Destination) Position() entity.Position {
	return d.pos
}

func (d *Destination) Color() string {
	return d.color
}

func (d *Destination) String() string {
	return fmt.Sprintf("Destination{id=%d pos=%v}", d.id, d.pos)
}
