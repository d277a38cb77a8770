package entity

// 地图物化数据：地图解析器（utils/input）的输出，也是各管理器初始化的输入

// RoadSpec 道路格点
type RoadSpec struct {
	Pos       Position  `yaml:"pos"`
	Direction Direction `yaml:"direction"`
}

// LightSpec 信号灯格点（其下必有道路格点）
type LightSpec struct {
	Pos     Position   `yaml:"pos"`
	Initial LightState `yaml:"initial"`
	Period  int32      `yaml:"period"` // 每个半周期的步数
}

// DestinationSpec 目的地格点
type DestinationSpec struct {
	Pos   Position `yaml:"pos"`
	Color string   `yaml:"color,omitempty"`
}

// MapData 一张地图的全部初始放置
type MapData struct {
	Width        int
	Height       int
	Roads        []RoadSpec
	Obstacles    []Position
	Lights       []LightSpec
	Destinations []DestinationSpec
}
