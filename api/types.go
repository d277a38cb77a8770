package api

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
)

// InitRequest POST /init的请求体
type InitRequest struct {
	NAgents *int `json:"NAgents"`
}

// Message 只包含提示信息的响应
type Message struct {
	Message string `json:"message"`
}

// InitResponse POST /init的响应
type InitResponse struct {
	Message string `json:"message"`
	RunID   string `json:"runId"`
}

// UpdateResponse GET /update的响应
type UpdateResponse struct {
	Message     string `json:"message"`
	CurrentStep int32  `json:"currentStep"`
}

// AgentPosition 车辆
type AgentPosition struct {
	ID        string           `json:"id"`
	X         int              `json:"x"`
	Y         int              `json:"y"`
	Direction entity.Direction `json:"direction"`
}

// LightPosition 信号灯，state为true表示绿灯
type LightPosition struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	State bool   `json:"state"`
}

// ObstaclePosition 障碍物
type ObstaclePosition struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

// DestinationPosition 目的地
type DestinationPosition struct {
	ID    string `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// RoadPosition 道路格点及其允许的行驶方向
type RoadPosition struct {
	ID        string           `json:"id"`
	X         int              `json:"x"`
	Y         int              `json:"y"`
	Direction entity.Direction `json:"direction"`
}

// CellOccupant 格点上的一个占用者
type CellOccupant struct {
	ID   int32  `json:"id"`
	Kind string `json:"kind"`
}

// CellResponse GET /getCell的响应
type CellResponse struct {
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Occupants []CellOccupant `json:"occupants"`
}

// Positions 列表响应的统一外层
type Positions[T any] struct {
	Positions []T `json:"positions"`
}

// Frame websocket推送的一帧
type Frame struct {
	RunID       string          `json:"runId"`
	CurrentStep int32           `json:"currentStep"`
	Positions   []AgentPosition `json:"positions"`
}

// StatsResponse GET /getStats的响应
type StatsResponse struct {
	RunID       string  `json:"runId"`
	Step        int32   `json:"step"`
	Live        int     `json:"live"`
	Pending     int     `json:"pending"`
	Spawned     int32   `json:"spawned"`
	Completed   int32   `json:"completed"`
	AverageTrip float64 `json:"averageTrip"`
	Halted      bool    `json:"halted"`
}

func agentPositions(cars []entity.ICar) []AgentPosition {
	return lo.Map(cars, func(c entity.ICar, _ int) AgentPosition {
		p := c.Position()
		return AgentPosition{ID: fmt.Sprintf("car_%d", c.ID()), X: p.X, Y: p.Y, Direction: c.Direction()}
	})
}

func lightPositions(lights []entity.ITrafficLight) []LightPosition {
	return lo.Map(lights, func(l entity.ITrafficLight, _ int) LightPosition {
		p := l.Position()
		return LightPosition{ID: fmt.Sprintf("tl_%d", l.ID()), X: p.X, Y: p.Y, State: l.IsGreen()}
	})
}

func obstaclePositions(obstacles []entity.Obstacle) []ObstaclePosition {
	return lo.Map(obstacles, func(o entity.Obstacle, _ int) ObstaclePosition {
		return ObstaclePosition{ID: fmt.Sprintf("ob_%d", o.ID), X: o.Pos.X, Y: o.Pos.Y}
	})
}

func destinationPositions(destinations []entity.IDestination) []DestinationPosition {
	return lo.Map(destinations, func(d entity.IDestination, _ int) DestinationPosition {
		p := d.Position()
		return DestinationPosition{ID: fmt.Sprintf("dest_%d", d.ID()), X: p.X, Y: p.Y, Color: d.Color()}
	})
}

func roadPositions(roads []entity.Road) []RoadPosition {
	return lo.Map(roads, func(r entity.Road, _ int) RoadPosition {
		return RoadPosition{ID: fmt.Sprintf("road_%d", r.ID), X: r.Pos.X, Y: r.Pos.Y, Direction: r.Direction}
	})
}

func cellOccupants(occupants []entity.Occupant) []CellOccupant {
	return lo.Map(occupants, func(o entity.Occupant, _ int) CellOccupant {
		return CellOccupant{ID: o.ID, Kind: o.Kind.String()}
	})
}
