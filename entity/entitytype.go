package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
)

// HeadSnapshot 信号灯在某一时刻的状态与本相位费用
type HeadSnapshot struct {
	Name       string
	Status     signal.Status
	Approaches int          // 在线接近记录数
	PhaseCosts signal.Costs // 本相位内的费用
}

// PhaseBoundary 一次相位切换的记录
// 说明：Heads中的费用为刚结束的相位内的费用
type PhaseBoundary struct {
	SimTime    float64
	Iteration  int32
	GroupID    string
	Strategy   string
	PhaseCount int64   // 已完成的相位切换次数（含本次）
	From       string  // 结束的相位ID
	To         string  // 开始的相位ID
	Duration   float64 // 结束的相位的持续时间（含清空时间）
	Heads      []HeadSnapshot
}

// GroupStatus 控制组状态面板
type GroupStatus struct {
	ID             int32
	GroupID        string
	Strategy       string
	Enabled        bool
	MinDuration    float64 // 当前相位最短绿灯时间
	PhaseElapsed   float64 // 当前相位已持续时间
	CurrentPhase   int
	NextPhase      int // HasNextPhase为false时无意义
	HasNextPhase   bool
	InIntergreen   bool
	InAllRed       bool
	PhaseCount     int64
	Approaches     int
	DelayCost      float64      // 本相位延误费用
	StoppingCost   float64      // 本相位停车费用
	TotalCost      float64      // 本相位总费用
	Cumulative     signal.Costs // 仿真开始以来的费用（含按紧急程度的分层）
	CumulativeCost float64
}

// entity/junction/junction.go的依赖倒置
type IJunction interface {
	ID() int32
	Name() string
	Heads() []*signal.Head                 // 所有信号灯（按名称升序）
	Head(name string) (*signal.Head, bool) // 按名称查找信号灯
	Enabled() bool                         // 信控是否工作
	Status() GroupStatus
}
