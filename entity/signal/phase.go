package signal

import "github.com/samber/lo"

// HeadState 相位中单个信号灯的目标灯色与触发条件
type HeadState struct {
	Name      string
	Status    Status
	Condition Condition
}

// Phase 相位定义
// 说明：加载后只读，由控制组与控制策略共享
type Phase struct {
	ID         string
	States     []HeadState
	Min        float64 // 最短绿灯时间（秒）
	Max        float64 // 最长绿灯时间（秒）
	Duration   float64 // 默认时长（秒）
	Intergreen float64 // 绿间隔时间（秒）
	AllRed     float64 // 全红时间（秒）
}

// GreenStates 返回本相位中为绿灯的信号灯状态
func (p *Phase) GreenStates() []HeadState {
	return lo.Filter(p.States, func(s HeadState, _ int) bool {
		return s.Status == StatusGreen
	})
}

// RequestStates 返回本相位中需要车辆请求触发的信号灯状态
func (p *Phase) RequestStates() []HeadState {
	return lo.Filter(p.States, func(s HeadState, _ int) bool {
		return s.Condition == ConditionRequest
	})
}

// Clearance 相位清空所需的时间（绿间隔+全红）
func (p *Phase) Clearance() float64 {
	return p.Intergreen + p.AllRed
}
