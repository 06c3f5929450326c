package trafficlight

import "github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"

// vehicleActuated 感应控制
// 功能：当前相位绿灯信号灯前一段时间内没有车辆（车头时距条件）或达到最长绿灯时切换到下一个有请求的相位
type vehicleActuated struct {
	base
	gapTime float64 // 车头时距条件（秒）
	rangeM  float64 // 检测范围（米）
}

func (s *vehicleActuated) Name() string {
	return "Vehicle Actuated"
}

// Update 推进计时器
// 算法说明：
// 1. 当前相位任一绿灯信号灯检测到车辆时车头时距计时器清零
// 2. 尚未确定下一相位时，从当前相位的下一个开始循环查找第一个有请求的相位
func (s *vehicleActuated) Update(dt float64) {
	s.tick(dt)
	if s.greenDetected() {
		s.gapDuration = 0
	}
	if !s.hasNext {
		if index, ok := s.nextRequested(); ok {
			s.arm(index)
		}
	}
}

func (s *vehicleActuated) greenDetected() bool {
	for _, st := range s.phase().GreenStates() {
		if h, ok := s.heads[st.Name]; ok && h.Detected(s.rangeM) {
			return true
		}
	}
	return false
}

// requested 相位是否有请求
// 说明：没有请求条件的相位总是视为有请求
func (s *vehicleActuated) requested(p *signal.Phase) bool {
	states := p.RequestStates()
	if len(states) == 0 {
		return true
	}
	for _, st := range states {
		if h, ok := s.heads[st.Name]; ok && h.Detected(s.rangeM) {
			return true
		}
	}
	return false
}

func (s *vehicleActuated) nextRequested() (int, bool) {
	n := len(s.phases)
	for i := 1; i < n; i++ {
		index := (s.current + i) % n
		if s.requested(s.phases[index]) {
			return index, true
		}
	}
	return 0, false
}

func (s *vehicleActuated) CheckNextPhaseRequest() bool {
	return s.hasNext && s.minimumFulfilled() && (s.gapDuration > s.gapTime || s.maximumFulfilled())
}

func (s *vehicleActuated) AcknowledgeNextPhaseSet(index int) {
	s.acknowledge(index)
}
