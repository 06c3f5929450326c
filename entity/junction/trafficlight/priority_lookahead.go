package trafficlight

import "math"

// priorityLookahead 带前瞻的优先级控制
// 功能：在优先级控制确定切换后，再计算延长当前相位0..L秒的总费用，选取费用最小的延长时间
type priorityLookahead struct {
	priorityActuated
	lookahead float64

	extendedDuration       float64 // 已延长的时间
	targetExtendedDuration float64 // 目标延长时间
}

func (s *priorityLookahead) Name() string {
	return "Priority Lookahead"
}

func (s *priorityLookahead) Update(dt float64) {
	if s.targetExtendedDuration != 0 && s.extendedDuration < s.targetExtendedDuration {
		s.extendedDuration += dt
	}
	s.priorityActuated.Update(dt)
}

// CheckNextPhaseRequest 达到最短绿灯后先确定延长时间，延长结束才请求切换
func (s *priorityLookahead) CheckNextPhaseRequest() bool {
	if !s.hasNext {
		return false
	}
	minimum := s.minimumFulfilled()
	if minimum && s.targetExtendedDuration <= 0 {
		s.targetExtendedDuration = s.bestExtension()
	}
	return minimum && s.extendedDuration >= s.targetExtendedDuration
}

// bestExtension 选取总费用最小的延长时间
// 算法说明：对k=0,1,...,L，累加所有信号灯上k秒内不能通过的车辆的预计延误与停车费用，取第一个最小值
func (s *priorityLookahead) bestExtension() float64 {
	best, bestCost := 0., math.Inf(1)
	for k := 0.; k <= s.lookahead; k++ {
		cost := s.costAt(k)
		if cost < bestCost {
			best, bestCost = k, cost
		}
	}
	log.Debugf("lookahead: extend %v s (cost %.4f)", best, bestCost)
	return best
}

func (s *priorityLookahead) costAt(k float64) float64 {
	sum := 0.
	for _, name := range s.names {
		for _, a := range s.heads[name].Approaches() {
			if a.ClearsWithin(k) {
				continue
			}
			sum += a.EstimatedDelayCost(k) + a.EstimatedStoppingCost(k)
		}
	}
	return sum
}

func (s *priorityLookahead) AcknowledgeNextPhaseSet(index int) {
	s.acknowledge(index)
	s.extendedDuration = 0
	s.targetExtendedDuration = 0
}
