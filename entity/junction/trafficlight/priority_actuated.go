package trafficlight

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
)

// priorityActuated 优先级控制
// 功能：比较其他相位的延误费用与立即结束当前相位的费用，前者更高时切换
type priorityActuated struct {
	base
}

func (s *priorityActuated) Name() string {
	return "Priority Actuated"
}

func (s *priorityActuated) Update(dt float64) {
	s.tick(dt)
	if !s.hasNext {
		if index, ok := s.highestPriorityPhase(); ok {
			s.arm(index)
		}
	}
}

// highestPriorityPhase 选出应当切换到的相位
// 算法说明：
// 1. 对当前相位以外的相位，累加其绿灯信号灯的延误费用，费用为正的相位加入优先队列（以负费用排序，费用相同时下标小者优先）
// 2. 取费用最高的相位，与当前相位绿灯信号灯的接近费用比较
// 3. 当前相位的费用严格小于候选相位的费用时返回候选相位
func (s *priorityActuated) highestPriorityPhase() (int, bool) {
	pq := container.NewPriorityQueue[int]()
	for i, p := range s.phases {
		if i == s.current {
			continue
		}
		cost := s.greenCost(p, (*signal.Head).DelayCost)
		if cost > 0 {
			pq.Push(i, -cost)
		}
	}
	if pq.Len() == 0 {
		return 0, false
	}
	pq.Heapify()
	best, negCost := pq.HeapPop()
	stopping := s.greenCost(s.phase(), func(h *signal.Head) float64 {
		return h.ApproachCost(0)
	})
	if stopping < -negCost {
		return best, true
	}
	return 0, false
}

func (s *priorityActuated) CheckNextPhaseRequest() bool {
	return s.hasNext && s.minimumFulfilled()
}

func (s *priorityActuated) AcknowledgeNextPhaseSet(index int) {
	s.acknowledge(index)
}
