package trafficlight

import (
	"context"

	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

// scatsData 按实测周期数据重放配时
// 功能：每个周期从数据源取出各相位的绿灯时长，按相位顺序依次执行
type scatsData struct {
	base
	source CycleSource

	started       bool
	pending       map[string]float64 // 本周期尚未执行的相位ID->目标时长
	last          *scats.Cycle       // 最近一次成功读取的周期
	target        float64            // 当前（或即将切换到的）相位的目标时长
	cycleDuration float64            // 本周期已持续时间
	newCycle      bool               // 下一次相位切换时开始新周期
}

func newSCATSData(b base, source CycleSource) *scatsData {
	return &scatsData{base: b, source: source}
}

func (s *scatsData) Name() string {
	return "SCATS Data Strategy"
}

// pull 取出下一个周期的目标时长
// 算法说明：
// 1. 数据源返回的周期中有本控制组的相位时使用该周期，否则忽略该周期
// 2. 没有新周期时重复最近一次使用的周期
// 3. 从未读取到可用周期时使用各相位的默认时长
// 说明：周期中本控制组没有配置的相位不进入待执行集合
func (s *scatsData) pull() {
	if s.source != nil {
		if c, ok := s.source.Next(context.Background()); ok {
			if len(s.targets(c)) > 0 {
				s.last = c
			} else {
				log.Warnf("scats: cycle %d has no configured phase, ignored", c.Index)
			}
		} else if s.last != nil {
			log.Debugf("scats: no new cycle, repeat cycle %d", s.last.Index)
		}
	}
	if s.last != nil {
		s.pending = s.targets(s.last)
		return
	}
	s.pending = make(map[string]float64)
	for _, p := range s.phases {
		if p.Duration > 0 {
			s.pending[p.ID] = p.Duration
		}
	}
}

// targets 周期中本控制组各相位的目标时长
func (s *scatsData) targets(c *scats.Cycle) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range s.phases {
		if d, ok := c.PhaseDurations[p.ID]; ok {
			out[p.ID] = float64(d)
		}
	}
	return out
}

// take 取出相位的目标时长，不存在时ok为false
func (s *scatsData) take(id string) (float64, bool) {
	d, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return d, ok
}

func (s *scatsData) start() {
	s.started = true
	s.pull()
	if d, ok := s.take(s.phase().ID); ok {
		s.target = d
	} else {
		s.target = s.phase().Duration
	}
}

func (s *scatsData) Update(dt float64) {
	if !s.started {
		s.start()
	}
	s.tick(dt)
	s.cycleDuration += dt
	if !s.hasNext {
		s.determineNext()
	}
}

// determineNext 当前相位剩余时间不足以完成清空时确定下一相位
// 算法说明：
// 1. 本周期的相位已全部执行时取出新周期
// 2. 从当前相位的下一个开始循环查找本周期中尚未执行的相位
// 3. 找不到时当前相位继续执行，相位计时器清零并使用本周期中当前相位的时长（没有则保持原目标）
func (s *scatsData) determineNext() {
	p := s.phase()
	if s.phaseDuration+p.Clearance() < s.target {
		return
	}
	if len(s.pending) == 0 {
		s.pull()
		s.newCycle = true
	}
	n := len(s.phases)
	for i := 1; i < n; i++ {
		index := (s.current + i) % n
		if d, ok := s.take(s.phases[index].ID); ok {
			s.arm(index)
			s.target = d
			return
		}
	}
	s.phaseDuration = 0
	if s.newCycle {
		s.cycleDuration = 0
		s.newCycle = false
	}
	if d, ok := s.take(p.ID); ok {
		s.target = d
	}
}

func (s *scatsData) CheckNextPhaseRequest() bool {
	return s.hasNext && s.minimumFulfilled()
}

// AcknowledgeNextPhaseSet 相位切换完成
// 说明：切换到的相位不是本策略选定的相位时（如外部请求），目标时长取本周期中该相位的时长或默认时长
func (s *scatsData) AcknowledgeNextPhaseSet(index int) {
	armed, ok := s.next, s.hasNext
	s.acknowledge(index)
	if !ok || armed != index {
		if d, found := s.take(s.phase().ID); found {
			s.target = d
		} else {
			s.target = s.phase().Duration
		}
	}
	if s.newCycle {
		s.cycleDuration = 0
		s.newCycle = false
	}
}
