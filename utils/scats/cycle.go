package scats

import (
	"maps"
	"slices"
)

// Cycle 一个信号周期的目标配时
type Cycle struct {
	Index           int            // 文件中的周期序号（从0开始）
	Header          string         // 周期首行原文
	Duration        int            // 周期时长（秒），为各相位时长之和
	PhaseDurations  map[string]int // 相位编号->绿灯时长（秒），不含0时长相位
	PhaseOrder      []string       // 相位在文件中出现的顺序
	ApproachInflows map[string]int // 进口道编号->周期内车辆数
	ApproachOrder   []string       // 进口道在文件中出现的顺序
}

func newCycle(index int, header string) *Cycle {
	return &Cycle{
		Index:           index,
		Header:          header,
		PhaseDurations:  make(map[string]int),
		ApproachInflows: make(map[string]int),
	}
}

// setPhase 记录相位时长，同一相位重复出现时以最后一次为准
func (c *Cycle) setPhase(phase string, green int) {
	if old, ok := c.PhaseDurations[phase]; ok {
		c.Duration -= old
	} else {
		c.PhaseOrder = append(c.PhaseOrder, phase)
	}
	c.PhaseDurations[phase] = green
	c.Duration += green
}

// addApproach 累加进口道车辆数
func (c *Cycle) addApproach(approach string, count int) {
	if _, ok := c.ApproachInflows[approach]; !ok {
		c.ApproachOrder = append(c.ApproachOrder, approach)
	}
	c.ApproachInflows[approach] += count
}

// Inflow 进口道的到达率（辆/秒），周期时长为0时返回0
func (c *Cycle) Inflow(approach string) float64 {
	if c.Duration <= 0 {
		return 0
	}
	return float64(c.ApproachInflows[approach]) / float64(c.Duration)
}

// Vehicles 周期内所有进口道的车辆总数
func (c *Cycle) Vehicles() int {
	n := 0
	for _, v := range c.ApproachInflows {
		n += v
	}
	return n
}

// Clone 深拷贝
func (c *Cycle) Clone() *Cycle {
	return &Cycle{
		Index:           c.Index,
		Header:          c.Header,
		Duration:        c.Duration,
		PhaseDurations:  maps.Clone(c.PhaseDurations),
		PhaseOrder:      slices.Clone(c.PhaseOrder),
		ApproachInflows: maps.Clone(c.ApproachInflows),
		ApproachOrder:   slices.Clone(c.ApproachOrder),
	}
}
