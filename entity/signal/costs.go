package signal

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
)

// Costs 费用累加器，按紧急程度分层统计延误
type Costs struct {
	StoppingCost float64
	DelayCost    float64
	DelayTime    [vehicle.MaxUrgency]float64 // 下标u-1对应紧急程度u
	Vehicles     [vehicle.MaxUrgency]int32
}

// Total 停车费用+延误费用
func (c *Costs) Total() float64 {
	return c.StoppingCost + c.DelayCost
}

// addDelay 结算一辆车的延误
func (c *Costs) addDelay(urgency int32, delayTime float64) {
	u := vehicle.ClampUrgency(urgency)
	c.DelayTime[u-1] += delayTime
	c.Vehicles[u-1]++
	c.DelayCost += DelayCost(delayTime, u)
}

// Add 合并另一个累加器
func (c *Costs) Add(o Costs) {
	c.StoppingCost += o.StoppingCost
	c.DelayCost += o.DelayCost
	for i := range c.DelayTime {
		c.DelayTime[i] += o.DelayTime[i]
		c.Vehicles[i] += o.Vehicles[i]
	}
}

// UrgencyDelayCost 由分层延误时间重新计算的延误费用，应与DelayCost一致
func (c *Costs) UrgencyDelayCost() float64 {
	sum := 0.
	for i, t := range c.DelayTime {
		sum += DelayCost(t, int32(i+1))
	}
	return sum
}

// MeanDelayTime 紧急程度u的平均延误时间，无车辆时ok为false
func (c *Costs) MeanDelayTime(u int32) (mean float64, ok bool) {
	u = vehicle.ClampUrgency(u)
	if c.Vehicles[u-1] == 0 {
		return 0, false
	}
	return c.DelayTime[u-1] / float64(c.Vehicles[u-1]), true
}
