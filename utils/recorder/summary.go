package recorder

import (
	"sync"

	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
)

// UrgencySummary 同一紧急程度的车辆延误汇总
type UrgencySummary struct {
	Urgency       int32   `bson:"urgency"`
	Vehicles      int64   `bson:"vehicles"`
	MeanDelayTime float64 `bson:"mean_delay_time"`
	MeanDelayCost float64 `bson:"mean_delay_cost"`
}

// tally 按紧急程度累计被淘汰的接近记录
type tally struct {
	mu        sync.Mutex
	vehicles  [vehicle.MaxUrgency]int64
	delayTime [vehicle.MaxUrgency]float64
	delayCost [vehicle.MaxUrgency]float64
}

func (t *tally) add(a signal.CompletedApproach) {
	i := vehicle.ClampUrgency(a.Record.Urgency) - 1
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vehicles[i]++
	t.delayTime[i] += a.DelayTime
	t.delayCost[i] += a.DelayCost
}

// summaries 有车辆的紧急程度的汇总（按紧急程度升序）
func (t *tally) summaries() []UrgencySummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []UrgencySummary
	for i, n := range t.vehicles {
		if n == 0 {
			continue
		}
		out = append(out, UrgencySummary{
			Urgency:       int32(i + 1),
			Vehicles:      n,
			MeanDelayTime: t.delayTime[i] / float64(n),
			MeanDelayCost: t.delayCost[i] / float64(n),
		})
	}
	return out
}

// meanDelays 各紧急程度的平均延误时间，无车辆的紧急程度为0
func meanDelays(c signal.Costs) []float64 {
	out := make([]float64, vehicle.MaxUrgency)
	for i := range out {
		out[i], _ = c.MeanDelayTime(int32(i + 1))
	}
	return out
}
