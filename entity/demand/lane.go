package demand

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/randengine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	VehicleList = container.List[*Vehicle]
	VehicleNode = container.ListNode[*Vehicle]
)

// 各车辆类别的生成比例（小汽车、公交车、货车）
var classWeights = []float64{0.85, 0.05, 0.1}

// Lane 信号灯所在的进口道
// 功能：按到达率生成车辆，用IDM模型推进车辆，在信号灯前停车或通过，并向信号灯广播接近记录
// 说明：S为车头到进口道起点的距离，停车线位于信号灯的位置
type Lane struct {
	group    string
	head     *signal.Head
	stopLine float64 // 停车线位置
	length   float64 // 车辆驶过该位置后离开进口道
	maxV     float64

	inflow   float64 // 到达率（辆/秒）
	rng      *randengine.Engine
	nextID   *atomic.Int64
	vehicles VehicleList
	passed   int64 // 已通过停车线的车辆数
}

func newLane(group string, head *signal.Head, stopLine, length, maxV, inflow float64, rng *randengine.Engine, nextID *atomic.Int64) *Lane {
	l := &Lane{
		group:    group,
		head:     head,
		stopLine: stopLine,
		length:   length,
		maxV:     maxV,
		inflow:   inflow,
		rng:      rng,
		nextID:   nextID,
	}
	l.vehicles.ID = group + "/" + head.Name()
	head.SetDetector(l)
	return l
}

// FrontDistance 停车线前最近车辆车头到停车线的距离
func (l *Lane) FrontDistance() (float64, bool) {
	for node := l.vehicles.Last(); node != nil; node = node.Prev() {
		if node.S <= l.stopLine {
			return l.stopLine - node.S, true
		}
	}
	return 0, false
}

// Vehicles 进口道上的车辆（按位置升序）
func (l *Lane) Vehicles() []*Vehicle {
	return l.vehicles.Values()
}

// Passed 已通过停车线的车辆数
func (l *Lane) Passed() int64 {
	return l.passed
}

// Inflow 当前到达率（辆/秒）
func (l *Lane) Inflow() float64 {
	return l.inflow
}

// spawn 按到达率在进口道起点生成车辆
// 说明：起点被占用时本步不生成
func (l *Lane) spawn(dt float64) {
	if l.inflow <= 0 || !l.rng.PTrue(math.Min(1, l.inflow*dt)) {
		return
	}
	if first := l.vehicles.First(); first != nil && first.S-first.Value.Length() < minGap {
		return
	}
	class := vehicle.Class(l.rng.DiscreteDistribution(classWeights))
	v := &Vehicle{
		id:      l.nextID.Add(1),
		class:   class,
		urgency: vehicle.SampleUrgency(l.rng, class),
		length:  class.Length(),
		mass:    class.Mass(),
		maxV:    l.maxV,
		v:       l.maxV,
		// 进入通信范围后立即广播
		sinceBroadcast: signal.BroadcastInterval(),
	}
	if first := l.vehicles.First(); first != nil {
		v.v = math.Min(v.v, first.Value.v)
	}
	l.vehicles.Insert(&VehicleNode{S: 0, Value: v})
	metrics.DemandVehicles.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("group", l.group), attribute.String("class", class.String()),
	))
}

// update 推进一步
// 算法说明：
// 1. 以本步开始时的状态计算所有车辆的加速度：跟随前车，未过停车线且需要停车的车辆在停车线前刹停
// 2. 推进车辆，未过停车线的停车车辆累计延误，驶离进口道的车辆被移除
// 3. 通信范围内未过停车线的车辆每隔广播间隔向信号灯广播接近记录
// 4. 按到达率生成新车辆
func (l *Lane) update(dt float64) {
	status := l.head.Status()
	for node := l.vehicles.Last(); node != nil; node = node.Prev() {
		v := node.Value
		if gap, ok := node.Gap(); ok {
			v.a = v.follow(node.Next().Value.v, gap)
		} else {
			v.a = v.free()
		}
		if distance := l.stopLine - node.S; distance > 0 && v.mustStop(status, distance) {
			v.a = math.Min(v.a, v.stop(distance, dt))
		}
	}
	for node := l.vehicles.Last(); node != nil; {
		prev := node.Prev()
		v := node.Value
		before := node.S <= l.stopLine
		node.S += v.move(dt)
		if before && v.stopped {
			v.delay += dt
		}
		if before && node.S > l.stopLine {
			l.passed++
		}
		if node.S > l.length {
			l.vehicles.Remove(node)
		}
		node = prev
	}
	for _, node := range l.vehicles.PopUnsorted() {
		l.vehicles.Insert(node)
	}
	for node := l.vehicles.First(); node != nil; node = node.Next() {
		distance := l.stopLine - node.S
		if distance < 0 {
			break
		}
		v := node.Value
		v.sinceBroadcast += dt
		if distance <= signal.CommunicationRange() && v.sinceBroadcast >= signal.BroadcastInterval() {
			l.head.AddApproach(v.approach(distance))
			v.sinceBroadcast = 0
		}
	}
	l.spawn(dt)
}
