package signal

import (
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
)

const (
	// 速度不超过该值视为停车（m/s）
	StoppedSpeed = 0.005
	// 单位延误费用系数（元/秒/紧急程度）
	DelayCostRate = 0.007
)

// DelayCost 延误费用 = 0.007 * 延误时间 * 紧急程度
func DelayCost(delayTime float64, urgency int32) float64 {
	return DelayCostRate * delayTime * float64(urgency)
}

// ApproachRecord 车辆接近信号灯时广播的快照
// 说明：创建后不可修改，同一车辆的新广播整体替换旧记录
type ApproachRecord struct {
	VehicleID            int64
	Urgency              int32         // 紧急程度[1,5]
	Mass                 float64       // 质量（kg）
	Acceleration         float64       // 加速度（m/s^2）
	Speed                float64       // 速度（m/s）
	DelayTime            float64       // 截至广播时的累计延误（秒）
	StoppingCost         float64       // 广播时刻立即停车的费用
	IncurredStoppingCost float64       // 广播前已经发生的停车费用
	Passengers           int32         // 载客数
	Distance             float64       // 距停车线距离（m）
	Class                vehicle.Class // 车辆类别
}

// Stopped 广播时车辆是否处于停车状态
func (r *ApproachRecord) Stopped() bool {
	return r.Speed <= StoppedSpeed
}

// DelayCost 广播时刻的延误费用
func (r *ApproachRecord) DelayCost() float64 {
	return DelayCost(r.DelayTime, r.Urgency)
}

// EstimatedClearTime 以当前速度估计通过停车线所需时间，停车车辆返回+Inf
func (r *ApproachRecord) EstimatedClearTime() float64 {
	if r.Stopped() {
		return math.Inf(1)
	}
	return r.Distance / r.Speed
}

// ClearsWithin 车辆能否在k秒内通过停车线
func (r *ApproachRecord) ClearsWithin(k float64) bool {
	return r.EstimatedClearTime() <= k
}

// EstimatedStoppingCost 估计k秒后让车辆停下的费用
// 算法说明：按当前加速度外推速度 v = v0 + a*k（不小于0），再按车辆类别定价
func (r *ApproachRecord) EstimatedStoppingCost(k float64) float64 {
	v := math.Max(0, r.Speed+r.Acceleration*k)
	return vehicle.StopCost(r.Mass, v, r.Class)
}

// EstimatedDelayCost 估计k秒后的累计延误费用，仅对停车车辆有效
func (r *ApproachRecord) EstimatedDelayCost(k float64) float64 {
	if !r.Stopped() {
		return 0
	}
	return DelayCost(r.DelayTime+k, r.Urgency)
}

// CompletedApproach 被淘汰的接近记录及其结算结果
type CompletedApproach struct {
	GroupID   string
	Head      string
	Record    ApproachRecord
	Age       float64 // 最后一次广播到淘汰经过的时间
	DelayTime float64 // 结算时的延误时间
	DelayCost float64 // 结算时的延误费用
}
