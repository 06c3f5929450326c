package demand

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
)

const (
	idmTheta        = 4    // IDM模型参数（智能驾驶模型参数）
	maxA            = 2.0  // 最大加速度
	usualBrakingA   = -4.5 // 常用制动加速度
	maxBrakingA     = -9.0 // 最大制动加速度
	minGap          = 2.0  // 最小车距
	headway         = 1.5  // 安全车头时距
	comfortBrakingA = -4.0 // 黄灯时仍然停车的最大制动加速度
)

// Vehicle 进口道上的车辆
type Vehicle struct {
	id      int64
	class   vehicle.Class
	urgency int32
	length  float64
	mass    float64
	maxV    float64

	v float64 // 速度
	a float64 // 加速度

	delay          float64 // 在停车线前停车等待的累计时间
	sinceBroadcast float64 // 距上次广播的时间
	peakV          float64 // 上次停车以来的最高速度
	incurred       float64 // 上次广播以来发生的停车费用
	stopped        bool
}

func (v *Vehicle) V() float64 {
	return v.v
}

func (v *Vehicle) Length() float64 {
	return v.length
}

func (v *Vehicle) ID() int64 {
	return v.id
}

func (v *Vehicle) Urgency() int32 {
	return v.urgency
}

// Delay 在停车线前停车等待的累计时间
func (v *Vehicle) Delay() float64 {
	return v.delay
}

// followImpl 跟车模型核心实现
// 功能：实现智能驾驶模型(IDM)的跟车逻辑
// 参数：aheadV-前车速度，distance-车距，headway-安全车头时距
// 返回：计算得到的加速度（米/秒²）
// 算法说明：
// 1. 期望车距：s_star = minGap + max(0, v*headway + v*(v-v_ahead)/(2*sqrt(a*b)))
// 2. 加速度：a = maxA * (1 - (v/targetV)^4 - (s_star/distance)^2)
func (v *Vehicle) followImpl(aheadV, distance, headway float64) float64 {
	if distance <= 0 {
		return maxBrakingA
	}
	sStar := minGap + math.Max(0, v.v*headway+v.v*(v.v-aheadV)/2/math.Sqrt(-usualBrakingA*maxA))
	acc := maxA * (1 - math.Pow(v.v/v.maxV, idmTheta) - math.Pow(sStar/distance, 2))
	return lo.Clamp(acc, maxBrakingA, maxA)
}

// free 前方没有约束时的加速度
func (v *Vehicle) free() float64 {
	return v.followImpl(v.v, mathutil.INF, headway)
}

// follow 跟随前车
func (v *Vehicle) follow(aheadV, gap float64) float64 {
	return v.followImpl(aheadV, gap, headway)
}

// stop 在distance米内刹停
// 说明：停车不考虑跟车的安全车头时距，以时间步长作为预判时间
func (v *Vehicle) stop(distance, dt float64) float64 {
	return v.followImpl(0, distance, dt)
}

// mustStop 是否需要在信号灯前停车
// 算法说明：
// 1. 绿灯通过
// 2. 黄灯时，以舒适减速度来不及刹停的车辆继续通过
// 3. 红灯时，以最大减速度也来不及刹停的车辆继续通过
func (v *Vehicle) mustStop(status signal.Status, distance float64) bool {
	switch status {
	case signal.StatusGreen:
		return false
	case signal.StatusAmber:
		return v.v*v.v/(2*-comfortBrakingA) < distance
	default:
		return v.v*v.v/(2*-maxBrakingA) < distance
	}
}

// move 按加速度推进一步，返回行驶距离
// 说明：速度不小于0，停车时记录停车费用
func (v *Vehicle) move(dt float64) float64 {
	v0 := v.v
	v.v = math.Max(0, v0+v.a*dt)
	ds := (v0 + v.v) / 2 * dt
	v.peakV = math.Max(v.peakV, v.v)
	stopped := v.v <= signal.StoppedSpeed
	if stopped && !v.stopped {
		v.incurred += vehicle.StopCost(v.mass, v.peakV, v.class)
		v.peakV = 0
	}
	v.stopped = stopped
	return ds
}

// approach 生成接近记录
// 说明：已发生的停车费用只随一次广播上报
func (v *Vehicle) approach(distance float64) signal.ApproachRecord {
	r := signal.ApproachRecord{
		VehicleID:            v.id,
		Urgency:              v.urgency,
		Mass:                 v.mass,
		Acceleration:         v.a,
		Speed:                v.v,
		DelayTime:            v.delay,
		StoppingCost:         vehicle.StopCost(v.mass, v.v, v.class),
		IncurredStoppingCost: v.incurred,
		Passengers:           v.class.Passengers(),
		Distance:             distance,
		Class:                v.class,
	}
	v.incurred = 0
	return r
}
