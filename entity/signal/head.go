// 信号灯（信号头）及其车辆接近费用模型
package signal

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
)

var (
	staleness         = flag.Float64("signal.staleness", 2.05, "接近记录未刷新超过该时间（秒）即淘汰")
	commRange         = flag.Float64("signal.comm_range", 150, "车辆向信号灯广播的最大通信距离（米）")
	broadcastInterval = flag.Float64("signal.broadcast_interval", 2, "车辆广播间隔（秒）")
)

var (
	ErrPositionAlreadySet = errors.New("signal head position already set")
)

// Staleness 接近记录淘汰阈值（秒）
func Staleness() float64 { return *staleness }

// CommunicationRange 车辆广播的最大距离（米）
func CommunicationRange() float64 { return *commRange }

// BroadcastInterval 车辆广播间隔（秒）
func BroadcastInterval() float64 { return *broadcastInterval }

// Detector 信号灯前方的车辆检测器
type Detector interface {
	// FrontDistance 停车线前最近车辆车头到停车线的距离，无车时ok为false
	FrontDistance() (distance float64, ok bool)
}

// liveApproach 在线的接近记录与其未刷新时长
type liveApproach struct {
	record ApproachRecord
	age    float64
}

// Head 信号灯
// 功能：维护灯色、在线的车辆接近记录以及本相位和累计的费用统计
// 说明：归属于唯一的控制组，只在该控制组的时间步内被修改
type Head struct {
	name    string
	groupID string

	status   Status
	possible map[Status]struct{}

	position    float64
	hasPosition bool
	detector    Detector

	approaches map[int64]*liveApproach
	phase      Costs // 当前相位内的费用
	cumulative Costs // 仿真开始以来的费用
}

// NewHead 创建信号灯，初始灯色为红灯
func NewHead(name, groupID string) *Head {
	return &Head{
		name:       name,
		groupID:    groupID,
		status:     StatusRed,
		possible:   map[Status]struct{}{StatusRed: {}},
		position:   math.NaN(),
		approaches: make(map[int64]*liveApproach),
	}
}

func (h *Head) String() string {
	return fmt.Sprintf("Head{name:%s, group:%s, status:%v}", h.name, h.groupID, h.status)
}

func (h *Head) Name() string {
	return h.name
}

func (h *Head) GroupID() string {
	return h.groupID
}

func (h *Head) Status() Status {
	return h.status
}

// AddPossibleStatus 登记该信号灯可以显示的灯色
func (h *Head) AddPossibleStatus(s Status) {
	h.possible[s] = struct{}{}
}

// CanShow 是否登记过灯色s
func (h *Head) CanShow(s Status) bool {
	_, ok := h.possible[s]
	return ok
}

// PossibleStatuses 已登记的灯色（升序）
func (h *Head) PossibleStatuses() []Status {
	out := lo.Keys(h.possible)
	slices.Sort(out)
	return out
}

// SetStatus 修改灯色，未登记的灯色被拒绝并返回false
func (h *Head) SetStatus(s Status) bool {
	if !h.CanShow(s) {
		log.Warnf("%v: reject unregistered status %v", h, s)
		return false
	}
	h.status = s
	return true
}

// SetPosition 设置信号灯在道路上的位置，只能设置一次
func (h *Head) SetPosition(pos float64) error {
	if h.hasPosition {
		return fmt.Errorf("%w: %s", ErrPositionAlreadySet, h.name)
	}
	h.position = pos
	h.hasPosition = true
	return nil
}

// Position 信号灯位置，未设置时ok为false
func (h *Head) Position() (pos float64, ok bool) {
	return h.position, h.hasPosition
}

// SetDetector 绑定停车线前的检测器
func (h *Head) SetDetector(d Detector) {
	h.detector = d
}

// Detected 停车线前range米内是否有车辆
// 算法说明：优先使用检测器，否则使用在线接近记录中的距离
func (h *Head) Detected(rangeM float64) bool {
	if h.detector != nil {
		d, ok := h.detector.FrontDistance()
		return ok && d < rangeM
	}
	for _, a := range h.approaches {
		if a.record.Distance < rangeM {
			return true
		}
	}
	return false
}

// AddApproach 插入或替换车辆的接近记录并将其未刷新时长清零
// 说明：紧急程度截断到有效范围；记录携带的已发生停车费用立即计入本相位与累计停车费用
func (h *Head) AddApproach(r ApproachRecord) {
	r.Urgency = vehicle.ClampUrgency(r.Urgency)
	h.approaches[r.VehicleID] = &liveApproach{record: r}
	if r.IncurredStoppingCost != 0 {
		h.phase.StoppingCost += r.IncurredStoppingCost
		h.cumulative.StoppingCost += r.IncurredStoppingCost
	}
}

// EvictStale 淘汰长时间未刷新的接近记录
// 功能：所有记录的未刷新时长增加dt，超过阈值的记录结算延误费用后删除
// 参数：dt-时间步长
// 返回：本次淘汰的记录（按车辆ID升序）
// 算法说明：
// 1. 广播时停车的车辆，延误时间为广播时的延误加上未刷新时长
// 2. 行驶中的车辆，延误时间为广播时的延误
// 3. 延误按紧急程度分层计入本相位与累计费用
func (h *Head) EvictStale(dt float64) []CompletedApproach {
	var evicted []CompletedApproach
	for id, a := range h.approaches {
		a.age += dt
		if a.age <= *staleness {
			continue
		}
		delay := a.record.DelayTime
		if a.record.Stopped() {
			delay += a.age
		}
		u := a.record.Urgency // 已在AddApproach中截断
		h.phase.addDelay(u, delay)
		h.cumulative.addDelay(u, delay)
		delete(h.approaches, id)
		evicted = append(evicted, CompletedApproach{
			GroupID:   h.groupID,
			Head:      h.name,
			Record:    a.record,
			Age:       a.age,
			DelayTime: delay,
			DelayCost: DelayCost(delay, u),
		})
	}
	slices.SortFunc(evicted, func(a, b CompletedApproach) int {
		return cmp.Compare(a.Record.VehicleID, b.Record.VehicleID)
	})
	return evicted
}

// Approaches 在线的接近记录（按车辆ID升序）
func (h *Head) Approaches() []ApproachRecord {
	out := lo.MapToSlice(h.approaches, func(_ int64, a *liveApproach) ApproachRecord {
		return a.record
	})
	slices.SortFunc(out, func(a, b ApproachRecord) int {
		return cmp.Compare(a.VehicleID, b.VehicleID)
	})
	return out
}

// NumApproaches 在线接近记录数
func (h *Head) NumApproaches() int {
	return len(h.approaches)
}

// ApproachCost 立即停止放行时所有接近车辆的费用
// 功能：累加每条记录的广播停车费用与k秒后的预计延误费用
func (h *Head) ApproachCost(k float64) float64 {
	return lo.SumBy(lo.Values(h.approaches), func(a *liveApproach) float64 {
		return a.record.StoppingCost + a.record.EstimatedDelayCost(k)
	})
}

// DelayCost 所有接近车辆当前的延误费用之和
func (h *Head) DelayCost() float64 {
	return lo.SumBy(lo.Values(h.approaches), func(a *liveApproach) float64 {
		return a.record.DelayCost()
	})
}

func (h *Head) PhaseCosts() Costs {
	return h.phase
}

func (h *Head) CumulativeCosts() Costs {
	return h.cumulative
}

// ResetPhaseCosts 相位切换时清空本相位费用
func (h *Head) ResetPhaseCosts() {
	h.phase = Costs{}
}
