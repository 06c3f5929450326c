// 信号控制策略
// 所有策略实现同一接口，由控制组在构造时根据配置选定，运行期间不再更换
package trafficlight

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

const (
	KeyVehicleActuated   = "VehicleActuated"
	KeyPriorityActuated  = "PriorityActuated"
	KeyPriorityLookahead = "PriorityLookahead"
	KeySCATSData         = "SCATSData"
)

var (
	defaultLookahead = flag.Float64("tl.lookahead", 10, "优先级前瞻策略的最大前瞻时间（秒）")
)

var (
	ErrUnknownStrategy = errors.New("unknown control strategy")
)

// Strategy 控制策略接口
type Strategy interface {
	Name() string
	// Update 推进策略内部计时器，观察检测与费用状态，必要时确定下一相位
	Update(dt float64)
	// CheckNextPhaseRequest 最短绿灯与策略自身的切换条件都满足时返回true
	CheckNextPhaseRequest() bool
	// NextPhaseIndex 下一相位，未确定时ok为false
	NextPhaseIndex() (index int, ok bool)
	// AcknowledgeNextPhaseSet 控制组完成相位切换后通知策略
	AcknowledgeNextPhaseSet(index int)
}

// CycleSource 周期目标配时的来源
type CycleSource interface {
	Next(ctx context.Context) (*scats.Cycle, bool)
}

// Params 策略参数
type Params struct {
	Type      string
	Gap       float64     // 车头时距条件（秒）
	Range     float64     // 检测范围（米）
	Lookahead float64     // 前瞻时间（秒），不大于0时使用tl.lookahead
	Source    CycleSource // SCATSData策略的周期来源，可以为nil
}

// New 根据参数创建策略
// 参数：p-策略参数，phases-相位列表，heads-信号灯名->信号灯
// 返回：策略实例；类型未知或相位为空时返回错误
func New(p Params, phases []*signal.Phase, heads map[string]*signal.Head) (Strategy, error) {
	if len(phases) == 0 {
		return nil, errors.New("strategy requires at least one phase")
	}
	b := newBase(phases, heads)
	switch p.Type {
	case KeyVehicleActuated:
		return &vehicleActuated{base: b, gapTime: p.Gap, rangeM: p.Range}, nil
	case KeyPriorityActuated:
		return &priorityActuated{base: b}, nil
	case KeyPriorityLookahead:
		lookahead := p.Lookahead
		if lookahead <= 0 {
			lookahead = *defaultLookahead
		}
		return &priorityLookahead{priorityActuated: priorityActuated{base: b}, lookahead: lookahead}, nil
	case KeySCATSData:
		return newSCATSData(b, p.Source), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, p.Type)
}

// base 各策略共用的相位计时器
type base struct {
	phases []*signal.Phase
	heads  map[string]*signal.Head
	names  []string // 信号灯名（升序）

	current int
	next    int
	hasNext bool

	phaseDuration float64 // 当前相位已持续时间
	gapDuration   float64 // 距最近一次检测到车辆的时间
	maxDuration   float64 // 确定下一相位后经过的时间
}

func newBase(phases []*signal.Phase, heads map[string]*signal.Head) base {
	names := lo.Keys(heads)
	slices.Sort(names)
	return base{phases: phases, heads: heads, names: names}
}

func (b *base) tick(dt float64) {
	b.phaseDuration += dt
	b.gapDuration += dt
	if b.hasNext {
		b.maxDuration += dt
	}
}

func (b *base) phase() *signal.Phase {
	return b.phases[b.current]
}

func (b *base) arm(index int) {
	b.next = index
	b.hasNext = true
}

func (b *base) minimumFulfilled() bool {
	return b.phaseDuration > b.phase().Min
}

func (b *base) maximumFulfilled() bool {
	p := b.phase()
	return b.maxDuration+p.Clearance() > p.Max
}

func (b *base) NextPhaseIndex() (int, bool) {
	return b.next, b.hasNext
}

func (b *base) acknowledge(index int) {
	b.current = index
	b.hasNext = false
	b.phaseDuration = 0
	b.gapDuration = 0
	b.maxDuration = 0
}

// greenCost 相位中绿灯信号灯的费用之和
func (b *base) greenCost(p *signal.Phase, cost func(*signal.Head) float64) float64 {
	sum := 0.
	for _, s := range p.GreenStates() {
		if h, ok := b.heads[s.Name]; ok {
			sum += cost(h)
		}
	}
	return sum
}
