package junction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrDisabledTrafficLight = errors.New("traffic light is disabled for the junction")
	ErrInvalidPhase         = errors.New("phase index out of range")
)

// snapshot prepare阶段保存的状态，供RPC读取
type snapshot struct {
	current   int
	remaining float64
	enabled   bool
}

// Junction 信号控制组（相位状态机）
// 功能：持有相位列表与信号灯，每步询问控制策略是否切换，驱动绿间隔-全红-新相位的清空过程
// 说明：状态机只在所属控制组的更新中被修改，控制组之间不共享信号灯
type Junction struct {
	ctx entity.ITaskContext

	id       int32
	name     string
	phases   []*signal.Phase
	heads    map[string]*signal.Head
	headList []*signal.Head // 按名称升序
	strategy trafficlight.Strategy
	program  *mapv2.TrafficLight // RPC使用的相位程序视图

	current           int
	pending           bool // 是否正在进行相位切换
	target            int
	hasTarget         bool
	inIntergreen      bool
	inAllRed          bool
	phaseElapsed      float64
	intergreenElapsed float64
	allRedElapsed     float64
	phaseCount        int64
	enabled           bool

	mtx         sync.Mutex // 保护以下buffer与snapshot
	okBuffer    *bool      // 交互式接口写入的开关状态
	phaseBuffer *int       // 交互式接口请求的相位
	snapshot    snapshot
}

// newJunction 创建控制组
// 功能：为每个信号灯名创建一个信号灯并登记可显示的灯色，根据配置选定控制策略，进入第一个相位
// 参数：ctx-任务上下文，id-RPC使用的路口ID，g-控制组定义，source-SCATSData策略的周期来源（可以为nil）
// 返回：控制组；配置错误时返回错误
// 算法说明：
// 1. 信号灯总是可以显示红灯，另外登记所有相位中出现的灯色
// 2. 绿间隔时间大于0的相位中的绿灯信号灯需要显示黄灯
func newJunction(ctx entity.ITaskContext, id int32, g *input.Group, source trafficlight.CycleSource) (*Junction, error) {
	if len(g.Phases) == 0 {
		return nil, fmt.Errorf("group %s: %w", g.ID, input.ErrNoPhases)
	}
	j := &Junction{
		ctx:     ctx,
		id:      id,
		name:    g.ID,
		phases:  g.Phases,
		heads:   make(map[string]*signal.Head, len(g.Heads)),
		enabled: true,
	}
	for _, hd := range g.Heads {
		h := signal.NewHead(hd.Name, g.ID)
		if err := h.SetPosition(hd.Position); err != nil {
			return nil, err
		}
		j.heads[hd.Name] = h
	}
	for _, p := range g.Phases {
		for _, s := range p.States {
			h, ok := j.heads[s.Name]
			if !ok {
				return nil, fmt.Errorf("group %s phase %s head %s: %w", g.ID, p.ID, s.Name, input.ErrUnknownHead)
			}
			h.AddPossibleStatus(s.Status)
			if s.Status == signal.StatusGreen && p.Intergreen > 0 {
				h.AddPossibleStatus(signal.StatusAmber)
			}
		}
	}
	j.headList = lo.Values(j.heads)
	slices.SortFunc(j.headList, func(a, b *signal.Head) int {
		return strings.Compare(a.Name(), b.Name())
	})

	strategy, err := trafficlight.New(trafficlight.Params{
		Type:      g.Strategy.Type,
		Gap:       g.Strategy.Gap,
		Range:     g.Strategy.Range,
		Lookahead: g.Strategy.Lookahead,
		Source:    source,
	}, j.phases, j.heads)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.ID, err)
	}
	j.strategy = strategy
	j.program = j.buildProgram()
	j.applyPhase()
	j.snapshot = snapshot{current: j.current, remaining: j.remaining(), enabled: j.enabled}
	log.Infof("group %s: %d phases, %d heads, strategy %s", j.name, len(j.phases), len(j.heads), strategy.Name())
	return j, nil
}

// buildProgram 把相位转换为地图协议中的信号灯程序，每个相位的灯色按信号灯名升序排列
func (j *Junction) buildProgram() *mapv2.TrafficLight {
	tl := &mapv2.TrafficLight{JunctionId: j.id}
	for _, p := range j.phases {
		states := lo.SliceToMap(p.States, func(s signal.HeadState) (string, signal.Status) {
			return s.Name, s.Status
		})
		tl.Phases = append(tl.Phases, &mapv2.Phase{
			Duration: p.Duration,
			States: lo.Map(j.headList, func(h *signal.Head, _ int) mapv2.LightState {
				return states[h.Name()].LightState()
			}),
		})
	}
	return tl
}

// prepare 准备阶段
// 功能：应用交互式接口写入的开关状态与相位请求，保存供RPC读取的状态
func (j *Junction) prepare() {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	if j.okBuffer != nil {
		j.applyEnabled(*j.okBuffer)
		j.okBuffer = nil
	}
	if j.phaseBuffer != nil {
		if j.enabled {
			j.pending = true
			j.target, j.hasTarget = *j.phaseBuffer, true
			log.Infof("group %s: phase %s requested", j.name, j.phases[j.target].ID)
		}
		j.phaseBuffer = nil
	}
	j.snapshot = snapshot{current: j.current, remaining: j.remaining(), enabled: j.enabled}
}

// update 更新阶段
func (j *Junction) update(dt float64) {
	clk := j.ctx.Clock()
	j.Tick(dt, clk.T, clk.Iteration())
}

// Tick 推进一步
// 功能：推进计时器，询问控制策略，驱动相位切换，淘汰过期的接近记录并输出状态
// 参数：dt-时间步长，simTime-当前仿真时间，iteration-当前步数
// 算法说明：
// 1. 推进相位、绿间隔、全红计时器
// 2. 调用控制策略的Update
// 3. 没有进行中的切换时询问策略，策略请求切换则锁定切换（目标相位无效时切换到下一个相位）
// 4. 有进行中的切换时驱动清空过程，时长为0的清空阶段在同一步内连续完成
// 5. 淘汰所有信号灯上过期的接近记录并输出
// 说明：信控关闭时只执行第5步
func (j *Junction) Tick(dt, simTime float64, iteration int32) {
	if j.enabled {
		j.phaseElapsed += dt
		if j.inIntergreen {
			j.intergreenElapsed += dt
		}
		if j.inAllRed {
			j.allRedElapsed += dt
		}
		j.strategy.Update(dt)
		if !j.pending && j.strategy.CheckNextPhaseRequest() {
			j.latch()
		}
		if j.pending {
			j.clearance(simTime, iteration)
		}
	}
	j.evict(dt, simTime)
	if every := j.ctx.RuntimeConfig().DataEvery; iteration%every == 0 {
		j.ctx.Recorder().RecordData(simTime, iteration, j.name, j.headSnapshots())
	}
}

// latch 锁定策略请求的切换
func (j *Junction) latch() {
	j.pending = true
	index, ok := j.strategy.NextPhaseIndex()
	if ok && index >= 0 && index < len(j.phases) {
		j.target, j.hasTarget = index, true
		return
	}
	j.hasTarget = false
	log.Debugf("group %s: strategy %s requested a change without a valid target, free-run", j.name, j.strategy.Name())
}

// clearance 驱动清空过程
// 算法说明：
// 1. 进入绿间隔：当前相位的绿灯信号灯变为黄灯
// 2. 绿间隔时间达到配置值后进入全红：当前相位的所有信号灯变为红灯
// 3. 全红时间达到配置值后切换相位
func (j *Junction) clearance(simTime float64, iteration int32) {
	p := j.phases[j.current]
	if !j.inIntergreen && !j.inAllRed {
		j.inIntergreen = true
		j.intergreenElapsed = 0
		for _, s := range p.GreenStates() {
			if h := j.heads[s.Name]; h.CanShow(signal.StatusAmber) {
				h.SetStatus(signal.StatusAmber)
			}
		}
	}
	if j.inIntergreen && j.intergreenElapsed >= p.Intergreen {
		j.inIntergreen = false
		j.inAllRed = true
		j.allRedElapsed = 0
		for _, s := range p.States {
			j.heads[s.Name].SetStatus(signal.StatusRed)
		}
	}
	if j.inAllRed && j.allRedElapsed >= p.AllRed {
		j.commit(simTime, iteration)
	}
}

// commit 切换到新相位
// 算法说明：
// 1. 确定新相位（未指定目标时为下一个相位）并清除切换状态与计时器
// 2. 应用新相位的灯色并通知控制策略
// 3. 输出相位切换记录（携带刚结束的相位内的费用），然后清空各信号灯的本相位费用
func (j *Junction) commit(simTime float64, iteration int32) {
	from := j.phases[j.current]
	next := (j.current + 1) % len(j.phases)
	if j.hasTarget {
		next = j.target
	}
	duration := j.phaseElapsed

	j.current = next
	j.resetState()
	j.applyPhase()
	j.strategy.AcknowledgeNextPhaseSet(next)
	j.phaseCount++

	to := j.phases[j.current]
	j.ctx.Recorder().RecordPhaseBoundary(entity.PhaseBoundary{
		SimTime:    simTime,
		Iteration:  iteration,
		GroupID:    j.name,
		Strategy:   j.strategy.Name(),
		PhaseCount: j.phaseCount,
		From:       from.ID,
		To:         to.ID,
		Duration:   duration,
		Heads:      j.headSnapshots(),
	})
	for _, h := range j.headList {
		h.ResetPhaseCosts()
	}
	attrs := metric.WithAttributes(attribute.String("group", j.name), attribute.String("strategy", j.strategy.Name()))
	metrics.PhaseSwitches.Add(context.Background(), 1, attrs)
	metrics.PhaseDuration.Record(context.Background(), duration, attrs)
	log.Debugf("group %s: %.1fs phase %s -> %s after %.1fs", j.name, simTime, from.ID, to.ID, duration)
}

func (j *Junction) resetState() {
	j.pending = false
	j.hasTarget = false
	j.inIntergreen = false
	j.inAllRed = false
	j.phaseElapsed = 0
	j.intergreenElapsed = 0
	j.allRedElapsed = 0
}

// applyPhase 应用当前相位的灯色
func (j *Junction) applyPhase() {
	for _, s := range j.phases[j.current].States {
		j.heads[s.Name].SetStatus(s.Status)
	}
}

// applyEnabled 打开或关闭信控
// 说明：关闭时所有可以显示绿灯的信号灯变为绿灯；重新打开时从当前相位重新开始
func (j *Junction) applyEnabled(ok bool) {
	if ok == j.enabled {
		return
	}
	j.enabled = ok
	j.resetState()
	if !ok {
		for _, h := range j.headList {
			if h.CanShow(signal.StatusGreen) {
				h.SetStatus(signal.StatusGreen)
			}
		}
		log.Warnf("group %s: traffic light disabled", j.name)
		return
	}
	for _, h := range j.headList {
		h.SetStatus(signal.StatusRed)
	}
	j.applyPhase()
	j.strategy.AcknowledgeNextPhaseSet(j.current)
	log.Infof("group %s: traffic light enabled at phase %s", j.name, j.phases[j.current].ID)
}

// evict 淘汰过期的接近记录并输出
func (j *Junction) evict(dt, simTime float64) {
	recorder := j.ctx.Recorder()
	for _, h := range j.headList {
		for _, a := range h.EvictStale(dt) {
			recorder.RecordCompletedApproach(simTime, a)
			attrs := metric.WithAttributes(attribute.String("group", j.name), attribute.Int("urgency", int(a.Record.Urgency)))
			metrics.ApproachEvictions.Add(context.Background(), 1, attrs)
			metrics.DelayCost.Add(context.Background(), a.DelayCost, attrs)
		}
	}
}

func (j *Junction) headSnapshots() []entity.HeadSnapshot {
	return lo.Map(j.headList, func(h *signal.Head, _ int) entity.HeadSnapshot {
		return entity.HeadSnapshot{
			Name:       h.Name(),
			Status:     h.Status(),
			Approaches: h.NumApproaches(),
			PhaseCosts: h.PhaseCosts(),
		}
	})
}

// remaining 当前阶段的剩余时间
// 说明：清空过程中为剩余的清空时间，否则为距最长绿灯的时间
func (j *Junction) remaining() float64 {
	p := j.phases[j.current]
	switch {
	case j.inIntergreen:
		return max(0, p.Intergreen-j.intergreenElapsed) + p.AllRed
	case j.inAllRed:
		return max(0, p.AllRed-j.allRedElapsed)
	}
	return max(0, p.Max-j.phaseElapsed)
}

// requestPhase 交互式接口：请求切换到指定相位，在下一步的准备阶段生效并经过正常的清空过程
func (j *Junction) requestPhase(index int) error {
	if index < 0 || index >= len(j.phases) {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, index)
	}
	j.mtx.Lock()
	defer j.mtx.Unlock()
	if !j.snapshot.enabled && (j.okBuffer == nil || !*j.okBuffer) {
		return ErrDisabledTrafficLight
	}
	j.phaseBuffer = &index
	return nil
}

// setStatus 交互式接口：设置信控开关（true信控工作|false信控失效-全绿）
func (j *Junction) setStatus(ok bool) {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.okBuffer = &ok
}

func (j *Junction) ID() int32 {
	return j.id
}

func (j *Junction) Name() string {
	return j.name
}

func (j *Junction) Heads() []*signal.Head {
	return j.headList
}

func (j *Junction) Head(name string) (*signal.Head, bool) {
	h, ok := j.heads[name]
	return h, ok
}

func (j *Junction) Enabled() bool {
	return j.enabled
}

func (j *Junction) Strategy() trafficlight.Strategy {
	return j.strategy
}

// CurrentPhase 当前相位下标
func (j *Junction) CurrentPhase() int {
	return j.current
}

// Status 控制组状态面板
// 功能：汇总当前相位、计时器与各信号灯的本相位及累计费用
func (j *Junction) Status() entity.GroupStatus {
	next, hasNext := j.strategy.NextPhaseIndex()
	if j.pending {
		next, hasNext = j.target, j.hasTarget
	}
	s := entity.GroupStatus{
		ID:           j.id,
		GroupID:      j.name,
		Strategy:     j.strategy.Name(),
		Enabled:      j.enabled,
		MinDuration:  j.phases[j.current].Min,
		PhaseElapsed: j.phaseElapsed,
		CurrentPhase: j.current,
		NextPhase:    next,
		HasNextPhase: hasNext,
		InIntergreen: j.inIntergreen,
		InAllRed:     j.inAllRed,
		PhaseCount:   j.phaseCount,
	}
	for _, h := range j.headList {
		pc := h.PhaseCosts()
		s.Approaches += h.NumApproaches()
		s.DelayCost += pc.DelayCost
		s.StoppingCost += pc.StoppingCost
		s.Cumulative.Add(h.CumulativeCosts())
	}
	s.TotalCost = s.DelayCost + s.StoppingCost
	s.CumulativeCost = s.Cumulative.Total()
	return s
}
