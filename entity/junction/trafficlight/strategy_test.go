package trafficlight_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

type fakeDetector struct {
	d  float64
	ok bool
}

func (f *fakeDetector) FrontDistance() (float64, bool) { return f.d, f.ok }

type fakeSource struct {
	cycles []*scats.Cycle
	calls  int
}

func (f *fakeSource) Next(context.Context) (*scats.Cycle, bool) {
	f.calls++
	if len(f.cycles) == 0 {
		return nil, false
	}
	c := f.cycles[0]
	f.cycles = f.cycles[1:]
	return c, true
}

// twoPhases 两个互斥相位：A放行a，B放行b
func twoPhases(min, max float64, requestB bool) ([]*signal.Phase, map[string]*signal.Head) {
	cond := signal.ConditionNone
	if requestB {
		cond = signal.ConditionRequest
	}
	phases := []*signal.Phase{
		{ID: "A", Min: min, Max: max, Intergreen: 3, AllRed: 2, States: []signal.HeadState{
			{Name: "a", Status: signal.StatusGreen},
			{Name: "b", Status: signal.StatusRed},
		}},
		{ID: "B", Min: min, Max: max, Intergreen: 3, AllRed: 2, States: []signal.HeadState{
			{Name: "a", Status: signal.StatusRed},
			{Name: "b", Status: signal.StatusGreen, Condition: cond},
		}},
	}
	heads := map[string]*signal.Head{
		"a": signal.NewHead("a", "g"),
		"b": signal.NewHead("b", "g"),
	}
	return phases, heads
}

// firstRequest 以步长1推进策略，返回第一次请求切换的步数
func firstRequest(s trafficlight.Strategy, limit int) int {
	for i := 1; i <= limit; i++ {
		s.Update(1)
		if s.CheckNextPhaseRequest() {
			return i
		}
	}
	return -1
}

func TestNewUnknownStrategy(t *testing.T) {
	phases, heads := twoPhases(5, 60, false)
	_, err := trafficlight.New(trafficlight.Params{Type: "FixedTime"}, phases, heads)
	assert.ErrorIs(t, err, trafficlight.ErrUnknownStrategy)
	_, err = trafficlight.New(trafficlight.Params{Type: trafficlight.KeyVehicleActuated}, nil, heads)
	assert.Error(t, err)

	names := map[string]string{
		trafficlight.KeyVehicleActuated:   "Vehicle Actuated",
		trafficlight.KeyPriorityActuated:  "Priority Actuated",
		trafficlight.KeyPriorityLookahead: "Priority Lookahead",
		trafficlight.KeySCATSData:         "SCATS Data Strategy",
	}
	for key, name := range names {
		s, err := trafficlight.New(trafficlight.Params{Type: key}, phases, heads)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
}

func TestVehicleActuatedGapOut(t *testing.T) {
	phases, heads := twoPhases(5, 60, false)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyVehicleActuated, Gap: 5, Range: 30}, phases, heads)
	require.NoError(t, err)

	// 无请求条件的相位总是有请求；第6步同时满足最短绿灯与车头时距条件
	assert.Equal(t, 6, firstRequest(s, 100))
	next, ok := s.NextPhaseIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, next)

	s.AcknowledgeNextPhaseSet(1)
	_, ok = s.NextPhaseIndex()
	assert.False(t, ok)
}

func TestVehicleActuatedWaitsForRequest(t *testing.T) {
	phases, heads := twoPhases(5, 60, true)
	det := &fakeDetector{}
	heads["b"].SetDetector(det)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyVehicleActuated, Gap: 5, Range: 30}, phases, heads)
	require.NoError(t, err)

	assert.Equal(t, -1, firstRequest(s, 50))
	_, ok := s.NextPhaseIndex()
	assert.False(t, ok)

	// 检测范围以外的车辆不构成请求
	det.d, det.ok = 40, true
	assert.Equal(t, -1, firstRequest(s, 5))
	det.d = 10
	assert.Equal(t, 1, firstRequest(s, 5))
}

func TestVehicleActuatedMaxOut(t *testing.T) {
	phases, heads := twoPhases(5, 20, false)
	heads["a"].SetDetector(&fakeDetector{d: 5, ok: true})
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyVehicleActuated, Gap: 5, Range: 30}, phases, heads)
	require.NoError(t, err)

	// 当前相位一直有车，只能由最长绿灯触发：确定下一相位后经过n-1秒，n-1+5>20
	assert.Equal(t, 17, firstRequest(s, 100))
}

func TestVehicleActuatedRespectsMinimum(t *testing.T) {
	phases, heads := twoPhases(12, 12, false)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyVehicleActuated, Gap: 1, Range: 30}, phases, heads)
	require.NoError(t, err)
	assert.Equal(t, 13, firstRequest(s, 100))
}

// priorityHeads 当前相位a上有一辆行驶车辆（停车费用stop），b上有一辆停车等待的车辆（延误费用delay）
func priorityHeads(t *testing.T, stop, delay float64) ([]*signal.Phase, map[string]*signal.Head) {
	t.Helper()
	phases, heads := twoPhases(5, 60, false)
	heads["a"].AddApproach(signal.ApproachRecord{VehicleID: 1, Urgency: 1, Speed: 10, StoppingCost: stop, Distance: 80})
	heads["b"].AddApproach(signal.ApproachRecord{VehicleID: 2, Urgency: 5, Speed: 0, DelayTime: delay / (signal.DelayCostRate * 5)})
	return phases, heads
}

func TestPriorityActuatedSwitchesToCostlierPhase(t *testing.T) {
	phases, heads := priorityHeads(t, 10, 15)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityActuated}, phases, heads)
	require.NoError(t, err)

	s.Update(1)
	next, ok := s.NextPhaseIndex()
	require.True(t, ok)
	assert.Equal(t, 1, next)
	assert.False(t, s.CheckNextPhaseRequest())
	// 最短绿灯5秒，第6步请求
	assert.Equal(t, 5, firstRequest(s, 100))
}

func TestPriorityActuatedKeepsCheaperPhase(t *testing.T) {
	phases, heads := priorityHeads(t, 10, 8)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityActuated}, phases, heads)
	require.NoError(t, err)
	assert.Equal(t, -1, firstRequest(s, 50))
}

func TestPriorityActuatedZeroCostNeverArms(t *testing.T) {
	phases, heads := twoPhases(0, 60, false)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityActuated}, phases, heads)
	require.NoError(t, err)
	assert.Equal(t, -1, firstRequest(s, 20))
}

func TestPriorityActuatedTieGoesToLowestIndex(t *testing.T) {
	heads := map[string]*signal.Head{
		"a": signal.NewHead("a", "g"),
		"b": signal.NewHead("b", "g"),
		"c": signal.NewHead("c", "g"),
	}
	phase := func(id, green string) *signal.Phase {
		p := &signal.Phase{ID: id}
		for _, n := range []string{"a", "b", "c"} {
			st := signal.StatusRed
			if n == green {
				st = signal.StatusGreen
			}
			p.States = append(p.States, signal.HeadState{Name: n, Status: st})
		}
		return p
	}
	phases := []*signal.Phase{phase("A", "a"), phase("B", "b"), phase("C", "c")}
	heads["b"].AddApproach(signal.ApproachRecord{VehicleID: 1, Urgency: 2, DelayTime: 30})
	heads["c"].AddApproach(signal.ApproachRecord{VehicleID: 2, Urgency: 2, DelayTime: 30})

	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityActuated}, phases, heads)
	require.NoError(t, err)
	s.Update(1)
	next, ok := s.NextPhaseIndex()
	require.True(t, ok)
	assert.Equal(t, 1, next)
}

func TestPriorityLookaheadExtendsUntilVehicleClears(t *testing.T) {
	phases, heads := twoPhases(2, 60, false)
	// 公交车3秒后通过停车线，在此之前让其停车的费用高于延长绿灯带来的延误
	heads["a"].AddApproach(signal.ApproachRecord{
		VehicleID: 1, Urgency: 1, Mass: 15000, Speed: 15, Distance: 45,
		StoppingCost: 0.2, Class: vehicle.ClassBus,
	})
	heads["b"].AddApproach(signal.ApproachRecord{VehicleID: 2, Urgency: 1, DelayTime: 100})

	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityLookahead, Lookahead: 10}, phases, heads)
	require.NoError(t, err)
	// 第3步满足最短绿灯并确定延长3秒，第6步延长结束
	assert.Equal(t, 6, firstRequest(s, 50))

	s.AcknowledgeNextPhaseSet(1)
	_, ok := s.NextPhaseIndex()
	assert.False(t, ok)
}

func TestPriorityLookaheadNoExtension(t *testing.T) {
	phases, heads := priorityHeads(t, 10, 15)
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeyPriorityLookahead}, phases, heads)
	require.NoError(t, err)
	// 当前相位的车辆是零质量的行驶车辆，延长没有收益
	assert.Equal(t, 6, firstRequest(s, 50))
}

type switchAt struct {
	tick, index int
}

// runSwitches 推进策略并在每次请求时立即确认切换
func runSwitches(s trafficlight.Strategy, ticks int) []switchAt {
	var out []switchAt
	for i := 1; i <= ticks; i++ {
		s.Update(1)
		if s.CheckNextPhaseRequest() {
			next, _ := s.NextPhaseIndex()
			s.AcknowledgeNextPhaseSet(next)
			out = append(out, switchAt{i, next})
		}
	}
	return out
}

func cycle(index int, durations map[string]int) *scats.Cycle {
	c := &scats.Cycle{Index: index, PhaseDurations: durations}
	for _, d := range durations {
		c.Duration += d
	}
	return c
}

func threePhases(min float64) []*signal.Phase {
	return []*signal.Phase{
		{ID: "A", Min: min, Duration: 3},
		{ID: "B", Min: min, Duration: 2},
		{ID: "C", Min: min},
	}
}

func TestSCATSDataReplaysCycles(t *testing.T) {
	src := &fakeSource{cycles: []*scats.Cycle{
		cycle(0, map[string]int{"A": 5, "B": 3}),
		cycle(1, map[string]int{"A": 4, "C": 2}),
	}}
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData, Source: src}, threePhases(0), nil)
	require.NoError(t, err)

	// 数据源耗尽后重复最后一个周期
	assert.Equal(t, []switchAt{{5, 1}, {8, 2}, {10, 0}, {14, 2}, {16, 0}}, runSwitches(s, 16))
	assert.Equal(t, 3, src.calls)
}

func TestSCATSDataWithoutSourceUsesConfiguredDurations(t *testing.T) {
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData}, threePhases(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []switchAt{{3, 1}, {5, 0}, {8, 1}}, runSwitches(s, 8))
}

func TestSCATSDataExtendsLonePhase(t *testing.T) {
	src := &fakeSource{cycles: []*scats.Cycle{cycle(0, map[string]int{"A": 4})}}
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData, Source: src}, threePhases(0), nil)
	require.NoError(t, err)
	assert.Empty(t, runSwitches(s, 20))
}

func TestSCATSDataRespectsMinimum(t *testing.T) {
	src := &fakeSource{cycles: []*scats.Cycle{cycle(0, map[string]int{"A": 2, "B": 2})}}
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData, Source: src}, threePhases(10), nil)
	require.NoError(t, err)
	assert.Equal(t, 11, firstRequest(s, 50))
}

func TestSCATSDataIgnoresUnknownPhases(t *testing.T) {
	src := &fakeSource{cycles: []*scats.Cycle{cycle(0, map[string]int{"A": 3, "B": 3, "X": 3})}}
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData, Source: src}, threePhases(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []switchAt{{3, 1}, {6, 0}, {9, 1}, {12, 0}}, runSwitches(s, 12))
	assert.Equal(t, 3, src.calls)
}

func TestSCATSDataSkipsEmptyCycles(t *testing.T) {
	src := &fakeSource{cycles: []*scats.Cycle{
		cycle(0, map[string]int{"A": 3, "B": 3}),
		cycle(1, map[string]int{}),
		cycle(2, map[string]int{"X": 5}),
	}}
	s, err := trafficlight.New(trafficlight.Params{Type: trafficlight.KeySCATSData, Source: src}, threePhases(0), nil)
	require.NoError(t, err)

	// 空周期与只有未配置相位的周期都不替换最近一次使用的周期
	assert.Equal(t, []switchAt{{3, 1}, {6, 0}, {9, 1}, {12, 0}, {15, 1}}, runSwitches(s, 15))
	assert.Equal(t, 3, src.calls)
}
