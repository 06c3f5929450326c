package junction

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
)

type fakeRecorder struct {
	mu         sync.Mutex
	data       int
	boundaries []entity.PhaseBoundary
	intervals  [][]entity.GroupStatus
	approaches []signal.CompletedApproach
}

func (r *fakeRecorder) RecordData(float64, int32, string, []entity.HeadSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data++
}

func (r *fakeRecorder) RecordPhaseBoundary(b entity.PhaseBoundary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boundaries = append(r.boundaries, b)
}

func (r *fakeRecorder) RecordTimeInterval(_ float64, groups []entity.GroupStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals = append(r.intervals, groups)
}

func (r *fakeRecorder) RecordCompletedApproach(_ float64, a signal.CompletedApproach) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approaches = append(r.approaches, a)
}

func (r *fakeRecorder) RecordFinalSummary() error { return nil }
func (r *fakeRecorder) Close() error              { return nil }

type fakeContext struct {
	clock    *clock.Clock
	rc       *config.RuntimeConfig
	recorder *fakeRecorder
}

func newFakeContext() *fakeContext {
	c := config.Config{Control: config.Control{
		Step:           config.ControlStep{Start: 0, Total: 1000, Interval: 1},
		RecordInterval: 10,
	}}
	return &fakeContext{
		clock:    clock.New(c.Control.Step),
		rc:       config.NewRuntimeConfig(c),
		recorder: &fakeRecorder{},
	}
}

func (c *fakeContext) Clock() *clock.Clock                      { return c.clock }
func (c *fakeContext) JunctionManager() entity.IJunctionManager { return nil }
func (c *fakeContext) DemandManager() entity.IDemandManager     { return nil }
func (c *fakeContext) Recorder() entity.IRecorder               { return c.recorder }
func (c *fakeContext) RuntimeConfig() *config.RuntimeConfig     { return c.rc }

// fakeStrategy 总是请求切换，目标由测试指定
type fakeStrategy struct {
	next    int
	hasNext bool
	acked   []int
}

func (s *fakeStrategy) Name() string                      { return "fake" }
func (s *fakeStrategy) Update(float64)                    {}
func (s *fakeStrategy) CheckNextPhaseRequest() bool       { return true }
func (s *fakeStrategy) NextPhaseIndex() (int, bool)       { return s.next, s.hasNext }
func (s *fakeStrategy) AcknowledgeNextPhaseSet(index int) { s.acked = append(s.acked, index) }

// twoPhaseGroup 两个相位的控制组，A放行a，B放行b，B没有请求条件
func twoPhaseGroup(strategy string, intergreen, allRed float64) *input.Group {
	phase := func(id, green, red string) *signal.Phase {
		return &signal.Phase{
			ID: id, Min: 5, Max: 60, Duration: 30, Intergreen: intergreen, AllRed: allRed,
			States: []signal.HeadState{
				{Name: green, Status: signal.StatusGreen},
				{Name: red, Status: signal.StatusRed},
			},
		}
	}
	return &input.Group{
		ID:       "g1",
		Strategy: input.StrategyDef{Type: strategy, Gap: 5, Range: 30},
		Heads:    []input.Head{{Name: "a", Position: 100}, {Name: "b", Position: 100}},
		Phases:   []*signal.Phase{phase("A", "a", "b"), phase("B", "b", "a")},
	}
}

func statusOf(j *Junction, name string) signal.Status {
	h, _ := j.Head(name)
	return h.Status()
}

func TestClearanceSequence(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyVehicleActuated, 3, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusGreen, statusOf(j, "a"))
	assert.Equal(t, signal.StatusRed, statusOf(j, "b"))

	for i := 1; i <= 5; i++ {
		j.Tick(1, float64(i), int32(i))
		assert.False(t, j.pending, "tick %d", i)
	}
	// 第6步满足最短绿灯与车头时距条件，进入绿间隔
	j.Tick(1, 6, 6)
	assert.True(t, j.inIntergreen)
	assert.Equal(t, signal.StatusAmber, statusOf(j, "a"))
	for i := 7; i <= 8; i++ {
		j.Tick(1, float64(i), int32(i))
		assert.True(t, j.inIntergreen, "tick %d", i)
	}
	j.Tick(1, 9, 9)
	assert.True(t, j.inAllRed)
	assert.False(t, j.inIntergreen)
	assert.Equal(t, signal.StatusRed, statusOf(j, "a"))
	assert.Equal(t, signal.StatusRed, statusOf(j, "b"))
	j.Tick(1, 10, 10)
	assert.True(t, j.inAllRed)
	assert.Zero(t, j.CurrentPhase())

	// 请求后第5步进入B
	j.Tick(1, 11, 11)
	assert.Equal(t, 1, j.CurrentPhase())
	assert.False(t, j.pending || j.inIntergreen || j.inAllRed)
	assert.Equal(t, signal.StatusRed, statusOf(j, "a"))
	assert.Equal(t, signal.StatusGreen, statusOf(j, "b"))

	require.Len(t, ctx.recorder.boundaries, 1)
	b := ctx.recorder.boundaries[0]
	assert.Equal(t, "A", b.From)
	assert.Equal(t, "B", b.To)
	assert.Equal(t, int64(1), b.PhaseCount)
	assert.Equal(t, 11., b.Duration)
	assert.Equal(t, "Vehicle Actuated", b.Strategy)
	assert.Equal(t, 11, ctx.recorder.data)
}

func TestZeroClearanceCascades(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyVehicleActuated, 0, 0), nil)
	require.NoError(t, err)
	h, _ := j.Head("a")
	assert.False(t, h.CanShow(signal.StatusAmber))

	for i := 1; i <= 6; i++ {
		j.Tick(1, float64(i), int32(i))
	}
	assert.Equal(t, 1, j.CurrentPhase())
	assert.Len(t, ctx.recorder.boundaries, 1)
}

func TestFreeRunFallback(t *testing.T) {
	for _, s := range []*fakeStrategy{{}, {next: 7, hasNext: true}, {next: -1, hasNext: true}} {
		ctx := newFakeContext()
		j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyPriorityActuated, 0, 0), nil)
		require.NoError(t, err)
		j.strategy = s
		j.Tick(1, 1, 1)
		assert.Equal(t, 1, j.CurrentPhase())
		j.Tick(1, 2, 2)
		assert.Equal(t, 0, j.CurrentPhase())
		assert.Equal(t, []int{1, 0}, s.acked)
	}
}

func TestBoundaryCarriesPhaseCostsThenResets(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyPriorityActuated, 0, 0), nil)
	require.NoError(t, err)
	s := &fakeStrategy{next: 1, hasNext: true}
	j.strategy = s
	a, _ := j.Head("a")
	a.AddApproach(signal.ApproachRecord{VehicleID: 1, Urgency: 1, Speed: 5, IncurredStoppingCost: 2})

	j.Tick(1, 1, 1)
	require.Len(t, ctx.recorder.boundaries, 1)
	heads := ctx.recorder.boundaries[0].Heads
	require.Len(t, heads, 2)
	assert.Equal(t, "a", heads[0].Name)
	assert.Equal(t, 2., heads[0].PhaseCosts.StoppingCost)
	assert.Equal(t, 1, heads[0].Approaches)
	assert.Zero(t, a.PhaseCosts().StoppingCost)
	assert.Equal(t, 2., a.CumulativeCosts().StoppingCost)
}

func TestEvictionIsForwarded(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyPriorityActuated, 3, 2), nil)
	require.NoError(t, err)
	b, _ := j.Head("b")
	b.AddApproach(signal.ApproachRecord{VehicleID: 42, Urgency: 3})

	j.Tick(1.1, 1.1, 1)
	assert.Empty(t, ctx.recorder.approaches)
	j.Tick(1.1, 2.2, 2)
	require.Len(t, ctx.recorder.approaches, 1)
	assert.Equal(t, int64(42), ctx.recorder.approaches[0].Record.VehicleID)
	assert.InDelta(t, 0.007*2.2*3, ctx.recorder.approaches[0].DelayCost, 1e-9)

	st := j.Status()
	assert.InDelta(t, 0.007*2.2*3, st.Cumulative.DelayCost, 1e-9)
	assert.InDelta(t, 0.007*2.2*3, st.DelayCost, 1e-9)
	assert.Equal(t, int32(1), st.Cumulative.Vehicles[2])
}

func TestMinimumDurationNeverViolated(t *testing.T) {
	for _, key := range []string{trafficlight.KeyVehicleActuated, trafficlight.KeyPriorityActuated, trafficlight.KeyPriorityLookahead, trafficlight.KeySCATSData} {
		ctx := newFakeContext()
		j, err := newJunction(ctx, 0, twoPhaseGroup(key, 3, 2), nil)
		require.NoError(t, err)
		for i := 1; i <= 300; i++ {
			// 两个方向轮流有停车等待的车辆
			h := j.Heads()[i/20%2]
			h.AddApproach(signal.ApproachRecord{VehicleID: int64(i), Urgency: int32(i%5 + 1), DelayTime: float64(i % 30)})
			j.Tick(1, float64(i), int32(i))
		}
		require.NotEmpty(t, ctx.recorder.boundaries, key)
		for _, b := range ctx.recorder.boundaries {
			// 相位持续时间包含5秒清空时间
			assert.Greater(t, b.Duration-5, 5., key)
		}
	}
}

func TestDisableAndEnable(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyVehicleActuated, 3, 2), nil)
	require.NoError(t, err)

	j.setStatus(false)
	j.prepare()
	assert.False(t, j.Enabled())
	assert.Equal(t, signal.StatusGreen, statusOf(j, "a"))
	assert.Equal(t, signal.StatusGreen, statusOf(j, "b"))
	for i := 1; i <= 30; i++ {
		j.Tick(1, float64(i), int32(i))
	}
	assert.Empty(t, ctx.recorder.boundaries)
	assert.ErrorIs(t, j.requestPhase(1), ErrDisabledTrafficLight)

	j.setStatus(true)
	j.prepare()
	assert.True(t, j.Enabled())
	assert.Equal(t, signal.StatusGreen, statusOf(j, "a"))
	assert.Equal(t, signal.StatusRed, statusOf(j, "b"))
	assert.Zero(t, j.Status().PhaseElapsed)
}

func TestRequestPhase(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 0, twoPhaseGroup(trafficlight.KeyPriorityActuated, 0, 0), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, j.requestPhase(2), ErrInvalidPhase)
	require.NoError(t, j.requestPhase(1))
	j.prepare()
	st := j.Status()
	assert.True(t, st.HasNextPhase)
	assert.Equal(t, 1, st.NextPhase)

	j.Tick(1, 1, 1)
	assert.Equal(t, 1, j.CurrentPhase())
	assert.Equal(t, signal.StatusGreen, statusOf(j, "b"))
}

func TestNewJunctionErrors(t *testing.T) {
	ctx := newFakeContext()
	g := twoPhaseGroup("Unknown", 0, 0)
	_, err := newJunction(ctx, 0, g, nil)
	assert.ErrorIs(t, err, trafficlight.ErrUnknownStrategy)

	g = twoPhaseGroup(trafficlight.KeyVehicleActuated, 0, 0)
	g.Heads = g.Heads[:1]
	_, err = newJunction(ctx, 0, g, nil)
	assert.ErrorIs(t, err, input.ErrUnknownHead)

	g.Phases = nil
	_, err = newJunction(ctx, 0, g, nil)
	assert.ErrorIs(t, err, input.ErrNoPhases)
}

func TestStatusPanel(t *testing.T) {
	ctx := newFakeContext()
	j, err := newJunction(ctx, 3, twoPhaseGroup(trafficlight.KeyVehicleActuated, 3, 2), nil)
	require.NoError(t, err)
	j.Tick(1, 1, 1)
	st := j.Status()
	assert.Equal(t, int32(3), st.ID)
	assert.Equal(t, "g1", st.GroupID)
	assert.Equal(t, "Vehicle Actuated", st.Strategy)
	assert.Equal(t, 5., st.MinDuration)
	assert.Equal(t, 1., st.PhaseElapsed)
	assert.Equal(t, 0, st.CurrentPhase)
	assert.True(t, st.HasNextPhase)
	assert.Equal(t, 1, st.NextPhase)
	assert.True(t, st.Enabled)
}
