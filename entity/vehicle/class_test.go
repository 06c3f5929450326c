package vehicle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/randengine"
)

func TestStopCost(t *testing.T) {
	assert.Zero(t, vehicle.StopCost(1400, 0, vehicle.ClassCar))
	assert.Zero(t, vehicle.StopCost(1400, -1, vehicle.ClassCar))

	// 0.5*1400*100/3.6e6 kWh / (0.25*9.7) * 1.969
	want := 0.5 * 1400 * 100 / 3.6e6 / (0.25 * 9.7) * 1.969
	assert.InDelta(t, want, vehicle.StopCost(1400, 10, vehicle.ClassCar), 1e-12)

	// 速度翻倍，费用变为4倍
	assert.InDelta(t, 4*want, vehicle.StopCost(1400, 20, vehicle.ClassCar), 1e-12)
	assert.Greater(t, vehicle.StopCost(11000, 10, vehicle.ClassTruck), vehicle.StopCost(1400, 10, vehicle.ClassCar))
}

func TestParseClass(t *testing.T) {
	c, err := vehicle.ParseClass("Bus")
	assert.NoError(t, err)
	assert.Equal(t, vehicle.ClassBus, c)
	_, err = vehicle.ParseClass("tram")
	assert.Error(t, err)
	assert.Equal(t, "truck", vehicle.ClassTruck.String())
}

func TestSampleUrgency(t *testing.T) {
	engine := randengine.New(42)
	seen := map[int32]int{}
	for range 2000 {
		u := vehicle.SampleUrgency(engine, vehicle.ClassBus)
		assert.GreaterOrEqual(t, u, int32(vehicle.MinUrgency))
		assert.LessOrEqual(t, u, int32(3)) // 公交车不会出现4、5
		seen[u]++
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, int32(5), vehicle.ClampUrgency(9))
	assert.Equal(t, int32(1), vehicle.ClampUrgency(0))
}
