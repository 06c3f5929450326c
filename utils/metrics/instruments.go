package metrics

import (
	"go.opentelemetry.io/otel/metric"
)

// 信号控制
var (
	// PhaseSwitches 相位切换次数
	PhaseSwitches metric.Int64Counter
	// PhaseDuration 相位实际持续时间
	PhaseDuration metric.Float64Histogram
	// ApproachEvictions 接近记录淘汰次数
	ApproachEvictions metric.Int64Counter
	// DelayCost 结算的延误费用
	DelayCost metric.Float64Counter
)

// 周期数据文件
var (
	// FeedCycles 读取的周期数
	FeedCycles metric.Int64Counter
	// FeedErrors 解析失败次数
	FeedErrors metric.Int64Counter
)

// 输出与需求
var (
	// RecorderErrors 记录器写入失败次数
	RecorderErrors metric.Int64Counter
	// DemandVehicles 生成的车辆数
	DemandVehicles metric.Int64Counter
)

// initializeInstruments 在当前Meter上创建所有指标
func initializeInstruments() error {
	var err error

	PhaseSwitches, err = Meter.Int64Counter(
		"signal.phase.switches",
		metric.WithDescription("Number of committed phase transitions"),
		metric.WithUnit("{switch}"),
	)
	if err != nil {
		return err
	}

	PhaseDuration, err = Meter.Float64Histogram(
		"signal.phase.duration",
		metric.WithDescription("Elapsed time of a phase at commit"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 10, 15, 20, 30, 45, 60, 90, 120),
	)
	if err != nil {
		return err
	}

	ApproachEvictions, err = Meter.Int64Counter(
		"signal.approach.evictions",
		metric.WithDescription("Number of approach records settled after going stale"),
		metric.WithUnit("{approach}"),
	)
	if err != nil {
		return err
	}

	DelayCost, err = Meter.Float64Counter(
		"signal.approach.delay_cost",
		metric.WithDescription("Settled delay cost of evicted approaches"),
	)
	if err != nil {
		return err
	}

	FeedCycles, err = Meter.Int64Counter(
		"signal.feed.cycles",
		metric.WithDescription("Number of cycles read from adaptive feed files"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	FeedErrors, err = Meter.Int64Counter(
		"signal.feed.errors",
		metric.WithDescription("Number of malformed adaptive feed blocks"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	RecorderErrors, err = Meter.Int64Counter(
		"signal.recorder.errors",
		metric.WithDescription("Number of failed recorder writes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	DemandVehicles, err = Meter.Int64Counter(
		"signal.demand.vehicles",
		metric.WithDescription("Number of vehicles generated on approach lanes"),
		metric.WithUnit("{vehicle}"),
	)
	if err != nil {
		return err
	}

	return nil
}
