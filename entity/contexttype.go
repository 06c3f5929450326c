package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
)

// 输出模块接口
// 说明：各控制组并行更新，实现需要保证并发安全
type IRecorder interface {
	// 信号灯状态（每隔若干步）
	RecordData(simTime float64, iteration int32, groupID string, heads []HeadSnapshot)
	// 相位切换
	RecordPhaseBoundary(b PhaseBoundary)
	// 周期性的控制组状态
	RecordTimeInterval(simTime float64, groups []GroupStatus)
	// 被淘汰的接近记录
	RecordCompletedApproach(simTime float64, a signal.CompletedApproach)
	// 仿真结束时的汇总
	RecordFinalSummary() error
	Close() error
}

type ITaskContext interface {
	Clock() *clock.Clock
	JunctionManager() IJunctionManager
	DemandManager() IDemandManager
	Recorder() IRecorder
	RuntimeConfig() *config.RuntimeConfig
}
