// 仿真输出
// 控制组在步进、相位切换、周期统计与接近记录淘汰时推送数据，输出模块只写不读
package recorder

import (
	"context"
	"errors"
	"flag"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	batchSize = flag.Int("recorder.batch", 1000, "批量写入的记录数")
)

// New 根据输出配置创建输出模块
// 功能：按配置启用SQLite与MongoDB输出，都启用时同时写入两者，都未配置时不输出
// 参数：o-输出配置
// 返回：输出模块；任一输出打开失败时关闭已打开的输出并返回错误
func New(o config.Output) (entity.IRecorder, error) {
	var rs []entity.IRecorder
	if o.SQLite != "" {
		r, err := NewSQLite(o.SQLite)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	if o.MongoURI != "" {
		r, err := NewMongo(o.MongoURI, lo.Ternary(o.MongoDB != "", o.MongoDB, "signal"))
		if err != nil {
			for _, r := range rs {
				r.Close()
			}
			return nil, err
		}
		rs = append(rs, r)
	}
	switch len(rs) {
	case 0:
		log.Info("no output configured")
		return Noop{}, nil
	case 1:
		return rs[0], nil
	}
	return Multi(rs), nil
}

// Noop 丢弃所有数据
type Noop struct{}

func (Noop) RecordData(float64, int32, string, []entity.HeadSnapshot)  {}
func (Noop) RecordPhaseBoundary(entity.PhaseBoundary)                  {}
func (Noop) RecordTimeInterval(float64, []entity.GroupStatus)          {}
func (Noop) RecordCompletedApproach(float64, signal.CompletedApproach) {}
func (Noop) RecordFinalSummary() error                                 { return nil }
func (Noop) Close() error                                              { return nil }

// Multi 把数据同时写入多个输出
type Multi []entity.IRecorder

func (m Multi) RecordData(simTime float64, iteration int32, groupID string, heads []entity.HeadSnapshot) {
	for _, r := range m {
		r.RecordData(simTime, iteration, groupID, heads)
	}
}

func (m Multi) RecordPhaseBoundary(b entity.PhaseBoundary) {
	for _, r := range m {
		r.RecordPhaseBoundary(b)
	}
}

func (m Multi) RecordTimeInterval(simTime float64, groups []entity.GroupStatus) {
	for _, r := range m {
		r.RecordTimeInterval(simTime, groups)
	}
}

func (m Multi) RecordCompletedApproach(simTime float64, a signal.CompletedApproach) {
	for _, r := range m {
		r.RecordCompletedApproach(simTime, a)
	}
}

// RecordFinalSummary 所有输出都会执行，返回合并后的错误
func (m Multi) RecordFinalSummary() error {
	return errors.Join(lo.Map(m, func(r entity.IRecorder, _ int) error { return r.RecordFinalSummary() })...)
}

func (m Multi) Close() error {
	return errors.Join(lo.Map(m, func(r entity.IRecorder, _ int) error { return r.Close() })...)
}

// fail 记录写入失败，不中断仿真
func fail(backend, op string, err error) {
	log.Warnf("%s: %s err: %v", backend, op, err)
	metrics.RecorderErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("backend", backend), attribute.String("op", op),
	))
}
