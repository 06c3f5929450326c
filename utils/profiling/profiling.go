// 持续性能分析，配置Pyroscope地址时启用
package profiling

import (
	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/metrics"
)

var log = logrus.WithField("module", "profiling")

// Start 启动Pyroscope性能分析
// 参数：job-任务名，作为标签上报；c-性能分析配置
// 返回：停止函数（总是非nil）
// 说明：启动失败只记录日志，不影响仿真
func Start(job string, c config.Profiling) func() {
	if c.Pyroscope == "" {
		return func() {}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: metrics.ServiceName,
		ServerAddress:   c.Pyroscope,
		Logger:          log,
		Tags:            map[string]string{"job": job},
	})
	if err != nil {
		log.Warnf("start pyroscope profiler err: %v", err)
		return func() {}
	}
	log.Infof("profiling to %s", c.Pyroscope)
	return func() {
		if err := profiler.Stop(); err != nil {
			log.Errorf("stop pyroscope profiler err: %v", err)
		}
	}
}
