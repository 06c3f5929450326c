package task

import (
	"errors"
	"io/fs"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/demand"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/recorder"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：管理时钟、控制组、需求生成、周期数据文件与输出
type Context struct {

	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理分布式模式下相关调用，包括与syncer、其他服务的交互；为nil时不提供RPC
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	serving        bool

	// Junction管理器
	junctionManager *junction.JunctionManager
	// 需求管理器
	demandManager *demand.Manager
	// 输出
	recorder entity.IRecorder

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 控制组定义
	groups []*input.Group
	// 控制组ID->周期数据读取器
	readers map[string]*scats.Reader
}

// NewContext 创建新的仿真任务上下文
// 功能：加载控制组定义，打开输出，创建各管理器并注册RPC服务
// 参数：
//   - job: 任务名称
//   - c: 配置对象
//   - sidecar: sidecar实例，为nil时不注册RPC
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
// 说明：配置错误直接panic
func NewContext(job string, c config.Config, sidecar *syncer.Sidecar, startSidecarServe bool) *Context {
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		readers:        make(map[string]*scats.Reader),
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	groups, err := input.Load(c.Input.Signals)
	if err != nil {
		log.Panicf("load signal groups err: %v", err)
	}
	ctx.groups = groups

	if ctx.recorder, err = recorder.New(c.Output); err != nil {
		log.Panicf("open output err: %v", err)
	}

	ctx.junctionManager = junction.NewManager(ctx)
	ctx.demandManager = demand.NewManager(ctx)

	if sidecar != nil {
		ctx.clock.Register(sidecar)
		ctx.junctionManager.Register(sidecar)
	}

	// sidecar协程，用于提供RPC服务
	if sidecar != nil && startSidecarServe {
		ctx.serving = true
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}

	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) JunctionManager() entity.IJunctionManager {
	return ctx.junctionManager
}

func (ctx *Context) DemandManager() entity.IDemandManager {
	return ctx.demandManager
}

func (ctx *Context) Recorder() entity.IRecorder {
	return ctx.recorder
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// openFeeds 打开所有配置的周期数据文件
// 说明：文件不存在时记录日志，该控制组的SCATSData策略按相位默认时长运行
func (ctx *Context) openFeeds() map[string]trafficlight.CycleSource {
	sources := make(map[string]trafficlight.CycleSource)
	for _, f := range ctx.runtimeConfig.All.Input.Feeds {
		layout, err := scats.LayoutByName(f.Layout)
		if err != nil {
			log.Panicf("feed of group %s: %v", f.Group, err)
		}
		r, err := scats.Open(f.File, f.Intersection, layout)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warnf("feed of group %s: %s not found, running without cycle data", f.Group, f.File)
			continue
		} else if err != nil {
			log.Panicf("feed of group %s: %v", f.Group, err)
		}
		ctx.readers[f.Group] = r
		sources[f.Group] = r
	}
	return sources
}

// Init 初始化
// 算法说明：
// 1. 打开周期数据文件并创建控制组
// 2. 为有位置的信号灯建立进口道
// 3. 周期数据的进口道车辆数更新对应进口道的到达率
func (ctx *Context) Init() {
	ctx.clock.Init()

	sources := ctx.openFeeds()
	if err := ctx.junctionManager.Init(ctx.groups, sources); err != nil {
		log.Panicf("init signal groups err: %v", err)
	}
	log.Infof("Group: %v", len(ctx.groups))
	log.Infof("Feed: %v", len(ctx.readers))

	if ctx.runtimeConfig.All.Demand.Disable {
		log.Info("demand generation disabled")
		return
	}
	ctx.demandManager.Init(ctx.junctionManager.Junctions())
	for group, r := range ctx.readers {
		f, _ := ctx.runtimeConfig.Feed(group)
		if len(f.Approaches) > 0 {
			r.OnCycle(ctx.demandManager.CycleListener(group, f.Approaches))
		}
	}
}

// Close 输出汇总并释放资源
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if err := ctx.recorder.RecordFinalSummary(); err != nil {
		log.Errorf("record final summary err: %v", err)
	}
	if err := ctx.recorder.Close(); err != nil {
		log.Errorf("close output err: %v", err)
	}
	for group, r := range ctx.readers {
		if err := r.Close(); err != nil {
			log.Warnf("close feed of group %s err: %v", group, err)
		}
	}
	if ctx.serving {
		ctx.sidecar.Close()
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
}
