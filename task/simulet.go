package task

import (
	"flag"
)

const (
	SelfName = "signal" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个仿真步骤开始时进行准备工作
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出系统状态信息
// 3. 需求管理器与路口管理器依次准备，路口管理器应用交互式接口的写入
func (ctx *Context) prepare() {
	ctx.clock.Next()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		log.Infof(
			"STEP: %d(%v) vehicles: %d",
			ctx.clock.InternalStep, ctx.clock, ctx.demandManager.Vehicles(),
		)
	}

	ctx.demandManager.Prepare()
	ctx.junctionManager.Prepare()
}

// update 更新阶段，每步执行一次
// 算法说明：
// 1. 推进进口道车辆，车辆向信号灯广播接近记录
// 2. 推进所有控制组的相位状态机
// 说明：两者依次执行，控制组更新时信号灯不会被进口道修改
func (ctx *Context) update() {
	ctx.demandManager.Update(ctx.clock.DT)
	ctx.junctionManager.Update(ctx.clock.DT)
}

// Run 运行
func (ctx *Context) Run() {
	// 初始化
	ctx.Init()
	if ctx.sidecar == nil {
		ctx.runStandalone()
		return
	}
	// init syncer
	ctx.sidecar.Step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		log.Debugf("step %d: NotifyStepReady complete", ctx.clock.InternalStep)
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := false
		if ctx.clock.InternalStep+1 >= ctx.clock.END_STEP {
			close = ctx.sidecar.Step(true)
		} else {
			close = ctx.sidecar.Step(false)
		}
		if close || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}

// runStandalone 不经过syncer运行到结束步
func (ctx *Context) runStandalone() {
	for ctx.clock.InternalStep+1 < ctx.clock.END_STEP && !ctx.closed.Load() {
		ctx.prepare()
		ctx.update()
	}
	log.Infof("engine complete")
	ctx.Close()
}
