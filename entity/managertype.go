package entity

import (
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

// Manager依赖倒置

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	Register(sidecar *syncer.Sidecar) // 注册到Sidecar

	// 输入Junction ID，查找Junction，如果不存在则panic
	Get(id int32) IJunction
	// 输入Junction ID，查找Junction，如果不存在则返回error
	GetOrError(id int32) (IJunction, error)
	// 按控制组ID查找
	GetByName(name string) (IJunction, bool)
	Junctions() []IJunction

	Statuses() []GroupStatus // 所有控制组的状态面板

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段
}

// entity/demand/manager.go的依赖倒置
type IDemandManager interface {
	// 设置信号灯进口道的到达率（辆/秒）
	SetInflow(group, head string, inflow float64) bool
	// 生成周期数据回调：按进口道映射把周期内的车辆数换算为到达率
	CycleListener(group string, approaches map[string]string) func(*scats.Cycle)
	Vehicles() int // 当前在网车辆数

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段
}
