package config

import "github.com/samber/lo"

// RuntimeConfig 运行时配置
// 功能：在原始配置基础上补全默认值
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	RecordInterval float64 // 周期性状态记录间隔（秒）
	DataEvery      int32   // 信号灯状态记录的步数间隔
	LaneLength     float64 // 进口道长度（米）
	MaxSpeed       float64 // 期望速度（米/秒）
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 参数：config-原始配置对象
// 返回：补全默认值后的运行时配置
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{
		All: config,
		C:   config.Control,
	}
	rc.RecordInterval = lo.Ternary(config.Control.RecordInterval > 0, config.Control.RecordInterval, 60)
	rc.DataEvery = lo.Ternary(config.Output.DataEvery > 0, config.Output.DataEvery, 1)
	rc.LaneLength = lo.Ternary(config.Demand.LaneLength > 0, config.Demand.LaneLength, 300)
	rc.MaxSpeed = lo.Ternary(config.Demand.MaxSpeed > 0, config.Demand.MaxSpeed, 13.89)
	return rc
}

// Feed 查找控制组的周期数据文件配置
func (rc *RuntimeConfig) Feed(group string) (FeedInput, bool) {
	return lo.Find(rc.All.Input.Feeds, func(f FeedInput) bool {
		return f.Group == group
	})
}
