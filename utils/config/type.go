package config

// FeedInput 控制组的周期数据文件
// 功能：为使用SCATSData策略的控制组指定数据文件，并把文件中的进口道映射到信号灯
type FeedInput struct {
	Group        string            `yaml:"group"`                // 控制组ID
	File         string            `yaml:"file"`                 // 数据文件路径
	Intersection string            `yaml:"intersection"`         // 文件中的路口编号
	Layout       string            `yaml:"layout,omitempty"`     // 列布局版本（v1|v2），默认v1
	Approaches   map[string]string `yaml:"approaches,omitempty"` // 进口道编号->信号灯名
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	Signals string      `yaml:"signals"`         // 控制组定义文件（.xml或.yaml）
	Feeds   []FeedInput `yaml:"feeds,omitempty"` // 周期数据文件
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
type Control struct {
	Step           ControlStep `yaml:"step"`
	RecordInterval float64     `yaml:"record_interval,omitempty"` // 周期性状态记录间隔（秒），默认60
}

// Output 输出配置
// 说明：SQLite与MongoDB可以同时启用，都为空时不输出
type Output struct {
	SQLite    string `yaml:"sqlite,omitempty"`     // SQLite文件路径
	MongoURI  string `yaml:"mongo_uri,omitempty"`  // MongoDB连接字符串
	MongoDB   string `yaml:"mongo_db,omitempty"`   // MongoDB数据库名
	DataEvery int32  `yaml:"data_every,omitempty"` // 每隔多少步记录一次信号灯状态，默认1
}

// Demand 进口道需求生成配置
type Demand struct {
	Disable    bool    `yaml:"disable,omitempty"`     // 关闭内置需求生成
	Seed       uint64  `yaml:"seed,omitempty"`        // 随机种子
	Inflow     float64 `yaml:"inflow,omitempty"`      // 默认到达率（辆/秒）
	LaneLength float64 `yaml:"lane_length,omitempty"` // 进口道长度（米），默认300
	MaxSpeed   float64 `yaml:"max_speed,omitempty"`   // 期望速度（米/秒），默认13.89
}

// Metrics OpenTelemetry指标配置
type Metrics struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty"` // OTLP HTTP地址，如http://localhost:4318
	Interval     float64 `yaml:"interval,omitempty"`      // 导出间隔（秒）
}

// Profiling 持续性能分析配置
type Profiling struct {
	Pyroscope string `yaml:"pyroscope,omitempty"` // Pyroscope服务地址，为空则关闭
}

// Config YAML配置文件的根结构
type Config struct {
	Input     Input     `yaml:"input"`               // 输入
	Control   Control   `yaml:"control"`             // 模拟过程控制
	Output    Output    `yaml:"output,omitempty"`    // 输出
	Demand    Demand    `yaml:"demand,omitempty"`    // 需求生成
	Metrics   Metrics   `yaml:"metrics,omitempty"`   // 指标
	Profiling Profiling `yaml:"profiling,omitempty"` // 性能分析
}
