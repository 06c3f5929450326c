package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
)

// Junction管理器
type JunctionManager struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	ctx entity.ITaskContext

	data      map[int32]*Junction
	byName    map[string]*Junction
	junctions []*Junction

	lastInterval float64 // 上一次周期性状态记录的时间
}

// NewManager 创建Junction管理器实例
// 参数：ctx-任务上下文
// 返回：新创建的Junction管理器实例
func NewManager(ctx entity.ITaskContext) *JunctionManager {
	return &JunctionManager{
		ctx:       ctx,
		data:      make(map[int32]*Junction),
		byName:    make(map[string]*Junction),
		junctions: make([]*Junction, 0),
	}
}

// Init 初始化所有控制组
// 功能：按加载顺序为控制组分配ID并创建状态机
// 参数：groups-控制组定义，sources-控制组ID->周期数据来源
// 返回：任一控制组配置错误时返回错误
// 说明：使用并行处理提高初始化效率
func (m *JunctionManager) Init(groups []*input.Group, sources map[string]trafficlight.CycleSource) error {
	type result struct {
		j   *Junction
		err error
	}
	indexed := lo.Map(groups, func(g *input.Group, i int) lo.Tuple2[int32, *input.Group] {
		return lo.T2(int32(i), g)
	})
	results := parallel.GoMap(indexed, func(t lo.Tuple2[int32, *input.Group]) result {
		j, err := newJunction(m.ctx, t.A, t.B, sources[t.B.ID])
		return result{j, err}
	})
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	m.junctions = lo.Map(results, func(r result, _ int) *Junction { return r.j })
	m.data = lo.SliceToMap(m.junctions, func(j *Junction) (int32, *Junction) {
		return j.id, j
	})
	m.byName = lo.SliceToMap(m.junctions, func(j *Junction) (string, *Junction) {
		return j.name, j
	})
	m.lastInterval = m.ctx.Clock().T
	return nil
}

// Get 根据ID获取Junction实例，如果不存在则panic
func (m *JunctionManager) Get(id int32) entity.IJunction {
	if junction, ok := m.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return junction
	}
}

// GetOrError 根据ID获取Junction实例，如果不存在则返回错误
func (m *JunctionManager) GetOrError(id int32) (entity.IJunction, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return junction, nil
	}
}

// GetByName 根据控制组ID获取Junction实例
func (m *JunctionManager) GetByName(name string) (entity.IJunction, bool) {
	j, ok := m.byName[name]
	return j, ok
}

func (m *JunctionManager) Junctions() []entity.IJunction {
	return lo.Map(m.junctions, func(j *Junction, _ int) entity.IJunction { return j })
}

// Statuses 所有控制组的状态面板
func (m *JunctionManager) Statuses() []entity.GroupStatus {
	return lo.Map(m.junctions, func(j *Junction, _ int) entity.GroupStatus { return j.Status() })
}

// Prepare 准备阶段，应用交互式接口的写入
// 说明：使用并行处理提高性能
func (m *JunctionManager) Prepare() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.prepare() })
}

// Update 更新阶段，推进所有控制组，并按配置的间隔输出控制组状态
// 参数：dt-时间步长
// 说明：使用并行处理提高性能
func (m *JunctionManager) Update(dt float64) {
	parallel.GoFor(m.junctions, func(j *Junction) { j.update(dt) })
	now := m.ctx.Clock().T
	if now-m.lastInterval >= m.ctx.RuntimeConfig().RecordInterval {
		m.lastInterval = now
		m.ctx.Recorder().RecordTimeInterval(now, m.Statuses())
	}
}
