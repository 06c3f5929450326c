// 进口道需求生成
// 为每个有位置的信号灯建立一条进口道，车辆按到达率生成并向信号灯广播接近记录
package demand

import (
	"flag"
	"hash/fnv"
	"math"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/randengine"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/scats"
)

var (
	exitDistance = flag.Float64("demand.exit", 50, "车辆驶过停车线多远后离开进口道（米）")
)

// Manager 需求管理器
type Manager struct {
	ctx entity.ITaskContext

	lanes  []*Lane
	byHead map[string]map[string]*Lane // 控制组ID->信号灯名->进口道
	nextID atomic.Int64
}

// NewManager 创建需求管理器实例
func NewManager(ctx entity.ITaskContext) *Manager {
	return &Manager{
		ctx:    ctx,
		byHead: make(map[string]map[string]*Lane),
	}
}

// Init 为所有控制组的信号灯建立进口道
// 功能：进口道起点到停车线的距离为信号灯位置，车辆驶过停车线demand.exit米后离开
// 参数：junctions-所有控制组
// 说明：每条进口道使用独立的随机数引擎，种子由配置种子与控制组ID、信号灯名决定，保证结果与并行顺序无关
func (m *Manager) Init(junctions []entity.IJunction) {
	rc := m.ctx.RuntimeConfig()
	for _, j := range junctions {
		lanes := make(map[string]*Lane)
		for _, h := range j.Heads() {
			pos, ok := h.Position()
			if !ok {
				continue
			}
			rng := randengine.New(rc.All.Demand.Seed ^ laneSeed(j.Name(), h.Name()))
			length := math.Max(rc.LaneLength, pos+*exitDistance)
			l := newLane(j.Name(), h, pos, length, rc.MaxSpeed, rc.All.Demand.Inflow, rng, &m.nextID)
			lanes[h.Name()] = l
			m.lanes = append(m.lanes, l)
		}
		m.byHead[j.Name()] = lanes
	}
	log.Infof("demand: %d lanes, default inflow %.3f veh/s", len(m.lanes), rc.All.Demand.Inflow)
}

func laneSeed(group, head string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(group))
	h.Write([]byte{0})
	h.Write([]byte(head))
	return h.Sum64()
}

// Lane 查找信号灯的进口道
func (m *Manager) Lane(group, head string) (*Lane, bool) {
	l, ok := m.byHead[group][head]
	return l, ok
}

// SetInflow 设置信号灯进口道的到达率（辆/秒）
// 返回：进口道不存在时返回false
func (m *Manager) SetInflow(group, head string, inflow float64) bool {
	l, ok := m.Lane(group, head)
	if !ok {
		return false
	}
	l.inflow = math.Max(0, inflow)
	log.Debugf("demand: %s/%s inflow %.3f veh/s", group, head, l.inflow)
	return true
}

// CycleListener 生成周期数据回调
// 功能：周期内各进口道的车辆数除以周期时长作为对应信号灯进口道的到达率
// 参数：group-控制组ID，approaches-文件中的进口道编号->信号灯名
func (m *Manager) CycleListener(group string, approaches map[string]string) func(*scats.Cycle) {
	return func(c *scats.Cycle) {
		if c.Duration <= 0 {
			return
		}
		for _, id := range c.ApproachOrder {
			head, ok := approaches[id]
			if !ok {
				continue
			}
			if !m.SetInflow(group, head, float64(c.ApproachInflows[id])/float64(c.Duration)) {
				log.Warnf("demand: approach %s of group %s maps to unknown head %s", id, group, head)
			}
		}
	}
}

// Vehicles 当前在网车辆数
func (m *Manager) Vehicles() int {
	return lo.SumBy(m.lanes, func(l *Lane) int { return l.vehicles.Len() })
}

func (m *Manager) Prepare() {}

// Update 更新阶段，推进所有进口道
// 说明：进口道之间不共享信号灯，使用并行处理提高性能
func (m *Manager) Update(dt float64) {
	parallel.GoFor(m.lanes, func(l *Lane) { l.update(dt) })
}
