package input

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
)

var (
	ErrUnknownHead     = errors.New("phase references an undefined signal head")
	ErrMissingPosition = errors.New("signal head has no position")
	ErrNoPhases        = errors.New("controller group has no phases")
)

// StrategyDef 控制策略配置
type StrategyDef struct {
	Type      string  `yaml:"type"`
	Gap       float64 `yaml:"gap,omitempty"`       // 车头时距条件（秒）
	Range     float64 `yaml:"range,omitempty"`     // 检测范围（米）
	Lookahead float64 `yaml:"lookahead,omitempty"` // 前瞻时间（秒）
}

// HeadDef 信号灯定义
type HeadDef struct {
	Name     string   `yaml:"name"`
	Position *float64 `yaml:"position"` // 信号灯距进口道起点的距离（米）
}

// StateDef 相位中单个信号灯的灯色
type StateDef struct {
	Name      string `yaml:"name"`
	Status    string `yaml:"status"`
	Condition string `yaml:"condition,omitempty"`
}

// PhaseDef 相位定义
type PhaseDef struct {
	ID         string     `yaml:"id"`
	Min        float64    `yaml:"min,omitempty"`
	Max        float64    `yaml:"max,omitempty"` // 为0时不限制最长绿灯
	Duration   float64    `yaml:"duration,omitempty"`
	Intergreen float64    `yaml:"intergreen,omitempty"`
	AllRed     float64    `yaml:"all_red,omitempty"`
	States     []StateDef `yaml:"states"`
}

// GroupDef 控制组定义
type GroupDef struct {
	ID       string      `yaml:"id"`
	Strategy StrategyDef `yaml:"strategy"`
	Heads    []HeadDef   `yaml:"heads"`
	Phases   []PhaseDef  `yaml:"phases"`
}

// File 控制组定义文件
type File struct {
	Groups []GroupDef `yaml:"groups"`
}

// Head 校验后的信号灯
type Head struct {
	Name     string
	Position float64
}

// Group 校验后的控制组
type Group struct {
	ID       string
	Strategy StrategyDef
	Heads    []Head
	Phases   []*signal.Phase
}

// Resolve 校验控制组定义并转换为运行时相位
// 功能：检查相位引用的信号灯均已定义且有位置，解析灯色与触发条件
// 返回：控制组；配置错误时返回错误（ErrNoPhases、ErrUnknownHead、ErrMissingPosition或灯色解析错误）
func (d GroupDef) Resolve() (*Group, error) {
	if len(d.Phases) == 0 {
		return nil, fmt.Errorf("group %s: %w", d.ID, ErrNoPhases)
	}
	g := &Group{ID: d.ID, Strategy: d.Strategy}
	defined := make(map[string]struct{}, len(d.Heads))
	for _, h := range d.Heads {
		if h.Position == nil {
			return nil, fmt.Errorf("group %s head %s: %w", d.ID, h.Name, ErrMissingPosition)
		}
		if _, ok := defined[h.Name]; ok {
			return nil, fmt.Errorf("group %s: duplicate head %s", d.ID, h.Name)
		}
		defined[h.Name] = struct{}{}
		g.Heads = append(g.Heads, Head{Name: h.Name, Position: *h.Position})
	}
	for _, pd := range d.Phases {
		p := &signal.Phase{
			ID:         pd.ID,
			Min:        pd.Min,
			Max:        lo.Ternary(pd.Max > 0, pd.Max, mathutil.INF),
			Duration:   pd.Duration,
			Intergreen: pd.Intergreen,
			AllRed:     pd.AllRed,
		}
		for _, sd := range pd.States {
			if _, ok := defined[sd.Name]; !ok {
				return nil, fmt.Errorf("group %s phase %s head %s: %w", d.ID, pd.ID, sd.Name, ErrUnknownHead)
			}
			status, err := signal.ParseStatus(sd.Status)
			if err != nil {
				return nil, fmt.Errorf("group %s phase %s: %w", d.ID, pd.ID, err)
			}
			cond, err := signal.ParseCondition(sd.Condition)
			if err != nil {
				return nil, fmt.Errorf("group %s phase %s: %w", d.ID, pd.ID, err)
			}
			p.States = append(p.States, signal.HeadState{Name: sd.Name, Status: status, Condition: cond})
		}
		g.Phases = append(g.Phases, p)
	}
	return g, nil
}
