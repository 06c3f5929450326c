package signal

import (
	"fmt"
	"strings"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// Status 信号灯灯色
type Status int32

const (
	StatusRed Status = iota
	StatusAmber
	StatusGreen
)

func (s Status) String() string {
	switch s {
	case StatusRed:
		return "RED"
	case StatusAmber:
		return "AMBER"
	case StatusGreen:
		return "GREEN"
	default:
		return fmt.Sprintf("STATUS(%d)", int32(s))
	}
}

// LightState 转换为地图协议中的灯色
func (s Status) LightState() mapv2.LightState {
	switch s {
	case StatusGreen:
		return mapv2.LightState_LIGHT_STATE_GREEN
	case StatusAmber:
		return mapv2.LightState_LIGHT_STATE_YELLOW
	default:
		return mapv2.LightState_LIGHT_STATE_RED
	}
}

// ParseStatus 解析灯色，接受RED/AMBER/YELLOW/GREEN（大小写不敏感）
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RED":
		return StatusRed, nil
	case "AMBER", "YELLOW":
		return StatusAmber, nil
	case "GREEN":
		return StatusGreen, nil
	}
	return StatusRed, fmt.Errorf("unknown signal status %q", s)
}

// Condition 相位中信号灯的触发条件
type Condition int32

const (
	ConditionNone    Condition = iota // 无条件
	ConditionRequest                  // 需要检测到车辆请求
)

func (c Condition) String() string {
	if c == ConditionRequest {
		return "REQUEST"
	}
	return "NONE"
}

// ParseCondition 解析触发条件，空字符串视为NONE
func ParseCondition(s string) (Condition, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return ConditionNone, nil
	case "REQUEST":
		return ConditionRequest, nil
	}
	return ConditionNone, fmt.Errorf("unknown signal condition %q", s)
}
