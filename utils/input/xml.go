package input

import (
	"fmt"
	"strconv"

	"github.com/clbanning/mxj/v2"
)

// ParseXML 解析XML格式的控制组定义
// 格式：
//
//	<TrafficControl>
//	  <ControllerGroup id="g1">
//	    <TrafficControlStrategy type="VehicleActuated" gap="5" range="30"/>
//	    <TrafficLight name="north" position="280"/>
//	    <Phase id="A" min="5" max="60" duration="30" intergreen="3" allRed="2">
//	      <TrafficLightState name="north" status="Green" condition="Request"/>
//	    </Phase>
//	  </ControllerGroup>
//	</TrafficControl>
func ParseXML(data []byte) (File, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return File{}, fmt.Errorf("parse signal xml: %w", err)
	}
	root, ok := m["TrafficControl"].(map[string]interface{})
	if !ok {
		return File{}, fmt.Errorf("parse signal xml: missing TrafficControl element")
	}
	var file File
	for _, g := range elements(root, "ControllerGroup") {
		d, err := parseGroup(g)
		if err != nil {
			return File{}, err
		}
		file.Groups = append(file.Groups, d)
	}
	return file, nil
}

// elements 取出子元素列表，单个元素与重复元素统一为切片
func elements(parent map[string]interface{}, name string) []map[string]interface{} {
	switch v := parent[name].(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if e, ok := item.(map[string]interface{}); ok {
				out = append(out, e)
			}
		}
		return out
	}
	return nil
}

func attr(e map[string]interface{}, name string) string {
	s, _ := e["-"+name].(string)
	return s
}

// floatAttr 解析数值属性，属性不存在时返回0
func floatAttr(e map[string]interface{}, name string) (float64, error) {
	s := attr(e, name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s=%q: %w", name, s, err)
	}
	return v, nil
}

func parseGroup(g map[string]interface{}) (GroupDef, error) {
	d := GroupDef{ID: attr(g, "id")}
	var err error
	if s := elements(g, "TrafficControlStrategy"); len(s) > 0 {
		d.Strategy.Type = attr(s[0], "type")
		if d.Strategy.Gap, err = floatAttr(s[0], "gap"); err != nil {
			return d, fmt.Errorf("group %s: %w", d.ID, err)
		}
		if d.Strategy.Range, err = floatAttr(s[0], "range"); err != nil {
			return d, fmt.Errorf("group %s: %w", d.ID, err)
		}
		if d.Strategy.Lookahead, err = floatAttr(s[0], "lookahead"); err != nil {
			return d, fmt.Errorf("group %s: %w", d.ID, err)
		}
	}
	for _, h := range elements(g, "TrafficLight") {
		head := HeadDef{Name: attr(h, "name")}
		if attr(h, "position") != "" {
			pos, err := floatAttr(h, "position")
			if err != nil {
				return d, fmt.Errorf("group %s head %s: %w", d.ID, head.Name, err)
			}
			head.Position = &pos
		}
		d.Heads = append(d.Heads, head)
	}
	for _, p := range elements(g, "Phase") {
		phase, err := parsePhase(p)
		if err != nil {
			return d, fmt.Errorf("group %s: %w", d.ID, err)
		}
		d.Phases = append(d.Phases, phase)
	}
	return d, nil
}

func parsePhase(p map[string]interface{}) (PhaseDef, error) {
	d := PhaseDef{ID: attr(p, "id")}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"min", &d.Min},
		{"max", &d.Max},
		{"duration", &d.Duration},
		{"intergreen", &d.Intergreen},
		{"allRed", &d.AllRed},
	} {
		v, err := floatAttr(p, f.name)
		if err != nil {
			return d, fmt.Errorf("phase %s: %w", d.ID, err)
		}
		*f.dst = v
	}
	for _, s := range elements(p, "TrafficLightState") {
		d.States = append(d.States, StateDef{
			Name:      attr(s, "name"),
			Status:    attr(s, "status"),
			Condition: attr(s, "condition"),
		})
	}
	return d, nil
}
