package input_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/input"
)

const planXML = `<?xml version="1.0" encoding="UTF-8"?>
<TrafficControl>
  <ControllerGroup id="plan1">
    <TrafficControlStrategy type="VehicleActuated" gap="5" range="30"/>
    <TrafficLight name="north" position="280"/>
    <TrafficLight name="east" position="290.5"/>
    <Phase id="A" min="5" max="60" duration="30" intergreen="3" allRed="2">
      <TrafficLightState name="north" status="Green"/>
      <TrafficLightState name="east" status="Red"/>
    </Phase>
    <Phase id="B" min="5" duration="20" intergreen="3" allRed="2">
      <TrafficLightState name="north" status="Red"/>
      <TrafficLightState name="east" status="Green" condition="Request"/>
    </Phase>
  </ControllerGroup>
  <ControllerGroup id="plan2">
    <TrafficControlStrategy type="SCATSData"/>
    <TrafficLight name="west" position="100"/>
    <Phase id="A" duration="40">
      <TrafficLightState name="west" status="Green"/>
    </Phase>
  </ControllerGroup>
</TrafficControl>
`

const planYAML = `
groups:
  - id: plan1
    strategy: {type: VehicleActuated, gap: 5, range: 30}
    heads:
      - {name: north, position: 280}
      - {name: east, position: 290.5}
    phases:
      - id: A
        min: 5
        max: 60
        duration: 30
        intergreen: 3
        all_red: 2
        states:
          - {name: north, status: GREEN}
          - {name: east, status: RED}
      - id: B
        min: 5
        duration: 20
        intergreen: 3
        all_red: 2
        states:
          - {name: north, status: RED}
          - {name: east, status: GREEN, condition: REQUEST}
  - id: plan2
    strategy: {type: SCATSData}
    heads:
      - {name: west, position: 100}
    phases:
      - id: A
        duration: 40
        states:
          - {name: west, status: GREEN}
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestXMLAndYAMLLoadEqual(t *testing.T) {
	fromXML, err := input.Load(write(t, "plan.xml", planXML))
	require.NoError(t, err)
	fromYAML, err := input.Load(write(t, "plan.yaml", planYAML))
	require.NoError(t, err)
	assert.Equal(t, fromXML, fromYAML)

	require.Len(t, fromXML, 2)
	g := fromXML[0]
	assert.Equal(t, "plan1", g.ID)
	assert.Equal(t, "VehicleActuated", g.Strategy.Type)
	assert.Equal(t, []input.Head{{Name: "north", Position: 280}, {Name: "east", Position: 290.5}}, g.Heads)
	require.Len(t, g.Phases, 2)
	assert.Equal(t, 60., g.Phases[0].Max)
	assert.True(t, math.IsInf(g.Phases[1].Max, 1))
	assert.Equal(t, signal.ConditionRequest, g.Phases[1].States[1].Condition)
	assert.Equal(t, signal.StatusGreen, g.Phases[1].States[1].Status)
}

func TestResolveErrors(t *testing.T) {
	pos := 10.
	cases := []struct {
		name string
		def  input.GroupDef
		err  error
	}{
		{"no phases", input.GroupDef{ID: "g"}, input.ErrNoPhases},
		{"missing position", input.GroupDef{
			ID:     "g",
			Heads:  []input.HeadDef{{Name: "a"}},
			Phases: []input.PhaseDef{{ID: "A", States: []input.StateDef{{Name: "a", Status: "GREEN"}}}},
		}, input.ErrMissingPosition},
		{"unknown head", input.GroupDef{
			ID:     "g",
			Heads:  []input.HeadDef{{Name: "a", Position: &pos}},
			Phases: []input.PhaseDef{{ID: "A", States: []input.StateDef{{Name: "b", Status: "GREEN"}}}},
		}, input.ErrUnknownHead},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.def.Resolve()
			assert.ErrorIs(t, err, c.err)
		})
	}

	_, err := input.GroupDef{
		ID:     "g",
		Heads:  []input.HeadDef{{Name: "a", Position: &pos}},
		Phases: []input.PhaseDef{{ID: "A", States: []input.StateDef{{Name: "a", Status: "BLUE"}}}},
	}.Resolve()
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	_, err := input.Load(write(t, "plan.json", "{}"))
	assert.Error(t, err)
	_, err = input.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = input.Load(write(t, "plan.yaml", "groups: [{id: g, unknown: 1}]"))
	assert.Error(t, err)
	_, err = input.Load(write(t, "plan.xml", "<Other/>"))
	assert.Error(t, err)
	dup := "groups:\n  - {id: g, phases: [{id: A}]}\n  - {id: g, phases: [{id: A}]}\n"
	_, err = input.Load(write(t, "dup.yaml", dup))
	assert.Error(t, err)
}
