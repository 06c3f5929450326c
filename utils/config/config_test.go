package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal/utils/config"
	"gopkg.in/yaml.v2"
)

const configYAML = `
input:
  signals: data/signals.yaml
  feeds:
    - group: g1
      file: data/460.lst
      intersection: "460"
      layout: v2
      approaches: {"N1": n}
control:
  step: {start: 0, total: 3600, interval: 0.5}
  record_interval: 30
output:
  sqlite: out.db
demand:
  seed: 7
  inflow: 0.25
`

func TestRuntimeConfigDefaults(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{})
	assert.Equal(t, 60., rc.RecordInterval)
	assert.Equal(t, int32(1), rc.DataEvery)
	assert.Equal(t, 300., rc.LaneLength)
	assert.Equal(t, 13.89, rc.MaxSpeed)
	_, ok := rc.Feed("g1")
	assert.False(t, ok)
}

func TestRuntimeConfigFromYAML(t *testing.T) {
	var c config.Config
	require.NoError(t, yaml.UnmarshalStrict([]byte(configYAML), &c))
	rc := config.NewRuntimeConfig(c)
	assert.Equal(t, 30., rc.RecordInterval)
	assert.Equal(t, 0.5, rc.C.Step.Interval)
	assert.Equal(t, uint64(7), rc.All.Demand.Seed)

	f, ok := rc.Feed("g1")
	require.True(t, ok)
	assert.Equal(t, "460", f.Intersection)
	assert.Equal(t, "v2", f.Layout)
	assert.Equal(t, map[string]string{"N1": "n"}, f.Approaches)

	var bad config.Config
	assert.Error(t, yaml.UnmarshalStrict([]byte("control: {unknown: 1}"), &bad))
}
