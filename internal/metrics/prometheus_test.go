package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/metrics"
)

func TestPrometheusCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	p.RoundCompleted(2, false, false, 0.01)
	p.RoundCompleted(2, true, false, 0.02)
	p.RoundRejected("not_enough_participants")
	p.TokenDispensed(false)
	p.ContentDispensed("sequence")
	p.ContentDispensed("sequence")
	p.GroupsChanged(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pairwise_rounds_total"])
	assert.True(t, names["pairwise_content_dispensed_total"])
	assert.Len(t, families, 7)
}

func TestPrometheusDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)
	_, err = metrics.NewPrometheus(reg)
	assert.Error(t, err)
}

func TestNopSatisfiesCollector(t *testing.T) {
	var c metrics.Collector = metrics.Nop{}
	c.RoundCompleted(1, false, true, 0)
}
