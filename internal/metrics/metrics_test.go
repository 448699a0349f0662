package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	RetirementsTotal.WithLabelValues("unregistered_by_tracker", "false").Inc()
	RetirementFailuresTotal.WithLabelValues("stop").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"seedprune_sweeps_total",
		"seedprune_sweep_failures_total",
		"seedprune_sweep_duration_seconds",
		"seedprune_last_sweep_timestamp_seconds",
		"seedprune_torrents_examined",
		"seedprune_retirements_total",
		"seedprune_retirement_failures_total",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	assert.Panics(t, func() { Register(reg) })
}
