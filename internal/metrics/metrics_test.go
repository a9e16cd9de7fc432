package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEnableDisable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventsTotal.WithLabelValues("user", "harvester", "high").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("user", "harvester", "high")))

	// registering twice must fail while enabled
	assert.Panics(t, func() { m.Enable(reg) })

	m.Disable(reg)
	assert.NotPanics(t, func() { m.Enable(reg) })
}
