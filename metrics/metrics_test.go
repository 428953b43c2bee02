// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dhtcore/metrics"
)

func TestWorkflowMetricsRegistersAllFourCollectors(t *testing.T) {
	reg := metrics.NewRegistry()
	wm, err := metrics.NewWorkflowMetrics("dhtcore", "sys_validation", reg)
	require.NoError(t, err)

	wm.Processed().Inc()
	wm.Rejected().Inc()
	wm.Abandoned().Inc()
	wm.LimboDepth().Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestMultiGathererCombinesNamedRegistries(t *testing.T) {
	a := metrics.NewRegistry()
	_, err := metrics.NewWorkflowMetrics("dhtcore", "sys_validation", a)
	require.NoError(t, err)

	b := metrics.NewRegistry()
	_, err = metrics.NewWorkflowMetrics("dhtcore", "app_validation", b)
	require.NoError(t, err)

	mg := metrics.NewMultiGatherer()
	require.NoError(t, mg.Register("space-a", a))
	require.NoError(t, mg.Register("space-b", b))

	families, err := mg.Gather()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(families), 2, "combined gather must see metrics from both spaces")
}

func TestAsLuxMetricExposesTheSameGatherResults(t *testing.T) {
	reg := metrics.NewRegistry()
	_, err := metrics.NewWorkflowMetrics("dhtcore", "integration", reg)
	require.NoError(t, err)

	mg := metrics.NewMultiGatherer()
	require.NoError(t, mg.Register("space-a", reg))

	luxGatherer := metrics.AsLuxMetric(mg)
	families, err := luxGatherer.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
