package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	controller := NewController(limits)

	require.Equal(t, limits, controller.LimitsSnapshot())

	require.NoError(t, controller.AcquireRequest(context.Background()))
	controller.ReleaseRequest()

	require.NoError(t, controller.AcquireDataset(context.Background()))
	controller.ReleaseDataset()
}

func TestNewLimitsDefaults(t *testing.T) {
	limits := NewLimits(0, 0)
	require.Positive(t, limits.MaxConcurrentRequests)
	require.Positive(t, limits.MaxOpenDatasets)
	require.Positive(t, limits.MaxRowsPerOp)
	require.Positive(t, limits.PreviewRowLimit)
}
