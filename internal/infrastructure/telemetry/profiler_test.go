package telemetry

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())

	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop(), "second stop is a no-op")
}

func TestNewProfiler_RequiresServerAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "server address is required")
}

func TestProfileTypes(t *testing.T) {
	base := profileTypes(false)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}, base)

	all := profileTypes(true)
	assert.Len(t, all, len(base)+4)
	assert.Contains(t, all, pyroscope.ProfileMutexDuration)
	assert.Contains(t, all, pyroscope.ProfileBlockDuration)
}
