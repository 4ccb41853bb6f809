package dockerengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineTimestamp_NanosecondPrecision(t *testing.T) {
	got, err := parseEngineTimestamp("2024-01-01T00:00:00.123456789Z")
	require.NoError(t, err)

	want := 1704067200.0 + 0.123456789
	assert.InDelta(t, want, got, 1e-9)
}

func TestParseEngineTimestamp_NoFraction(t *testing.T) {
	got, err := parseEngineTimestamp("2024-01-01T00:00:01Z")
	require.NoError(t, err)
	assert.Equal(t, 1704067201.0, got)
}

func TestExecTime_Killed(t *testing.T) {
	got, err := execTime("2024-01-01T00:00:00.123456789Z", sentinelFinishedAt)
	require.NoError(t, err)
	assert.Equal(t, -1.0, got)
}

func TestExecTime_RealRun(t *testing.T) {
	got, err := execTime("2024-01-01T00:00:00.000000000Z", "2024-01-01T00:00:02.500000000Z")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got, 1e-9)
	assert.False(t, math.Signbit(got))
}
