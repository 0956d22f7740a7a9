package mediainfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameRateFraction(t *testing.T) {
	fps, err := ParseFrameRate("30000/1001")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, fps, 0.01)
}

func TestParseFrameRateWholeFraction(t *testing.T) {
	fps, err := ParseFrameRate("25/1")
	require.NoError(t, err)
	assert.Equal(t, 25.0, fps)
}

func TestParseFrameRateDecimal(t *testing.T) {
	fps, err := ParseFrameRate("23.976")
	require.NoError(t, err)
	assert.InDelta(t, 23.976, fps, 0.0001)
}

func TestParseFrameRateRejectsZeroDenominator(t *testing.T) {
	_, err := ParseFrameRate("30/0")
	assert.Error(t, err)
}

func TestParseFrameRateRejectsEmptyString(t *testing.T) {
	_, err := ParseFrameRate("")
	assert.Error(t, err)
}

func TestParseFrameRateRejectsGarbage(t *testing.T) {
	_, err := ParseFrameRate("not-a-rate")
	assert.Error(t, err)
}

func TestParseFrameRateTrimsWhitespace(t *testing.T) {
	fps, err := ParseFrameRate("  30/1  ")
	require.NoError(t, err)
	assert.Equal(t, 30.0, fps)
}
