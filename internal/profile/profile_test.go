package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownPresets(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Resolve(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			assert.Greater(t, p.CRF, 0)
			assert.Greater(t, p.MaxHeight, 0)
			assert.NotEmpty(t, p.SpeedPreset)
			assert.NotEmpty(t, p.AudioBitrate)
		})
	}
}

func TestResolveTrimsWhitespace(t *testing.T) {
	p, err := Resolve("  balanced-720 ")
	require.NoError(t, err)
	assert.Equal(t, "balanced-720", p.Name)
}

func TestResolveUnknownPreset(t *testing.T) {
	_, err := Resolve("ultra-4k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compression preset")
	// The error should name the valid options so the operator can fix the config.
	assert.Contains(t, err.Error(), "balanced-720")
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
