package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptionsValidateCollectsAllErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.Method = "fastest"
	opts.DefaultBuffer = 0
	opts.Buffers = map[string]float64{"cafe": -1}
	opts.MaxMergeRounds = 0

	err := opts.Validate()
	require.Error(t, err)
	for _, want := range []string{"method", "default_buffer", `"cafe"`, "round ceilings"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestBufferForBusinessType(t *testing.T) {
	opts := DefaultOptions()
	opts.Buffers = map[string]float64{"pharmacy": 0.8}

	assert.Equal(t, 0.8, opts.BufferFor("pharmacy"))
	assert.Equal(t, 0.8, opts.BufferFor(" Pharmacy "))
	assert.Equal(t, 1.0, opts.BufferFor("grocery"))
	assert.Equal(t, 1.0, opts.BufferFor(""))
}
