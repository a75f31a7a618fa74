//go:build !opencl

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveCommand_OpenCLFallsBackWithoutTag(t *testing.T) {
	out, err := runCommand(t, "solve", "--backend", "opencl", "--chains", "8", "--joints", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "backend:        cpu")
	assert.NotContains(t, out, "cpu deviation:")
}
