package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 64, Coalesce(0, 64, 128))
	assert.Equal(t, "host", Coalesce("", "", "host"))
	assert.Zero(t, Coalesce[float32]())
	assert.Zero(t, Coalesce(0, 0))
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{13, 16, 16},
		{257, 256, 512},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
	}
}
