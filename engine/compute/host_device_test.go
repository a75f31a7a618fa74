package compute

import (
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-ik/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleSource() ProgramSource {
	return ProgramSource{
		Label:       "double",
		EntryPoints: []string{"double"},
		Bindings:    []BufferUsage{BufferUsageStorageRead, BufferUsageStorage},
		Host: map[string]HostKernel{
			"double": func(id int, b [][]byte) {
				in := common.BytesToSlice[float32](b[0])
				out := common.BytesToSlice[float32](b[1])
				out[id] = in[id] * 2
			},
		},
	}
}

func TestHostDevice_DispatchRoundTrip(t *testing.T) {
	d := NewHostDevice(WithWorkers(4))
	defer d.Release()

	prog, err := d.CreateProgram(doubleSource())
	require.NoError(t, err)
	k, err := prog.Kernel("double")
	require.NoError(t, err)

	const n = 1000
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(i)
	}
	inBuf, err := d.CreateBuffer("in", n*4, BufferUsageStorageRead)
	require.NoError(t, err)
	outBuf, err := d.CreateBuffer("out", n*4, BufferUsageStorage)
	require.NoError(t, err)

	require.NoError(t, d.WriteBuffer(inBuf, 0, common.SliceToBytes(in)))
	require.NoError(t, d.Dispatch(k, []Buffer{inBuf, outBuf}, n))
	require.NoError(t, d.Finish())

	out := make([]float32, n)
	require.NoError(t, d.ReadBuffer(outBuf, 0, common.SliceToBytes(out)))
	for i := range out {
		assert.Equal(t, float32(2*i), out[i])
	}
}

func TestHostDevice_BufferSizeRoundsToWords(t *testing.T) {
	d := NewHostDevice()
	defer d.Release()

	b, err := d.CreateBuffer("odd", 7, BufferUsageStorage)
	require.NoError(t, err)
	assert.Equal(t, 8, b.Size())
}

func TestHostDevice_OutOfRangeTransfers(t *testing.T) {
	d := NewHostDevice()
	defer d.Release()

	b, err := d.CreateBuffer("small", 8, BufferUsageStorage)
	require.NoError(t, err)
	assert.ErrorIs(t, d.WriteBuffer(b, 4, make([]byte, 8)), ErrOutOfRange)
	assert.ErrorIs(t, d.ReadBuffer(b, -1, make([]byte, 4)), ErrOutOfRange)
}

func TestHostDevice_MissingHostKernel(t *testing.T) {
	d := NewHostDevice()
	defer d.Release()

	src := doubleSource()
	src.EntryPoints = append(src.EntryPoints, "triple")
	_, err := d.CreateProgram(src)
	assert.ErrorIs(t, err, ErrKernelNotFound)
}

func TestHostDevice_InvalidWGSLRejectedWhenValidating(t *testing.T) {
	d := NewHostDevice(WithSourceValidation(true))
	defer d.Release()

	src := doubleSource()
	src.WGSL = "@compute fn double( {"
	_, err := d.CreateProgram(src)
	assert.Error(t, err)
}

func TestHostDevice_ForeignAndReleasedResources(t *testing.T) {
	a := NewHostDevice()
	b := NewHostDevice()
	defer b.Release()

	buf, err := a.CreateBuffer("a", 4, BufferUsageStorage)
	require.NoError(t, err)
	assert.ErrorIs(t, b.WriteBuffer(buf, 0, []byte{1, 2, 3, 4}), ErrForeignResource)

	buf.Release()
	assert.ErrorIs(t, a.WriteBuffer(buf, 0, []byte{1, 2, 3, 4}), ErrReleased)

	a.Release()
	a.Release()
	_, err = a.CreateBuffer("late", 4, BufferUsageStorage)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestHostDevice_ParallelForVisitsEveryIDOnce(t *testing.T) {
	for _, tc := range []struct {
		name    string
		workers int
		items   int
	}{
		{"more items than workers", 3, 1000},
		{"fewer items than workers", 8, 5},
		{"single worker", 1, 17},
		{"no items", 4, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := NewHostDevice(WithWorkers(tc.workers)).(*hostDevice)
			defer d.Release()
			assert.Equal(t, tc.workers, d.ComputeUnits())

			hits := make([]atomic.Int32, tc.items)
			d.parallelFor(tc.items, func(id int) {
				hits[id].Add(1)
			})
			for id := range hits {
				assert.Equal(t, int32(1), hits[id].Load(), "id %d", id)
			}
		})
	}
}
