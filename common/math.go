package common

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Epsilon is the length below which a vector is treated as degenerate by the IK math helpers.
const Epsilon float32 = 1e-6

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// BytesToSlice reinterprets a byte slice as a slice of T for reading GPU buffer contents.
// Trailing bytes that do not fill a whole element are ignored. The caller must guarantee
// the byte slice is suitably aligned for T (device buffers are allocated on 4-byte words).
//
// Parameters:
//   - data: source byte slice
//
// Returns:
//   - []T: view of the same memory as a slice of T, or nil if data holds less than one element
func BytesToSlice[T any](data []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(data) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}

// Clamp restricts v to the closed range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp linearly interpolates between a and b by t.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// LerpVec3 linearly interpolates each component of a and b by t.
//
// Parameters:
//   - a: the start vector (t = 0)
//   - b: the end vector (t = 1)
//   - t: the interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{Lerp(a[0], b[0], t), Lerp(a[1], b[1], t), Lerp(a[2], b[2], t)}
}

// MulVec3 multiplies a and b component-wise (Hadamard product).
func MulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b mgl32.Vec3) float32 {
	return b.Sub(a).Len()
}

// DirectionOr returns the unit vector from a to b, or fallback when the two points coincide.
//
// Parameters:
//   - a: the origin point
//   - b: the destination point
//   - fallback: the unit direction to use when |b - a| is below Epsilon
//
// Returns:
//   - mgl32.Vec3: normalized direction from a to b
func DirectionOr(a, b, fallback mgl32.Vec3) mgl32.Vec3 {
	d := b.Sub(a)
	l := d.Len()
	if l < Epsilon {
		return fallback
	}
	return d.Mul(1 / l)
}

// QuatFromTo returns the shortest rotation that turns direction from into direction to,
// built from the normalized cross product axis and the clamped arc-cosine of the dot product.
// Returns the identity quaternion and false if either input is degenerate or the two are
// already aligned.
//
// Parameters:
//   - from: the source direction (need not be normalized)
//   - to: the destination direction (need not be normalized)
//
// Returns:
//   - mgl32.Quat: the delta rotation
//   - bool: true if a non-identity rotation was produced
func QuatFromTo(from, to mgl32.Vec3) (mgl32.Quat, bool) {
	lf, lt := from.Len(), to.Len()
	if lf < Epsilon || lt < Epsilon {
		return mgl32.QuatIdent(), false
	}
	f := from.Mul(1 / lf)
	t := to.Mul(1 / lt)
	dot := f.Dot(t)
	if dot > 1-Epsilon {
		return mgl32.QuatIdent(), false
	}
	axis := f.Cross(t)
	if axis.Len() < Epsilon {
		// Opposite directions: any axis perpendicular to f works.
		axis = f.Cross(mgl32.Vec3{1, 0, 0})
		if axis.Len() < Epsilon {
			axis = f.Cross(mgl32.Vec3{0, 1, 0})
		}
	}
	axis = axis.Normalize()
	angle := float32(math.Acos(float64(Clamp(dot, -1, 1))))
	return mgl32.QuatRotate(angle, axis), true
}

// SlerpShortest spherically interpolates between a and b along the shortest arc.
//
// Parameters:
//   - a: the start rotation (t = 0)
//   - b: the end rotation (t = 1)
//   - t: the interpolation factor
//
// Returns:
//   - mgl32.Quat: the interpolated, normalized rotation
func SlerpShortest(a, b mgl32.Quat, t float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, t).Normalize()
}
