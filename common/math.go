package common

import "math"

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// Perspective creates a perspective projection matrix mapping view-space depth
// in [near, far] to WebGPU clip-space depth [0, 1] (not reversed).
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
}

// ZBufferParams derives the depth linearization constants for a projection built
// by Perspective. The layout is (1-far/near, far/near, x/far, y/far), so that
//
//	linear01 = 1 / (x*z + y)
//	eye      = 1 / (z*z + w)
//
// where z is the raw [0, 1] depth buffer value.
//
// Parameters:
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - [4]float32: the (x, y, z, w) linearization constants
func ZBufferParams(near, far float32) [4]float32 {
	x := 1 - far/near
	y := far / near
	return [4]float32{x, y, x / far, y / far}
}

// Linear01Depth converts a raw depth buffer value to a linear depth in [0, 1]
// where 1 is the far plane.
func Linear01Depth(z float32, params [4]float32) float32 {
	return 1 / (params[0]*z + params[1])
}

// LinearEyeDepth converts a raw depth buffer value to the view-space distance
// from the camera plane.
func LinearEyeDepth(z float32, params [4]float32) float32 {
	return 1 / (params[2]*z + params[3])
}
