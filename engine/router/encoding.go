package router

import (
	"errors"
	"strconv"

	"github.com/Carmen-Shannon/oxy-camtex/common"
)

// ErrInvalidEncoding is returned when an encoding value is outside its enumeration.
var ErrInvalidEncoding = errors.New("router: invalid encoding")

// DepthEncoding selects the numeric transform applied to camera depth before it is written.
type DepthEncoding int32

const (
	// DepthEncodingRawBuffer copies the device depth value unchanged.
	DepthEncodingRawBuffer DepthEncoding = iota

	// DepthEncodingLinear01 writes linear depth normalized to [0, 1] between the camera and the far plane.
	DepthEncodingLinear01

	// DepthEncodingLinearEyeDistance writes linear eye-space depth in world units.
	DepthEncodingLinearEyeDistance
)

// Valid reports whether e is one of the defined encodings.
func (e DepthEncoding) Valid() bool {
	return e >= DepthEncodingRawBuffer && e <= DepthEncodingLinearEyeDistance
}

func (e DepthEncoding) String() string {
	switch e {
	case DepthEncodingRawBuffer:
		return "RawBuffer"
	case DepthEncodingLinear01:
		return "Linear01"
	case DepthEncodingLinearEyeDistance:
		return "LinearEyeDistance"
	}
	return "DepthEncoding(" + strconv.Itoa(int(e)) + ")"
}

// Encode applies the encoding to a raw depth buffer value on the CPU, matching what the
// compositing program writes. Invalid encodings pass z through.
//
// Parameters:
//   - z: the raw [0, 1] depth value
//   - zbuffer: the camera's z-buffer parameters
//
// Returns:
//   - float32: the encoded value
func (e DepthEncoding) Encode(z float32, zbuffer [4]float32) float32 {
	switch e {
	case DepthEncodingLinear01:
		return common.Linear01Depth(z, zbuffer)
	case DepthEncodingLinearEyeDistance:
		return common.LinearEyeDepth(z, zbuffer)
	}
	return z
}

// MotionEncoding selects the numeric transform applied to motion vectors before they are written.
type MotionEncoding int32

const (
	// MotionEncodingSigned copies the signed screen-space motion vector unchanged.
	MotionEncodingSigned MotionEncoding = iota

	// MotionEncodingCentered01 remaps each component from [-1, 1] to [0, 1], zero motion at 0.5.
	MotionEncodingCentered01
)

// Valid reports whether e is one of the defined encodings.
func (e MotionEncoding) Valid() bool {
	return e == MotionEncodingSigned || e == MotionEncodingCentered01
}

func (e MotionEncoding) String() string {
	switch e {
	case MotionEncodingSigned:
		return "Signed"
	case MotionEncodingCentered01:
		return "Centered01"
	}
	return "MotionEncoding(" + strconv.Itoa(int(e)) + ")"
}

// Encode applies the encoding to a motion vector on the CPU, matching what the compositing
// program writes.
//
// Parameters:
//   - mv: the signed motion vector
//
// Returns:
//   - [2]float32: the encoded vector
func (e MotionEncoding) Encode(mv [2]float32) [2]float32 {
	if e == MotionEncodingCentered01 {
		return [2]float32{mv[0]*0.5 + 0.5, mv[1]*0.5 + 0.5}
	}
	return mv
}
