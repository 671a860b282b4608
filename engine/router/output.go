package router

import (
	"reflect"

	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

const (
	// DepthOutputName is the name of RT handles allocated for depth destinations.
	DepthOutputName = "DepthOutput"

	// MotionOutputName is the name of RT handles allocated for motion destinations.
	MotionOutputName = "MotionOutput"
)

// OutputBinding is a destination texture wrapped as an importable frame graph resource together
// with its target description. The zero value is the absent binding.
type OutputBinding struct {
	handle *rendergraph.RTHandle
	info   rendergraph.RenderTargetInfo
}

// Bind wraps dst as an output binding. A nil destination, including a nil pointer held in the
// interface, yields the absent binding.
// The binding always describes a single resolved surface: MSAASamples is 1 whatever the
// sample count of dst, and BindMS records whether dst itself is multisampled.
//
// Parameters:
//   - handles: the system to allocate the RT handle from, rendergraph.DefaultHandles when nil
//   - dst: the destination texture
//   - name: the debug name of the handle, the texture's name when empty
//
// Returns:
//   - OutputBinding: the binding, owning a newly allocated handle when present
func Bind(handles *rendergraph.HandleSystem, dst rendergraph.ExternalTexture, name string) OutputBinding {
	dst = destination(dst)
	if dst == nil {
		return OutputBinding{}
	}
	if handles == nil {
		handles = rendergraph.DefaultHandles()
	}
	if name == "" {
		name = dst.Name()
	}
	return OutputBinding{
		handle: handles.Alloc(dst, name),
		info: rendergraph.RenderTargetInfo{
			Format:      dst.Format(),
			Width:       dst.Width(),
			Height:      dst.Height(),
			VolumeDepth: dst.DepthOrArrayLayers(),
			MSAASamples: 1,
			BindMS:      dst.SampleCount() > 1,
		},
	}
}

// Present reports whether the binding holds a handle.
func (b OutputBinding) Present() bool {
	return b.handle != nil
}

// Valid reports whether the binding is present and its handle can still be imported,
// i.e. it was not released and the destination texture still exists.
func (b OutputBinding) Valid() bool {
	return b.handle.IsValid()
}

// Handle returns the RT handle, nil when absent.
func (b OutputBinding) Handle() *rendergraph.RTHandle {
	return b.handle
}

// Info returns the target description captured when the binding was created.
func (b OutputBinding) Info() rendergraph.RenderTargetInfo {
	return b.info
}

// Release releases the handle and resets b to the absent binding. Releasing an absent binding does nothing.
func (b *OutputBinding) Release() {
	b.handle.Release()
	*b = OutputBinding{}
}

// destination folds a typed nil texture into a nil interface.
func destination(tex rendergraph.ExternalTexture) rendergraph.ExternalTexture {
	if tex == nil {
		return nil
	}
	switch v := reflect.ValueOf(tex); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return tex
}
