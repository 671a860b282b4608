package renderer

import (
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Surface is the presentation target a windowed backend renders into.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// RendererBackend executes compiled frame graphs and owns the camera color target.
type RendererBackend interface {
	rendergraph.Backend

	// CameraTarget returns the texture camera color is rendered into. The returned value changes
	// when Resize has to recreate the target.
	CameraTarget() rendergraph.ExternalTexture

	// Resize makes the camera target the given size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the target could not be recreated
	Resize(width, height uint32) error

	// SetPresentMode sets how frames are delivered to the display. Headless backends ignore it.
	SetPresentMode(mode PresentMode)

	// Present shows the last finished frame. Headless backends ignore it.
	Present()

	// Release frees every GPU object owned by the backend.
	Release()
}
