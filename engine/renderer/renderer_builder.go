package renderer

import (
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackend sets the backend the renderer executes frame graphs on instead of creating a WebGPU backend.
//
// Parameters:
//   - b: the backend to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}

// WithSurface makes the created WebGPU backend present to the given surface, usually a window.
//
// Parameters:
//   - s: the presentation surface
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithSurface(s Surface) RendererBuilderOption {
	return func(r *renderer) {
		r.surface = s
		if s != nil && s.Width() > 0 && s.Height() > 0 {
			r.width = uint32(s.Width())
			r.height = uint32(s.Height())
		}
	}
}

// WithSize sets the initial size of the camera target. Zero dimensions are ignored.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 {
			r.width = width
		}
		if height > 0 {
			r.height = height
		}
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithFeature registers a feature at construction.
func WithFeature(f Feature) RendererBuilderOption {
	return func(r *renderer) {
		if f != nil {
			r.features = append(r.features, f)
		}
	}
}

// WithHandleSystem sets the RT handle system. Defaults to rendergraph.DefaultHandles.
func WithHandleSystem(h *rendergraph.HandleSystem) RendererBuilderOption {
	return func(r *renderer) {
		if h != nil {
			r.handles = h
		}
	}
}

// WithExecutor sets the frame graph executor.
func WithExecutor(e rendergraph.Executor) RendererBuilderOption {
	return func(r *renderer) {
		r.executor = e
	}
}

// WithWorkers sets the number of workers recording passes when no executor is given.
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = n
	}
}
