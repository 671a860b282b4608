package renderer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/Carmen-Shannon/oxy-camtex/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoCamera is returned by RenderCamera when called without a camera.
var ErrNoCamera = errors.New("renderer: no camera")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	executor    rendergraph.Executor
	handles     *rendergraph.HandleSystem

	features []Feature
	frame    uint64
	target   *rendergraph.RTHandle

	// Pre-creation config collected from builder options
	surface              Surface
	width                uint32
	height               uint32
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	workers              int
}

// Renderer drives the per-camera frame: it collects the passes of its features, schedules them
// between the built-in camera stages, records them into a frame graph and executes the graph on
// the backend.
//
// Built-in stages, in event order:
//   - DepthPrepass (BeforeRenderingPrePasses): only when an enqueued pass requests PassInputDepth
//   - DrawOpaqueObjects (BeforeRenderingOpaques)
//   - MotionVectors (BeforeRenderingTransparents): only when an enqueued pass requests PassInputMotion
//   - PostProcessing (BeforeRenderingPostProcessing): after feature passes of the same event, never culled
type Renderer interface {
	// AddFeature registers a feature. A feature with the same name replaces the existing one.
	//
	// Parameters:
	//   - f: the feature to add
	AddFeature(f Feature)

	// RemoveFeature unregisters and disposes the feature with the given name.
	//
	// Parameters:
	//   - name: the feature name
	//
	// Returns:
	//   - bool: true if a feature was removed
	RemoveFeature(name string) bool

	// Features returns the registered features in registration order.
	Features() []Feature

	// RenderCamera renders one frame for the camera. Disabled cameras are skipped.
	// A pass that fails to record is logged and left out of the frame.
	//
	// Parameters:
	//   - ctx: cancels recording between dependency levels
	//   - cam: the camera to render
	//
	// Returns:
	//   - *rendergraph.CompiledGraph: the executed graph, nil when the camera was skipped
	//   - error: an error if the frame could not be executed
	RenderCamera(ctx context.Context, cam camera.Camera) (*rendergraph.CompiledGraph, error)

	// Resize resizes the camera target.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the backend could not resize
	Resize(width, height int) error

	// SetPresentMode sets the surface present mode.
	SetPresentMode(mode PresentMode)

	// Present displays the last rendered frame.
	Present()

	// Handles returns the RT handle system used for imported textures.
	Handles() *rendergraph.HandleSystem

	// Backend returns the backend executing the frame graphs.
	Backend() RendererBackend

	// NewRenderTexture creates a texture on the backend's GPU device, typically a destination
	// for routed camera buffers.
	//
	// Parameters:
	//   - options: the texture options
	//
	// Returns:
	//   - texture.RenderTexture: the texture
	//   - error: texture.ErrNoDevice if the backend has no GPU device, or a creation error
	NewRenderTexture(options ...texture.RenderTextureBuilderOption) (texture.RenderTexture, error)

	// Frame returns the number of the last rendered frame.
	Frame() uint64

	// Release disposes every feature and releases the backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer. Without WithBackend a WebGPU backend is created, presenting to
// the surface given by WithSurface or rendering offscreen otherwise.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - Renderer: the created renderer
//   - error: an error if the GPU backend could not be created
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: BackendTypeWGPU,
		handles:     rendergraph.DefaultHandles(),
		width:       1280,
		height:      720,
	}

	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch r.backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			b, err := newWGPURendererBackend(r.surface, r.width, r.height, r.forceFallbackAdapter)
			if err != nil {
				return nil, err
			}
			r.backend = b
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if r.executor == nil {
		if r.workers > 0 {
			r.executor = rendergraph.NewExecutor(rendergraph.WithWorkers(r.workers))
		} else {
			r.executor = rendergraph.NewExecutor()
		}
	}

	r.bindTarget()
	return r, nil
}

func (r *renderer) AddFeature(f Feature) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.features {
		if existing.Name() == f.Name() {
			if existing != f {
				existing.Dispose()
			}
			r.features[i] = f
			return
		}
	}
	r.features = append(r.features, f)
}

func (r *renderer) RemoveFeature(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, f := range r.features {
		if f.Name() == name {
			f.Dispose()
			r.features = slices.Delete(r.features, i, i+1)
			return true
		}
	}
	return false
}

func (r *renderer) Features() []Feature {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.features)
}

func (r *renderer) RenderCamera(ctx context.Context, cam camera.Camera) (*rendergraph.CompiledGraph, error) {
	if cam == nil {
		return nil, ErrNoCamera
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !cam.Enabled() {
		common.Logger().Debug("renderer: camera disabled, frame skipped", "camera", cam.Name())
		return nil, nil
	}

	r.frame++
	frame := &FrameData{Camera: cam, Frame: r.frame}

	w, h := cam.PixelSize()
	if err := r.ensureTarget(w, h); err != nil {
		return nil, fmt.Errorf("render camera %q: %w", cam.Name(), err)
	}

	features := &passQueue{}
	for _, f := range r.features {
		f.AddRenderPasses(features, frame)
	}
	schedule := r.schedule(features)

	g := rendergraph.NewGraph(r.frame)
	target := r.target.Texture()
	frame.Resources.CameraColor = g.ImportTexture(r.target, rendergraph.RenderTargetInfo{
		Format:      target.Format(),
		Width:       target.Width(),
		Height:      target.Height(),
		VolumeDepth: 1,
		MSAASamples: 1,
	})

	for _, p := range schedule {
		if err := p.RecordRenderGraph(g, frame); err != nil {
			common.Logger().Warn("renderer: pass left out of frame",
				"pass", p.Name(), "camera", cam.Name(), "frame", r.frame, "error", err)
		}
	}

	compiled, err := r.executor.Execute(ctx, g, r.backend)
	if err != nil {
		return compiled, fmt.Errorf("render camera %q: %w", cam.Name(), err)
	}
	return compiled, nil
}

// schedule merges the feature passes with the built-in stages the features need.
func (r *renderer) schedule(features *passQueue) []RenderPass {
	needs := features.inputs()

	all := &passQueue{}
	if needs.Has(PassInputDepth) {
		all.EnqueuePass(depthPrepass{})
	}
	all.EnqueuePass(opaquePass{})
	if needs.Has(PassInputMotion) {
		all.EnqueuePass(motionVectorPass{})
	}
	for _, p := range features.passes {
		all.EnqueuePass(p)
	}
	all.EnqueuePass(postProcessPass{})
	return all.sorted()
}

// ensureTarget resizes the camera target to the camera's pixel size and rebinds the handle when
// the backend replaced the texture.
func (r *renderer) ensureTarget(width, height uint32) error {
	current := r.backend.CameraTarget()
	if current != nil && current.Width() == width && current.Height() == height {
		r.bindTarget()
		return nil
	}
	if err := r.backend.Resize(width, height); err != nil {
		return err
	}
	r.bindTarget()
	return nil
}

func (r *renderer) bindTarget() {
	tex := r.backend.CameraTarget()
	if r.target.IsValid() && r.target.Texture() == tex {
		return
	}
	r.target.Release()
	r.target = r.handles.Alloc(tex, "CameraTarget")
}

func (r *renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.Resize(uint32(width), uint32(height)); err != nil {
		return err
	}
	r.bindTarget()
	return nil
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Handles() *rendergraph.HandleSystem {
	return r.handles
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

// deviceBackend is implemented by backends that own a GPU device.
type deviceBackend interface {
	Device() *wgpu.Device
}

func (r *renderer) NewRenderTexture(options ...texture.RenderTextureBuilderOption) (texture.RenderTexture, error) {
	var device *wgpu.Device
	if b, ok := r.backend.(deviceBackend); ok {
		device = b.Device()
	}
	return texture.NewRenderTexture(device, options...)
}

func (r *renderer) Frame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.features {
		f.Dispose()
	}
	r.features = nil
	r.target.Release()
	r.target = nil
	r.backend.Release()
}
