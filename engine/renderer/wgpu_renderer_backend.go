package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/Carmen-Shannon/oxy-camtex/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoFrame is returned when a pass is submitted outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame was not ended.
	ErrFrameInProgress = errors.New("renderer: frame already in progress")

	// ErrNoView is returned when an attachment or read has no GPU view the backend can bind.
	ErrNoView = errors.New("renderer: texture has no view")

	// ErrMissingTexture is returned when a draw does not set a texture its variant samples.
	ErrMissingTexture = errors.New("renderer: draw is missing a texture")
)

// attachmentViewer is implemented by imported textures the backend can render into.
type attachmentViewer interface {
	AttachmentView() *wgpu.TextureView
}

// sampleViewer is implemented by imported textures the backend can bind for sampling.
type sampleViewer interface {
	SampleView() *wgpu.TextureView
}

type transientKey struct {
	format wgpu.TextureFormat
	width  uint32
	height uint32
}

// surfaceTarget is the camera target of a windowed backend. Its view is the swapchain image of
// the frame in progress.
type surfaceTarget struct {
	width   uint32
	height  uint32
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ rendergraph.ExternalTexture = &surfaceTarget{}

func (s *surfaceTarget) Name() string { return "Surface" }
func (s *surfaceTarget) Width() uint32 { return s.width }
func (s *surfaceTarget) Height() uint32 { return s.height }
func (s *surfaceTarget) DepthOrArrayLayers() uint32 { return 1 }
func (s *surfaceTarget) Format() wgpu.TextureFormat { return s.format }
func (s *surfaceTarget) SampleCount() uint32 { return 1 }
func (s *surfaceTarget) IsCreated() bool { return s.width > 0 && s.height > 0 }
func (s *surfaceTarget) AttachmentView() *wgpu.TextureView { return s.view }

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	clearColor  wgpu.Color

	// exactly one of the two targets is set, depending on whether the backend presents to a surface
	surfaceTarget *surfaceTarget
	offscreen     texture.RenderTexture

	pipelines *pipeline.Cache

	// free transient textures by format and size, reused across frames
	pool map[transientKey][]texture.RenderTexture

	// Frame state between BeginFrame and EndFrame
	frameEncoder    *wgpu.CommandEncoder
	frameTransients map[rendergraph.TextureHandle]texture.RenderTexture
	frameBuffers    []*wgpu.Buffer
	frameBindGroups []*wgpu.BindGroup
	targetCleared   bool
	presentable     bool
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates the WebGPU backend. With a nil surface the camera target is an
// offscreen texture of the given size.
func newWGPURendererBackend(s Surface, width, height uint32, forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		pool:        make(map[transientKey][]texture.RenderTexture),
	}

	options := &wgpu.RequestAdapterOptions{ForceFallbackAdapter: forceFallbackAdapter}
	if s != nil {
		b.surface = b.instance.CreateSurface(s.SurfaceDescriptor())
		options.CompatibleSurface = b.surface
	}

	a, err := b.instance.RequestAdapter(options)
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{Label: "Main Device"})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	cache, err := pipeline.NewCache(pipeline.DefaultCacheSize, b.buildPipeline)
	if err != nil {
		b.Release()
		return nil, err
	}
	b.pipelines = cache

	if err := b.Resize(width, height); err != nil {
		b.Release()
		return nil, err
	}
	common.Logger().Info("renderer: backend ready", "surface", s != nil, "width", width, "height", height)
	return b, nil
}

// Device returns the GPU device textures must be created on.
func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) CameraTarget() rendergraph.ExternalTexture {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surfaceTarget != nil {
		return b.surfaceTarget
	}
	if b.offscreen != nil {
		return b.offscreen
	}
	return nil
}

func (b *wgpuRendererBackendImpl) Resize(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width == 0 || height == 0 {
		return nil
	}
	if b.frameEncoder != nil {
		return ErrFrameInProgress
	}
	b.releasePool()

	if b.surface != nil {
		capabilities := b.surface.GetCapabilities(b.adapter)
		format := capabilities.Formats[0]
		b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      format,
			Width:       width,
			Height:      height,
			PresentMode: b.presentMode,
			AlphaMode:   capabilities.AlphaModes[0],
		})
		// A new value so the renderer rebinds its handle to the new size.
		b.surfaceTarget = &surfaceTarget{width: width, height: height, format: format}
		return nil
	}

	if b.offscreen != nil {
		b.offscreen.Release()
	}
	off, err := texture.NewRenderTexture(b.device,
		texture.WithName("Camera Target"),
		texture.WithSize(width, height),
		texture.WithFormat(wgpu.TextureFormatRGBA8Unorm),
	)
	if err != nil {
		b.offscreen = nil
		return fmt.Errorf("create camera target: %w", err)
	}
	b.offscreen = off
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) BeginFrame(ctx context.Context, frame uint64, transients []rendergraph.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if b.frameEncoder != nil {
		return ErrFrameInProgress
	}

	if b.surfaceTarget != nil {
		// Still holding the image of a frame that was never presented.
		if b.surfaceTarget.texture != nil {
			return fmt.Errorf("previous frame surface not yet presented")
		}
		surfaceTexture, err := b.surface.GetCurrentTexture()
		if err != nil {
			return err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return err
		}
		b.surfaceTarget.texture = surfaceTexture
		b.surfaceTarget.view = view
	}

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: fmt.Sprintf("Frame %d", frame),
	})
	if err != nil {
		b.releaseSurfaceImage()
		return err
	}
	b.frameEncoder = encoder
	b.targetCleared = false

	b.frameTransients = make(map[rendergraph.TextureHandle]texture.RenderTexture, len(transients))
	for _, r := range transients {
		tex, err := b.acquireTransient(r)
		if err != nil {
			b.abortFrame()
			return fmt.Errorf("transient %q: %w", r.Name, err)
		}
		b.frameTransients[r.Handle] = tex
	}
	return nil
}

func (b *wgpuRendererBackendImpl) Submit(_ context.Context, pass rendergraph.CompiledPass, draws []rendergraph.DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return ErrNoFrame
	}

	desc := &wgpu.RenderPassDescriptor{Label: pass.Name}
	formats := make([]wgpu.TextureFormat, 0, len(pass.Colors))
	for _, a := range pass.Colors {
		view, err := b.attachmentView(a.Resource)
		if err != nil {
			return err
		}
		color := wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if a.Load == rendergraph.LoadActionClear {
			color.LoadOp = wgpu.LoadOpClear
		}
		if a.Store == rendergraph.StoreActionDiscard {
			color.StoreOp = wgpu.StoreOpDiscard
		}
		if b.isCameraTarget(a.Resource) && !b.targetCleared {
			color.LoadOp = wgpu.LoadOpClear
			color.ClearValue = b.clearColor
			b.targetCleared = true
		}
		desc.ColorAttachments = append(desc.ColorAttachments, color)
		formats = append(formats, a.Resource.Info.Format)
	}
	if pass.Depth != nil {
		view, err := b.attachmentView(pass.Depth.Resource)
		if err != nil {
			return err
		}
		depth := &wgpu.RenderPassDepthStencilAttachment{View: view}
		if pass.Depth.ReadOnly {
			depth.DepthReadOnly = true
		} else {
			depth.DepthLoadOp = wgpu.LoadOpLoad
			depth.DepthStoreOp = wgpu.StoreOpStore
			depth.DepthClearValue = 1.0
			if pass.Depth.Load == rendergraph.LoadActionClear {
				depth.DepthLoadOp = wgpu.LoadOpClear
			}
			if pass.Depth.Store == rendergraph.StoreActionDiscard {
				depth.DepthStoreOp = wgpu.StoreOpDiscard
			}
		}
		desc.DepthStencilAttachment = depth
	}

	rp := b.frameEncoder.BeginRenderPass(desc)
	var drawErr error
	for _, d := range draws {
		if drawErr = b.encodeDraw(rp, pass, formats, d); drawErr != nil {
			break
		}
	}
	rp.End()
	rp.Release()

	if drawErr != nil {
		return fmt.Errorf("pass %q: %w", pass.Name, drawErr)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) encodeDraw(rp *wgpu.RenderPassEncoder, pass rendergraph.CompiledPass, formats []wgpu.TextureFormat, d rendergraph.DrawCommand) error {
	p, err := b.pipelines.Get(pipeline.NewKey(d.Program, d.Variant, formats))
	if err != nil {
		return err
	}
	bindGroup, err := b.createBindGroup(p, pass, d)
	if err != nil {
		return err
	}

	rp.SetPipeline(p.RenderPipeline())
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(d.VertexCount, 1, 0, 0)
	return nil
}

// createBindGroup builds the group 0 bindings of one draw: a uniform buffer packed from the draw's
// parameters and a view for every texture the variant samples. Both live until EndFrame.
func (b *wgpuRendererBackendImpl) createBindGroup(p pipeline.Pipeline, pass rendergraph.CompiledPass, d rendergraph.DrawCommand) (*wgpu.BindGroup, error) {
	prog := d.Program
	var entries []wgpu.BindGroupEntry

	if binding, ok := prog.UniformBinding(); ok {
		data := prog.PackUniforms(d.Params.Ints, d.Params.Vectors)
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: prog.Key() + " Uniforms",
			Size:  uint64(len(data)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		b.frameBuffers = append(b.frameBuffers, buf)
		b.queue.WriteBuffer(buf, 0, data)
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	variant := p.Variant()
	for _, property := range variant.Textures {
		binding, _ := prog.TextureBinding(property)
		h, ok := d.Params.Textures[property]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingTexture, property)
		}
		res, ok := pass.Read(h)
		if !ok {
			return nil, fmt.Errorf("%w: %s", rendergraph.ErrUndeclaredRead, property)
		}
		view, err := b.sampleView(res)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     binding,
			TextureView: view,
		})
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.Key().String() + " Bind Group",
		Layout:  p.BindGroupLayout(),
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	b.frameBindGroups = append(b.frameBindGroups, bindGroup)
	return bindGroup, nil
}

func (b *wgpuRendererBackendImpl) EndFrame(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return ErrNoFrame
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.abortFrame()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.endFrameResources()
	b.presentable = b.surfaceTarget != nil
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if !b.presentable {
		return
	}
	b.surface.Present()
	b.presentable = false
	b.releaseSurfaceImage()
}

// buildPipeline specializes a program variant for the color formats of a pass.
func (b *wgpuRendererBackendImpl) buildPipeline(key pipeline.Key) (pipeline.Pipeline, error) {
	p := pipeline.NewPipeline(key)
	prog := key.Program

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: prog.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: prog.Source(),
		},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layoutDesc := prog.VariantLayoutDescriptor(key.Variant)
	layout, err := b.device.CreateBindGroupLayout(&layoutDesc)
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key.String(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return nil, err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key.String() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: prog.VertexEntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: p.Variant().FragmentEntryPoint,
			Targets:    p.ColorTargets(),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		return nil, err
	}

	common.Logger().Debug("renderer: pipeline specialized", "key", key.String())
	p.SetRenderPipeline(created, layout)
	return p, nil
}

func (b *wgpuRendererBackendImpl) isCameraTarget(r rendergraph.Resource) bool {
	if !r.Imported || r.External == nil {
		return false
	}
	tex := r.External.Texture()
	if b.surfaceTarget != nil {
		return tex == rendergraph.ExternalTexture(b.surfaceTarget)
	}
	return b.offscreen != nil && tex == rendergraph.ExternalTexture(b.offscreen)
}

func (b *wgpuRendererBackendImpl) attachmentView(r rendergraph.Resource) (*wgpu.TextureView, error) {
	var view *wgpu.TextureView
	if r.Imported {
		if v, ok := r.External.Texture().(attachmentViewer); ok {
			view = v.AttachmentView()
		}
	} else if tex, ok := b.frameTransients[r.Handle]; ok {
		view = tex.AttachmentView()
	}
	if view == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoView, r.Name)
	}
	return view, nil
}

func (b *wgpuRendererBackendImpl) sampleView(r rendergraph.Resource) (*wgpu.TextureView, error) {
	var view *wgpu.TextureView
	if r.Imported {
		if v, ok := r.External.Texture().(sampleViewer); ok {
			view = v.SampleView()
		}
	} else if tex, ok := b.frameTransients[r.Handle]; ok {
		view = tex.SampleView()
	}
	if view == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoView, r.Name)
	}
	return view, nil
}

func (b *wgpuRendererBackendImpl) acquireTransient(r rendergraph.Resource) (texture.RenderTexture, error) {
	key := transientKey{format: r.Info.Format, width: r.Info.Width, height: r.Info.Height}
	if free := b.pool[key]; len(free) > 0 {
		tex := free[len(free)-1]
		b.pool[key] = free[:len(free)-1]
		return tex, nil
	}
	return texture.NewRenderTexture(b.device,
		texture.WithName(r.Name),
		texture.WithSize(r.Info.Width, r.Info.Height),
		texture.WithFormat(r.Info.Format),
		texture.WithUsage(wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding),
	)
}

// endFrameResources returns the frame's transients to the pool and drops per-draw GPU objects.
func (b *wgpuRendererBackendImpl) endFrameResources() {
	for _, tex := range b.frameTransients {
		key := transientKey{format: tex.Format(), width: tex.Width(), height: tex.Height()}
		b.pool[key] = append(b.pool[key], tex)
	}
	b.frameTransients = nil

	for _, bg := range b.frameBindGroups {
		bg.Release()
	}
	b.frameBindGroups = nil
	for _, buf := range b.frameBuffers {
		buf.Release()
	}
	b.frameBuffers = nil
}

func (b *wgpuRendererBackendImpl) abortFrame() {
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.endFrameResources()
	b.releaseSurfaceImage()
}

func (b *wgpuRendererBackendImpl) releaseSurfaceImage() {
	if b.surfaceTarget == nil {
		return
	}
	if b.surfaceTarget.view != nil {
		b.surfaceTarget.view.Release()
		b.surfaceTarget.view = nil
	}
	if b.surfaceTarget.texture != nil {
		b.surfaceTarget.texture.Release()
		b.surfaceTarget.texture = nil
	}
}

func (b *wgpuRendererBackendImpl) releasePool() {
	for key, free := range b.pool {
		for _, tex := range free {
			tex.Release()
		}
		delete(b.pool, key)
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.abortFrame()
	b.releasePool()
	if b.pipelines != nil {
		b.pipelines.Purge()
	}
	if b.offscreen != nil {
		b.offscreen.Release()
		b.offscreen = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
