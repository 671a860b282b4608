package pipeline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/cogentcore/webgpu/wgpu"
)

// Key identifies one specialization of a program variant for a set of color target formats.
type Key struct {
	Program     shader.Program
	Variant     int
	TargetCount int
	Formats     [rendergraph.MaxColorAttachments]wgpu.TextureFormat
}

// NewKey builds the key for drawing variant of program into attachments of the given formats.
//
// Parameters:
//   - program: the program
//   - variant: the variant index
//   - formats: the color attachment formats, in slot order
//
// Returns:
//   - Key: the pipeline key
func NewKey(program shader.Program, variant int, formats []wgpu.TextureFormat) Key {
	k := Key{
		Program:     program,
		Variant:     variant,
		TargetCount: min(len(formats), rendergraph.MaxColorAttachments),
	}
	copy(k.Formats[:], formats)
	return k
}

func (k Key) String() string {
	name := "<nil>"
	if k.Program != nil {
		name = k.Program.Key()
	}
	return fmt.Sprintf("%s#%d%v", name, k.Variant, k.Formats[:k.TargetCount])
}

// pipeline is the implementation of the Pipeline interface.
// It holds the underlying WebGPU objects for one specialized program variant.
type pipeline struct {
	mu *sync.Mutex

	key Key

	// renderPipeline and bindGroupLayout are nil until the backend creates them
	renderPipeline  *wgpu.RenderPipeline
	bindGroupLayout *wgpu.BindGroupLayout
	released        bool

	// The following properties configure the pipeline during creation and can be set with the builder options.

	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState
}

// Pipeline defines the interface for a render pipeline specialized from a program variant.
// It holds the configuration state required for creation and the created GPU objects.
type Pipeline interface {
	// Key returns the key the pipeline was specialized for.
	//
	// Returns:
	//   - Key: the pipeline key
	Key() Key

	// Variant returns the program variant the pipeline draws with.
	//
	// Returns:
	//   - shader.Variant: the variant
	Variant() shader.Variant

	// RenderPipeline returns the created GPU pipeline, or nil before creation or after release.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// BindGroupLayout returns the layout of bind group 0 for this variant.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout, or nil before creation
	BindGroupLayout() *wgpu.BindGroupLayout

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state, or nil when blending is disabled
	BlendState() *wgpu.BlendState

	// ColorTargets builds the color target states for the key's formats.
	//
	// Returns:
	//   - []wgpu.ColorTargetState: one state per color attachment
	ColorTargets() []wgpu.ColorTargetState

	// SetRenderPipeline stores the created GPU pipeline and its bind group layout.
	//
	// Parameters:
	//   - rp: the GPU pipeline
	//   - layout: the bind group 0 layout
	SetRenderPipeline(rp *wgpu.RenderPipeline, layout *wgpu.BindGroupLayout)

	// Release frees the GPU objects. Calling Release more than once does nothing.
	Release()

	// Released reports whether Release has been called.
	//
	// Returns:
	//   - bool: true once released
	Released() bool
}

var _ Pipeline = &pipeline{}

// NewPipeline creates the description of a pipeline for key. GPU objects are attached later with
// SetRenderPipeline.
//
// Parameters:
//   - key: the key to specialize for
//   - opts: variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline description
func NewPipeline(key Key, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:        &sync.Mutex{},
		key:       key,
		cullMode:  wgpu.CullModeNone,
		topology:  wgpu.PrimitiveTopologyTriangleList,
		frontFace: wgpu.FrontFaceCCW,
		writeMask: wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Key() Key {
	return p.key
}

func (p *pipeline) Variant() shader.Variant {
	if p.key.Program == nil {
		return shader.Variant{}
	}
	v, _ := p.key.Program.Variant(p.key.Variant)
	return v
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout() *wgpu.BindGroupLayout {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroupLayout
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	if !p.blendEnabled {
		return nil
	}
	return p.blendState
}

func (p *pipeline) ColorTargets() []wgpu.ColorTargetState {
	targets := make([]wgpu.ColorTargetState, p.key.TargetCount)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{
			Format:    p.key.Formats[i],
			WriteMask: p.writeMask,
			Blend:     p.BlendState(),
		}
	}
	return targets
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, layout *wgpu.BindGroupLayout) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderPipeline = rp
	p.bindGroupLayout = layout
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}

func (p *pipeline) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
