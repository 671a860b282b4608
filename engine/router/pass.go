package router

import (
	"strconv"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// PassName is the frame graph name of the compositing pass.
const PassName = "Camera Texture Router"

// Property names shared with the compositing program.
const (
	PropertyDepthEncoding       = "_DepthEncoding"
	PropertyMotionEncoding      = "_MotionEncoding"
	PropertyZBufferParams       = "_ZBufferParams"
	PropertyCameraDepthTexture  = "_CameraDepthTexture"
	PropertyMotionVectorTexture = "_MotionVectorTexture"
)

const (
	outputDepth  = 1 << 0
	outputMotion = 1 << 1
)

// PassState is what the compositing pass does for one camera frame.
type PassState int

const (
	// StateInactive means the pass has no material and never records anything.
	StateInactive PassState = iota

	// StateNoController means the camera has no enabled, ready controller with a usable output.
	StateNoController

	// StateDepthOnly routes depth only.
	StateDepthOnly

	// StateMotionOnly routes motion vectors only.
	StateMotionOnly

	// StateBoth routes depth and motion vectors.
	StateBoth
)

func stateFromMask(mask int) PassState {
	switch mask {
	case outputDepth:
		return StateDepthOnly
	case outputMotion:
		return StateMotionOnly
	case outputDepth | outputMotion:
		return StateBoth
	}
	return StateNoController
}

func (s PassState) mask() int {
	switch s {
	case StateDepthOnly:
		return outputDepth
	case StateMotionOnly:
		return outputMotion
	case StateBoth:
		return outputDepth | outputMotion
	}
	return 0
}

// VariantIndex returns the program variant drawn in this state: the output bitmask minus one,
// with depth as bit 0 and motion as bit 1.
//
// Returns:
//   - int: 0 for depth only, 1 for motion only, 2 for both, -1 when nothing is drawn
func (s PassState) VariantIndex() int {
	return s.mask() - 1
}

func (s PassState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateNoController:
		return "NoController"
	case StateDepthOnly:
		return "DepthOnly"
	case StateMotionOnly:
		return "MotionOnly"
	case StateBoth:
		return "Both"
	}
	return "PassState(" + strconv.Itoa(int(s)) + ")"
}

// PassData is handed to the compositing pass's render function. The texture handles are
// borrowed from the frame graph and the material is shared with the feature.
type PassData struct {
	CameraDepth  rendergraph.TextureHandle
	MotionVector rendergraph.TextureHandle
	Material     material.Material

	DepthEncoding  int32
	MotionEncoding int32
	PassIndex      int
	ZBufferParams  [4]float32
}

// CompositingPass copies the camera depth and motion vector buffers into the destinations of
// the controller attached to the camera being rendered.
type CompositingPass struct {
	mu       *sync.Mutex
	material material.Material
	registry *Registry
}

var _ renderer.RenderPass = &CompositingPass{}

// NewCompositingPass creates a compositing pass drawing with m and resolving controllers in registry.
//
// Parameters:
//   - m: the material to draw with, nil for an inactive pass
//   - registry: the camera to controller table
//
// Returns:
//   - *CompositingPass: the new pass
func NewCompositingPass(m material.Material, registry *Registry) *CompositingPass {
	return &CompositingPass{
		mu:       &sync.Mutex{},
		material: m,
		registry: registry,
	}
}

func (p *CompositingPass) Name() string {
	return PassName
}

// Event returns BeforeRenderingPostProcessing: depth and motion are written by then and
// post-processing has not consumed them yet.
func (p *CompositingPass) Event() renderer.RenderPassEvent {
	return renderer.BeforeRenderingPostProcessing
}

func (p *CompositingPass) Input() renderer.PassInput {
	return renderer.PassInputDepth | renderer.PassInputMotion
}

// State returns what the pass would do for frame given the current controller state.
//
// Parameters:
//   - frame: the frame context
//
// Returns:
//   - PassState: the resolved state
func (p *CompositingPass) State(frame *renderer.FrameData) PassState {
	state, _, _ := p.resolve(frame)
	return state
}

// resolve works out the state for frame together with the material and controller snapshot it
// was derived from.
func (p *CompositingPass) resolve(frame *renderer.FrameData) (PassState, material.Material, ControllerState) {
	p.mu.Lock()
	m, registry := p.material, p.registry
	p.mu.Unlock()

	if m == nil || m.Destroyed() || m.PassCount() == 0 {
		return StateInactive, nil, ControllerState{}
	}
	if frame == nil || frame.Camera == nil {
		return StateNoController, m, ControllerState{}
	}
	c, ok := registry.Lookup(frame.Camera.ID())
	if !ok {
		return StateNoController, m, ControllerState{}
	}
	snap := c.Snapshot()
	if !snap.Enabled || !snap.Ready {
		return StateNoController, m, snap
	}

	mask := 0
	if snap.Depth.Valid() && frame.Resources.CameraDepthTexture.IsValid() {
		mask |= outputDepth
	}
	if snap.Motion.Valid() && frame.Resources.MotionVectorColor.IsValid() {
		mask |= outputMotion
	}
	// A texture can back only one color attachment of a pass; depth keeps it.
	if mask == outputDepth|outputMotion && snap.Depth.Handle().Texture() == snap.Motion.Handle().Texture() {
		mask = outputDepth
	}
	return stateFromMask(mask), m, snap
}

// RecordRenderGraph declares the compositing pass for one camera. Frames without a material,
// a usable controller or any valid output are skipped with a debug log and no error.
//
// Parameters:
//   - g: the frame graph
//   - frame: the frame context with the camera depth and motion buffers
//
// Returns:
//   - error: an error if the graph rejected the pass declaration
func (p *CompositingPass) RecordRenderGraph(g *rendergraph.Graph, frame *renderer.FrameData) error {
	state, m, snap := p.resolve(frame)
	if state.VariantIndex() < 0 {
		common.Logger().Debug("camera texture router skipped", "state", state, "frame", g.Frame())
		return nil
	}

	b, data := rendergraph.AddRasterPass[PassData](g, PassName)
	mask, slot := 0, 0
	if state.mask()&outputDepth != 0 {
		if dst := g.ImportTexture(snap.Depth.Handle(), snap.Depth.Info()); dst.IsValid() {
			b.SetRenderAttachment(dst, slot)
			b.UseTexture(frame.Resources.CameraDepthTexture, rendergraph.AccessRead)
			data.CameraDepth = frame.Resources.CameraDepthTexture
			mask |= outputDepth
			slot++
		}
	}
	if state.mask()&outputMotion != 0 {
		if dst := g.ImportTexture(snap.Motion.Handle(), snap.Motion.Info()); dst.IsValid() {
			b.SetRenderAttachment(dst, slot)
			b.UseTexture(frame.Resources.MotionVectorColor, rendergraph.AccessRead)
			data.MotionVector = frame.Resources.MotionVectorColor
			mask |= outputMotion
		}
	}
	if mask == 0 {
		// Both destinations were released between the snapshot and the import.
		common.Logger().Debug("camera texture router skipped", "state", StateNoController, "frame", g.Frame())
		return nil
	}

	data.Material = m
	data.DepthEncoding = int32(snap.DepthEncoding)
	data.MotionEncoding = int32(snap.MotionEncoding)
	data.PassIndex = stateFromMask(mask).VariantIndex()
	data.ZBufferParams = frame.Camera.ZBufferParams()

	b.AllowPassCulling(false)
	b.SetRenderFunc(renderCompositingPass)
	return b.Commit()
}

func renderCompositingPass(data *PassData, ctx *rendergraph.RasterContext) {
	var block rendergraph.PropertyBlock
	block.SetInt(PropertyDepthEncoding, data.DepthEncoding)
	block.SetInt(PropertyMotionEncoding, data.MotionEncoding)
	block.SetVector(PropertyZBufferParams, data.ZBufferParams)
	if data.CameraDepth.IsValid() {
		block.SetTexture(PropertyCameraDepthTexture, data.CameraDepth)
	}
	if data.MotionVector.IsValid() {
		block.SetTexture(PropertyMotionVectorTexture, data.MotionVector)
	}
	ctx.Cmd.DrawFullScreen(data.Material, data.PassIndex, &block)
}

// Cleanup drops the pass's references. The pass is inactive afterwards.
func (p *CompositingPass) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.material = nil
	p.registry = nil
}
