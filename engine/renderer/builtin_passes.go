package renderer

import (
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// CameraDepthFormat is the format of the depth buffer produced by the depth prepass.
	CameraDepthFormat = wgpu.TextureFormatDepth32Float

	// MotionVectorFormat is the format of the motion vector buffer, screen-space velocity in x and y.
	MotionVectorFormat = wgpu.TextureFormatRG16Float
)

// hostPassData is the empty pass data of the built-in stages. The stages establish and clear the
// camera buffers; scene geometry is outside this renderer.
type hostPassData struct{}

func recordNothing(*hostPassData, *rendergraph.RasterContext) {}

// depthPrepass produces the camera depth texture.
type depthPrepass struct{}

func (depthPrepass) Name() string { return "DepthPrepass" }
func (depthPrepass) Event() RenderPassEvent { return BeforeRenderingPrePasses }
func (depthPrepass) Input() PassInput { return PassInputNone }

func (depthPrepass) RecordRenderGraph(g *rendergraph.Graph, frame *FrameData) error {
	w, h := frame.Camera.PixelSize()
	depth := g.CreateTexture(rendergraph.TextureDesc{
		Name:   "_CameraDepthTexture",
		Format: CameraDepthFormat,
		Width:  w,
		Height: h,
	})

	b, _ := rendergraph.AddRasterPass[hostPassData](g, "DepthPrepass")
	b.SetDepthAttachment(depth, rendergraph.AccessWrite)
	b.SetRenderFunc(recordNothing)
	if err := b.Commit(); err != nil {
		return err
	}
	frame.Resources.CameraDepthTexture = depth
	return nil
}

// opaquePass writes the camera color target, depth tested against the prepass when there is one.
type opaquePass struct{}

func (opaquePass) Name() string { return "DrawOpaqueObjects" }
func (opaquePass) Event() RenderPassEvent { return BeforeRenderingOpaques }
func (opaquePass) Input() PassInput { return PassInputNone }

func (opaquePass) RecordRenderGraph(g *rendergraph.Graph, frame *FrameData) error {
	b, _ := rendergraph.AddRasterPass[hostPassData](g, "DrawOpaqueObjects")
	b.SetRenderAttachment(frame.Resources.CameraColor, 0)
	if frame.Resources.CameraDepthTexture.IsValid() {
		b.SetDepthAttachment(frame.Resources.CameraDepthTexture, rendergraph.AccessRead)
	}
	b.SetRenderFunc(recordNothing)
	return b.Commit()
}

// motionVectorPass produces the per-pixel motion vector buffer.
type motionVectorPass struct{}

func (motionVectorPass) Name() string { return "MotionVectors" }
func (motionVectorPass) Event() RenderPassEvent { return BeforeRenderingTransparents }
func (motionVectorPass) Input() PassInput { return PassInputNone }

func (motionVectorPass) RecordRenderGraph(g *rendergraph.Graph, frame *FrameData) error {
	w, h := frame.Camera.PixelSize()
	motion := g.CreateTexture(rendergraph.TextureDesc{
		Name:   "_MotionVectorTexture",
		Format: MotionVectorFormat,
		Width:  w,
		Height: h,
	})

	b, _ := rendergraph.AddRasterPass[hostPassData](g, "MotionVectors")
	b.SetRenderAttachment(motion, 0)
	if frame.Resources.CameraDepthTexture.IsValid() {
		b.SetDepthAttachment(frame.Resources.CameraDepthTexture, rendergraph.AccessRead)
	}
	b.SetRenderFunc(recordNothing)
	if err := b.Commit(); err != nil {
		return err
	}
	frame.Resources.MotionVectorColor = motion
	return nil
}

// postProcessPass is the final camera stage. It consumes the depth and motion buffers and is never culled.
type postProcessPass struct{}

func (postProcessPass) Name() string { return "PostProcessing" }
func (postProcessPass) Event() RenderPassEvent { return BeforeRenderingPostProcessing }
func (postProcessPass) Input() PassInput { return PassInputNone }

func (postProcessPass) RecordRenderGraph(g *rendergraph.Graph, frame *FrameData) error {
	b, _ := rendergraph.AddRasterPass[hostPassData](g, "PostProcessing")
	if frame.Resources.CameraDepthTexture.IsValid() {
		b.UseTexture(frame.Resources.CameraDepthTexture, rendergraph.AccessRead)
	}
	if frame.Resources.MotionVectorColor.IsValid() {
		b.UseTexture(frame.Resources.MotionVectorColor, rendergraph.AccessRead)
	}
	b.SetRenderAttachment(frame.Resources.CameraColor, 0)
	b.AllowPassCulling(false)
	b.SetRenderFunc(recordNothing)
	return b.Commit()
}
