package renderer

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// RenderPassEvent is the point in a camera's frame at which a pass is scheduled.
// Passes run in ascending event order; passes sharing an event keep their enqueue order.
type RenderPassEvent int

const (
	BeforeRendering               RenderPassEvent = 0
	BeforeRenderingShadows        RenderPassEvent = 50
	AfterRenderingShadows         RenderPassEvent = 100
	BeforeRenderingPrePasses      RenderPassEvent = 150
	AfterRenderingPrePasses       RenderPassEvent = 200
	BeforeRenderingOpaques        RenderPassEvent = 250
	AfterRenderingOpaques         RenderPassEvent = 300
	BeforeRenderingSkybox         RenderPassEvent = 350
	AfterRenderingSkybox          RenderPassEvent = 400
	BeforeRenderingTransparents   RenderPassEvent = 450
	AfterRenderingTransparents    RenderPassEvent = 500
	BeforeRenderingPostProcessing RenderPassEvent = 550
	AfterRenderingPostProcessing  RenderPassEvent = 600
	AfterRendering                RenderPassEvent = 1000
)

var eventNames = map[RenderPassEvent]string{
	BeforeRendering:               "BeforeRendering",
	BeforeRenderingShadows:        "BeforeRenderingShadows",
	AfterRenderingShadows:         "AfterRenderingShadows",
	BeforeRenderingPrePasses:      "BeforeRenderingPrePasses",
	AfterRenderingPrePasses:       "AfterRenderingPrePasses",
	BeforeRenderingOpaques:        "BeforeRenderingOpaques",
	AfterRenderingOpaques:         "AfterRenderingOpaques",
	BeforeRenderingSkybox:         "BeforeRenderingSkybox",
	AfterRenderingSkybox:          "AfterRenderingSkybox",
	BeforeRenderingTransparents:   "BeforeRenderingTransparents",
	AfterRenderingTransparents:    "AfterRenderingTransparents",
	BeforeRenderingPostProcessing: "BeforeRenderingPostProcessing",
	AfterRenderingPostProcessing:  "AfterRenderingPostProcessing",
	AfterRendering:                "AfterRendering",
}

func (e RenderPassEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "RenderPassEvent(" + strconv.Itoa(int(e)) + ")"
}

// PassInput is the set of pipeline buffers a pass asks the host to produce for it.
type PassInput uint8

const (
	PassInputNone   PassInput = 0
	PassInputDepth  PassInput = 1 << 0
	PassInputMotion PassInput = 1 << 1
)

// Has reports whether every flag in o is set in i.
func (i PassInput) Has(o PassInput) bool {
	return i&o == o
}

func (i PassInput) String() string {
	if i == PassInputNone {
		return "None"
	}
	var parts []string
	if i.Has(PassInputDepth) {
		parts = append(parts, "Depth")
	}
	if i.Has(PassInputMotion) {
		parts = append(parts, "Motion")
	}
	return strings.Join(parts, "|")
}

// FrameResources holds the frame graph handles of the camera buffers produced so far in the frame.
// A handle is invalid until the stage producing it has been recorded.
type FrameResources struct {
	CameraColor        rendergraph.TextureHandle
	CameraDepthTexture rendergraph.TextureHandle
	MotionVectorColor  rendergraph.TextureHandle
}

// FrameData is the per-camera, per-frame context handed to features and passes.
type FrameData struct {
	Camera    camera.Camera
	Frame     uint64
	Resources FrameResources
}

// RenderPass is a unit of work scheduled into a camera's frame.
type RenderPass interface {
	// Name returns the pass name used in the frame graph.
	Name() string

	// Event returns the scheduling point of the pass.
	Event() RenderPassEvent

	// Input returns the pipeline buffers the pass reads.
	Input() PassInput

	// RecordRenderGraph declares the pass into the frame graph.
	//
	// Parameters:
	//   - g: the frame graph being built for this camera
	//   - frame: the frame context with the camera buffers produced so far
	//
	// Returns:
	//   - error: an error if the pass could not be declared; the frame continues without it
	RecordRenderGraph(g *rendergraph.Graph, frame *FrameData) error
}

// PassQueue collects the passes features enqueue for one camera frame.
type PassQueue interface {
	EnqueuePass(p RenderPass)
}

// Feature is a renderer extension that contributes passes to each rendered camera.
type Feature interface {
	// Name returns the feature name.
	Name() string

	// AddRenderPasses lets the feature enqueue its passes for the camera being rendered.
	//
	// Parameters:
	//   - queue: the queue to enqueue passes into
	//   - frame: the frame context; Resources is not populated yet
	AddRenderPasses(queue PassQueue, frame *FrameData)

	// Dispose releases what the feature created.
	Dispose()
}

type passQueue struct {
	passes []RenderPass
}

var _ PassQueue = &passQueue{}

func (q *passQueue) EnqueuePass(p RenderPass) {
	if p == nil {
		return
	}
	q.passes = append(q.passes, p)
}

// inputs returns the union of the inputs requested by the queued passes.
func (q *passQueue) inputs() PassInput {
	var in PassInput
	for _, p := range q.passes {
		in |= p.Input()
	}
	return in
}

// sorted returns the queued passes in stable event order.
func (q *passQueue) sorted() []RenderPass {
	out := slices.Clone(q.passes)
	slices.SortStableFunc(out, func(a, b RenderPass) int {
		return int(a.Event()) - int(b.Event())
	})
	return out
}
