package rendergraph

import (
	"errors"
	"sync/atomic"
)

var (
	ErrInvalidHandle   = errors.New("rendergraph: invalid texture handle")
	ErrAttachmentSlot  = errors.New("rendergraph: color attachment slots must be contiguous from 0")
	ErrAttachmentSize  = errors.New("rendergraph: attachments must share the same dimensions")
	ErrReadWriteHazard = errors.New("rendergraph: texture is both read and written by the same pass")
	ErrNoRenderFunc    = errors.New("rendergraph: pass has no render function")
	ErrNoAttachments   = errors.New("rendergraph: raster pass has no attachments")
	ErrPassCommitted   = errors.New("rendergraph: pass already committed")
	ErrUndeclaredRead  = errors.New("rendergraph: draw samples a texture the pass did not declare as read")
	ErrInvalidVariant  = errors.New("rendergraph: program variant out of range")
	ErrNilMaterial     = errors.New("rendergraph: draw without material")
	ErrTargetMismatch  = errors.New("rendergraph: program variant target count does not match pass attachments")
)

var graphSerial atomic.Uint64

// passRecord is the committed form of a raster pass.
type passRecord struct {
	name     string
	index    int
	reads    []TextureHandle
	writes   []TextureHandle
	colors   []TextureHandle
	depth    TextureHandle
	depthRW  AccessFlags
	cullable bool
	record   func(*RasterContext)
}

// Graph collects the textures and raster passes of a single frame.
// A Graph is built by one goroutine and then handed to an Executor.
type Graph struct {
	serial    uint64
	frame     uint64
	resources []Resource
	imported  map[*RTHandle]TextureHandle
	passes    []*passRecord
}

// NewGraph creates an empty graph for the given frame number.
//
// Parameters:
//   - frame: the frame counter value this graph records
//
// Returns:
//   - *Graph: the new graph
func NewGraph(frame uint64) *Graph {
	return &Graph{
		serial:   graphSerial.Add(1),
		frame:    frame,
		imported: make(map[*RTHandle]TextureHandle),
	}
}

// Frame returns the frame number the graph was created for.
func (g *Graph) Frame() uint64 {
	return g.frame
}

// ImportTexture makes an externally owned texture usable by passes in this graph.
// Importing the same RTHandle twice returns the same TextureHandle.
//
// Parameters:
//   - rt: the handle to import
//   - info: format and dimensions of the texture
//
// Returns:
//   - TextureHandle: the graph handle, invalid if rt is not valid
func (g *Graph) ImportTexture(rt *RTHandle, info RenderTargetInfo) TextureHandle {
	if !rt.IsValid() {
		return TextureHandle{}
	}
	if h, ok := g.imported[rt]; ok {
		return h
	}
	h := g.addResource(Resource{
		Name:     rt.Name(),
		Imported: true,
		External: rt,
		Info:     info,
	})
	g.imported[rt] = h
	return h
}

// CreateTexture declares a transient texture that lives for this frame only.
//
// Parameters:
//   - desc: the texture description
//
// Returns:
//   - TextureHandle: the graph handle, invalid if the description has a zero dimension
func (g *Graph) CreateTexture(desc TextureDesc) TextureHandle {
	if desc.Width == 0 || desc.Height == 0 {
		return TextureHandle{}
	}
	return g.addResource(Resource{
		Name: desc.Name,
		Info: RenderTargetInfo{
			Format:      desc.Format,
			Width:       desc.Width,
			Height:      desc.Height,
			VolumeDepth: 1,
			MSAASamples: 1,
		},
	})
}

// Resource returns the resource a handle refers to.
//
// Parameters:
//   - h: the handle to resolve
//
// Returns:
//   - Resource: the resource
//   - bool: false if the handle does not belong to this graph
func (g *Graph) Resource(h TextureHandle) (Resource, bool) {
	if !g.owns(h) {
		return Resource{}, false
	}
	return g.resources[h.index()], true
}

// PassCount returns the number of committed passes.
func (g *Graph) PassCount() int {
	return len(g.passes)
}

func (g *Graph) addResource(r Resource) TextureHandle {
	h := TextureHandle{id: len(g.resources) + 1, graph: g.serial}
	r.Handle = h
	g.resources = append(g.resources, r)
	return h
}

func (g *Graph) owns(h TextureHandle) bool {
	return h.IsValid() && h.graph == g.serial && h.index() < len(g.resources)
}
