package rendergraph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// MaxColorAttachments is the number of color attachment slots a raster pass may bind.
const MaxColorAttachments = 8

// AccessFlags describes how a pass uses a texture.
type AccessFlags uint8

const (
	AccessRead AccessFlags = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

func (a AccessFlags) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read-write"
	}
	return fmt.Sprintf("AccessFlags(%d)", uint8(a))
}

// RenderTargetInfo describes an imported texture to the graph.
type RenderTargetInfo struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	VolumeDepth uint32
	MSAASamples uint32

	// BindMS is set when the texture is multisampled and must be bound as such.
	BindMS bool
}

// TextureDesc describes a transient texture created and owned by the graph for a single frame.
type TextureDesc struct {
	Name   string
	Format wgpu.TextureFormat
	Width  uint32
	Height uint32
}

// TextureHandle identifies a texture inside one Graph. The zero value is invalid.
type TextureHandle struct {
	id    int
	graph uint64
}

// IsValid reports whether the handle refers to a texture.
func (h TextureHandle) IsValid() bool {
	return h.id > 0
}

func (h TextureHandle) index() int {
	return h.id - 1
}

// Resource is a texture known to a Graph, either imported from an RTHandle or transient.
type Resource struct {
	Handle   TextureHandle
	Name     string
	Imported bool

	// External is set for imported resources.
	External *RTHandle

	Info RenderTargetInfo
}
