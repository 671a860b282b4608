package rendergraph

import (
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// ExternalTexture is a texture owned outside the frame graph that can be wrapped by an RTHandle
// and imported into a Graph.
type ExternalTexture interface {
	Name() string
	Width() uint32
	Height() uint32
	DepthOrArrayLayers() uint32
	Format() wgpu.TextureFormat
	SampleCount() uint32

	// IsCreated reports whether the underlying GPU texture still exists.
	IsCreated() bool
}

// RTHandle is a long-lived reference to an ExternalTexture issued by a HandleSystem.
// The handle stays allocated until Release is called by its owner.
type RTHandle struct {
	id       uint64
	name     string
	texture  ExternalTexture
	system   *HandleSystem
	released atomic.Bool
}

// ID returns the handle's identifier, unique across all HandleSystems in the process.
func (h *RTHandle) ID() uint64 {
	return h.id
}

// Name returns the debug name the handle was allocated with.
func (h *RTHandle) Name() string {
	return h.name
}

// Texture returns the wrapped texture.
func (h *RTHandle) Texture() ExternalTexture {
	return h.texture
}

// IsValid reports whether the handle is non-nil, not released and still wraps a created texture.
//
// Returns:
//   - bool: true if the handle can be imported into a graph
func (h *RTHandle) IsValid() bool {
	if h == nil || h.released.Load() {
		return false
	}
	return h.texture != nil && h.texture.IsCreated()
}

// Released reports whether Release has been called on the handle.
func (h *RTHandle) Released() bool {
	return h == nil || h.released.Load()
}

// Release returns the handle to its HandleSystem. Calling Release on a nil or already
// released handle does nothing. The wrapped texture is not destroyed.
func (h *RTHandle) Release() {
	if h == nil || h.released.Swap(true) {
		return
	}
	if h.system != nil {
		h.system.remove(h.id)
	}
}

// HandleSystem allocates and tracks RTHandles.
type HandleSystem struct {
	mu   *sync.Mutex
	live map[uint64]*RTHandle
}

var handleSerial atomic.Uint64

var defaultHandles = NewHandleSystem()

// DefaultHandles returns the process wide HandleSystem.
func DefaultHandles() *HandleSystem {
	return defaultHandles
}

// NewHandleSystem creates an empty HandleSystem.
//
// Returns:
//   - *HandleSystem: the new handle system
func NewHandleSystem() *HandleSystem {
	return &HandleSystem{
		mu:   &sync.Mutex{},
		live: make(map[uint64]*RTHandle),
	}
}

// Alloc wraps tex in a new RTHandle. A nil texture yields a nil handle.
//
// Parameters:
//   - tex: the texture to wrap
//   - name: debug name for the handle
//
// Returns:
//   - *RTHandle: the allocated handle, or nil if tex is nil
func (s *HandleSystem) Alloc(tex ExternalTexture, name string) *RTHandle {
	if tex == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &RTHandle{
		id:      handleSerial.Add(1),
		name:    name,
		texture: tex,
		system:  s,
	}
	s.live[h.id] = h
	return h
}

// Live returns the number of allocated handles that have not been released.
func (s *HandleSystem) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *HandleSystem) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, id)
}
