package camera

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-camtex/common"
)

// cameraCount is an atomic counter used to hand out unique camera IDs.
var cameraCount atomic.Uint64

type cameraImpl struct {
	mu *sync.Mutex

	id      uint64
	name    string
	enabled bool

	fov    float32
	aspect float32
	near   float32
	far    float32

	width  uint32
	height uint32

	projectionMatrix [16]float32
}

// Camera defines the interface for a render camera.
// A camera identifies one view rendered per frame. Per-camera components such as the
// texture router are keyed by the camera's ID rather than by walking the scene.
type Camera interface {
	// ID returns the camera's unique identifier.
	//
	// Returns:
	//   - uint64: the camera ID
	ID() uint64

	// Name returns the camera's debug name.
	//
	// Returns:
	//   - string: the camera name
	Name() string

	// Enabled returns whether the camera is rendered.
	//
	// Returns:
	//   - bool: true if the camera renders frames
	Enabled() bool

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// PixelSize returns the size of the camera's render target in pixels.
	//
	// Returns:
	//   - width, height: target dimensions in pixels
	PixelSize() (width, height uint32)

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ZBufferParams returns the depth linearization constants matching ProjectionMatrix.
	// See common.ZBufferParams for the layout.
	//
	// Returns:
	//   - [4]float32: the linearization constants
	ZBufferParams() [4]float32

	// SetEnabled sets whether the camera is rendered.
	//
	// Parameters:
	//   - enabled: true to render the camera
	SetEnabled(enabled bool)

	// SetFov sets the field of view in radians and recomputes the projection.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetClipPlanes sets the near and far clipping planes and recomputes the projection.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClipPlanes(near, far float32)

	// SetPixelSize resizes the camera target and updates the aspect ratio.
	// Zero dimensions are ignored.
	//
	// Parameters:
	//   - width: target width in pixels
	//   - height: target height in pixels
	SetPixelSize(width, height uint32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings and a unique ID.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:      &sync.Mutex{},
		id:      cameraCount.Add(1),
		enabled: true,
		fov:     45.0 * (math.Pi / 180.0), // radians
		aspect:  1.0,
		near:    0.1,
		far:     100.0,
		width:   1280,
		height:  720,
	}
	c.aspect = float32(c.width) / float32(c.height)
	for _, option := range options {
		option(c)
	}
	c.updateProjection()
	return c
}

func (c *cameraImpl) ID() uint64 {
	return c.id
}

func (c *cameraImpl) Name() string {
	return c.name
}

func (c *cameraImpl) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) PixelSize() (width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ZBufferParams() [4]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ZBufferParams(c.near, c.far)
}

func (c *cameraImpl) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateProjection()
}

func (c *cameraImpl) SetClipPlanes(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateProjection()
}

func (c *cameraImpl) SetPixelSize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
	c.aspect = float32(width) / float32(height)
	c.updateProjection()
}

// updateProjection recalculates the projection matrix. Caller must hold the mutex
// (or be the constructor).
func (c *cameraImpl) updateProjection() {
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
}
