package router

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// Readiness selects how many destinations a controller needs before it is ready.
type Readiness int

const (
	// ReadinessAny makes a controller ready when at least one destination is set.
	ReadinessAny Readiness = iota

	// ReadinessAll makes a controller ready only when both destinations are set.
	ReadinessAll
)

// Config is a complete controller configuration applied with ApplyConfiguration.
type Config struct {
	DepthDestination  rendergraph.ExternalTexture
	MotionDestination rendergraph.ExternalTexture
	DepthEncoding     DepthEncoding
	MotionEncoding    MotionEncoding
}

// ControllerState is a point-in-time copy of a controller, taken once per frame by the
// compositing pass. The bindings are shared with the controller, which still owns them.
type ControllerState struct {
	Enabled bool
	Ready   bool

	Depth  OutputBinding
	Motion OutputBinding

	DepthEncoding  DepthEncoding
	MotionEncoding MotionEncoding
}

// controller is the implementation of the Controller interface.
type controller struct {
	mu *sync.Mutex

	name      string
	handles   *rendergraph.HandleSystem
	enabled   bool
	destroyed bool
	readiness Readiness

	depthDestination  rendergraph.ExternalTexture
	motionDestination rendergraph.ExternalTexture
	depthBinding      OutputBinding
	motionBinding     OutputBinding

	depthEncoding  DepthEncoding
	motionEncoding MotionEncoding
}

// Controller holds the destination textures and encodings for one camera and owns the output
// bindings derived from them. While enabled a binding is present exactly when its destination is
// set. While disabled or destroyed no binding is held.
//
// Destinations are compared by reference: texture implementations must be comparable,
// which pointer receivers always are.
type Controller interface {
	// Name retrieves the controller's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// DepthDestination returns the texture depth is routed to.
	//
	// Returns:
	//   - rendergraph.ExternalTexture: the destination, nil when unset
	DepthDestination() rendergraph.ExternalTexture

	// SetDepthDestination changes the depth destination. Assigning the current destination
	// again does nothing. Otherwise the old binding is released before the new one is built.
	//
	// Parameters:
	//   - tex: the new destination, nil to stop routing depth
	SetDepthDestination(tex rendergraph.ExternalTexture)

	// MotionDestination returns the texture motion vectors are routed to.
	//
	// Returns:
	//   - rendergraph.ExternalTexture: the destination, nil when unset
	MotionDestination() rendergraph.ExternalTexture

	// SetMotionDestination changes the motion destination with the same rules as SetDepthDestination.
	//
	// Parameters:
	//   - tex: the new destination, nil to stop routing motion vectors
	SetMotionDestination(tex rendergraph.ExternalTexture)

	// DepthBinding returns the binding for the depth destination.
	//
	// Returns:
	//   - OutputBinding: the binding, absent when unset or disabled
	DepthBinding() OutputBinding

	// MotionBinding returns the binding for the motion destination.
	//
	// Returns:
	//   - OutputBinding: the binding, absent when unset or disabled
	MotionBinding() OutputBinding

	// IsReady reports whether enough destinations are set for the controller's Readiness policy.
	//
	// Returns:
	//   - bool: true if the controller has something to route
	IsReady() bool

	// DepthEncoding returns the current depth encoding.
	DepthEncoding() DepthEncoding

	// SetDepthEncoding changes the depth encoding.
	//
	// Parameters:
	//   - e: the new encoding
	//
	// Returns:
	//   - error: ErrInvalidEncoding if e is not a defined encoding
	SetDepthEncoding(e DepthEncoding) error

	// MotionEncoding returns the current motion encoding.
	MotionEncoding() MotionEncoding

	// SetMotionEncoding changes the motion encoding.
	//
	// Parameters:
	//   - e: the new encoding
	//
	// Returns:
	//   - error: ErrInvalidEncoding if e is not a defined encoding
	SetMotionEncoding(e MotionEncoding) error

	// Enabled reports whether the controller is enabled.
	Enabled() bool

	// SetEnabled enables or disables the controller. Enabling rebuilds both bindings from the
	// current destinations, disabling releases them.
	//
	// Parameters:
	//   - enabled: the new state
	SetEnabled(enabled bool)

	// ApplyConfiguration replaces the whole configuration. Both bindings are released, the new
	// values stored, and the bindings rebuilt before returning if the controller is enabled.
	// An invalid configuration leaves the controller unchanged.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: ErrInvalidEncoding if an encoding is not defined
	ApplyConfiguration(cfg Config) error

	// Snapshot copies the state the compositing pass needs for one frame.
	//
	// Returns:
	//   - ControllerState: the snapshot
	Snapshot() ControllerState

	// Destroy releases both bindings and disables the controller permanently.
	Destroy()
}

var _ Controller = &controller{}

// NewController creates a new Controller. Controllers start enabled, so the bindings for any
// destinations given as options are built before NewController returns.
//
// Parameters:
//   - options: variadic list of ControllerBuilderOption functions to configure the controller
//
// Returns:
//   - Controller: the new controller
//   - error: ErrInvalidEncoding if an encoding option is not defined
func NewController(options ...ControllerBuilderOption) (Controller, error) {
	c := &controller{
		mu:      &sync.Mutex{},
		name:    "CameraTextureRouter",
		enabled: true,
	}
	for _, option := range options {
		option(c)
	}
	if c.handles == nil {
		c.handles = rendergraph.DefaultHandles()
	}
	if !c.depthEncoding.Valid() {
		return nil, fmt.Errorf("%w: depth %s", ErrInvalidEncoding, c.depthEncoding)
	}
	if !c.motionEncoding.Valid() {
		return nil, fmt.Errorf("%w: motion %s", ErrInvalidEncoding, c.motionEncoding)
	}
	if c.enabled {
		c.rebuild()
	}
	return c, nil
}

func (c *controller) Name() string {
	return c.name
}

func (c *controller) DepthDestination() rendergraph.ExternalTexture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthDestination
}

func (c *controller) SetDepthDestination(tex rendergraph.ExternalTexture) {
	tex = destination(tex)
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex == c.depthDestination {
		return
	}
	c.depthDestination = tex
	c.depthBinding.Release()
	if c.active() {
		c.depthBinding = Bind(c.handles, tex, DepthOutputName)
	}
}

func (c *controller) MotionDestination() rendergraph.ExternalTexture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motionDestination
}

func (c *controller) SetMotionDestination(tex rendergraph.ExternalTexture) {
	tex = destination(tex)
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex == c.motionDestination {
		return
	}
	c.motionDestination = tex
	c.motionBinding.Release()
	if c.active() {
		c.motionBinding = Bind(c.handles, tex, MotionOutputName)
	}
}

func (c *controller) DepthBinding() OutputBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthBinding
}

func (c *controller) MotionBinding() OutputBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motionBinding
}

func (c *controller) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready()
}

func (c *controller) DepthEncoding() DepthEncoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthEncoding
}

func (c *controller) SetDepthEncoding(e DepthEncoding) error {
	if !e.Valid() {
		return fmt.Errorf("%w: depth %s", ErrInvalidEncoding, e)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depthEncoding = e
	return nil
}

func (c *controller) MotionEncoding() MotionEncoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motionEncoding
}

func (c *controller) SetMotionEncoding(e MotionEncoding) error {
	if !e.Valid() {
		return fmt.Errorf("%w: motion %s", ErrInvalidEncoding, e)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.motionEncoding = e
	return nil
}

func (c *controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active()
}

func (c *controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.enabled = enabled
	if enabled {
		c.rebuild()
		return
	}
	c.releaseBindings()
}

func (c *controller) ApplyConfiguration(cfg Config) error {
	if !cfg.DepthEncoding.Valid() {
		return fmt.Errorf("%w: depth %s", ErrInvalidEncoding, cfg.DepthEncoding)
	}
	if !cfg.MotionEncoding.Valid() {
		return fmt.Errorf("%w: motion %s", ErrInvalidEncoding, cfg.MotionEncoding)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseBindings()
	c.depthDestination = destination(cfg.DepthDestination)
	c.motionDestination = destination(cfg.MotionDestination)
	c.depthEncoding = cfg.DepthEncoding
	c.motionEncoding = cfg.MotionEncoding
	if c.active() {
		c.rebuild()
	}
	return nil
}

func (c *controller) Snapshot() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControllerState{
		Enabled:        c.active(),
		Ready:          c.ready(),
		Depth:          c.depthBinding,
		Motion:         c.motionBinding,
		DepthEncoding:  c.depthEncoding,
		MotionEncoding: c.motionEncoding,
	}
}

func (c *controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.releaseBindings()
	c.enabled = false
	c.destroyed = true
	common.Logger().Debug("router controller destroyed", "controller", c.name)
}

// active must be called with mu held.
func (c *controller) active() bool {
	return c.enabled && !c.destroyed
}

// ready must be called with mu held.
func (c *controller) ready() bool {
	depth, motion := c.depthDestination != nil, c.motionDestination != nil
	if c.readiness == ReadinessAll {
		return depth && motion
	}
	return depth || motion
}

// rebuild releases both bindings and binds the current destinations. Must be called with mu held.
func (c *controller) rebuild() {
	c.releaseBindings()
	c.depthBinding = Bind(c.handles, c.depthDestination, DepthOutputName)
	c.motionBinding = Bind(c.handles, c.motionDestination, MotionOutputName)
}

// releaseBindings must be called with mu held.
func (c *controller) releaseBindings() {
	c.depthBinding.Release()
	c.motionBinding.Release()
}
