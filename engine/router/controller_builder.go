package router

import (
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// ControllerBuilderOption is a functional option applied to a controller during construction via NewController.
type ControllerBuilderOption func(*controller)

// WithName sets the controller's debug name.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - ControllerBuilderOption: a function that sets the name
func WithName(name string) ControllerBuilderOption {
	return func(c *controller) {
		c.name = name
	}
}

// WithDepthDestination sets the initial depth destination.
//
// Parameters:
//   - tex: the destination texture
//
// Returns:
//   - ControllerBuilderOption: a function that sets the depth destination
func WithDepthDestination(tex rendergraph.ExternalTexture) ControllerBuilderOption {
	return func(c *controller) {
		c.depthDestination = destination(tex)
	}
}

// WithMotionDestination sets the initial motion destination.
//
// Parameters:
//   - tex: the destination texture
//
// Returns:
//   - ControllerBuilderOption: a function that sets the motion destination
func WithMotionDestination(tex rendergraph.ExternalTexture) ControllerBuilderOption {
	return func(c *controller) {
		c.motionDestination = destination(tex)
	}
}

// WithDepthEncoding sets the initial depth encoding. The default is DepthEncodingRawBuffer.
//
// Parameters:
//   - e: the encoding
//
// Returns:
//   - ControllerBuilderOption: a function that sets the depth encoding
func WithDepthEncoding(e DepthEncoding) ControllerBuilderOption {
	return func(c *controller) {
		c.depthEncoding = e
	}
}

// WithMotionEncoding sets the initial motion encoding. The default is MotionEncodingSigned.
//
// Parameters:
//   - e: the encoding
//
// Returns:
//   - ControllerBuilderOption: a function that sets the motion encoding
func WithMotionEncoding(e MotionEncoding) ControllerBuilderOption {
	return func(c *controller) {
		c.motionEncoding = e
	}
}

// WithEnabled sets whether the controller starts enabled. Controllers are enabled by default.
//
// Parameters:
//   - enabled: the initial state
//
// Returns:
//   - ControllerBuilderOption: a function that sets the enabled flag
func WithEnabled(enabled bool) ControllerBuilderOption {
	return func(c *controller) {
		c.enabled = enabled
	}
}

// WithReadiness sets the readiness policy. The default is ReadinessAny.
//
// Parameters:
//   - r: the policy
//
// Returns:
//   - ControllerBuilderOption: a function that sets the readiness policy
func WithReadiness(r Readiness) ControllerBuilderOption {
	return func(c *controller) {
		c.readiness = r
	}
}

// WithHandleSystem sets the system output handles are allocated from.
// The default is rendergraph.DefaultHandles.
//
// Parameters:
//   - handles: the handle system
//
// Returns:
//   - ControllerBuilderOption: a function that sets the handle system
func WithHandleSystem(handles *rendergraph.HandleSystem) ControllerBuilderOption {
	return func(c *controller) {
		c.handles = handles
	}
}
