package camera

type CameraBuilderOption func(*cameraImpl)

// WithName sets the camera's debug name.
//
// Parameters:
//   - name: the camera name
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's name
func WithName(name string) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.name = name
	}
}

// WithFov sets the camera's field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithPixelSize sets the camera's render target size and derives the aspect ratio from it.
// Zero dimensions are ignored.
//
// Parameters:
//   - width: target width in pixels
//   - height: target height in pixels
//
// Returns:
//   - CameraBuilderOption: functional option to set the target size
func WithPixelSize(width, height uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if width == 0 || height == 0 {
			return
		}
		c.width = width
		c.height = height
		c.aspect = float32(width) / float32(height)
	}
}

// WithEnabled sets whether the camera renders frames. Cameras are enabled by default.
//
// Parameters:
//   - enabled: true to render the camera
//
// Returns:
//   - CameraBuilderOption: functional option to set the enabled state
func WithEnabled(enabled bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.enabled = enabled
	}
}
