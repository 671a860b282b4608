package texture

import "github.com/cogentcore/webgpu/wgpu"

// RenderTextureBuilderOption is a function that configures a render texture before creation.
type RenderTextureBuilderOption func(*renderTextureImpl)

// WithName sets the debug label of the texture.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - RenderTextureBuilderOption: a function that applies the name option
func WithName(name string) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		t.name = name
	}
}

// WithSize sets the pixel size of the texture. Zero dimensions are ignored.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RenderTextureBuilderOption: a function that applies the size option
func WithSize(width, height uint32) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		if width > 0 {
			t.width = width
		}
		if height > 0 {
			t.height = height
		}
	}
}

// WithArrayLayers sets the depth or array layer count.
func WithArrayLayers(layers uint32) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		if layers > 0 {
			t.layers = layers
		}
	}
}

// WithFormat sets the texel format.
func WithFormat(format wgpu.TextureFormat) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		t.format = format
	}
}

// WithSampleCount sets the MSAA sample count. A multisampled texture cannot be sampled as a regular 2D texture.
func WithSampleCount(count uint32) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		if count > 0 {
			t.sampleCount = count
		}
	}
}

// WithUsage overrides the wgpu usage flags.
func WithUsage(usage wgpu.TextureUsage) RenderTextureBuilderOption {
	return func(t *renderTextureImpl) {
		t.usage = usage
	}
}
