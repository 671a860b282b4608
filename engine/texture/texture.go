package texture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoDevice is returned when a render texture is created without a GPU device.
var ErrNoDevice = errors.New("texture: no device")

var textureIDCounter atomic.Uint64

type renderTextureImpl struct {
	mu *sync.Mutex

	id          uint64
	name        string
	width       uint32
	height      uint32
	layers      uint32
	format      wgpu.TextureFormat
	sampleCount uint32
	usage       wgpu.TextureUsage

	texture        *wgpu.Texture
	attachmentView *wgpu.TextureView
	sampleView     *wgpu.TextureView
}

// RenderTexture is a GPU texture that can be written by a render pass and read by external consumers.
// It satisfies rendergraph.ExternalTexture so it can be bound as a destination.
type RenderTexture interface {
	rendergraph.ExternalTexture

	// ID returns the process-unique id of the texture.
	ID() uint64

	// Usage returns the wgpu usage flags the texture was created with.
	Usage() wgpu.TextureUsage

	// Texture returns the underlying wgpu texture, nil once released.
	Texture() *wgpu.Texture

	// AttachmentView returns the view bound as a color attachment.
	AttachmentView() *wgpu.TextureView

	// SampleView returns the view bound when the texture is sampled in a shader.
	SampleView() *wgpu.TextureView

	// Release releases the views and the texture. IsCreated reports false afterwards.
	Release()
}

var _ RenderTexture = &renderTextureImpl{}

// NewRenderTexture creates a render texture on the given device.
//
// Parameters:
//   - device: the wgpu device that owns the texture
//   - options: optional builder options for size, format and sample count
//
// Returns:
//   - RenderTexture: the created texture
//   - error: ErrNoDevice when device is nil, or an error if the GPU objects could not be created
func NewRenderTexture(device *wgpu.Device, options ...RenderTextureBuilderOption) (RenderTexture, error) {
	t := newRenderTexture(options...)
	if device == nil {
		return nil, ErrNoDevice
	}

	tex, err := device.CreateTexture(t.descriptor())
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", t.name, err)
	}
	attachment, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("create attachment view %q: %w", t.name, err)
	}
	sample, err := tex.CreateView(nil)
	if err != nil {
		attachment.Release()
		tex.Release()
		return nil, fmt.Errorf("create sample view %q: %w", t.name, err)
	}

	t.texture = tex
	t.attachmentView = attachment
	t.sampleView = sample
	return t, nil
}

func newRenderTexture(options ...RenderTextureBuilderOption) *renderTextureImpl {
	t := &renderTextureImpl{
		mu:          &sync.Mutex{},
		id:          textureIDCounter.Add(1),
		width:       1,
		height:      1,
		layers:      1,
		format:      wgpu.TextureFormatRGBA16Float,
		sampleCount: 1,
		usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.name == "" {
		t.name = fmt.Sprintf("RenderTexture %d", t.id)
	}
	return t
}

func (t *renderTextureImpl) descriptor() *wgpu.TextureDescriptor {
	return &wgpu.TextureDescriptor{
		Label: t.name,
		Size: wgpu.Extent3D{
			Width:              t.width,
			Height:             t.height,
			DepthOrArrayLayers: t.layers,
		},
		MipLevelCount: 1,
		SampleCount:   t.sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        t.format,
		Usage:         t.usage,
	}
}

func (t *renderTextureImpl) ID() uint64 {
	return t.id
}

func (t *renderTextureImpl) Name() string {
	return t.name
}

func (t *renderTextureImpl) Width() uint32 {
	return t.width
}

func (t *renderTextureImpl) Height() uint32 {
	return t.height
}

func (t *renderTextureImpl) DepthOrArrayLayers() uint32 {
	return t.layers
}

func (t *renderTextureImpl) Format() wgpu.TextureFormat {
	return t.format
}

func (t *renderTextureImpl) SampleCount() uint32 {
	return t.sampleCount
}

func (t *renderTextureImpl) Usage() wgpu.TextureUsage {
	return t.usage
}

func (t *renderTextureImpl) IsCreated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture != nil
}

func (t *renderTextureImpl) Texture() *wgpu.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture
}

func (t *renderTextureImpl) AttachmentView() *wgpu.TextureView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attachmentView
}

func (t *renderTextureImpl) SampleView() *wgpu.TextureView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampleView
}

func (t *renderTextureImpl) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sampleView != nil {
		t.sampleView.Release()
		t.sampleView = nil
	}
	if t.attachmentView != nil {
		t.attachmentView.Release()
		t.attachmentView = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}
