// Package graphtest provides a rendergraph.Backend that records what it is given, for tests
// that exercise frame graphs without a GPU.
package graphtest

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/cogentcore/webgpu/wgpu"
)

// SubmittedPass is one pass received by a Recorder.
type SubmittedPass struct {
	Frame uint64
	Pass  rendergraph.CompiledPass
	Draws []rendergraph.DrawCommand
}

// Recorder is a rendergraph.Backend that keeps every submitted pass. The zero value is ready to use.
type Recorder struct {
	mu sync.Mutex

	frames     []uint64
	transients [][]rendergraph.Resource
	passes     []SubmittedPass
	open       bool

	// FailSubmit, when set, is returned by Submit for the named pass.
	FailSubmit map[string]error
}

var _ rendergraph.Backend = &Recorder{}

func (r *Recorder) BeginFrame(_ context.Context, frame uint64, transients []rendergraph.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	r.transients = append(r.transients, transients)
	r.open = true
	return nil
}

func (r *Recorder) Submit(_ context.Context, pass rendergraph.CompiledPass, draws []rendergraph.DrawCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailSubmit[pass.Name]; err != nil {
		return err
	}
	r.passes = append(r.passes, SubmittedPass{
		Frame: r.frames[len(r.frames)-1],
		Pass:  pass,
		Draws: draws,
	})
	return nil
}

func (r *Recorder) EndFrame(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	return nil
}

// Frames returns the frame numbers begun so far.
func (r *Recorder) Frames() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.frames...)
}

// Transients returns the transient list handed to the most recent BeginFrame.
func (r *Recorder) Transients() []rendergraph.Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transients) == 0 {
		return nil
	}
	return r.transients[len(r.transients)-1]
}

// Passes returns every submitted pass in submission order.
func (r *Recorder) Passes() []SubmittedPass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SubmittedPass(nil), r.passes...)
}

// Pass returns the most recent submission of the named pass.
func (r *Recorder) Pass(name string) (SubmittedPass, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.passes) - 1; i >= 0; i-- {
		if r.passes[i].Pass.Name == name {
			return r.passes[i], true
		}
	}
	return SubmittedPass{}, false
}

// InFrame reports whether BeginFrame was called without a matching EndFrame.
func (r *Recorder) InFrame() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames, r.transients, r.passes, r.open = nil, nil, nil, false
}

// Texture is an in-memory rendergraph.ExternalTexture.
type Texture struct {
	mu *sync.Mutex

	name      string
	width     uint32
	height    uint32
	layers    uint32
	format    wgpu.TextureFormat
	samples   uint32
	destroyed bool
}

var _ rendergraph.ExternalTexture = &Texture{}

// NewTexture creates a single layer texture description.
func NewTexture(name string, width, height uint32, format wgpu.TextureFormat, samples uint32) *Texture {
	return &Texture{
		mu:      &sync.Mutex{},
		name:    name,
		width:   width,
		height:  height,
		layers:  1,
		format:  format,
		samples: samples,
	}
}

func (t *Texture) Name() string { return t.name }
func (t *Texture) Width() uint32 { return t.width }
func (t *Texture) Height() uint32 { return t.height }
func (t *Texture) DepthOrArrayLayers() uint32 { return t.layers }
func (t *Texture) Format() wgpu.TextureFormat { return t.format }
func (t *Texture) SampleCount() uint32 { return t.samples }

func (t *Texture) IsCreated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.destroyed
}

// SetLayers changes the reported array layer count.
func (t *Texture) SetLayers(n uint32) {
	t.layers = n
}

// Destroy marks the texture as no longer created.
func (t *Texture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}
