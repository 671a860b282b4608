package renderer_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph/graphtest"
	"github.com/Carmen-Shannon/oxy-camtex/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBackend records frames and owns a fake camera target.
type fakeBackend struct {
	*graphtest.Recorder
	target   *graphtest.Texture
	resizes  int
	presents int
	released bool
}

func newFakeBackend(w, h uint32) *fakeBackend {
	return &fakeBackend{
		Recorder: &graphtest.Recorder{},
		target:   graphtest.NewTexture("target", w, h, wgpu.TextureFormatRGBA8Unorm, 1),
	}
}

func (b *fakeBackend) CameraTarget() rendergraph.ExternalTexture { return b.target }
func (b *fakeBackend) SetPresentMode(renderer.PresentMode) {}
func (b *fakeBackend) Present() { b.presents++ }
func (b *fakeBackend) Release() { b.released = true }

func (b *fakeBackend) Resize(w, h uint32) error {
	b.resizes++
	b.target.Destroy()
	b.target = graphtest.NewTexture("target", w, h, wgpu.TextureFormatRGBA8Unorm, 1)
	return nil
}

// probePass reads the buffers it asks for and writes its own imported output.
type probePass struct {
	name   string
	event  renderer.RenderPassEvent
	input  renderer.PassInput
	output *rendergraph.RTHandle
	fail   error

	seen renderer.FrameResources
}

func (p *probePass) Name() string { return p.name }
func (p *probePass) Event() renderer.RenderPassEvent { return p.event }
func (p *probePass) Input() renderer.PassInput { return p.input }

func (p *probePass) RecordRenderGraph(g *rendergraph.Graph, frame *renderer.FrameData) error {
	p.seen = frame.Resources
	if p.fail != nil {
		return p.fail
	}
	tex := p.output.Texture()
	out := g.ImportTexture(p.output, rendergraph.RenderTargetInfo{
		Format: tex.Format(), Width: tex.Width(), Height: tex.Height(), VolumeDepth: 1, MSAASamples: 1,
	})

	b, _ := rendergraph.AddRasterPass[struct{}](g, p.name)
	if p.input.Has(renderer.PassInputDepth) {
		b.UseTexture(frame.Resources.CameraDepthTexture, rendergraph.AccessRead)
	}
	if p.input.Has(renderer.PassInputMotion) {
		b.UseTexture(frame.Resources.MotionVectorColor, rendergraph.AccessRead)
	}
	b.SetRenderAttachment(out, 0)
	b.AllowPassCulling(false)
	b.SetRenderFunc(func(*struct{}, *rendergraph.RasterContext) {})
	return b.Commit()
}

type probeFeature struct {
	name     string
	passes   []renderer.RenderPass
	disposed bool
}

func (f *probeFeature) Name() string { return f.name }

func (f *probeFeature) AddRenderPasses(q renderer.PassQueue, _ *renderer.FrameData) {
	for _, p := range f.passes {
		q.EnqueuePass(p)
	}
}

func (f *probeFeature) Dispose() { f.disposed = true }

func newTestRenderer(t *testing.T, backend *fakeBackend, features ...renderer.Feature) (renderer.Renderer, *rendergraph.HandleSystem) {
	t.Helper()
	handles := rendergraph.NewHandleSystem()
	opts := []renderer.RendererBuilderOption{
		renderer.WithBackend(backend),
		renderer.WithHandleSystem(handles),
		renderer.WithWorkers(1),
	}
	for _, f := range features {
		opts = append(opts, renderer.WithFeature(f))
	}
	r, err := renderer.NewRenderer(opts...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r, handles
}

func passNames(r *graphtest.Recorder) []string {
	var names []string
	for _, p := range r.Passes() {
		names = append(names, p.Pass.Name)
	}
	return names
}

func TestRenderCameraWithoutInputs(t *testing.T) {
	backend := newFakeBackend(64, 32)
	r, _ := newTestRenderer(t, backend)
	cam := camera.NewCamera(camera.WithPixelSize(64, 32))

	compiled, err := r.RenderCamera(context.Background(), cam)
	if err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	if compiled == nil {
		t.Fatal("expected a compiled graph")
	}

	want := []string{"DrawOpaqueObjects", "PostProcessing"}
	if got := passNames(backend.Recorder); !slices.Equal(got, want) {
		t.Fatalf("passes = %v, want %v", got, want)
	}
	if n := len(backend.Transients()); n != 0 {
		t.Errorf("transients = %d, want none", n)
	}
	if backend.resizes != 0 {
		t.Errorf("resizes = %d, camera matches target", backend.resizes)
	}
	if r.Frame() != 1 {
		t.Errorf("Frame() = %d, want 1", r.Frame())
	}
}

func TestRenderCameraSchedulesInputsAndEvents(t *testing.T) {
	backend := newFakeBackend(64, 32)
	handles := rendergraph.NewHandleSystem()
	out := handles.Alloc(graphtest.NewTexture("out", 64, 32, wgpu.TextureFormatR32Float, 1), "out")
	late := handles.Alloc(graphtest.NewTexture("late", 64, 32, wgpu.TextureFormatR32Float, 1), "late")

	router := &probePass{
		name:   "Router",
		event:  renderer.BeforeRenderingPostProcessing,
		input:  renderer.PassInputDepth | renderer.PassInputMotion,
		output: out,
	}
	after := &probePass{name: "Capture", event: renderer.AfterRendering, output: late}
	// Enqueued first but scheduled last.
	feature := &probeFeature{name: "probe", passes: []renderer.RenderPass{after, router}}

	r, err := renderer.NewRenderer(
		renderer.WithBackend(backend),
		renderer.WithHandleSystem(handles),
		renderer.WithFeature(feature),
		renderer.WithWorkers(4),
	)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	cam := camera.NewCamera(camera.WithPixelSize(64, 32))
	if _, err := r.RenderCamera(context.Background(), cam); err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}

	want := []string{"DepthPrepass", "DrawOpaqueObjects", "MotionVectors", "Router", "PostProcessing", "Capture"}
	if got := passNames(backend.Recorder); !slices.Equal(got, want) {
		t.Fatalf("passes = %v, want %v", got, want)
	}
	if !router.seen.CameraDepthTexture.IsValid() || !router.seen.MotionVectorColor.IsValid() || !router.seen.CameraColor.IsValid() {
		t.Errorf("router saw resources %+v", router.seen)
	}

	transients := backend.Transients()
	if len(transients) != 2 {
		t.Fatalf("transients = %d, want depth and motion", len(transients))
	}
	formats := []wgpu.TextureFormat{transients[0].Info.Format, transients[1].Info.Format}
	if !slices.Contains(formats, renderer.CameraDepthFormat) || !slices.Contains(formats, renderer.MotionVectorFormat) {
		t.Errorf("transient formats = %v", formats)
	}

	prepass, _ := backend.Pass("DepthPrepass")
	if prepass.Pass.Depth == nil || prepass.Pass.Depth.Load != rendergraph.LoadActionClear {
		t.Errorf("depth prepass attachment = %+v, want a cleared depth write", prepass.Pass.Depth)
	}
	opaque, _ := backend.Pass("DrawOpaqueObjects")
	if opaque.Pass.Depth == nil || !opaque.Pass.Depth.ReadOnly {
		t.Error("opaques should depth test read-only against the prepass")
	}
}

func TestRenderCameraDepthOnly(t *testing.T) {
	backend := newFakeBackend(16, 16)
	handles := rendergraph.NewHandleSystem()
	out := handles.Alloc(graphtest.NewTexture("out", 16, 16, wgpu.TextureFormatR32Float, 1), "out")
	pass := &probePass{name: "DepthCopy", event: renderer.BeforeRenderingPostProcessing, input: renderer.PassInputDepth, output: out}

	r, err := renderer.NewRenderer(
		renderer.WithBackend(backend),
		renderer.WithHandleSystem(handles),
		renderer.WithFeature(&probeFeature{name: "probe", passes: []renderer.RenderPass{pass}}),
		renderer.WithWorkers(1),
	)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.RenderCamera(context.Background(), camera.NewCamera(camera.WithPixelSize(16, 16))); err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	if slices.Contains(passNames(backend.Recorder), "MotionVectors") {
		t.Error("motion vectors rendered without a pass asking for them")
	}
	if pass.seen.MotionVectorColor.IsValid() {
		t.Error("motion handle should be invalid when no motion stage ran")
	}
}

func TestRenderCameraSkipsDisabledCamera(t *testing.T) {
	backend := newFakeBackend(8, 8)
	r, _ := newTestRenderer(t, backend)
	cam := camera.NewCamera(camera.WithPixelSize(8, 8), camera.WithEnabled(false))

	compiled, err := r.RenderCamera(context.Background(), cam)
	if err != nil || compiled != nil {
		t.Fatalf("RenderCamera() = %v, %v; want nil, nil", compiled, err)
	}
	if len(backend.Frames()) != 0 {
		t.Error("a frame was started for a disabled camera")
	}
	if _, err := r.RenderCamera(context.Background(), nil); !errors.Is(err, renderer.ErrNoCamera) {
		t.Errorf("RenderCamera(nil) error = %v", err)
	}
}

func TestRenderCameraResizesTarget(t *testing.T) {
	backend := newFakeBackend(8, 8)
	r, handles := newTestRenderer(t, backend)
	cam := camera.NewCamera(camera.WithPixelSize(8, 8))

	if _, err := r.RenderCamera(context.Background(), cam); err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	cam.SetPixelSize(32, 16)
	if _, err := r.RenderCamera(context.Background(), cam); err != nil {
		t.Fatalf("RenderCamera after resize: %v", err)
	}
	if backend.resizes != 1 {
		t.Errorf("resizes = %d, want 1", backend.resizes)
	}
	if handles.Live() != 1 {
		t.Errorf("live handles = %d, the old target handle should be released", handles.Live())
	}

	passes := backend.Passes()
	last := passes[len(passes)-1]
	if last.Frame != 2 || last.Pass.Name != "PostProcessing" {
		t.Fatalf("last pass = %s in frame %d", last.Pass.Name, last.Frame)
	}
	if w := last.Pass.Colors[0].Resource.Info.Width; w != 32 {
		t.Errorf("target width = %d, want 32", w)
	}
}

func TestRenderCameraLeavesOutFailedPass(t *testing.T) {
	backend := newFakeBackend(8, 8)
	boom := errors.New("boom")
	broken := &probePass{name: "Broken", event: renderer.AfterRenderingOpaques, input: renderer.PassInputDepth, fail: boom}
	r, _ := newTestRenderer(t, backend, &probeFeature{name: "probe", passes: []renderer.RenderPass{broken}})

	if _, err := r.RenderCamera(context.Background(), camera.NewCamera(camera.WithPixelSize(8, 8))); err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	want := []string{"DepthPrepass", "DrawOpaqueObjects", "PostProcessing"}
	if got := passNames(backend.Recorder); !slices.Equal(got, want) {
		t.Errorf("passes = %v, want %v", got, want)
	}
	if !broken.seen.CameraDepthTexture.IsValid() {
		t.Error("depth prepass output not visible to a later pass")
	}
}

func TestRenderCameraSubmitError(t *testing.T) {
	backend := newFakeBackend(8, 8)
	boom := errors.New("device lost")
	backend.FailSubmit = map[string]error{"DrawOpaqueObjects": boom}
	r, _ := newTestRenderer(t, backend)

	if _, err := r.RenderCamera(context.Background(), camera.NewCamera(camera.WithPixelSize(8, 8))); !errors.Is(err, boom) {
		t.Fatalf("RenderCamera() error = %v, want %v", err, boom)
	}
	if backend.InFrame() {
		t.Error("frame left open after a submit error")
	}
}

func TestFeatureLifecycle(t *testing.T) {
	backend := newFakeBackend(8, 8)
	first := &probeFeature{name: "router"}
	r, _ := newTestRenderer(t, backend, first)

	second := &probeFeature{name: "router"}
	r.AddFeature(second)
	if !first.disposed {
		t.Error("replaced feature was not disposed")
	}
	if got := r.Features(); len(got) != 1 || got[0] != renderer.Feature(second) {
		t.Fatalf("Features() = %v", got)
	}

	if r.RemoveFeature("missing") {
		t.Error("RemoveFeature reported removing an unknown feature")
	}
	other := &probeFeature{name: "other"}
	r.AddFeature(other)
	if !r.RemoveFeature("other") || !other.disposed {
		t.Error("RemoveFeature did not dispose the feature")
	}

	r.Present()
	r.Release()
	if !second.disposed || !backend.released {
		t.Error("Release should dispose features and release the backend")
	}
	if backend.presents != 1 {
		t.Errorf("presents = %d", backend.presents)
	}
}

func TestPassInputAndEventStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{renderer.PassInputNone.String(), "None"},
		{(renderer.PassInputDepth | renderer.PassInputMotion).String(), "Depth|Motion"},
		{renderer.BeforeRenderingPostProcessing.String(), "BeforeRenderingPostProcessing"},
		{renderer.RenderPassEvent(551).String(), "RenderPassEvent(551)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewRenderTextureWithoutDevice(t *testing.T) {
	r, _ := newTestRenderer(t, newFakeBackend(8, 8))
	if _, err := r.NewRenderTexture(texture.WithName("dst")); !errors.Is(err, texture.ErrNoDevice) {
		t.Errorf("NewRenderTexture() error = %v, want ErrNoDevice", err)
	}
}
