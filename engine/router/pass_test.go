package router_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph/graphtest"
	"github.com/Carmen-Shannon/oxy-camtex/engine/router"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBackend is a renderer backend with an in-memory camera target.
type fakeBackend struct {
	*graphtest.Recorder
	target *graphtest.Texture
}

func (b *fakeBackend) CameraTarget() rendergraph.ExternalTexture { return b.target }
func (b *fakeBackend) SetPresentMode(renderer.PresentMode) {}
func (b *fakeBackend) Present() {}
func (b *fakeBackend) Release() {}

func (b *fakeBackend) Resize(w, h uint32) error {
	b.target.Destroy()
	b.target = graphtest.NewTexture("target", w, h, wgpu.TextureFormatRGBA8Unorm, 1)
	return nil
}

type harness struct {
	backend  *fakeBackend
	renderer renderer.Renderer
	feature  router.Feature
	handles  *rendergraph.HandleSystem
	camera   camera.Camera
}

func newHarness(t *testing.T, program shader.Program) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{
			Recorder: &graphtest.Recorder{},
			target:   graphtest.NewTexture("target", 64, 32, wgpu.TextureFormatRGBA8Unorm, 1),
		},
		handles: rendergraph.NewHandleSystem(),
		camera:  camera.NewCamera(camera.WithName("main"), camera.WithPixelSize(64, 32), camera.WithNear(0.5), camera.WithFar(200)),
	}

	var err error
	h.feature, err = router.NewFeature(router.WithProgram(program))
	if err != nil {
		t.Fatalf("NewFeature: %v", err)
	}
	h.renderer, err = renderer.NewRenderer(renderer.WithBackend(h.backend), renderer.WithFeature(h.feature))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(h.renderer.Release)
	return h
}

func newDefaultHarness(t *testing.T) *harness {
	t.Helper()
	p, err := router.DefaultProgram()
	if err != nil {
		t.Fatalf("DefaultProgram: %v", err)
	}
	return newHarness(t, p)
}

func (h *harness) attach(t *testing.T, options ...router.ControllerBuilderOption) router.Controller {
	t.Helper()
	c := newController(t, h.handles, options...)
	t.Cleanup(c.Destroy)
	if err := h.feature.Registry().Attach(h.camera.ID(), c); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return c
}

// render draws one frame and returns the router pass submitted in it, if any.
func (h *harness) render(t *testing.T) (graphtest.SubmittedPass, bool) {
	t.Helper()
	if _, err := h.renderer.RenderCamera(context.Background(), h.camera); err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	sp, ok := h.backend.Pass(router.PassName)
	if !ok || sp.Frame != h.renderer.Frame() {
		return graphtest.SubmittedPass{}, false
	}
	return sp, true
}

func names(resources []rendergraph.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Name)
	}
	return out
}

func colorNames(attachments []rendergraph.Attachment) []string {
	out := make([]string, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, a.Resource.Name)
	}
	return out
}

func TestPassDepthOnly(t *testing.T) {
	h := newDefaultHarness(t)
	h.attach(t, router.WithDepthDestination(newDestination("depth")))

	sp, ok := h.render(t)
	if !ok {
		t.Fatal("router pass was not submitted")
	}
	if got := colorNames(sp.Pass.Colors); !slices.Equal(got, []string{router.DepthOutputName}) {
		t.Errorf("color attachments = %v, want [%s]", got, router.DepthOutputName)
	}
	if got := names(sp.Pass.Reads); !slices.Equal(got, []string{"_CameraDepthTexture"}) {
		t.Errorf("reads = %v, want [_CameraDepthTexture]", got)
	}
	if len(sp.Draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(sp.Draws))
	}
	d := sp.Draws[0]
	if d.Variant != 0 || d.VertexCount != rendergraph.FullScreenVertexCount {
		t.Errorf("draw variant %d with %d vertices, want variant 0 with 3", d.Variant, d.VertexCount)
	}
	if _, ok := d.Params.Textures[router.PropertyMotionVectorTexture]; ok {
		t.Error("depth-only draw binds the motion vector texture")
	}
	if got := d.Params.Vectors[router.PropertyZBufferParams]; got != h.camera.ZBufferParams() {
		t.Errorf("_ZBufferParams = %v, want %v", got, h.camera.ZBufferParams())
	}
}

func TestPassVariantSelection(t *testing.T) {
	tests := []struct {
		name    string
		depth   bool
		motion  bool
		variant int
		colors  []string
		reads   []string
	}{
		{"depth only", true, false, 0, []string{router.DepthOutputName}, []string{"_CameraDepthTexture"}},
		{"motion only", false, true, 1, []string{router.MotionOutputName}, []string{"_MotionVectorTexture"}},
		{"both", true, true, 2, []string{router.DepthOutputName, router.MotionOutputName}, []string{"_CameraDepthTexture", "_MotionVectorTexture"}},
		{"neither", false, false, -1, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newDefaultHarness(t)
			var options []router.ControllerBuilderOption
			if tt.depth {
				options = append(options, router.WithDepthDestination(newDestination("depth")))
			}
			if tt.motion {
				options = append(options, router.WithMotionDestination(newDestination("motion")))
			}
			h.attach(t, options...)

			sp, ok := h.render(t)
			if tt.variant < 0 {
				if ok {
					t.Fatalf("pass submitted with %d draws, want none", len(sp.Draws))
				}
				return
			}
			if !ok || len(sp.Draws) != 1 {
				t.Fatal("want exactly one draw")
			}
			if sp.Draws[0].Variant != tt.variant {
				t.Errorf("variant = %d, want %d", sp.Draws[0].Variant, tt.variant)
			}
			if got := colorNames(sp.Pass.Colors); !slices.Equal(got, tt.colors) {
				t.Errorf("color attachments = %v, want %v", got, tt.colors)
			}
			if got := names(sp.Pass.Reads); !slices.Equal(got, tt.reads) {
				t.Errorf("reads = %v, want %v", got, tt.reads)
			}
		})
	}
}

func TestPassWritesDestinationsFromSeparateHandleSystem(t *testing.T) {
	h := newDefaultHarness(t)
	if h.handles == h.renderer.Handles() {
		t.Fatal("controller and renderer share a handle system")
	}
	depth, motion := newDestination("depth"), newDestination("motion")
	h.attach(t, router.WithDepthDestination(depth), router.WithMotionDestination(motion))

	sp, ok := h.render(t)
	if !ok {
		t.Fatal("router pass was not submitted")
	}
	if got := colorNames(sp.Pass.Colors); !slices.Equal(got, []string{router.DepthOutputName, router.MotionOutputName}) {
		t.Fatalf("color attachments = %v", got)
	}
	want := []rendergraph.ExternalTexture{depth, motion}
	for i, a := range sp.Pass.Colors {
		if a.Resource.External == nil || a.Resource.External.Texture() != want[i] {
			t.Errorf("attachment %d writes %v, want %s", i, a.Resource.Name, want[i].Name())
		}
	}
}

func TestPassRejectsMismatchedDestinationSizes(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	h := newDefaultHarness(t)
	small := graphtest.NewTexture("small", 32, 16, wgpu.TextureFormatRGBA16Float, 1)
	h.attach(t, router.WithDepthDestination(newDestination("depth")), router.WithMotionDestination(small))

	if sp, ok := h.render(t); ok {
		t.Fatalf("pass with mismatched attachments submitted to %v", colorNames(sp.Pass.Colors))
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, rendergraph.ErrAttachmentSize.Error()) {
		t.Errorf("want a warning carrying ErrAttachmentSize, got log:\n%s", out)
	}
}

func TestPassSharedDestinationKeepsDepth(t *testing.T) {
	h := newDefaultHarness(t)
	shared := newDestination("shared")
	h.attach(t, router.WithDepthDestination(shared), router.WithMotionDestination(shared))

	g := rendergraph.NewGraph(1)
	if got := h.feature.Pass().State(&renderer.FrameData{
		Camera: h.camera,
		Resources: renderer.FrameResources{
			CameraDepthTexture: g.CreateTexture(rendergraph.TextureDesc{Name: "depth", Width: 64, Height: 32}),
			MotionVectorColor:  g.CreateTexture(rendergraph.TextureDesc{Name: "motion", Width: 64, Height: 32}),
		},
	}); got != router.StateDepthOnly {
		t.Errorf("State() = %s, want DepthOnly", got)
	}

	sp, ok := h.render(t)
	if !ok {
		t.Fatal("router pass was not submitted")
	}
	if got := colorNames(sp.Pass.Colors); !slices.Equal(got, []string{router.DepthOutputName}) {
		t.Errorf("color attachments = %v, want [%s]", got, router.DepthOutputName)
	}
	if sp.Draws[0].Variant != 0 {
		t.Errorf("variant = %d, want 0", sp.Draws[0].Variant)
	}
}

func TestPassEncodingParameters(t *testing.T) {
	h := newDefaultHarness(t)
	h.attach(t,
		router.WithDepthDestination(newDestination("depth")),
		router.WithMotionDestination(newDestination("motion")),
		router.WithDepthEncoding(router.DepthEncodingLinearEyeDistance),
		router.WithMotionEncoding(router.MotionEncodingCentered01),
	)

	sp, ok := h.render(t)
	if !ok {
		t.Fatal("router pass was not submitted")
	}
	params := sp.Draws[0].Params
	depth, motion := params.Ints[router.PropertyDepthEncoding], params.Ints[router.PropertyMotionEncoding]
	if depth != 2 || motion != 1 {
		t.Errorf("encodings = (%d, %d), want (2, 1)", depth, motion)
	}

	// Per-frame values never leak into the shared material.
	if _, ok := h.feature.Material().Int(router.PropertyDepthEncoding); ok {
		t.Error("material default was modified by the pass")
	}
}

func TestPassRunsBetweenMotionVectorsAndPostProcessing(t *testing.T) {
	h := newDefaultHarness(t)
	h.attach(t, router.WithMotionDestination(newDestination("motion")))

	compiled, err := h.renderer.RenderCamera(context.Background(), h.camera)
	if err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	var order []string
	for _, p := range compiled.Passes {
		order = append(order, p.Name)
	}
	motion := slices.Index(order, "MotionVectors")
	pass := slices.Index(order, router.PassName)
	post := slices.Index(order, "PostProcessing")
	if motion < 0 || pass < 0 || post < 0 || !(motion < pass && pass < post) {
		t.Errorf("pass order = %v", order)
	}
}

func TestPassDisabledMidSession(t *testing.T) {
	h := newDefaultHarness(t)
	depth := newDestination("depth")
	c := h.attach(t, router.WithDepthDestination(depth))

	if _, ok := h.render(t); !ok {
		t.Fatal("first frame should draw")
	}
	first := c.DepthBinding().Handle()

	c.SetEnabled(false)
	for i := range 3 {
		if _, ok := h.render(t); ok {
			t.Fatalf("disabled frame %d drew", i)
		}
	}

	motion := newDestination("motion")
	c.SetMotionDestination(motion)
	c.SetEnabled(true)
	sp, ok := h.render(t)
	if !ok {
		t.Fatal("re-enabled frame should draw")
	}
	if sp.Draws[0].Variant != 2 {
		t.Errorf("variant = %d, want 2 after enabling with both destinations", sp.Draws[0].Variant)
	}
	if c.DepthBinding().Handle() == first || !first.Released() {
		t.Error("enable did not rebuild the depth binding")
	}
}

func TestPassSkipsInvalidBinding(t *testing.T) {
	h := newDefaultHarness(t)
	depth, motion := newDestination("depth"), newDestination("motion")
	h.attach(t, router.WithDepthDestination(depth), router.WithMotionDestination(motion))

	motion.Destroy()
	sp, ok := h.render(t)
	if !ok {
		t.Fatal("depth output should still be routed")
	}
	if sp.Draws[0].Variant != 0 || len(sp.Pass.Colors) != 1 {
		t.Errorf("variant %d with %d attachments, want depth only", sp.Draws[0].Variant, len(sp.Pass.Colors))
	}

	depth.Destroy()
	if _, ok := h.render(t); ok {
		t.Error("frame with only invalid bindings drew")
	}
}

func TestPassWithoutController(t *testing.T) {
	h := newDefaultHarness(t)
	if _, ok := h.render(t); ok {
		t.Error("camera without controller drew")
	}
	if got := h.feature.Pass().State(&renderer.FrameData{Camera: h.camera}); got != router.StateNoController {
		t.Errorf("State() = %s, want NoController", got)
	}

	c := h.attach(t, router.WithDepthDestination(newDestination("depth")))
	if _, ok := h.render(t); !ok {
		t.Error("attached controller should draw")
	}

	h.feature.Registry().Detach(h.camera.ID())
	if _, ok := h.render(t); ok {
		t.Error("detached controller still drew")
	}
	if !c.DepthBinding().Valid() {
		t.Error("Detach must not release the controller's bindings")
	}
}

func TestPassWithoutProgram(t *testing.T) {
	h := newHarness(t, nil)
	h.attach(t, router.WithDepthDestination(newDestination("depth")), router.WithMotionDestination(newDestination("motion")))

	for range 2 {
		if _, ok := h.render(t); ok {
			t.Fatal("feature without program drew")
		}
	}
	if h.feature.Material() != nil {
		t.Error("feature without program has a material")
	}

	p := h.feature.Pass()
	frame := &renderer.FrameData{Camera: h.camera}
	if got := p.State(frame); got != router.StateInactive {
		t.Errorf("State() = %s, want Inactive", got)
	}
	g := rendergraph.NewGraph(1)
	if err := p.RecordRenderGraph(g, frame); err != nil {
		t.Fatalf("RecordRenderGraph: %v", err)
	}
	if g.PassCount() != 0 {
		t.Errorf("inactive pass declared %d passes", g.PassCount())
	}
}

func TestFeatureApplyConfiguration(t *testing.T) {
	h := newHarness(t, nil)
	h.attach(t, router.WithDepthDestination(newDestination("depth")))

	p, err := router.DefaultProgram()
	if err != nil {
		t.Fatalf("DefaultProgram: %v", err)
	}
	if err := h.feature.ApplyConfiguration(router.FeatureConfig{Program: p}); err != nil {
		t.Fatalf("ApplyConfiguration: %v", err)
	}
	first, firstPass := h.feature.Material(), h.feature.Pass()
	if first == nil {
		t.Fatal("material not created")
	}
	if _, ok := h.render(t); !ok {
		t.Fatal("configured feature should draw")
	}

	if err := h.feature.ApplyConfiguration(router.FeatureConfig{Program: p}); err != nil {
		t.Fatalf("ApplyConfiguration: %v", err)
	}
	if !first.Destroyed() {
		t.Error("old material not destroyed")
	}
	if h.feature.Material() == first || h.feature.Pass() == firstPass {
		t.Error("material and pass were not recreated")
	}
	if firstPass.State(&renderer.FrameData{Camera: h.camera}) != router.StateInactive {
		t.Error("old pass still active")
	}
	if h.feature.Registry().Len() != 1 {
		t.Error("registry lost when the configuration omits it")
	}

	h.feature.Dispose()
	if h.feature.Material() != nil || h.feature.Pass() != nil {
		t.Error("Dispose left material or pass")
	}
	if _, ok := h.render(t); ok {
		t.Error("disposed feature drew")
	}
}

const twoVariantSource = `
//@oxy:include fullscreen

//@oxy:variant fs_a 1
//@oxy:variant fs_b 1
@fragment
fn fs_a(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn fs_b(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func TestFeatureRejectsProgramWithoutRoutingVariants(t *testing.T) {
	p, err := shader.NewProgram("two", twoVariantSource, shader.WithValidation(false))
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	if _, err := router.NewFeature(router.WithProgram(p)); !errors.Is(err, router.ErrProgramContract) {
		t.Errorf("NewFeature error = %v, want ErrProgramContract", err)
	}

	f, err := router.NewFeature()
	if err != nil {
		t.Fatalf("NewFeature: %v", err)
	}
	if err := f.ApplyConfiguration(router.FeatureConfig{Program: p}); !errors.Is(err, router.ErrProgramContract) {
		t.Errorf("ApplyConfiguration error = %v, want ErrProgramContract", err)
	}
	if f.Material() != nil {
		t.Error("rejected program produced a material")
	}
	if f.Pass() == nil || f.Pass().State(nil) != router.StateInactive {
		t.Error("rejected program should leave an inactive pass")
	}
}

func TestFeatureSchedulesPassOnlyWithMaterial(t *testing.T) {
	p, err := router.DefaultProgram()
	if err != nil {
		t.Fatalf("DefaultProgram: %v", err)
	}
	f, err := router.NewFeature(router.WithProgram(p), router.WithFeatureName("router"))
	if err != nil {
		t.Fatalf("NewFeature: %v", err)
	}
	if f.Name() != "router" {
		t.Errorf("Name() = %q", f.Name())
	}

	pass := f.Pass()
	if pass.Name() != router.PassName {
		t.Errorf("pass Name() = %q, want %q", pass.Name(), router.PassName)
	}
	if pass.Event() != renderer.BeforeRenderingPostProcessing {
		t.Errorf("pass Event() = %s", pass.Event())
	}
	if pass.Input() != renderer.PassInputDepth|renderer.PassInputMotion {
		t.Errorf("pass Input() = %s", pass.Input())
	}

	r, err := renderer.NewRenderer(renderer.WithBackend(&fakeBackend{
		Recorder: &graphtest.Recorder{},
		target:   graphtest.NewTexture("target", 8, 8, wgpu.TextureFormatRGBA8Unorm, 1),
	}), renderer.WithFeature(f))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Release()

	cam := camera.NewCamera(camera.WithPixelSize(8, 8))
	compiled, err := r.RenderCamera(context.Background(), cam)
	if err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	if !slices.ContainsFunc(compiled.Passes, func(p rendergraph.CompiledPass) bool { return p.Name == "DepthPrepass" }) {
		t.Error("enqueued router pass should request the depth prepass")
	}

	f.Dispose()
	compiled, err = r.RenderCamera(context.Background(), cam)
	if err != nil {
		t.Fatalf("RenderCamera: %v", err)
	}
	if slices.ContainsFunc(compiled.Passes, func(p rendergraph.CompiledPass) bool { return p.Name == "DepthPrepass" }) {
		t.Error("disposed feature still requests the depth prepass")
	}
}

func TestPassStates(t *testing.T) {
	tests := []struct {
		state   router.PassState
		name    string
		variant int
	}{
		{router.StateInactive, "Inactive", -1},
		{router.StateNoController, "NoController", -1},
		{router.StateDepthOnly, "DepthOnly", 0},
		{router.StateMotionOnly, "MotionOnly", 1},
		{router.StateBoth, "Both", 2},
		{router.PassState(9), "PassState(9)", -1},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.state.VariantIndex(); got != tt.variant {
			t.Errorf("%s.VariantIndex() = %d, want %d", tt.name, got, tt.variant)
		}
	}
}

func TestDefaultProgramLayout(t *testing.T) {
	p, err := router.DefaultProgram()
	if err != nil {
		t.Fatalf("DefaultProgram: %v", err)
	}
	want := []struct {
		entry    string
		targets  int
		textures []string
	}{
		{"fs_depth", 1, []string{router.PropertyCameraDepthTexture}},
		{"fs_motion", 1, []string{router.PropertyMotionVectorTexture}},
		{"fs_both", 2, []string{router.PropertyCameraDepthTexture, router.PropertyMotionVectorTexture}},
	}
	if p.VariantCount() != len(want) {
		t.Fatalf("VariantCount() = %d, want %d", p.VariantCount(), len(want))
	}
	for i, w := range want {
		v, _ := p.Variant(i)
		if v.FragmentEntryPoint != w.entry || v.Targets != w.targets || !slices.Equal(v.Textures, w.textures) {
			t.Errorf("Variant(%d) = %+v, want %s with %d targets sampling %v", i, v, w.entry, w.targets, w.textures)
		}
	}

	var properties []string
	for _, f := range p.Uniforms() {
		properties = append(properties, f.Property)
	}
	wantProps := []string{router.PropertyDepthEncoding, router.PropertyMotionEncoding, router.PropertyZBufferParams}
	if !slices.Equal(properties, wantProps) {
		t.Errorf("uniform properties = %v, want %v", properties, wantProps)
	}
	if p.UniformSize() != 32 {
		t.Errorf("UniformSize() = %d, want 32", p.UniformSize())
	}
}

func TestDefaultProgramCompilesWithNaga(t *testing.T) {
	p, err := router.DefaultProgram(shader.WithValidation(true))
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") || strings.Contains(msg, "unsupported") {
			t.Skipf("naga limitation: %v", err)
		}
		t.Fatalf("DefaultProgram with validation: %v", err)
	}
	if len(p.SPIRV()) == 0 {
		t.Error("no SPIR-V produced")
	}
}
