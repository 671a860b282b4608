package rendergraph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph/graphtest"
	"github.com/cogentcore/webgpu/wgpu"
)

const blitSource = `
//@oxy:include fullscreen
struct BlitParams {
    gain: f32,
}

//@oxy:property _Gain gain
@group(0) @binding(0) var<uniform> params: BlitParams;

//@oxy:texture 0 1 _Source
@group(0) @binding(1) var source_tex: texture_2d<f32>;

//@oxy:variant fs_blit 1 _Source
//@oxy:variant fs_blit_pair 2 _Source
@fragment
fn fs_blit(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(params.gain);
}

@fragment
fn fs_blit_pair(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(params.gain);
}
`

type testMaterial struct {
	prog   shader.Program
	params rendergraph.Parameters
}

func (m *testMaterial) Program() shader.Program { return m.prog }
func (m *testMaterial) Parameters() rendergraph.Parameters { return m.params }

func newTestMaterial(t *testing.T) *testMaterial {
	t.Helper()
	prog, err := shader.NewProgram("blit", blitSource, shader.WithValidation(false))
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	return &testMaterial{
		prog: prog,
		params: rendergraph.Parameters{
			Ints: map[string]int32{"_Gain": 1},
		},
	}
}

func importTexture(t *testing.T, g *rendergraph.Graph, hs *rendergraph.HandleSystem, name string, w, h uint32) rendergraph.TextureHandle {
	t.Helper()
	tex := graphtest.NewTexture(name, w, h, wgpu.TextureFormatRGBA16Float, 1)
	rt := hs.Alloc(tex, name)
	handle := g.ImportTexture(rt, rendergraph.RenderTargetInfo{
		Format:      tex.Format(),
		Width:       w,
		Height:      h,
		VolumeDepth: 1,
		MSAASamples: 1,
	})
	if !handle.IsValid() {
		t.Fatalf("import of %s returned an invalid handle", name)
	}
	return handle
}

type noData struct{}

func addWritePass(t *testing.T, g *rendergraph.Graph, name string, cull bool, reads []rendergraph.TextureHandle, writes ...rendergraph.TextureHandle) {
	t.Helper()
	b, _ := rendergraph.AddRasterPass[noData](g, name)
	for _, r := range reads {
		b.UseTexture(r, rendergraph.AccessRead)
	}
	for slot, w := range writes {
		b.SetRenderAttachment(w, slot)
	}
	b.AllowPassCulling(cull)
	b.SetRenderFunc(func(*noData, *rendergraph.RasterContext) {})
	if err := b.Commit(); err != nil {
		t.Fatalf("commit %s: %v", name, err)
	}
}

func TestHandleSystemLifecycle(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	if h := hs.Alloc(nil, "none"); h != nil {
		t.Fatalf("Alloc(nil) = %v, want nil", h)
	}

	tex := graphtest.NewTexture("out", 4, 4, wgpu.TextureFormatR32Float, 1)
	a := hs.Alloc(tex, "A")
	b := hs.Alloc(tex, "B")
	if a.ID() == b.ID() {
		t.Fatal("handles share an ID")
	}
	if hs.Live() != 2 {
		t.Fatalf("Live() = %d, want 2", hs.Live())
	}
	if !a.IsValid() || a.Name() != "A" || a.Texture() != tex {
		t.Fatalf("handle A not set up: valid=%v name=%q", a.IsValid(), a.Name())
	}

	a.Release()
	a.Release()
	if hs.Live() != 1 {
		t.Fatalf("Live() after double release = %d, want 1", hs.Live())
	}
	if a.IsValid() || !a.Released() {
		t.Fatal("released handle still valid")
	}

	tex.Destroy()
	if b.IsValid() {
		t.Fatal("handle over a destroyed texture reports valid")
	}

	var nilHandle *rendergraph.RTHandle
	nilHandle.Release()
	if nilHandle.IsValid() {
		t.Fatal("nil handle reports valid")
	}
}

func TestImportTexture(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	g := rendergraph.NewGraph(7)
	tex := graphtest.NewTexture("out", 8, 8, wgpu.TextureFormatR32Float, 1)
	rt := hs.Alloc(tex, "Out")

	first := g.ImportTexture(rt, rendergraph.RenderTargetInfo{Width: 8, Height: 8})
	second := g.ImportTexture(rt, rendergraph.RenderTargetInfo{Width: 8, Height: 8})
	if first != second {
		t.Fatal("importing the same handle twice produced different graph handles")
	}
	res, ok := g.Resource(first)
	if !ok || !res.Imported || res.External != rt || res.Name != "Out" {
		t.Fatalf("Resource() = %+v, %v", res, ok)
	}

	rt.Release()
	other := hs.Alloc(tex, "Again")
	other.Release()
	if h := g.ImportTexture(other, rendergraph.RenderTargetInfo{}); h.IsValid() {
		t.Fatal("import of a released handle returned a valid handle")
	}
	if h := g.ImportTexture(nil, rendergraph.RenderTargetInfo{}); h.IsValid() {
		t.Fatal("import of a nil handle returned a valid handle")
	}
	if h := g.CreateTexture(rendergraph.TextureDesc{Name: "zero"}); h.IsValid() {
		t.Fatal("zero sized transient returned a valid handle")
	}
}

func TestImportTextureAcrossHandleSystems(t *testing.T) {
	g := rendergraph.NewGraph(1)
	hostTex := graphtest.NewTexture("host", 8, 8, wgpu.TextureFormatRGBA8Unorm, 1)
	userTex := graphtest.NewTexture("user", 4, 4, wgpu.TextureFormatR32Float, 1)

	host := rendergraph.NewHandleSystem().Alloc(hostTex, "Host")
	user := rendergraph.NewHandleSystem().Alloc(userTex, "User")
	if host.ID() == user.ID() {
		t.Fatalf("handles from separate systems share ID %d", host.ID())
	}

	hh := g.ImportTexture(host, rendergraph.RenderTargetInfo{Width: 8, Height: 8})
	uh := g.ImportTexture(user, rendergraph.RenderTargetInfo{Width: 4, Height: 4})
	if hh == uh {
		t.Fatal("imports from separate handle systems resolved to the same graph handle")
	}
	res, ok := g.Resource(uh)
	if !ok || res.External != user || res.Name != "User" {
		t.Fatalf("Resource(user) = %+v, %v", res, ok)
	}
}

func TestRasterPassValidation(t *testing.T) {
	hs := rendergraph.NewHandleSystem()

	tests := []struct {
		name    string
		build   func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData])
		wantErr error
	}{
		{
			name: "skipped slot",
			build: func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {
				b.SetRenderAttachment(importTexture(t, g, hs, "a", 4, 4), 1)
			},
			wantErr: rendergraph.ErrAttachmentSlot,
		},
		{
			name: "read write hazard",
			build: func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {
				h := importTexture(t, g, hs, "a", 4, 4)
				b.UseTexture(h, rendergraph.AccessRead)
				b.SetRenderAttachment(h, 0)
			},
			wantErr: rendergraph.ErrReadWriteHazard,
		},
		{
			name: "size mismatch",
			build: func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {
				b.SetRenderAttachment(importTexture(t, g, hs, "a", 4, 4), 0)
				b.SetRenderAttachment(importTexture(t, g, hs, "b", 8, 4), 1)
			},
			wantErr: rendergraph.ErrAttachmentSize,
		},
		{
			name: "foreign handle",
			build: func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {
				other := rendergraph.NewGraph(0)
				b.SetRenderAttachment(importTexture(t, other, hs, "a", 4, 4), 0)
			},
			wantErr: rendergraph.ErrInvalidHandle,
		},
		{
			name: "invalid handle",
			build: func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {
				b.UseTexture(rendergraph.TextureHandle{}, rendergraph.AccessRead)
			},
			wantErr: rendergraph.ErrInvalidHandle,
		},
		{
			name:    "no attachments",
			build:   func(g *rendergraph.Graph, b *rendergraph.RasterPassBuilder[noData]) {},
			wantErr: rendergraph.ErrNoAttachments,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := rendergraph.NewGraph(1)
			b, _ := rendergraph.AddRasterPass[noData](g, tt.name)
			tt.build(g, b)
			b.SetRenderFunc(func(*noData, *rendergraph.RasterContext) {})
			if err := b.Commit(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Commit() = %v, want %v", err, tt.wantErr)
			}
			if g.PassCount() != 0 {
				t.Fatal("failed pass was added to the graph")
			}
		})
	}

	t.Run("no render func", func(t *testing.T) {
		g := rendergraph.NewGraph(1)
		b, _ := rendergraph.AddRasterPass[noData](g, "bare")
		b.SetRenderAttachment(importTexture(t, g, hs, "a", 4, 4), 0)
		if err := b.Commit(); !errors.Is(err, rendergraph.ErrNoRenderFunc) {
			t.Fatalf("Commit() = %v, want ErrNoRenderFunc", err)
		}
		if err := b.Commit(); !errors.Is(err, rendergraph.ErrPassCommitted) {
			t.Fatalf("second Commit() = %v, want ErrPassCommitted", err)
		}
	})

	t.Run("too many attachments", func(t *testing.T) {
		g := rendergraph.NewGraph(1)
		b, _ := rendergraph.AddRasterPass[noData](g, "wide")
		for slot := 0; slot <= rendergraph.MaxColorAttachments; slot++ {
			b.SetRenderAttachment(importTexture(t, g, hs, "a", 4, 4), slot)
		}
		b.SetRenderFunc(func(*noData, *rendergraph.RasterContext) {})
		if err := b.Commit(); !errors.Is(err, rendergraph.ErrAttachmentSlot) {
			t.Fatalf("Commit() = %v, want ErrAttachmentSlot", err)
		}
	})
}

func TestCompileCullsAndLevels(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	g := rendergraph.NewGraph(3)

	depth := g.CreateTexture(rendergraph.TextureDesc{Name: "depth", Format: wgpu.TextureFormatR32Float, Width: 4, Height: 4})
	unused := g.CreateTexture(rendergraph.TextureDesc{Name: "unused", Format: wgpu.TextureFormatR32Float, Width: 4, Height: 4})
	out := importTexture(t, g, hs, "out", 4, 4)

	addWritePass(t, g, "prepass", true, nil, depth)
	addWritePass(t, g, "orphan", true, nil, unused)
	addWritePass(t, g, "route", true, []rendergraph.TextureHandle{depth}, out)
	addWritePass(t, g, "keep", false, nil, unused)

	c := g.Compile()
	if len(c.Culled) != 1 || c.Culled[0] != "orphan" {
		t.Fatalf("Culled = %v, want [orphan]", c.Culled)
	}
	if len(c.Passes) != 3 {
		t.Fatalf("compiled %d passes, want 3", len(c.Passes))
	}

	byName := map[string]rendergraph.CompiledPass{}
	for _, p := range c.Passes {
		byName[p.Name] = p
	}
	if byName["prepass"].Level != 0 || byName["route"].Level != 1 || byName["keep"].Level != 0 {
		t.Errorf("levels prepass=%d route=%d keep=%d, want 0 1 0", byName["prepass"].Level, byName["route"].Level, byName["keep"].Level)
	}

	pre := byName["prepass"].Colors[0]
	if pre.Load != rendergraph.LoadActionClear || pre.Store != rendergraph.StoreActionStore {
		t.Errorf("prepass attachment load=%v store=%v, want clear/store", pre.Load, pre.Store)
	}
	route := byName["route"].Colors[0]
	if route.Load != rendergraph.LoadActionLoad || route.Store != rendergraph.StoreActionStore {
		t.Errorf("imported attachment load=%v store=%v, want load/store", route.Load, route.Store)
	}
	keep := byName["keep"].Colors[0]
	if keep.Store != rendergraph.StoreActionDiscard {
		t.Errorf("unread transient store=%v, want discard", keep.Store)
	}
	if _, ok := byName["route"].Read(depth); !ok {
		t.Error("route pass lost its depth read")
	}

	if len(c.Transients) != 2 {
		t.Errorf("Transients = %d, want 2", len(c.Transients))
	}
	if levels := c.Levels(); len(levels) != 2 || len(levels[0]) != 2 || len(levels[1]) != 1 {
		t.Errorf("Levels() shape = %v", levels)
	}
}

type blitData struct {
	material *testMaterial
	source   rendergraph.TextureHandle
	gain     int32
}

func TestExecutorRecordsAndSubmitsInOrder(t *testing.T) {
	for _, workers := range []int{1, 4} {
		hs := rendergraph.NewHandleSystem()
		g := rendergraph.NewGraph(11)
		m := newTestMaterial(t)

		src := g.CreateTexture(rendergraph.TextureDesc{Name: "src", Format: wgpu.TextureFormatRGBA16Float, Width: 4, Height: 4})
		addWritePass(t, g, "fill", true, nil, src)

		names := []string{"first", "second", "third"}
		for i, name := range names {
			out := importTexture(t, g, hs, name, 4, 4)
			b, data := rendergraph.AddRasterPass[blitData](g, name)
			data.material = m
			data.source = src
			data.gain = int32(i + 2)
			b.UseTexture(src, rendergraph.AccessRead)
			b.SetRenderAttachment(out, 0)
			b.SetRenderFunc(func(d *blitData, ctx *rendergraph.RasterContext) {
				var block rendergraph.PropertyBlock
				block.SetTexture("_Source", d.source)
				block.SetInt("_Gain", d.gain)
				ctx.Cmd.DrawFullScreen(d.material, 0, &block)
			})
			if err := b.Commit(); err != nil {
				t.Fatalf("commit %s: %v", name, err)
			}
		}

		rec := &graphtest.Recorder{}
		exec := rendergraph.NewExecutor(rendergraph.WithWorkers(workers))
		if _, err := exec.Execute(context.Background(), g, rec); err != nil {
			t.Fatalf("workers=%d Execute: %v", workers, err)
		}
		if rec.InFrame() {
			t.Fatal("frame left open")
		}

		passes := rec.Passes()
		if len(passes) != 4 {
			t.Fatalf("workers=%d submitted %d passes, want 4", workers, len(passes))
		}
		for i, name := range names {
			p := passes[i+1]
			if p.Pass.Name != name || p.Frame != 11 {
				t.Fatalf("workers=%d pass %d = %s frame %d, want %s frame 11", workers, i+1, p.Pass.Name, p.Frame, name)
			}
			if len(p.Draws) != 1 {
				t.Fatalf("%s recorded %d draws, want 1", name, len(p.Draws))
			}
			d := p.Draws[0]
			if d.VertexCount != rendergraph.FullScreenVertexCount || d.Variant != 0 {
				t.Errorf("%s draw = %+v", name, d)
			}
			if d.Params.Ints["_Gain"] != int32(i+2) {
				t.Errorf("%s _Gain = %d, want %d", name, d.Params.Ints["_Gain"], i+2)
			}
			if d.Params.Textures["_Source"] != src {
				t.Errorf("%s sampled the wrong texture", name)
			}
		}
		if m.params.Ints["_Gain"] != 1 {
			t.Error("property block leaked into the material defaults")
		}
	}
}

func TestExecutorReportsRecordingErrors(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	m := newTestMaterial(t)

	tests := []struct {
		name    string
		record  func(src rendergraph.TextureHandle, ctx *rendergraph.RasterContext)
		wantErr error
	}{
		{
			name: "undeclared read",
			record: func(src rendergraph.TextureHandle, ctx *rendergraph.RasterContext) {
				var block rendergraph.PropertyBlock
				block.SetTexture("_Source", src)
				ctx.Cmd.DrawFullScreen(m, 0, &block)
			},
			wantErr: rendergraph.ErrUndeclaredRead,
		},
		{
			name: "variant out of range",
			record: func(_ rendergraph.TextureHandle, ctx *rendergraph.RasterContext) {
				ctx.Cmd.DrawFullScreen(m, 9, nil)
			},
			wantErr: rendergraph.ErrInvalidVariant,
		},
		{
			name: "target mismatch",
			record: func(_ rendergraph.TextureHandle, ctx *rendergraph.RasterContext) {
				ctx.Cmd.DrawFullScreen(m, 1, nil)
			},
			wantErr: rendergraph.ErrTargetMismatch,
		},
		{
			name: "nil material",
			record: func(_ rendergraph.TextureHandle, ctx *rendergraph.RasterContext) {
				ctx.Cmd.DrawProcedural(nil, 0, 3, nil)
			},
			wantErr: rendergraph.ErrNilMaterial,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := rendergraph.NewGraph(1)
			src := g.CreateTexture(rendergraph.TextureDesc{Name: "src", Width: 4, Height: 4})
			addWritePass(t, g, "fill", true, nil, src)

			b, _ := rendergraph.AddRasterPass[noData](g, "bad")
			b.SetRenderAttachment(importTexture(t, g, hs, "out", 4, 4), 0)
			b.SetRenderFunc(func(_ *noData, ctx *rendergraph.RasterContext) {
				tt.record(src, ctx)
			})
			if err := b.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}

			rec := &graphtest.Recorder{}
			_, err := rendergraph.NewExecutor(rendergraph.WithWorkers(1)).Execute(context.Background(), g, rec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() = %v, want %v", err, tt.wantErr)
			}
			if len(rec.Frames()) != 0 {
				t.Fatal("backend frame begun despite recording error")
			}
		})
	}
}

func TestExecutorStopsOnCancelledContext(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	g := rendergraph.NewGraph(1)
	addWritePass(t, g, "only", false, nil, importTexture(t, g, hs, "out", 4, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &graphtest.Recorder{}
	if _, err := rendergraph.NewExecutor().Execute(ctx, g, rec); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() = %v, want context.Canceled", err)
	}
	if len(rec.Passes()) != 0 {
		t.Fatal("passes submitted after cancellation")
	}
}

func TestExecutorClosesFrameOnSubmitError(t *testing.T) {
	hs := rendergraph.NewHandleSystem()
	g := rendergraph.NewGraph(1)
	addWritePass(t, g, "only", false, nil, importTexture(t, g, hs, "out", 4, 4))

	boom := errors.New("boom")
	rec := &graphtest.Recorder{FailSubmit: map[string]error{"only": boom}}
	if _, err := rendergraph.NewExecutor().Execute(context.Background(), g, rec); !errors.Is(err, boom) {
		t.Fatalf("Execute() = %v, want boom", err)
	}
	if rec.InFrame() {
		t.Fatal("frame left open after submit error")
	}
}
