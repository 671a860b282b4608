// Command camtex renders a camera through the renderer with the camera texture router attached,
// routing depth and motion vectors into two offscreen textures. It runs in a preview window or,
// with -headless, for a fixed number of frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine"
	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-camtex/engine/router"
	"github.com/Carmen-Shannon/oxy-camtex/engine/texture"
	"github.com/Carmen-Shannon/oxy-camtex/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

type options struct {
	headless       bool
	frames         int
	width          int
	height         int
	depthEncoding  string
	motionEncoding string
	workers        int
	software       bool
	validate       bool
	profile        bool
	verbose        bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.headless, "headless", false, "render offscreen without a window")
	flag.IntVar(&opts.frames, "frames", 60, "frames to render in headless mode")
	flag.IntVar(&opts.width, "width", 1280, "camera width in pixels")
	flag.IntVar(&opts.height, "height", 720, "camera height in pixels")
	flag.StringVar(&opts.depthEncoding, "depth", router.DepthEncodingLinear01.String(), "depth encoding: RawBuffer, Linear01 or LinearEyeDistance")
	flag.StringVar(&opts.motionEncoding, "motion", router.MotionEncodingCentered01.String(), "motion encoding: Signed or Centered01")
	flag.IntVar(&opts.workers, "workers", 0, "frame graph recording workers, 0 for one per CPU")
	flag.BoolVar(&opts.software, "software", false, "force the fallback (software) adapter")
	flag.BoolVar(&opts.validate, "validate", false, "compile the compositing program to SPIR-V with naga at startup")
	flag.BoolVar(&opts.profile, "profile", false, "log frame rate and memory statistics")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(opts); err != nil {
		common.Logger().Error("camtex failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	depthEncoding, err := parseDepthEncoding(opts.depthEncoding)
	if err != nil {
		return err
	}
	motionEncoding, err := parseMotionEncoding(opts.motionEncoding)
	if err != nil {
		return err
	}

	// ── Router feature ──────────────────────────────────────────────────
	program, err := router.DefaultProgram(shader.WithValidation(opts.validate))
	if err != nil {
		return fmt.Errorf("compositing program: %w", err)
	}
	feature, err := router.NewFeature(router.WithProgram(program))
	if err != nil {
		return err
	}

	// ── Window + Renderer ───────────────────────────────────────────────
	rendererOpts := []renderer.RendererBuilderOption{
		renderer.WithFeature(feature),
		renderer.WithWorkers(opts.workers),
		renderer.WithForceSoftwareRenderer(opts.software),
		renderer.WithSize(uint32(opts.width), uint32(opts.height)),
	}
	var win window.Window
	if !opts.headless {
		win, err = window.NewWindow(
			window.WithTitle("oxy-camtex"),
			window.WithSize(opts.width, opts.height),
		)
		if err != nil {
			return err
		}
		defer win.Close()
		rendererOpts = append(rendererOpts,
			renderer.WithSurface(win),
			renderer.WithPresentMode(renderer.PresentModeVSync),
		)
	}
	r, err := renderer.NewRenderer(rendererOpts...)
	if err != nil {
		return err
	}
	defer r.Release()

	// ── Camera + destinations ───────────────────────────────────────────
	width, height := uint32(opts.width), uint32(opts.height)
	if win != nil {
		width, height = uint32(win.Width()), uint32(win.Height())
	}
	cam := camera.NewCamera(
		camera.WithName("main"),
		camera.WithPixelSize(width, height),
		camera.WithNear(0.1),
		camera.WithFar(500),
	)

	depthOut, err := r.NewRenderTexture(
		texture.WithName("depth_out"),
		texture.WithSize(uint32(opts.width), uint32(opts.height)),
		texture.WithFormat(wgpu.TextureFormatR32Float),
	)
	if err != nil {
		return err
	}
	defer depthOut.Release()
	motionOut, err := r.NewRenderTexture(
		texture.WithName("motion_out"),
		texture.WithSize(uint32(opts.width), uint32(opts.height)),
		texture.WithFormat(wgpu.TextureFormatRGBA16Float),
	)
	if err != nil {
		return err
	}
	defer motionOut.Release()

	controller, err := router.NewController(
		router.WithName("main"),
		router.WithHandleSystem(r.Handles()),
		router.WithDepthDestination(depthOut),
		router.WithMotionDestination(motionOut),
		router.WithDepthEncoding(depthEncoding),
		router.WithMotionEncoding(motionEncoding),
	)
	if err != nil {
		return err
	}
	defer controller.Destroy()
	if err := feature.Registry().Attach(cam.ID(), controller); err != nil {
		return err
	}
	defer feature.Registry().Detach(cam.ID())

	// ── Engine ──────────────────────────────────────────────────────────
	engineOpts := []engine.EngineBuilderOption{
		engine.WithRenderer(r),
		engine.WithCamera(0, cam),
		engine.WithProfiling(opts.profile),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	}
	eng, err := engine.NewEngine(engineOpts...)
	if err != nil {
		return err
	}

	if opts.headless {
		ctx := context.Background()
		for i := 0; i < opts.frames; i++ {
			if err := eng.RenderFrame(ctx); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		common.Logger().Info("headless run complete", "frames", opts.frames, "state", feature.Pass().State(&renderer.FrameData{Camera: cam}))
		return nil
	}

	setupInput(win, controller, motionOut)
	eng.Run()
	return nil
}

// setupInput binds the preview controls: D and M cycle the encodings, R toggles the controller
// and Space toggles the motion destination.
func setupInput(win window.Window, c router.Controller, motionOut texture.RenderTexture) {
	win.SetKeyDownCallback(func(key window.Key) {
		switch key {
		case window.KeyD:
			next := (c.DepthEncoding() + 1) % (router.DepthEncodingLinearEyeDistance + 1)
			_ = c.SetDepthEncoding(next)
		case window.KeyM:
			next := (c.MotionEncoding() + 1) % (router.MotionEncodingCentered01 + 1)
			_ = c.SetMotionEncoding(next)
		case window.KeyR:
			c.SetEnabled(!c.Enabled())
		case window.KeySpace:
			if c.MotionDestination() == nil {
				c.SetMotionDestination(motionOut)
			} else {
				c.SetMotionDestination(nil)
			}
		default:
			return
		}
		common.Logger().Info("router",
			"enabled", c.Enabled(),
			"depth", c.DepthEncoding(),
			"motion", c.MotionEncoding(),
			"routing_motion", c.MotionDestination() != nil,
		)
	})
}

func parseDepthEncoding(s string) (router.DepthEncoding, error) {
	for e := router.DepthEncodingRawBuffer; e.Valid(); e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: depth %q", router.ErrInvalidEncoding, s)
}

func parseMotionEncoding(s string) (router.MotionEncoding, error) {
	for e := router.MotionEncodingSigned; e.Valid(); e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: motion %q", router.ErrInvalidEncoding, s)
}
