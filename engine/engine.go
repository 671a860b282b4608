package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/camera"
	"github.com/Carmen-Shannon/oxy-camtex/engine/profiler"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/window"
)

// ErrNoRenderer is returned by NewEngine when no renderer was configured.
var ErrNoRenderer = errors.New("engine: renderer is required")

// engine implements the Engine interface.
// Coordinates the tick loop, the render loop and the optional preview window.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	cameras map[int]camera.Camera

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine drives a renderer: a fixed-rate tick loop for application logic and a render loop that
// renders every registered camera each frame.
type Engine interface {
	// Window returns the preview window.
	//
	// Returns:
	//   - window.Window: the window, nil when running headless
	Window() window.Window

	// Renderer returns the renderer the engine drives.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddCamera registers a camera at the given key. Cameras render in ascending key order.
	//
	// Parameters:
	//   - key: the render order key
	//   - c: the camera
	AddCamera(key int, c camera.Camera)

	// RemoveCamera removes the camera at the given key.
	//
	// Parameters:
	//   - key: the key of the camera to remove
	RemoveCamera(key int)

	// Camera retrieves the camera registered at the given key.
	//
	// Parameters:
	//   - key: the key of the camera
	//
	// Returns:
	//   - camera.Camera: the camera, or nil if not found
	Camera(key int) camera.Camera

	// Cameras returns a copy of all registered cameras keyed by render order.
	//
	// Returns:
	//   - map[int]camera.Camera: a copy of the cameras map
	Cameras() map[int]camera.Camera

	// RenderFrame renders every registered camera once and presents the result.
	// Errors from individual cameras are joined; the remaining cameras still render.
	//
	// Parameters:
	//   - ctx: cancels frame graph execution
	//
	// Returns:
	//   - error: the joined camera errors
	RenderFrame(ctx context.Context) error

	// Run starts the tick and render loops and blocks. With a window it returns when the window
	// closes, headless it returns after Quit.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (renderer, window, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: ErrNoRenderer if no renderer was given
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		cameras:         make(map[int]camera.Camera),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.renderer == nil {
		return nil, ErrNoRenderer
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e, nil
}

// resize follows the window: the surface and every camera take the new pixel size.
func (e *engine) resize(width, height int) {
	if err := e.renderer.Resize(width, height); err != nil {
		common.Logger().Warn("engine: resize failed", "width", width, "height", height, "error", err)
		return
	}
	for _, c := range e.Cameras() {
		c.SetPixelSize(uint32(width), uint32(height))
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop. It fires the tick callback at the configured rate
// and picks up rate changes from tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickRate())
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if cb := e.tickCallbackFn(); cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender runs the render loop until quit. A panic inside the loop is logged and stops
// the engine instead of crashing the process.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("engine: render loop recovered from panic", "panic", fmt.Sprint(r))
			e.signalQuit()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-e.quitChannel
		cancel()
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := e.RenderFrame(ctx); err != nil && ctx.Err() == nil {
			common.Logger().Warn("engine: frame failed", "error", err)
		}

		e.mu.Lock()
		renderCallback, profiling, limit := e.renderCallback, e.profilingEnabled, e.renderFrameLimit
		e.mu.Unlock()

		if renderCallback != nil {
			renderCallback(dt)
		}
		if profiling && e.profiler != nil {
			e.profiler.Tick()
		}

		if limit > 0 {
			if remaining := limit - time.Since(lastRender); remaining > 0 {
				select {
				case <-e.quitChannel:
					return
				case <-time.After(remaining):
				}
			}
		}
	}
}

func (e *engine) RenderFrame(ctx context.Context) error {
	cameras := e.Cameras()
	keys := make([]int, 0, len(cameras))
	for k := range cameras {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []error
	for _, k := range keys {
		if _, err := e.renderer.RenderCamera(ctx, cameras[k]); err != nil {
			errs = append(errs, err)
		}
	}
	e.renderer.Present()
	return errors.Join(errs...)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	e.engineTickRate = newRate
	running := e.running
	e.mu.Unlock()
	if !running {
		return
	}

	// Replace any pending update so the loop only sees the latest rate.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) tickRate() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineTickRate
}

func (e *engine) tickCallbackFn() func(float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCallback
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) AddCamera(key int, c camera.Camera) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cameras[key] = c
}

func (e *engine) RemoveCamera(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cameras, key)
}

func (e *engine) Camera(key int) camera.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cameras[key]
}

func (e *engine) Cameras() map[int]camera.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]camera.Camera, len(e.cameras))
	for k, v := range e.cameras {
		cp[k] = v
	}
	return cp
}

// frameDuration converts a frame rate to a frame duration, 0 for uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
