package router

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/common"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
)

// FeatureConfig is the configuration a feature is (re)created from.
type FeatureConfig struct {
	// Program is the compositing program. A nil program leaves the feature inert.
	Program shader.Program

	// Registry resolves the controller of each rendered camera. Nil keeps the current registry.
	Registry *Registry
}

// feature is the implementation of the Feature interface.
type feature struct {
	mu *sync.Mutex

	name     string
	program  shader.Program
	registry *Registry

	material material.Material
	pass     *CompositingPass
}

// Feature is the renderer feature that owns the compositing material and pass and schedules the
// pass for every rendered camera.
type Feature interface {
	renderer.Feature

	// Create builds the material and pass from the current configuration, disposing any previous
	// pair first. Without a program the feature stays inert and Create returns nil.
	//
	// Returns:
	//   - error: ErrProgramContract if the program lacks the routing variants
	Create() error

	// ApplyConfiguration disposes the current material and pass, stores cfg and creates a new pair.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: the error from Create
	ApplyConfiguration(cfg FeatureConfig) error

	// Pass returns the compositing pass.
	//
	// Returns:
	//   - *CompositingPass: the pass, nil before Create or after Dispose
	Pass() *CompositingPass

	// Material returns the compositing material.
	//
	// Returns:
	//   - material.Material: the material, nil when the feature is inert
	Material() material.Material

	// Registry returns the controller registry.
	//
	// Returns:
	//   - *Registry: the registry
	Registry() *Registry
}

var _ Feature = &feature{}

// NewFeature creates a new Feature and calls Create.
//
// Parameters:
//   - options: variadic list of FeatureBuilderOption functions to configure the feature
//
// Returns:
//   - Feature: the new feature
//   - error: the error from Create
func NewFeature(options ...FeatureBuilderOption) (Feature, error) {
	f := &feature{
		mu:   &sync.Mutex{},
		name: "CameraTextureRouterFeature",
	}
	for _, option := range options {
		option(f)
	}
	if f.registry == nil {
		f.registry = NewRegistry()
	}
	if err := f.Create(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *feature) Name() string {
	return f.name
}

func (f *feature) Create() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create()
}

// create must be called with mu held.
func (f *feature) create() error {
	f.dispose()

	var m material.Material
	if f.program != nil {
		if err := checkProgram(f.program); err != nil {
			f.pass = NewCompositingPass(nil, f.registry)
			return err
		}
		var err error
		m, err = material.NewMaterial(f.program, material.WithName(f.name))
		if err != nil {
			f.pass = NewCompositingPass(nil, f.registry)
			return err
		}
	}
	f.material = m
	f.pass = NewCompositingPass(m, f.registry)

	if m == nil {
		common.Logger().Warn("camera texture router has no program, pass is inactive", "feature", f.name)
		return nil
	}
	common.Logger().Info("camera texture router created", "feature", f.name, "program", f.program.Key())
	return nil
}

func (f *feature) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispose()
}

// dispose must be called with mu held.
func (f *feature) dispose() {
	if f.pass != nil {
		f.pass.Cleanup()
		f.pass = nil
	}
	if f.material != nil {
		f.material.Destroy()
		f.material = nil
	}
}

func (f *feature) ApplyConfiguration(cfg FeatureConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispose()
	f.program = cfg.Program
	if cfg.Registry != nil {
		f.registry = cfg.Registry
	}
	return f.create()
}

// AddRenderPasses enqueues the compositing pass when the feature has a material.
func (f *feature) AddRenderPasses(queue renderer.PassQueue, _ *renderer.FrameData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.material == nil || f.pass == nil {
		return
	}
	queue.EnqueuePass(f.pass)
}

func (f *feature) Pass() *CompositingPass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pass
}

func (f *feature) Material() material.Material {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.material
}

func (f *feature) Registry() *Registry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry
}
