package router

import (
	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
)

// FeatureBuilderOption is a functional option applied to a feature during construction via NewFeature.
type FeatureBuilderOption func(*feature)

// WithFeatureName sets the feature name reported to the renderer.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - FeatureBuilderOption: a function that sets the name
func WithFeatureName(name string) FeatureBuilderOption {
	return func(f *feature) {
		f.name = name
	}
}

// WithProgram sets the compositing program.
//
// Parameters:
//   - p: the program
//
// Returns:
//   - FeatureBuilderOption: a function that sets the program
func WithProgram(p shader.Program) FeatureBuilderOption {
	return func(f *feature) {
		f.program = p
	}
}

// WithRegistry sets the registry controllers are looked up in. A new registry is created by default.
//
// Parameters:
//   - r: the registry
//
// Returns:
//   - FeatureBuilderOption: a function that sets the registry
func WithRegistry(r *Registry) FeatureBuilderOption {
	return func(f *feature) {
		f.registry = r
	}
}
