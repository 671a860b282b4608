package router

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
)

// ProgramKey is the key of the program returned by DefaultProgram.
const ProgramKey = "camera_texture_router"

//go:embed shaders/router.wgsl
var routerSource string

// ErrProgramContract is returned when a program does not expose the three routing variants.
var ErrProgramContract = errors.New("router: program must expose depth, motion and combined variants writing 1, 1 and 2 targets")

// routingTargets is the color target count of each variant, indexed by PassState.VariantIndex.
var routingTargets = [...]int{1, 1, 2}

// DefaultProgram builds the built-in compositing program. SPIR-V validation is off unless
// enabled through the options.
//
// Parameters:
//   - options: extra options passed to shader.NewProgram
//
// Returns:
//   - shader.Program: the program
//   - error: an error if the program fails to parse or validate
func DefaultProgram(options ...shader.ProgramBuilderOption) (shader.Program, error) {
	opts := append([]shader.ProgramBuilderOption{shader.WithValidation(false)}, options...)
	return shader.NewProgram(ProgramKey, routerSource, opts...)
}

// checkProgram verifies that variants 0, 1 and 2 of p write 1, 1 and 2 color targets.
func checkProgram(p shader.Program) error {
	if p.VariantCount() < len(routingTargets) {
		return fmt.Errorf("%w: %s has %d variants", ErrProgramContract, p.Key(), p.VariantCount())
	}
	for i, want := range routingTargets {
		v, _ := p.Variant(i)
		if v.Targets != want {
			return fmt.Errorf("%w: %s variant %d (%s) writes %d targets", ErrProgramContract, p.Key(), i, v.Name, v.Targets)
		}
	}
	return nil
}
