package shader

// ProgramBuilderOption is a functional option applied to a program during construction via NewProgram.
type ProgramBuilderOption func(*program)

// WithValidation sets whether NewProgram compiles the source to SPIR-V with naga.
// Validation is enabled by default.
//
// Parameters:
//   - validate: false to skip SPIR-V compilation
//
// Returns:
//   - ProgramBuilderOption: a function that sets the validation flag
func WithValidation(validate bool) ProgramBuilderOption {
	return func(p *program) {
		p.validate = validate
	}
}

// WithPreProcessor replaces the pre-processor used to expand annotations.
//
// Parameters:
//   - pp: the pre-processor to use
//
// Returns:
//   - ProgramBuilderOption: a function that sets the pre-processor
func WithPreProcessor(pp PreProcessor) ProgramBuilderOption {
	return func(p *program) {
		if pp != nil {
			p.pp = pp
		}
	}
}
