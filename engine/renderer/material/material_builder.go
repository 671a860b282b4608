package material

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material. Defaults to the program key.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithInt is an option builder that sets the default value of an int property.
//
// Parameters:
//   - name: the property name
//   - v: the default value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the property default to a material
func WithInt(name string, v int32) MaterialBuilderOption {
	return func(m *material) {
		m.ints[name] = v
	}
}

// WithVector is an option builder that sets the default value of a vector property.
//
// Parameters:
//   - name: the property name
//   - v: the default value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the property default to a material
func WithVector(name string, v [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.vectors[name] = v
	}
}
