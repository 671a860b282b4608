package material

import (
	"errors"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-camtex/engine/rendergraph"
)

// ErrNoProgram is returned by NewMaterial when no program is given.
var ErrNoProgram = errors.New("material: program is required")

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	name      string
	program   shader.Program
	ints      map[string]int32
	vectors   map[string][4]float32
	destroyed bool
}

// Material defines the interface for a material: an instance of a compositing program
// together with default values for its properties. Per-draw values are supplied through a
// rendergraph.PropertyBlock and override these defaults.
type Material interface {
	rendergraph.Material

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// PassCount returns the number of program variants the material can draw with.
	//
	// Returns:
	//   - int: the variant count, 0 once destroyed
	PassCount() int

	// SetInt sets the default value of an int property.
	//
	// Parameters:
	//   - name: the property name
	//   - v: the value
	SetInt(name string, v int32)

	// Int retrieves the default value of an int property.
	//
	// Parameters:
	//   - name: the property name
	//
	// Returns:
	//   - int32: the value
	//   - bool: false if the property has no default
	Int(name string) (int32, bool)

	// SetVector sets the default value of a vector property.
	//
	// Parameters:
	//   - name: the property name
	//   - v: the value
	SetVector(name string, v [4]float32)

	// Vector retrieves the default value of a vector property.
	//
	// Parameters:
	//   - name: the property name
	//
	// Returns:
	//   - [4]float32: the value
	//   - bool: false if the property has no default
	Vector(name string) ([4]float32, bool)

	// Destroy drops the program reference. A destroyed material reports a nil program.
	Destroy()

	// Destroyed reports whether Destroy has been called.
	//
	// Returns:
	//   - bool: true once destroyed
	Destroyed() bool
}

var _ Material = &material{}

// NewMaterial creates a new Material instance for the given program.
//
// Parameters:
//   - program: the program the material instantiates
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
//   - error: ErrNoProgram if program is nil
func NewMaterial(program shader.Program, options ...MaterialBuilderOption) (Material, error) {
	if program == nil {
		return nil, ErrNoProgram
	}
	m := &material{
		mu:      &sync.Mutex{},
		name:    program.Key(),
		program: program,
		ints:    make(map[string]int32),
		vectors: make(map[string][4]float32),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Program() shader.Program {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil
	}
	return m.program
}

func (m *material) Parameters() rendergraph.Parameters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rendergraph.Parameters{
		Ints:    maps.Clone(m.ints),
		Vectors: maps.Clone(m.vectors),
	}
}

func (m *material) PassCount() int {
	p := m.Program()
	if p == nil {
		return 0
	}
	return p.VariantCount()
}

func (m *material) SetInt(name string, v int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[name] = v
}

func (m *material) Int(name string) (int32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ints[name]
	return v, ok
}

func (m *material) SetVector(name string, v [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[name] = v
}

func (m *material) Vector(name string) ([4]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vectors[name]
	return v, ok
}

func (m *material) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.program = nil
}

func (m *material) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}
