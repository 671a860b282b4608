package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

var (
	ErrNoVariants         = errors.New("shader: program declares no variants")
	ErrUnknownEntryPoint  = errors.New("shader: unknown entry point")
	ErrUnknownBinding     = errors.New("shader: annotation references an undeclared binding")
	ErrUnknownField       = errors.New("shader: annotation references an unknown uniform field")
	ErrUnknownProperty    = errors.New("shader: variant samples an undeclared texture property")
	ErrNoUniformBuffer    = errors.New("shader: properties declared without a uniform buffer in group 0")
	ErrUnsupportedTexture = errors.New("shader: texture property must bind a sampled texture in group 0")
	ErrCompile            = errors.New("shader: WGSL compilation failed")
	ErrUnsupportedBinding = errors.New("shader: group 0 may only bind a uniform struct, texture_depth_2d or texture_2d<f32>")
)

// Variant is one fragment entry point of a Program.
type Variant struct {
	Name               string
	FragmentEntryPoint string

	// Targets is the number of color targets the entry point writes.
	Targets int

	// Textures lists the texture properties the variant samples.
	Textures []string
}

// UniformField is one field of a program's uniform struct.
type UniformField struct {
	// Property is the material property written to the field, empty if none maps to it.
	Property string
	Field    string
	Type     string
	Offset   uint64
	Size     uint64
}

// program is the implementation of the Program interface.
type program struct {
	key    string
	source string

	vertexEntryPoint string
	variants         []Variant

	layout         wgpu.BindGroupLayoutDescriptor
	uniformBinding uint32
	hasUniforms    bool
	uniformSize    uint64
	uniforms       []UniformField
	textures       map[string]uint32

	declarations []Annotation

	validate bool
	spirv    []byte
	pp       PreProcessor
}

// Program defines the interface for a compositing program: a WGSL module with a single
// full-screen vertex stage and a list of fragment variants that share one bind group.
// Bind group 0 holds an optional uniform buffer followed by the sampled textures.
type Program interface {
	// Key retrieves the unique identifier for this program, used for caching and lookups.
	//
	// Returns:
	//   - string: the program's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the program
	Source() string

	// VertexEntryPoint returns the vertex stage entry point shared by every variant.
	//
	// Returns:
	//   - string: the entry point name
	VertexEntryPoint() string

	// VariantCount returns the number of variants.
	//
	// Returns:
	//   - int: the number of declared variants
	VariantCount() int

	// Variant returns the variant at index i.
	//
	// Parameters:
	//   - i: the variant index
	//
	// Returns:
	//   - Variant: the variant
	//   - bool: false if i is out of range
	Variant(i int) (Variant, bool)

	// BindGroupLayoutDescriptor returns the layout of bind group 0 covering every binding.
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the full group 0 layout
	BindGroupLayoutDescriptor() wgpu.BindGroupLayoutDescriptor

	// VariantLayoutDescriptor returns the group 0 layout restricted to the uniform buffer and
	// the textures variant i samples.
	//
	// Parameters:
	//   - i: the variant index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the variant's layout, empty if i is out of range
	VariantLayoutDescriptor(i int) wgpu.BindGroupLayoutDescriptor

	// UniformBinding returns the binding of the uniform buffer in group 0.
	//
	// Returns:
	//   - uint32: the binding index
	//   - bool: false if the program has no uniform buffer
	UniformBinding() (uint32, bool)

	// UniformSize returns the byte size of the uniform struct.
	//
	// Returns:
	//   - uint64: the struct size, 0 if the program has no uniform buffer
	UniformSize() uint64

	// Uniforms returns the fields of the uniform struct in offset order.
	//
	// Returns:
	//   - []UniformField: the uniform fields
	Uniforms() []UniformField

	// TextureBinding returns the group 0 binding that a texture property feeds.
	//
	// Parameters:
	//   - property: the texture property name
	//
	// Returns:
	//   - uint32: the binding index
	//   - bool: false if the property is not declared
	TextureBinding(property string) (uint32, bool)

	// PackUniforms lays out property values in the uniform struct's host-shareable format.
	// Properties without a value are zero. Int properties feed i32, u32 and f32 fields,
	// vector properties feed vec4 fields.
	//
	// Parameters:
	//   - ints: int property values keyed by property name
	//   - vectors: vector property values keyed by property name
	//
	// Returns:
	//   - []byte: the packed uniform data, UniformSize bytes long
	PackUniforms(ints map[string]int32, vectors map[string][4]float32) []byte

	// Declarations returns the annotations parsed from the source.
	//
	// Returns:
	//   - []Annotation: property, texture and variant annotations in source order
	Declarations() []Annotation

	// SPIRV returns the SPIR-V produced when the program was validated.
	//
	// Returns:
	//   - []byte: the SPIR-V binary, nil if validation was disabled
	SPIRV() []byte
}

var _ Program = &program{}

// NewProgram pre-processes and parses WGSL source into a Program. The annotations are checked
// against the declared bindings, uniform struct and entry points. When validation is enabled
// (the default) the source is also compiled to SPIR-V with naga.
//
// Parameters:
//   - key: a unique identifier for the program
//   - source: the WGSL source, with @oxy: annotations
//   - options: functional options to configure the program
//
// Returns:
//   - Program: the parsed program
//   - error: an error if the source is malformed or fails validation
func NewProgram(key string, source string, options ...ProgramBuilderOption) (Program, error) {
	p := &program{
		key:      key,
		textures: make(map[string]uint32),
		validate: true,
		pp:       NewPreProcessor(),
	}
	for _, option := range options {
		option(p)
	}
	if err := p.parse(source); err != nil {
		return nil, fmt.Errorf("program %s: %w", key, err)
	}
	if p.validate {
		spirv, err := naga.Compile(p.source)
		if err != nil {
			return nil, fmt.Errorf("program %s: %w: %v", key, ErrCompile, err)
		}
		p.spirv = spirv
	}
	return p, nil
}

// NewProgramFromFile reads WGSL source from path and builds a Program from it.
//
// Parameters:
//   - key: a unique identifier for the program
//   - path: the file path to read WGSL source from
//   - options: functional options to configure the program
//
// Returns:
//   - Program: the parsed program
//   - error: an error if the file cannot be read or the source is invalid
func NewProgramFromFile(key string, path string, options ...ProgramBuilderOption) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("program %s: failed to read source file %q: %w", key, path, err)
	}
	return NewProgram(key, string(data), options...)
}

func (p *program) Key() string {
	return p.key
}

func (p *program) Source() string {
	return p.source
}

func (p *program) VertexEntryPoint() string {
	return p.vertexEntryPoint
}

func (p *program) VariantCount() int {
	return len(p.variants)
}

func (p *program) Variant(i int) (Variant, bool) {
	if i < 0 || i >= len(p.variants) {
		return Variant{}, false
	}
	return p.variants[i], true
}

func (p *program) BindGroupLayoutDescriptor() wgpu.BindGroupLayoutDescriptor {
	return p.layout
}

func (p *program) VariantLayoutDescriptor(i int) wgpu.BindGroupLayoutDescriptor {
	v, ok := p.Variant(i)
	if !ok {
		return wgpu.BindGroupLayoutDescriptor{}
	}
	keep := make([]uint32, 0, len(v.Textures)+1)
	if p.hasUniforms {
		keep = append(keep, p.uniformBinding)
	}
	for _, tex := range v.Textures {
		keep = append(keep, p.textures[tex])
	}
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(keep))
	for _, entry := range p.layout.Entries {
		if slices.Contains(keep, entry.Binding) {
			entries = append(entries, entry)
		}
	}
	return wgpu.BindGroupLayoutDescriptor{
		Label:   p.key + "/" + v.Name,
		Entries: entries,
	}
}

func (p *program) UniformBinding() (uint32, bool) {
	return p.uniformBinding, p.hasUniforms
}

func (p *program) UniformSize() uint64 {
	return p.uniformSize
}

func (p *program) Uniforms() []UniformField {
	return p.uniforms
}

func (p *program) TextureBinding(property string) (uint32, bool) {
	b, ok := p.textures[property]
	return b, ok
}

func (p *program) PackUniforms(ints map[string]int32, vectors map[string][4]float32) []byte {
	buf := make([]byte, p.uniformSize)
	for _, f := range p.uniforms {
		if f.Property == "" {
			continue
		}
		switch f.Type {
		case "i32", "u32":
			if v, ok := ints[f.Property]; ok {
				binary.LittleEndian.PutUint32(buf[f.Offset:], uint32(v))
			}
		case "f32":
			if v, ok := ints[f.Property]; ok {
				binary.LittleEndian.PutUint32(buf[f.Offset:], math.Float32bits(float32(v)))
			}
		case "vec4<f32>", "vec4f":
			if v, ok := vectors[f.Property]; ok {
				for i, c := range v {
					binary.LittleEndian.PutUint32(buf[f.Offset+uint64(i)*4:], math.Float32bits(c))
				}
			}
		}
	}
	return buf
}

func (p *program) Declarations() []Annotation {
	return p.declarations
}

func (p *program) SPIRV() []byte {
	return p.spirv
}

// parse runs the pre-processor over the raw source and resolves every annotation against the
// bindings, uniform struct and entry points found in the processed WGSL.
func (p *program) parse(raw string) error {
	source, err := p.pp.Process(raw)
	if err != nil {
		return err
	}
	p.source = source
	p.declarations = p.pp.Declarations()

	vertexEntries := parseEntryPoints(source, wgpu.ShaderStageVertex)
	if len(vertexEntries) == 0 {
		return fmt.Errorf("%w: no @vertex function", ErrUnknownEntryPoint)
	}
	p.vertexEntryPoint = vertexEntries[0]
	fragmentEntries := parseEntryPoints(source, wgpu.ShaderStageFragment)

	structs := parseStructBlocks(stripComments(source))
	structSizes := layoutStructs(structs)

	var group0 []parsedBinding
	for _, b := range parseBindings(source) {
		if b.group == 0 {
			group0 = append(group0, b)
		}
	}
	if p.layout, err = buildBindGroupLayout(group0, wgpu.ShaderStageFragment, structSizes); err != nil {
		return err
	}
	p.layout.Label = p.key

	var uniformType string
	for _, b := range group0 {
		if b.addressSpace == "uniform" {
			p.uniformBinding = uint32(b.binding)
			p.hasUniforms = true
			uniformType = b.typeName
			break
		}
	}
	if p.hasUniforms {
		for _, ps := range structs {
			if ps.name != uniformType {
				continue
			}
			fields, layout, ok := layoutStruct(ps, structSizes)
			if !ok {
				return fmt.Errorf("%w: cannot lay out uniform struct %s", ErrUnknownField, uniformType)
			}
			p.uniforms, p.uniformSize = fields, layout.size
		}
		if p.uniformSize == 0 {
			// Uniform bound to a primitive type rather than a struct.
			if layout, ok := typeLayout(uniformType, structSizes); ok {
				p.uniforms = []UniformField{{Field: uniformType, Type: uniformType, Size: layout.size}}
				p.uniformSize = roundUpAlign(16, layout.size)
			}
		}
	}

	for _, a := range p.declarations {
		switch a.Type {
		case AnnotationTypeProperty:
			if !p.hasUniforms {
				return fmt.Errorf("line %d: %w", a.Line, ErrNoUniformBuffer)
			}
			idx := slices.IndexFunc(p.uniforms, func(f UniformField) bool { return f.Field == string(a.Args[1]) })
			if idx < 0 {
				return fmt.Errorf("line %d: %w %q", a.Line, ErrUnknownField, a.Args[1])
			}
			p.uniforms[idx].Property = string(a.Args[0])
		case AnnotationTypeTexture:
			if *a.Group != 0 {
				return fmt.Errorf("line %d: %w", a.Line, ErrUnsupportedTexture)
			}
			idx := slices.IndexFunc(group0, func(b parsedBinding) bool { return b.binding == *a.Binding })
			if idx < 0 {
				return fmt.Errorf("line %d: %w @group(0) @binding(%d)", a.Line, ErrUnknownBinding, *a.Binding)
			}
			if b := group0[idx]; b.addressSpace != "" || !strings.HasPrefix(b.typeName, "texture_") {
				return fmt.Errorf("line %d: %w, got %s", a.Line, ErrUnsupportedTexture, b.typeName)
			}
			p.textures[string(a.Args[0])] = uint32(*a.Binding)
		}
	}

	for _, a := range p.declarations {
		if a.Type != AnnotationTypeVariant {
			continue
		}
		entry := string(a.Args[0])
		if !slices.Contains(fragmentEntries, entry) {
			return fmt.Errorf("line %d: %w %q", a.Line, ErrUnknownEntryPoint, entry)
		}
		v := Variant{
			Name:               entry,
			FragmentEntryPoint: entry,
			Targets:            a.Targets,
		}
		for _, tex := range a.Args[1:] {
			if _, ok := p.textures[string(tex)]; !ok {
				return fmt.Errorf("line %d: %w %q", a.Line, ErrUnknownProperty, tex)
			}
			v.Textures = append(v.Textures, string(tex))
		}
		p.variants = append(p.variants, v)
	}
	if len(p.variants) == 0 {
		return ErrNoVariants
	}
	return nil
}
