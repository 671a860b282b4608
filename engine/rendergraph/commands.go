package rendergraph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-camtex/engine/renderer/shader"
)

// FullScreenVertexCount is the number of vertices of the full-screen triangle.
const FullScreenVertexCount = 3

// Parameters holds named program inputs.
type Parameters struct {
	Ints     map[string]int32
	Vectors  map[string][4]float32
	Textures map[string]TextureHandle
}

// Clone returns a deep copy of p.
func (p Parameters) Clone() Parameters {
	return Parameters{
		Ints:     maps.Clone(p.Ints),
		Vectors:  maps.Clone(p.Vectors),
		Textures: maps.Clone(p.Textures),
	}
}

// Merge returns a copy of p with every value of o applied on top.
//
// Parameters:
//   - o: the overriding parameters
//
// Returns:
//   - Parameters: the merged parameters
func (p Parameters) Merge(o Parameters) Parameters {
	out := Parameters{
		Ints:     make(map[string]int32, len(p.Ints)+len(o.Ints)),
		Vectors:  make(map[string][4]float32, len(p.Vectors)+len(o.Vectors)),
		Textures: make(map[string]TextureHandle, len(p.Textures)+len(o.Textures)),
	}
	maps.Copy(out.Ints, p.Ints)
	maps.Copy(out.Ints, o.Ints)
	maps.Copy(out.Vectors, p.Vectors)
	maps.Copy(out.Vectors, o.Vectors)
	maps.Copy(out.Textures, p.Textures)
	maps.Copy(out.Textures, o.Textures)
	return out
}

// PropertyBlock carries per-draw overrides of material parameters. A zero PropertyBlock is
// ready to use.
type PropertyBlock struct {
	params Parameters
}

// SetInt sets an int property.
func (b *PropertyBlock) SetInt(name string, v int32) {
	if b.params.Ints == nil {
		b.params.Ints = make(map[string]int32)
	}
	b.params.Ints[name] = v
}

// SetVector sets a vector property.
func (b *PropertyBlock) SetVector(name string, v [4]float32) {
	if b.params.Vectors == nil {
		b.params.Vectors = make(map[string][4]float32)
	}
	b.params.Vectors[name] = v
}

// SetTexture sets a texture property to a graph texture.
func (b *PropertyBlock) SetTexture(name string, h TextureHandle) {
	if b.params.Textures == nil {
		b.params.Textures = make(map[string]TextureHandle)
	}
	b.params.Textures[name] = h
}

// Clear removes every property.
func (b *PropertyBlock) Clear() {
	b.params = Parameters{}
}

// Parameters returns a copy of the block's values.
func (b *PropertyBlock) Parameters() Parameters {
	if b == nil {
		return Parameters{}
	}
	return b.params.Clone()
}

// Material is a program together with its default parameters.
type Material interface {
	Program() shader.Program
	Parameters() Parameters
}

// DrawCommand is one recorded draw.
type DrawCommand struct {
	Program     shader.Program
	Variant     int
	VertexCount uint32
	Params      Parameters
}

// CommandList records the draws of one pass. The first recording error is kept and reported
// by the executor; later draws are dropped.
type CommandList struct {
	pass   string
	reads  []TextureHandle
	colors int
	draws  []DrawCommand
	err    error
}

func newCommandList(pass string, reads []TextureHandle, colors int) *CommandList {
	return &CommandList{pass: pass, reads: reads, colors: colors}
}

// DrawFullScreen draws a full-screen triangle with the given program variant.
//
// Parameters:
//   - m: the material supplying the program and default parameters
//   - variant: index of the program variant to use
//   - block: per-draw overrides, may be nil
func (c *CommandList) DrawFullScreen(m Material, variant int, block *PropertyBlock) {
	c.DrawProcedural(m, variant, FullScreenVertexCount, block)
}

// DrawProcedural draws vertexCount vertices without vertex buffers. The program's vertex stage
// generates positions from the vertex index.
//
// Parameters:
//   - m: the material supplying the program and default parameters
//   - variant: index of the program variant to use
//   - vertexCount: number of vertices to draw
//   - block: per-draw overrides, may be nil
func (c *CommandList) DrawProcedural(m Material, variant int, vertexCount uint32, block *PropertyBlock) {
	if c.err != nil {
		return
	}
	if m == nil || m.Program() == nil {
		c.err = fmt.Errorf("%w: pass %q", ErrNilMaterial, c.pass)
		return
	}
	prog := m.Program()
	if variant < 0 || variant >= prog.VariantCount() {
		c.err = fmt.Errorf("%w: pass %q variant %d of %d", ErrInvalidVariant, c.pass, variant, prog.VariantCount())
		return
	}
	if v, _ := prog.Variant(variant); v.Targets != c.colors {
		c.err = fmt.Errorf("%w: pass %q variant %s writes %d targets, pass binds %d", ErrTargetMismatch, c.pass, v.Name, v.Targets, c.colors)
		return
	}
	params := m.Parameters().Merge(block.Parameters())
	for name, h := range params.Textures {
		if !slices.Contains(c.reads, h) {
			c.err = fmt.Errorf("%w: pass %q property %s", ErrUndeclaredRead, c.pass, name)
			return
		}
	}
	c.draws = append(c.draws, DrawCommand{
		Program:     prog,
		Variant:     variant,
		VertexCount: vertexCount,
		Params:      params,
	})
}

// Draws returns the recorded draws.
func (c *CommandList) Draws() []DrawCommand {
	return c.draws
}

// Err returns the first recording error.
func (c *CommandList) Err() error {
	return c.err
}

// RasterContext is handed to a pass's render function.
type RasterContext struct {
	Cmd   *CommandList
	Frame uint64
}
