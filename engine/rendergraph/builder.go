package rendergraph

import (
	"fmt"
	"slices"
)

// RasterPassBuilder declares the resources and render function of one raster pass.
// Errors from the declaration calls are collected and reported by Commit.
type RasterPassBuilder[T any] struct {
	g      *Graph
	pass   *passRecord
	data   *T
	render func(*T, *RasterContext)
	err    error
	done   bool
}

// AddRasterPass starts a new raster pass on g. The returned pass data is handed to the render
// function when the pass executes.
//
// Parameters:
//   - g: the graph to add the pass to
//   - name: debug name of the pass
//
// Returns:
//   - *RasterPassBuilder[T]: the builder for the pass
//   - *T: zeroed pass data owned by the pass
func AddRasterPass[T any](g *Graph, name string) (*RasterPassBuilder[T], *T) {
	data := new(T)
	b := &RasterPassBuilder[T]{
		g:    g,
		data: data,
		pass: &passRecord{
			name:     name,
			cullable: true,
		},
	}
	return b, data
}

func (b *RasterPassBuilder[T]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// UseTexture declares a non-attachment use of a texture.
//
// Parameters:
//   - h: the texture handle
//   - access: how the pass accesses the texture
func (b *RasterPassBuilder[T]) UseTexture(h TextureHandle, access AccessFlags) {
	if !b.g.owns(h) {
		b.fail(fmt.Errorf("%w: pass %q UseTexture", ErrInvalidHandle, b.pass.name))
		return
	}
	if access&AccessRead != 0 && !slices.Contains(b.pass.reads, h) {
		b.pass.reads = append(b.pass.reads, h)
	}
	if access&AccessWrite != 0 && !slices.Contains(b.pass.writes, h) {
		b.pass.writes = append(b.pass.writes, h)
	}
}

// SetRenderAttachment binds a texture as the color attachment at slot. Slots must be filled in
// order starting at 0.
//
// Parameters:
//   - h: the texture handle
//   - slot: the color attachment index
func (b *RasterPassBuilder[T]) SetRenderAttachment(h TextureHandle, slot int) {
	if !b.g.owns(h) {
		b.fail(fmt.Errorf("%w: pass %q attachment %d", ErrInvalidHandle, b.pass.name, slot))
		return
	}
	if slot != len(b.pass.colors) || slot >= MaxColorAttachments {
		b.fail(fmt.Errorf("%w: pass %q got slot %d, next free slot is %d", ErrAttachmentSlot, b.pass.name, slot, len(b.pass.colors)))
		return
	}
	b.pass.colors = append(b.pass.colors, h)
	if !slices.Contains(b.pass.writes, h) {
		b.pass.writes = append(b.pass.writes, h)
	}
}

// SetDepthAttachment binds a texture as the depth attachment.
//
// Parameters:
//   - h: the texture handle
//   - access: AccessRead for a read-only depth test, AccessWrite or AccessReadWrite to write depth
func (b *RasterPassBuilder[T]) SetDepthAttachment(h TextureHandle, access AccessFlags) {
	if !b.g.owns(h) {
		b.fail(fmt.Errorf("%w: pass %q depth attachment", ErrInvalidHandle, b.pass.name))
		return
	}
	b.pass.depth = h
	b.pass.depthRW = access
	if access&AccessWrite != 0 && !slices.Contains(b.pass.writes, h) {
		b.pass.writes = append(b.pass.writes, h)
	}
}

// AllowPassCulling sets whether the compiler may drop the pass when none of its outputs are used.
// Passes are cullable by default.
func (b *RasterPassBuilder[T]) AllowPassCulling(allow bool) {
	b.pass.cullable = allow
}

// SetRenderFunc sets the function that records the pass's commands.
func (b *RasterPassBuilder[T]) SetRenderFunc(fn func(data *T, ctx *RasterContext)) {
	b.render = fn
}

// Commit validates the pass and adds it to the graph. A pass that fails validation is not added.
//
// Returns:
//   - error: the first declaration error, or a validation error
func (b *RasterPassBuilder[T]) Commit() error {
	if b.done {
		return fmt.Errorf("%w: %q", ErrPassCommitted, b.pass.name)
	}
	b.done = true

	if b.err != nil {
		return b.err
	}
	if b.render == nil {
		return fmt.Errorf("%w: %q", ErrNoRenderFunc, b.pass.name)
	}
	if len(b.pass.colors) == 0 && !b.pass.depth.IsValid() {
		return fmt.Errorf("%w: %q", ErrNoAttachments, b.pass.name)
	}
	for _, r := range b.pass.reads {
		if slices.Contains(b.pass.colors, r) || (r == b.pass.depth && b.pass.depthRW&AccessWrite != 0) {
			name := b.g.resources[r.index()].Name
			return fmt.Errorf("%w: pass %q texture %q", ErrReadWriteHazard, b.pass.name, name)
		}
	}

	var width, height uint32
	attachments := slices.Clone(b.pass.colors)
	if b.pass.depth.IsValid() {
		attachments = append(attachments, b.pass.depth)
	}
	for i, h := range attachments {
		info := b.g.resources[h.index()].Info
		if i == 0 {
			width, height = info.Width, info.Height
			continue
		}
		if info.Width != width || info.Height != height {
			return fmt.Errorf("%w: pass %q has %dx%d and %dx%d", ErrAttachmentSize, b.pass.name, width, height, info.Width, info.Height)
		}
	}

	data, render := b.data, b.render
	b.pass.record = func(ctx *RasterContext) {
		render(data, ctx)
	}
	b.pass.index = len(b.g.passes)
	b.g.passes = append(b.g.passes, b.pass)
	return nil
}
