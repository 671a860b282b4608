package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// commentRegex matches block comments and line comments.
	commentRegex = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)

	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex captures the name and type of a struct member after any attributes
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space and type
	// from declarations like: @group(0) @binding(0) var<uniform> params: RouterParams;
	// or handle types: @group(0) @binding(1) var depth_texture: texture_depth_2d;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+\w+\s*:\s*([^;]+?)\s*;`)
)

// stripComments removes comments from WGSL source. Annotations live in line comments, so they
// are read from the raw source before this runs.
func stripComments(source string) string {
	return commentRegex.ReplaceAllString(source, "")
}

// parseBindings extracts all @group(N) @binding(M) resource declarations from WGSL source
// in source order.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - []parsedBinding: the declarations found
func parseBindings(source string) []parsedBinding {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(stripComments(source), -1)
	bindings := make([]parsedBinding, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		bindings = append(bindings, parsedBinding{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(match[3]),
			typeName:     strings.TrimSpace(match[4]),
		})
	}
	return bindings
}

// buildBindGroupLayout converts the bindings of one group into a wgpu.BindGroupLayoutDescriptor
// sorted by binding index. Compositing programs bind one uniform struct plus sampled 2D color
// and depth textures; any other resource is rejected.
//
// Parameters:
//   - bindings: the parsed declarations of a single group
//   - visibility: the shader stage visibility flag to set on each entry
//   - structs: resolved struct layouts used to size the uniform buffer
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor
//   - error: ErrUnsupportedBinding for resources a compositing program cannot bind
func buildBindGroupLayout(bindings []parsedBinding, visibility wgpu.ShaderStage, structs map[string]wgslTypeLayout) (wgpu.BindGroupLayoutDescriptor, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.binding),
			Visibility: visibility,
		}
		switch {
		case b.addressSpace == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
			if layout, ok := typeLayout(b.typeName, structs); ok {
				entry.Buffer.MinBindingSize = layout.size
			}
		case b.addressSpace != "":
			return wgpu.BindGroupLayoutDescriptor{}, fmt.Errorf("%w: var<%s> at binding %d", ErrUnsupportedBinding, b.addressSpace, b.binding)
		case b.typeName == "texture_depth_2d":
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case b.typeName == "texture_2d<f32>":
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		default:
			return wgpu.BindGroupLayoutDescriptor{}, fmt.Errorf("%w: %s at binding %d", ErrUnsupportedBinding, b.typeName, b.binding)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Binding < entries[j].Binding
	})
	return wgpu.BindGroupLayoutDescriptor{Entries: entries}, nil
}

// parseEntryPoints extracts the names of all entry points of one stage in source order.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - stage: wgpu.ShaderStageVertex or wgpu.ShaderStageFragment
//
// Returns:
//   - []string: the entry point names
func parseEntryPoints(source string, stage wgpu.ShaderStage) []string {
	var re *regexp.Regexp
	switch stage {
	case wgpu.ShaderStageVertex:
		re = vertexEntryRegex
	case wgpu.ShaderStageFragment:
		re = fragmentEntryRegex
	default:
		return nil
	}

	var names []string
	for _, match := range re.FindAllStringSubmatch(stripComments(source), -1) {
		names = append(names, match[1])
	}
	return names
}

// parseStructBlocks finds all struct blocks in WGSL source with comments already stripped.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		ps := parsedStruct{name: match[1]}
		for member := range strings.SplitSeq(match[2], ",") {
			member = strings.TrimSpace(member)
			fm := fieldRegex.FindStringSubmatch(member)
			if fm == nil {
				continue
			}
			ps.fields = append(ps.fields, parsedField{
				name:      fm[1],
				typeName:  strings.TrimSpace(fm[2]),
				isBuiltin: strings.Contains(member, "@builtin("),
			})
		}
		structs = append(structs, ps)
	}
	return structs
}
