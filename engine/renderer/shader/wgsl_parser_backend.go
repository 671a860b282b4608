package shader

import (
	"strings"
)

// typeLayout resolves the size and alignment of a uniform member type: 32-bit scalars, their
// 2, 3 and 4 component vectors in both spellings, and structs already in known.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "i32", "vec4<f32>", "vec2f" or a struct name
//   - known: struct layouts resolved so far
//
// Returns:
//   - wgslTypeLayout: the layout
//   - bool: false for types a compositing uniform cannot hold
func typeLayout(typeName string, known map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	switch typeName {
	case "f32", "i32", "u32":
		return wgslTypeLayout{4, 4}, true
	}
	if layout, ok := known[typeName]; ok {
		return layout, true
	}

	rest, ok := strings.CutPrefix(typeName, "vec")
	if !ok || len(rest) < 2 || rest[0] < '2' || rest[0] > '4' {
		return wgslTypeLayout{}, false
	}
	switch rest[1:] {
	case "<f32>", "<i32>", "<u32>", "f", "i", "u":
	default:
		return wgslTypeLayout{}, false
	}
	n := uint64(rest[0] - '0')
	align := uint64(16)
	if n == 2 {
		align = 8
	}
	return wgslTypeLayout{4 * n, align}, true
}

// roundUpAlign rounds value up to the next multiple of a power of two alignment.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// layoutStruct places every non-builtin member at its next aligned offset and pads the
// struct to its largest member alignment.
//
// Parameters:
//   - ps: the struct to lay out
//   - known: struct layouts resolved so far
//
// Returns:
//   - []UniformField: one entry per member in declaration order, Property left empty
//   - wgslTypeLayout: the struct size and alignment
//   - bool: false if a member type cannot be resolved
func layoutStruct(ps parsedStruct, known map[string]wgslTypeLayout) ([]UniformField, wgslTypeLayout, bool) {
	fields := make([]UniformField, 0, len(ps.fields))
	offset, maxAlign := uint64(0), uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		layout, ok := typeLayout(f.typeName, known)
		if !ok {
			return nil, wgslTypeLayout{}, false
		}
		offset = roundUpAlign(layout.align, offset)
		fields = append(fields, UniformField{Field: f.name, Type: f.typeName, Offset: offset, Size: layout.size})
		offset += layout.size
		maxAlign = max(maxAlign, layout.align)
	}
	return fields, wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// layoutStructs resolves every struct it can, repeating while nested structs keep resolving.
// Structs holding unsupported members are left out of the result.
func layoutStructs(structs []parsedStruct) map[string]wgslTypeLayout {
	known := make(map[string]wgslTypeLayout, len(structs))
	for progress := true; progress; {
		progress = false
		for _, ps := range structs {
			if _, done := known[ps.name]; done {
				continue
			}
			if _, layout, ok := layoutStruct(ps, known); ok {
				known[ps.name] = layout
				progress = true
			}
		}
	}
	return known
}
