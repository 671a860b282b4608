// annotations.go defines the annotation types and parser for the Oxy WGSL program
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that
// inject shared WGSL snippets and describe how material properties map onto a program:
// which uniform struct field a property writes, which binding a texture property feeds,
// and which fragment entry points form the program's variants.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered snippet at the annotation site.
	// This annotation does not produce a declaration and is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include depth_helpers
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeProperty maps a scalar or vector material property onto a field of the
	// program's uniform struct.
	//
	// Syntax: //@oxy:property <property_name> <field_name>
	//
	// Example: //@oxy:property _DepthEncoding depth_encoding
	AnnotationTypeProperty AnnotationType = "property"

	// AnnotationTypeTexture maps a texture material property onto a @group/@binding declared
	// by hand directly below the annotation.
	//
	// Syntax: //@oxy:texture <group> <binding> <property_name>
	//
	// Example: //@oxy:texture 0 1 _CameraDepthTexture
	AnnotationTypeTexture AnnotationType = "texture"

	// AnnotationTypeVariant declares one program variant: a fragment entry point, the number
	// of color targets it writes and the texture properties it samples. Variants are indexed
	// in the order they are declared.
	//
	// Syntax: //@oxy:variant <entry_point> <target_count> [<texture_property>...]
	//
	// Example: //@oxy:variant fs_both 2 _CameraDepthTexture _MotionVectorTexture
	AnnotationTypeVariant AnnotationType = "variant"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = snippet key
	//   - property: [0] = property name, [1] = uniform field name
	//   - texture:  [0] = property name
	//   - variant:  [0] = entry point, [1...] = texture property names
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for texture annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for texture annotations. Nil otherwise.
	Binding *int

	// Targets is the color target count for variant annotations.
	Targets int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

const (
	// AnnotationArgDepthHelpers identifies the depth linearization helper functions.
	// Source: engine/renderer/shader/assets/depth_helpers.wgsl
	AnnotationArgDepthHelpers AnnotationArg = "depth_helpers"

	// AnnotationArgFullscreen identifies the full-screen triangle vertex stage.
	// Source: engine/renderer/shader/assets/fullscreen.wgsl
	AnnotationArgFullscreen AnnotationArg = "fullscreen"
)

// parseAnnotation attempts to parse a single source line as an @oxy: annotation.
// Lines without the annotation prefix return nil, nil.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeProperty:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy property annotation requires exactly two arguments (property name, field name)", lineNum)
		}
		return &Annotation{
			Type: AnnotationTypeProperty,
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])},
			Line: lineNum,
		}, nil
	case AnnotationTypeTexture:
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy texture annotation requires exactly three arguments (group, binding, property name)", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy texture annotation: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy texture annotation: %v", lineNum, args[2], err)
		}
		return &Annotation{
			Type:    AnnotationTypeTexture,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case AnnotationTypeVariant:
		if len(args) < 3 {
			return nil, fmt.Errorf("line %d: @oxy variant annotation requires an entry point and a target count", lineNum)
		}
		targets, err := strconv.Atoi(args[2])
		if err != nil || targets < 1 {
			return nil, fmt.Errorf("line %d: invalid target count %q in @oxy variant annotation", lineNum, args[2])
		}
		variantArgs := []AnnotationArg{AnnotationArg(args[1])}
		for _, tex := range args[3:] {
			variantArgs = append(variantArgs, AnnotationArg(tex))
		}
		return &Annotation{
			Type:    AnnotationTypeVariant,
			Args:    variantArgs,
			Line:    lineNum,
			Targets: targets,
		}, nil
	}
	return nil, fmt.Errorf("line %d: unknown @oxy annotation %q", lineNum, args[0])
}
