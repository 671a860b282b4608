// pre_processor.go implements the Oxy WGSL program pre-processor. It scans program
// source for @oxy: annotations, replaces include annotations with the registered
// WGSL snippet and collects the remaining annotations as declarations that describe
// the program's properties, texture bindings and variants.
package shader

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed assets/depth_helpers.wgsl
var depthHelpersSource string

//go:embed assets/fullscreen.wgsl
var fullscreenSource string

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// snippetRegistry maps include argument keys to embedded WGSL source.
	snippetRegistry map[AnnotationArg]string

	// declarations accumulates property, texture and variant annotations during a Process call.
	// Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL program source containing @oxy: annotations.
type PreProcessor interface {
	// Process takes raw WGSL source and replaces @oxy:include annotations with their
	// registered snippets. Property, texture and variant annotations are left in place
	// (they are plain WGSL comments) and recorded in the declarations list.
	//
	// Parameters:
	//   - source: the raw WGSL source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed or references an unknown snippet
	Process(source string) (string, error)

	// Declarations returns the annotations collected during the most recent call to Process,
	// in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the built-in snippets registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippetRegistry: map[AnnotationArg]string{
			AnnotationArgDepthHelpers: depthHelpersSource,
			AnnotationArgFullscreen:   fullscreenSource,
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			snippet, ok := p.snippetRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, snippet)
		default:
			out = append(out, line)
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
