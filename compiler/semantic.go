package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: type-name resolution
// ---------------------------------------------------------------------------

// SemanticAnalyzer checks that every named type a block mentions exists:
// a builtin, a type declared in the module, or a name exposed by an import.
type SemanticAnalyzer struct {
	errors []string

	// Types that are always defined
	knownTypes map[string]bool
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{
		knownTypes: defaultKnownTypes(),
	}
}

// defaultKnownTypes returns the set of builtin type names.
func defaultKnownTypes() map[string]bool {
	return map[string]bool{
		"number":  true,
		"string":  true,
		"boolean": true,
		"void":    true,
		"any":     true,
		"List":    true,
	}
}

// AddKnownType adds a type name to the known set.
func (s *SemanticAnalyzer) AddKnownType(name string) {
	s.knownTypes[name] = true
}

// DeclareModule makes every type declared or imported by body known, so
// declaration order does not matter.
func (s *SemanticAnalyzer) DeclareModule(body []Block) {
	for _, b := range body {
		switch b := b.(type) {
		case *TypeAlias:
			s.AddKnownType(b.Type.Name)
		case *UnionType:
			s.AddKnownType(b.Type.Name)
		case *Import:
			for _, m := range b.Modules {
				for _, name := range m.Exposing {
					s.AddKnownType(name)
				}
			}
		}
	}
}

// Errors returns accumulated analysis errors.
func (s *SemanticAnalyzer) Errors() []string {
	return s.errors
}

// errorf records an error.
func (s *SemanticAnalyzer) errorf(format string, args ...interface{}) {
	s.errors = append(s.errors, fmt.Sprintf(format, args...))
}

// CheckBlock analyzes one block and returns the errors it produced.
func (s *SemanticAnalyzer) CheckBlock(b Block) []string {
	before := len(s.errors)
	s.analyzeBlock(b)
	return s.errors[before:]
}

func (s *SemanticAnalyzer) analyzeBlock(b Block) {
	switch b := b.(type) {
	case *Const:
		s.checkType(b.Type)
	case *Function:
		for _, arg := range b.Args {
			s.checkType(arg.Type)
		}
		s.checkType(b.ReturnType)
		for _, local := range b.LetBody {
			s.analyzeBlock(local)
		}
	case *TypeAlias:
		for _, prop := range b.Properties {
			s.checkType(prop.Type)
		}
	case *UnionType:
		for _, tag := range b.Tags {
			for _, prop := range tag.Args {
				s.checkType(prop.Type)
			}
		}
	case *Import, *Export, *Comment, *MultilineComment:
		// nothing to resolve
	}
}

// checkType reports the first unknown name in t.
func (s *SemanticAnalyzer) checkType(t Type) {
	if name := s.unknownName(t); name != "" {
		s.errorf("Type %s did not exist in the namespace", name)
	}
}

func (s *SemanticAnalyzer) unknownName(t Type) string {
	switch t := t.(type) {
	case FixedType:
		// qualified names belong to another module
		if !s.knownTypes[t.Name] && !strings.Contains(t.Name, ".") {
			return t.Name
		}
		for _, arg := range t.Args {
			if name := s.unknownName(arg); name != "" {
				return name
			}
		}
	case FunctionType:
		for _, arg := range t.Args {
			if name := s.unknownName(arg); name != "" {
				return name
			}
		}
		return s.unknownName(t.Return)
	case GenericType:
	}
	return ""
}
