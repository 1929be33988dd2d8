package compiler

import (
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Module Assembler
// ---------------------------------------------------------------------------

// Parse compiles a whole file into a Module. It never fails: blocks that do
// not parse are reported in Errors and left out of Body, and blocks that
// parse are kept even when they fail type checking. name is the module's
// dotted path, or MainModule for entry files.
func Parse(text, name string) *Module {
	m := &Module{Name: name}

	type slot struct {
		source UnparsedBlock
		block  Block
		err    string
	}
	var slots []slot

	for _, b := range IntoBlocks(text) {
		if strings.TrimSpace(b.Text()) == "" {
			continue
		}
		s := slot{source: b}
		switch {
		case unbalanced(b):
			s.err = FormatError(b, "Unbalanced brackets")
		case b.Kind == UnknownBlock:
			_, err := ClassifyBlock(b.Text())
			s.err = FormatError(b, err.Error())
		default:
			block, err := ParseBlock(b)
			if err != nil {
				s.err = err.Error()
			} else {
				s.block = block
				m.Body = append(m.Body, block)
			}
		}
		slots = append(slots, s)
	}

	analyzer := NewSemanticAnalyzer()
	analyzer.DeclareModule(m.Body)

	for _, s := range slots {
		if s.block == nil {
			m.Errors = append(m.Errors, s.err)
			continue
		}
		for _, msg := range analyzer.CheckBlock(s.block) {
			m.Errors = append(m.Errors, FormatError(s.source, msg))
		}
		if _, err := ValidateType(s.block); err != nil {
			m.Errors = append(m.Errors, FormatError(s.source, err.Error()))
		}
	}
	return m
}

// ImportPaths returns the paths of every non-global module the file imports,
// joined to dir (the importing file's directory) and cleaned. Extensions are
// not added; the caller decides which sibling file to look for.
func (m *Module) ImportPaths(dir string) []string {
	var paths []string
	for _, imp := range m.Imports() {
		for _, module := range imp.Modules {
			if module.Namespace == Global {
				continue
			}
			paths = append(paths, filepath.Clean(filepath.Join(dir, module.Path())))
		}
	}
	return paths
}

// FilterBodyForName returns the blocks declaring name.
func (m *Module) FilterBodyForName(name string) []Block {
	var out []Block
	for _, b := range m.Body {
		if BlockName(b) == name {
			out = append(out, b)
		}
	}
	return out
}

// Declaration is a top-level block that parsed, with the lines it covers.
type Declaration struct {
	Block     Block
	StartLine int // 0-based
	EndLine   int // exclusive
}

// Declarations parses text block by block and returns each block that
// parses along with its position. Unlike Parse it does no checking.
func Declarations(text string) []Declaration {
	var out []Declaration
	for _, b := range IntoBlocks(text) {
		if b.Kind == UnknownBlock || unbalanced(b) {
			continue
		}
		block, err := ParseBlock(b)
		if err != nil {
			continue
		}
		start, lines := b.Span()
		out = append(out, Declaration{Block: block, StartLine: start, EndLine: start + len(lines)})
	}
	return out
}
