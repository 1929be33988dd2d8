// Package generator renders a parsed Derw module as TypeScript, JavaScript,
// canonical Derw or Elm. Every generator is a pure function of the module:
// the same module always yields byte-identical text.
package generator

import (
	"fmt"
	"strings"

	"github.com/chazu/derw/compiler"
)

// Target selects an output dialect.
type Target int

const (
	TypeScript Target = iota
	JavaScript
	Derw
	Elm
)

var targetNames = map[Target]string{
	TypeScript: "ts",
	JavaScript: "js",
	Derw:       "derw",
	Elm:        "elm",
}

// String returns the target's short name, which is also its file extension.
func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Extension returns the file extension for generated files, without the dot.
func (t Target) Extension() string {
	return t.String()
}

// ParseTarget parses a short target name: ts, js, derw or elm.
func ParseTarget(s string) (Target, error) {
	for t, name := range targetNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q (want ts, js, derw or elm)", s)
}

// Generate renders m in the given dialect.
func Generate(target Target, m *compiler.Module) string {
	switch target {
	case TypeScript:
		return GenerateTypeScript(m)
	case JavaScript:
		return GenerateJavaScript(m)
	case Derw:
		return GenerateDerw(m)
	case Elm:
		return GenerateElm(m)
	}
	panic(fmt.Sprintf("generator: unknown target %d", int(target)))
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

const indentUnit = "    "

// indent prefixes every non-empty line of s with one indent unit.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indentUnit + line
		}
	}
	return strings.Join(lines, "\n")
}

// joinNonEmpty joins the non-empty parts with sep.
func joinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// tier orders operators from loosest to tightest binding, matching the
// order the parser splits them in.
func tier(op compiler.Operator) int {
	switch {
	case op == compiler.Or:
		return 0
	case op == compiler.And:
		return 1
	case op.IsComparison():
		return 2
	case op == compiler.Addition || op == compiler.Subtraction:
		return 3
	}
	return 4
}

// operandParens reports whether child needs brackets as the left or right
// operand of parent so the output evaluates exactly the tree. Operators
// chain to the left.
func operandParens(parent compiler.Operator, child *compiler.Operation, left bool) bool {
	pt, ct := tier(parent), tier(child.Operator)
	switch {
	case ct != pt:
		return ct < pt
	case left:
		return false
	}
	return !(child.Operator == parent && parent.IsAssociative())
}

// genericNames collects the type variables used by types, in order of first
// appearance. any is the top type, not a variable.
func genericNames(types ...compiler.Type) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(t compiler.Type)
	walk = func(t compiler.Type) {
		switch t := t.(type) {
		case compiler.GenericType:
			if t.Name != "any" && !seen[t.Name] {
				seen[t.Name] = true
				names = append(names, t.Name)
			}
		case compiler.FixedType:
			for _, arg := range t.Args {
				walk(arg)
			}
		case compiler.FunctionType:
			for _, arg := range t.Args {
				walk(arg)
			}
			walk(t.Return)
		}
	}
	for _, t := range types {
		walk(t)
	}
	return names
}

// identifier turns the last segment of an import path into a usable name.
func identifier(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	var sb strings.Builder
	for i, r := range path {
		switch {
		case r == '_' || r == '$' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
			sb.WriteRune(r)
		case '0' <= r && r <= '9' && i > 0:
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
