package generator

import (
	"path"
	"strings"

	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/manifest"
)

// ---------------------------------------------------------------------------
// Elm emission
// ---------------------------------------------------------------------------

type elmGenerator struct {
	// tags maps each union tag declared in the module to whether it
	// carries fields.
	tags map[string]bool
}

var elmTypeNames = map[string]string{
	"number":  "Float",
	"string":  "String",
	"boolean": "Bool",
	"void":    "()",
}

// ElmModuleName returns the Elm module name for a Derw module or file name.
func ElmModuleName(name string) string {
	base := path.Base(name)
	return manifest.ToPascalCase(strings.TrimSuffix(base, path.Ext(base)))
}

// GenerateElm renders m as an Elm module.
func GenerateElm(m *compiler.Module) string {
	g := &elmGenerator{tags: map[string]bool{}}
	var exposing []string
	for _, b := range m.Body {
		switch b := b.(type) {
		case *compiler.UnionType:
			for _, tag := range b.Tags {
				g.tags[tag.Name] = len(tag.Args) > 0
			}
		case *compiler.Export:
			exposing = append(exposing, b.Names...)
		}
	}

	header := "module " + ElmModuleName(m.Name) + " exposing (..)"
	if len(exposing) > 0 {
		header = "module " + ElmModuleName(m.Name) + " exposing (" + strings.Join(exposing, ", ") + ")"
	}
	parts := []string{header}
	for _, b := range m.Body {
		parts = append(parts, g.block(b))
	}
	return joinNonEmpty(parts, "\n\n")
}

func (g *elmGenerator) block(b compiler.Block) string {
	switch b := b.(type) {
	case *compiler.Import:
		var lines []string
		for _, m := range b.Modules {
			name := elmImportName(m)
			line := "import " + name
			if m.Alias != "" && m.Alias != name {
				line += " as " + m.Alias
			}
			if len(m.Exposing) > 0 {
				line += " exposing (" + strings.Join(m.Exposing, ", ") + ")"
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	case *compiler.Comment:
		return b.Text
	case *compiler.MultilineComment:
		return b.Text
	case *compiler.TypeAlias:
		head := "type alias " + g.typeHead(b.Type) + " =\n"
		if len(b.Properties) == 0 {
			return head + indent("{}")
		}
		var lines []string
		for i, p := range b.Properties {
			sep := ", "
			if i == 0 {
				sep = "{ "
			}
			lines = append(lines, sep+p.Name+" : "+g.typeString(p.Type))
		}
		lines = append(lines, "}")
		return head + indent(strings.Join(lines, "\n"))
	case *compiler.UnionType:
		var lines []string
		for i, tag := range b.Tags {
			sep := "| "
			if i == 0 {
				sep = "= "
			}
			lines = append(lines, sep+tag.Name+g.record(tag.Args))
		}
		return "type " + g.typeHead(b.Type) + "\n" + indent(strings.Join(lines, "\n"))
	case *compiler.Const:
		return b.Name + " : " + g.typeString(b.Type) + "\n" +
			b.Name + " =\n" + indent(g.body(nil, b.Body))
	case *compiler.Function:
		sig := compiler.FunctionType{Return: b.ReturnType}
		names := []string{b.Name}
		for _, arg := range b.Args {
			sig.Args = append(sig.Args, arg.Type)
			names = append(names, arg.Name)
		}
		return b.Name + " : " + g.typeString(sig) + "\n" +
			strings.Join(names, " ") + " =\n" + indent(g.body(b.LetBody, b.Body))
	}
	return ""
}

// elmImportName turns an import path into a dotted Elm module name.
func elmImportName(m compiler.ImportModule) string {
	if m.Namespace == compiler.Global {
		return manifest.ToPascalCase(m.Name)
	}
	var segments []string
	for _, s := range strings.Split(m.Path(), "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		segments = append(segments, manifest.ToPascalCase(s))
	}
	return strings.Join(segments, ".")
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func (g *elmGenerator) typeHead(t compiler.FixedType) string {
	parts := []string{t.Name}
	for _, arg := range t.Args {
		parts = append(parts, g.typeString(arg))
	}
	return strings.Join(parts, " ")
}

func (g *elmGenerator) typeString(t compiler.Type) string {
	switch t := t.(type) {
	case compiler.GenericType:
		return t.Name
	case compiler.FixedType:
		if name, ok := elmTypeNames[t.Name]; ok && len(t.Args) == 0 {
			return name
		}
		parts := []string{t.Name}
		for _, arg := range t.Args {
			parts = append(parts, g.typeArg(arg))
		}
		return strings.Join(parts, " ")
	case compiler.FunctionType:
		var parts []string
		for _, arg := range t.Args {
			if _, ok := arg.(compiler.FunctionType); ok {
				parts = append(parts, "("+g.typeString(arg)+")")
				continue
			}
			parts = append(parts, g.typeString(arg))
		}
		return strings.Join(append(parts, g.typeString(t.Return)), " -> ")
	}
	return "any"
}

func (g *elmGenerator) typeArg(t compiler.Type) string {
	switch t := t.(type) {
	case compiler.FixedType:
		if len(t.Args) > 0 {
			return "(" + g.typeString(t) + ")"
		}
	case compiler.FunctionType:
		return "(" + g.typeString(t) + ")"
	}
	return g.typeString(t)
}

func (g *elmGenerator) record(props []compiler.Property) string {
	if len(props) == 0 {
		return ""
	}
	var fields []string
	for _, p := range props {
		fields = append(fields, p.Name+" : "+g.typeString(p.Type))
	}
	return " { " + strings.Join(fields, ", ") + " }"
}

// ---------------------------------------------------------------------------
// Statements and expressions
// ---------------------------------------------------------------------------

func (g *elmGenerator) body(letBody []compiler.Block, body compiler.Expression) string {
	if len(letBody) == 0 {
		return g.statement(body)
	}
	var defs []string
	for _, b := range letBody {
		defs = append(defs, g.block(b))
	}
	return "let\n" + indent(strings.Join(defs, "\n\n")) + "\nin\n" + g.statement(body)
}

func (g *elmGenerator) statement(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.IfStatement:
		return "if " + g.expr(e.Predicate) + " then\n" +
			indent(g.statement(e.IfBody)) + "\n\nelse\n" +
			indent(g.statement(e.ElseBody))
	case *compiler.CaseStatement:
		return g.caseOf(e)
	}
	return g.expr(e)
}

func (g *elmGenerator) caseOf(c *compiler.CaseStatement) string {
	var branches []string
	for _, b := range c.Branches {
		pattern := b.Pattern.Constructor
		switch {
		case b.Pattern.IsDefault():
			pattern = "_"
		case b.Pattern.Pattern != "":
			pattern += " " + b.Pattern.Pattern
		case g.tags[pattern]:
			pattern += " _"
		}
		branches = append(branches, pattern+" ->\n"+indent(g.body(b.LetBody, b.Body)))
	}
	return "case " + g.expr(c.Predicate) + " of\n" + indent(strings.Join(branches, "\n\n"))
}

func (g *elmGenerator) expr(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.Value:
		switch e.Body {
		case "true":
			return "True"
		case "false":
			return "False"
		}
		return e.Body
	case *compiler.StringValue:
		return `"` + e.Body + `"`
	case *compiler.FormatStringValue:
		return g.formatString(e.Body)
	case *compiler.ListValue:
		if len(e.Items) == 0 {
			return "[]"
		}
		var items []string
		for _, item := range e.Items {
			items = append(items, g.expr(item))
		}
		return "[ " + strings.Join(items, ", ") + " ]"
	case *compiler.ListRange:
		return "List.range " + g.argument(e.Start) + " " + g.argument(e.End)
	case *compiler.ObjectLiteral:
		var fields []string
		for _, f := range e.Fields {
			fields = append(fields, f.Name+" = "+g.expr(f.Value))
		}
		inner := strings.Join(fields, ", ")
		if e.Base != nil {
			inner = g.expr(e.Base) + " | " + inner
		}
		if inner == "" {
			return "{}"
		}
		return "{ " + inner + " }"
	case *compiler.FunctionCall:
		if len(e.Args) == 0 {
			return e.Name + " ()"
		}
		parts := []string{e.Name}
		for _, arg := range e.Args {
			parts = append(parts, g.argument(arg))
		}
		return strings.Join(parts, " ")
	case *compiler.ModuleReference:
		return strings.Join(e.Path, ".") + "." + g.expr(e.Value)
	case *compiler.Lambda:
		return "\\" + strings.Join(e.Args, " ") + " -> " + g.expr(e.Body)
	case *compiler.LambdaCall:
		parts := []string{"(" + g.expr(e.Lambda) + ")"}
		for _, arg := range e.Args {
			parts = append(parts, g.argument(arg))
		}
		return strings.Join(parts, " ")
	case *compiler.IfStatement:
		return "if " + g.expr(e.Predicate) + " then " + g.nested(e.IfBody) + " else " + g.nested(e.ElseBody)
	case *compiler.CaseStatement:
		return g.caseOf(e)
	case *compiler.Operation:
		return g.operation(e)
	case *compiler.LeftPipe:
		return g.nested(e.Left) + " |> " + g.nested(e.Right)
	case *compiler.RightPipe:
		return g.nested(e.Left) + " <| " + g.nested(e.Right)
	}
	return ""
}

func (g *elmGenerator) operation(e *compiler.Operation) string {
	left, right := g.side(e, e.Left, true), g.side(e, e.Right, false)
	switch e.Operator {
	case compiler.Modulus:
		return "modBy " + g.argument(e.Right) + " " + g.argument(e.Left)
	case compiler.InEquality:
		return left + " /= " + right
	case compiler.Addition:
		if isStringy(e.Left) || isStringy(e.Right) {
			return left + " ++ " + right
		}
	}
	return left + " " + e.Operator.Symbol() + " " + right
}

// isStringy reports whether e is a string literal or string concatenation.
func isStringy(e compiler.Expression) bool {
	switch e := e.(type) {
	case *compiler.StringValue, *compiler.FormatStringValue:
		return true
	case *compiler.Operation:
		return e.Operator == compiler.Addition && (isStringy(e.Left) || isStringy(e.Right))
	}
	return false
}

// formatString lowers `a ${b} c` to "a " ++ b ++ " c".
func (g *elmGenerator) formatString(body string) string {
	var parts []string
	for body != "" {
		start := strings.Index(body, "${")
		if start < 0 {
			parts = append(parts, `"`+body+`"`)
			break
		}
		if start > 0 {
			parts = append(parts, `"`+body[:start]+`"`)
		}
		depth, end := 0, -1
		for i := start + 2; i < len(body) && end < 0; i++ {
			switch body[i] {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					end = i
				}
				depth--
			}
		}
		if end < 0 {
			parts = append(parts, `"`+body[start:]+`"`)
			break
		}
		inner := strings.TrimSpace(body[start+2 : end])
		if strings.ContainsAny(inner, " \t") {
			inner = "(" + inner + ")"
		}
		parts = append(parts, inner)
		body = body[end+1:]
	}
	if len(parts) == 0 {
		return `""`
	}
	return strings.Join(parts, " ++ ")
}

func (g *elmGenerator) side(parent *compiler.Operation, child compiler.Expression, left bool) string {
	if op, ok := child.(*compiler.Operation); ok {
		if op.Operator != compiler.Modulus && operandParens(parent.Operator, op, left) {
			return "(" + g.expr(child) + ")"
		}
		return g.expr(child)
	}
	return g.nested(child)
}

// nested brackets expressions that would otherwise swallow their
// surroundings.
func (g *elmGenerator) nested(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.IfStatement, *compiler.CaseStatement, *compiler.Lambda,
		*compiler.LeftPipe, *compiler.RightPipe:
		return "(" + g.expr(e) + ")"
	}
	return g.expr(e)
}

// argument brackets anything that is not an atom.
func (g *elmGenerator) argument(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.Value:
		if strings.HasPrefix(e.Body, "-") {
			return "(" + e.Body + ")"
		}
		return g.expr(e)
	case *compiler.FunctionCall, *compiler.LambdaCall:
		return "(" + g.expr(e) + ")"
	case *compiler.ModuleReference:
		if _, ok := e.Value.(*compiler.FunctionCall); ok {
			return "(" + g.expr(e) + ")"
		}
		return g.expr(e)
	case *compiler.Operation, *compiler.ListRange:
		return "(" + g.expr(e) + ")"
	}
	return g.nested(e)
}
