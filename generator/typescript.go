package generator

import (
	"fmt"
	"strings"

	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/compiler/hash"
)

// ---------------------------------------------------------------------------
// TypeScript and JavaScript emission
// ---------------------------------------------------------------------------
//
// Both dialects share one emitter. The JavaScript output is the TypeScript
// output with every type annotation, type declaration and generic parameter
// list left out.

type scriptGenerator struct {
	typed bool
}

// GenerateTypeScript renders m as TypeScript.
func GenerateTypeScript(m *compiler.Module) string {
	g := &scriptGenerator{typed: true}
	return g.module(m)
}

func (g *scriptGenerator) module(m *compiler.Module) string {
	var parts []string
	for _, b := range m.Body {
		parts = append(parts, g.block(b))
	}
	return joinNonEmpty(parts, "\n\n")
}

func (g *scriptGenerator) block(b compiler.Block) string {
	switch b := b.(type) {
	case *compiler.Import:
		return g.imports(b)
	case *compiler.Export:
		return "export { " + strings.Join(b.Names, ", ") + " };"
	case *compiler.TypeAlias:
		return g.typeAlias(b)
	case *compiler.UnionType:
		return g.unionType(b)
	case *compiler.Const:
		return g.constant(b)
	case *compiler.Function:
		return g.function(b)
	case *compiler.Comment, *compiler.MultilineComment:
		return ""
	}
	return ""
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (g *scriptGenerator) imports(imp *compiler.Import) string {
	var lines []string
	for _, m := range imp.Modules {
		from := `"` + m.Path() + `"`
		if len(m.Exposing) > 0 {
			lines = append(lines, fmt.Sprintf("import { %s } from %s;", strings.Join(m.Exposing, ", "), from))
		}
		switch {
		case m.Alias != "":
			lines = append(lines, fmt.Sprintf("import * as %s from %s;", m.Alias, from))
		case len(m.Exposing) == 0:
			lines = append(lines, fmt.Sprintf("import * as %s from %s;", identifier(m.Path()), from))
		}
	}
	return strings.Join(lines, "\n")
}

func (g *scriptGenerator) typeString(t compiler.Type) string {
	switch t := t.(type) {
	case compiler.GenericType:
		return t.Name
	case compiler.FixedType:
		if t.Name == "List" && len(t.Args) == 1 {
			inner := g.typeString(t.Args[0])
			if _, ok := t.Args[0].(compiler.FunctionType); ok {
				inner = "(" + inner + ")"
			}
			return inner + "[]"
		}
		if len(t.Args) == 0 {
			return t.Name
		}
		var args []string
		for _, arg := range t.Args {
			args = append(args, g.typeString(arg))
		}
		return t.Name + "<" + strings.Join(args, ", ") + ">"
	case compiler.FunctionType:
		var args []string
		for i, arg := range t.Args {
			args = append(args, fmt.Sprintf("arg%d: %s", i, g.typeString(arg)))
		}
		return "(" + strings.Join(args, ", ") + ") => " + g.typeString(t.Return)
	}
	return "any"
}

// typeParams renders <a, b> for the variables used by types.
func (g *scriptGenerator) typeParams(types ...compiler.Type) string {
	names := genericNames(types...)
	if !g.typed || len(names) == 0 {
		return ""
	}
	return "<" + strings.Join(names, ", ") + ">"
}

// annotation renders ": T" in TypeScript and nothing in JavaScript.
func (g *scriptGenerator) annotation(t compiler.Type) string {
	if !g.typed {
		return ""
	}
	return ": " + g.typeString(t)
}

// argsType renders the inline record type a constructor accepts.
func (g *scriptGenerator) argsType(props []compiler.Property) string {
	if len(props) == 0 {
		return "{}"
	}
	var fields []string
	for _, p := range props {
		fields = append(fields, p.Name+": "+g.typeString(p.Type))
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

// constructor renders a function that builds a value of type result from
// an args record, adding a kind discriminant when kind is non-empty.
func (g *scriptGenerator) constructor(name, kind string, params []compiler.Type, props []compiler.Property, result string) string {
	var head string
	if g.typed {
		head = fmt.Sprintf("function %s%s(args: %s): %s {", name, g.typeParams(params...), g.argsType(props), result)
	} else {
		head = fmt.Sprintf("function %s(args) {", name)
	}
	var fields []string
	if kind != "" {
		fields = append(fields, `kind: "`+kind+`",`)
	}
	fields = append(fields, "...args,")
	body := "return {\n" + indent(strings.Join(fields, "\n")) + "\n};"
	return head + "\n" + indent(body) + "\n}"
}

func (g *scriptGenerator) recordType(head string, fields []string) string {
	if len(fields) == 0 {
		return "type " + head + " = {}"
	}
	return "type " + head + " = {\n" + indent(strings.Join(fields, "\n")) + "\n}"
}

func (g *scriptGenerator) typeAlias(a *compiler.TypeAlias) string {
	name := g.typeString(a.Type)
	ctor := g.constructor(a.Type.Name, "", a.Type.Args, a.Properties, name)
	if !g.typed {
		return ctor
	}
	var fields []string
	for _, p := range a.Properties {
		fields = append(fields, p.Name+": "+g.typeString(p.Type)+";")
	}
	return g.recordType(name, fields) + "\n\n" + ctor
}

func (g *scriptGenerator) unionType(u *compiler.UnionType) string {
	var parts, tagTypes []string
	for _, tag := range u.Tags {
		var fieldTypes []compiler.Type
		for _, p := range tag.Args {
			fieldTypes = append(fieldTypes, p.Type)
		}
		// a tag carries only the union parameters its fields mention
		var params []compiler.Type
		used := genericNames(fieldTypes...)
		for _, param := range u.Type.Args {
			for _, name := range used {
				if param.String() == name {
					params = append(params, param)
				}
			}
		}
		tagType := g.typeString(compiler.FixedType{Name: tag.Name, Args: params})
		tagTypes = append(tagTypes, tagType)

		if g.typed {
			fields := []string{`kind: "` + tag.Name + `";`}
			for _, p := range tag.Args {
				fields = append(fields, p.Name+": "+g.typeString(p.Type)+";")
			}
			parts = append(parts, g.recordType(tagType, fields))
		}
		parts = append(parts, g.constructor(tag.Name, tag.Name, params, tag.Args, tagType))
	}
	if g.typed {
		parts = append(parts, "type "+g.typeString(u.Type)+" = "+strings.Join(tagTypes, " | ")+";")
	}
	return strings.Join(parts, "\n\n")
}

func (g *scriptGenerator) constant(c *compiler.Const) string {
	return "const " + c.Name + g.annotation(c.Type) + " = " + g.expr(c.Body) + ";"
}

func (g *scriptGenerator) function(f *compiler.Function) string {
	var args []string
	var all []compiler.Type
	for _, arg := range f.Args {
		args = append(args, arg.Name+g.annotation(arg.Type))
		all = append(all, arg.Type)
	}
	all = append(all, f.ReturnType)

	head := "function " + f.Name + g.typeParams(all...) + "(" + strings.Join(args, ", ") + ")" + g.annotation(f.ReturnType)
	body := g.bindings(f.LetBody, g.returnStatement(f.Body))
	return head + " {\n" + indent(body) + "\n}"
}

// bindings renders let bindings followed by the statement that uses them.
func (g *scriptGenerator) bindings(blocks []compiler.Block, final string) string {
	var parts []string
	for _, b := range blocks {
		parts = append(parts, g.block(b))
	}
	parts = append(parts, final)
	return joinNonEmpty(parts, "\n")
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// returnStatement renders e in return position, where if and case become
// statements instead of expressions.
func (g *scriptGenerator) returnStatement(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.CaseStatement:
		return g.caseStatement(e)
	case *compiler.IfStatement:
		return "if (" + g.expr(e.Predicate) + ") {\n" +
			indent(g.returnStatement(e.IfBody)) + "\n} else {\n" +
			indent(g.returnStatement(e.ElseBody)) + "\n}"
	}
	return "return " + g.expr(e) + ";"
}

// caseStatement binds the scrutinee to a temporary named after its text,
// then switches on its kind.
func (g *scriptGenerator) caseStatement(c *compiler.CaseStatement) string {
	pred := g.expr(c.Predicate)
	name := hash.TempName(pred)

	var branches []string
	for _, branch := range c.Branches {
		head := `case "` + branch.Pattern.Constructor + `": {`
		if branch.Pattern.IsDefault() {
			head = "default: {"
		}
		var destructure string
		if branch.Pattern.Pattern != "" {
			destructure = "const " + branch.Pattern.Pattern + " = " + name + ";"
		}
		body := joinNonEmpty([]string{destructure, g.bindings(branch.LetBody, g.returnStatement(branch.Body))}, "\n")
		branches = append(branches, head+"\n"+indent(body)+"\n}")
	}

	return "const " + name + " = " + pred + ";\n" +
		"switch (" + name + ".kind) {\n" +
		indent(strings.Join(branches, "\n")) + "\n}"
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *scriptGenerator) expr(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.Value:
		return e.Body
	case *compiler.StringValue:
		return `"` + e.Body + `"`
	case *compiler.FormatStringValue:
		return "`" + e.Body + "`"
	case *compiler.ListValue:
		if len(e.Items) == 0 {
			return "[ ]"
		}
		return "[ " + strings.Join(g.exprs(e.Items), ", ") + " ]"
	case *compiler.ListRange:
		start, end := g.operand(e.Start), g.operand(e.End)
		return fmt.Sprintf("Array.from({ length: %s - %s + 1 }, (_, i) => i + %s)", end, start, start)
	case *compiler.ObjectLiteral:
		return g.object(e)
	case *compiler.FunctionCall:
		return e.Name + "(" + strings.Join(g.exprs(e.Args), ", ") + ")"
	case *compiler.ModuleReference:
		return strings.Join(e.Path, ".") + "." + g.expr(e.Value)
	case *compiler.Lambda:
		var args []string
		for _, arg := range e.Args {
			args = append(args, arg+g.annotation(compiler.Any))
		}
		body := g.expr(e.Body)
		if _, ok := e.Body.(*compiler.ObjectLiteral); ok {
			body = "(" + body + ")"
		}
		return "(" + strings.Join(args, ", ") + ") => " + body
	case *compiler.LambdaCall:
		return "(" + g.expr(e.Lambda) + ")(" + strings.Join(g.exprs(e.Args), ", ") + ")"
	case *compiler.IfStatement:
		return g.branchOperand(e.Predicate) + " ? " + g.branchOperand(e.IfBody) + " : " + g.branchOperand(e.ElseBody)
	case *compiler.CaseStatement:
		return "(() => {\n" + indent(g.caseStatement(e)) + "\n})()"
	case *compiler.Operation:
		return g.side(e, e.Left, true) + " " + g.symbol(e.Operator) + " " + g.side(e, e.Right, false)
	case *compiler.LeftPipe:
		return g.apply(e.Right, e.Left, true)
	case *compiler.RightPipe:
		return g.apply(e.Left, e.Right, false)
	}
	return ""
}

func (g *scriptGenerator) exprs(es []compiler.Expression) []string {
	var out []string
	for _, e := range es {
		out = append(out, g.expr(e))
	}
	return out
}

func (g *scriptGenerator) symbol(op compiler.Operator) string {
	switch op {
	case compiler.Equality:
		return "==="
	case compiler.InEquality:
		return "!=="
	}
	return op.Symbol()
}

// operand brackets anything that is not a primary expression.
func (g *scriptGenerator) operand(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.Operation, *compiler.IfStatement, *compiler.Lambda:
		return "(" + g.expr(e) + ")"
	}
	return g.expr(e)
}

// branchOperand brackets the parts of a conditional expression that would
// otherwise bind into it.
func (g *scriptGenerator) branchOperand(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.IfStatement, *compiler.Lambda:
		return "(" + g.expr(e) + ")"
	}
	return g.expr(e)
}

func (g *scriptGenerator) side(parent *compiler.Operation, child compiler.Expression, left bool) string {
	if op, ok := child.(*compiler.Operation); ok {
		if operandParens(parent.Operator, op, left) {
			return "(" + g.expr(child) + ")"
		}
		return g.expr(child)
	}
	return g.operand(child)
}

func (g *scriptGenerator) object(o *compiler.ObjectLiteral) string {
	var fields []string
	if o.Base != nil {
		fields = append(fields, "..."+g.operand(o.Base))
	}
	for _, f := range o.Fields {
		fields = append(fields, f.Name+": "+g.expr(f.Value))
	}
	if len(fields) == 0 {
		return "{}"
	}
	return "{\n" + indent(strings.Join(fields, ",\n")) + "\n}"
}

// apply calls fn with value as an extra argument: first for |>, last for <|.
func (g *scriptGenerator) apply(fn, value compiler.Expression, first bool) string {
	v := g.expr(value)
	switch fn := fn.(type) {
	case *compiler.FunctionCall:
		args := g.exprs(fn.Args)
		if first {
			args = append([]string{v}, args...)
		} else {
			args = append(args, v)
		}
		return fn.Name + "(" + strings.Join(args, ", ") + ")"
	case *compiler.LambdaCall:
		args := g.exprs(fn.Args)
		if first {
			args = append([]string{v}, args...)
		} else {
			args = append(args, v)
		}
		return "(" + g.expr(fn.Lambda) + ")(" + strings.Join(args, ", ") + ")"
	case *compiler.ModuleReference:
		return strings.Join(fn.Path, ".") + "." + g.apply(fn.Value, value, first)
	case *compiler.Value:
		return fn.Body + "(" + v + ")"
	}
	return "(" + g.expr(fn) + ")(" + v + ")"
}
