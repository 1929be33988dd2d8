package generator

import (
	"strings"

	"github.com/chazu/derw/compiler"
)

// ---------------------------------------------------------------------------
// Canonical Derw
// ---------------------------------------------------------------------------
//
// The formatter prints a module back in one canonical layout. Formatting
// its own output changes nothing.

// GenerateDerw renders m as canonically formatted Derw source.
func GenerateDerw(m *compiler.Module) string {
	var parts []string
	for _, b := range m.Body {
		parts = append(parts, derwBlock(b))
	}
	return joinNonEmpty(parts, "\n\n")
}

func derwBlock(b compiler.Block) string {
	switch b := b.(type) {
	case *compiler.Import:
		var lines []string
		for _, m := range b.Modules {
			line := "import " + m.Name
			if m.Alias != "" {
				line += " as " + m.Alias
			}
			if len(m.Exposing) > 0 {
				line += " exposing ( " + strings.Join(m.Exposing, ", ") + " )"
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	case *compiler.Export:
		return "exposing ( " + strings.Join(b.Names, ", ") + " )"
	case *compiler.Comment:
		return b.Text
	case *compiler.MultilineComment:
		return b.Text
	case *compiler.TypeAlias:
		head := "type alias " + b.Type.String() + " = "
		if len(b.Properties) == 0 {
			return head + "{ }"
		}
		var fields []string
		for _, p := range b.Properties {
			fields = append(fields, p.Name+": "+p.Type.String())
		}
		return head + "{\n" + indent(strings.Join(fields, ",\n")) + "\n}"
	case *compiler.UnionType:
		var tags []string
		for i, tag := range b.Tags {
			line := tag.Name
			if len(tag.Args) > 0 {
				var fields []string
				for _, p := range tag.Args {
					fields = append(fields, p.Name+": "+p.Type.String())
				}
				line += " { " + strings.Join(fields, ", ") + " }"
			}
			if i > 0 {
				line = "| " + line
			}
			tags = append(tags, line)
		}
		return "type " + b.Type.String() + " =\n" + indent(strings.Join(tags, "\n"))
	case *compiler.Const:
		return b.Name + ": " + b.Type.String() + "\n" +
			b.Name + " =\n" + indent(derwBody(nil, b.Body))
	case *compiler.Function:
		sig := compiler.FunctionType{Return: b.ReturnType}
		var names []string
		for _, arg := range b.Args {
			sig.Args = append(sig.Args, arg.Type)
			names = append(names, arg.Name)
		}
		return b.Name + ": " + derwSignature(sig) + "\n" +
			b.Name + " " + strings.Join(names, " ") + " =\n" + indent(derwBody(b.LetBody, b.Body))
	}
	return ""
}

// derwSignature prints a function signature. A function-typed result is
// bracketed so it is not read back as more arguments.
func derwSignature(t compiler.FunctionType) string {
	ret := t.Return.String()
	if _, ok := t.Return.(compiler.FunctionType); ok {
		ret = "(" + ret + ")"
	}
	if len(t.Args) == 0 {
		return ret
	}
	args := compiler.FunctionType{Args: t.Args, Return: compiler.GenericType{Name: ret}}
	return args.String()
}

// derwBody prints an optional let block and the expression it scopes.
func derwBody(letBody []compiler.Block, body compiler.Expression) string {
	if len(letBody) == 0 {
		return derwStatement(body)
	}
	var defs []string
	for _, b := range letBody {
		defs = append(defs, derwBlock(b))
	}
	return "let\n" + indent(strings.Join(defs, "\n")) + "\nin\n" + indent(derwStatement(body))
}

// derwStatement prints e in body position, where if, case and object
// literals are laid out across lines.
func derwStatement(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.IfStatement:
		return "if " + derwExpr(e.Predicate) + " then\n" +
			indent(derwStatement(e.IfBody)) + "\nelse\n" +
			indent(derwStatement(e.ElseBody))
	case *compiler.CaseStatement:
		return derwCase(e)
	case *compiler.ObjectLiteral:
		if len(e.Fields) == 0 {
			return derwExpr(e)
		}
		var fields []string
		for _, f := range e.Fields {
			fields = append(fields, f.Name+": "+derwExpr(f.Value))
		}
		head := "{\n"
		if e.Base != nil {
			head = "{ " + derwOperand(e.Base) + " |\n"
		}
		return head + indent(strings.Join(fields, ",\n")) + "\n}"
	}
	return derwExpr(e)
}

func derwCase(c *compiler.CaseStatement) string {
	var branches []string
	for _, b := range c.Branches {
		pattern := b.Pattern.Constructor
		if b.Pattern.Pattern != "" {
			pattern += " " + b.Pattern.Pattern
		}
		branches = append(branches, pattern+" ->\n"+indent(derwBody(b.LetBody, b.Body)))
	}
	return "case " + derwExpr(c.Predicate) + " of\n" + indent(strings.Join(branches, "\n\n"))
}

func derwExpr(e compiler.Expression) string {
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
		var items []string
		for _, item := range e.Items {
			items = append(items, derwExpr(item))
		}
		return "[ " + strings.Join(items, ", ") + " ]"
	case *compiler.ListRange:
		return "[ " + derwExpr(e.Start) + ".." + derwExpr(e.End) + " ]"
	case *compiler.ObjectLiteral:
		var fields []string
		for _, f := range e.Fields {
			fields = append(fields, f.Name+": "+derwExpr(f.Value))
		}
		inner := strings.Join(fields, ", ")
		if e.Base != nil {
			inner = derwOperand(e.Base) + " | " + inner
		}
		if inner == "" {
			return "{ }"
		}
		return "{ " + inner + " }"
	case *compiler.FunctionCall:
		if len(e.Args) == 0 {
			return e.Name + "()"
		}
		parts := []string{e.Name}
		for _, arg := range e.Args {
			parts = append(parts, derwArgument(arg))
		}
		return strings.Join(parts, " ")
	case *compiler.ModuleReference:
		return strings.Join(e.Path, ".") + "." + derwExpr(e.Value)
	case *compiler.Lambda:
		return "\\" + strings.Join(e.Args, " ") + " -> " + derwExpr(e.Body)
	case *compiler.LambdaCall:
		parts := []string{"(" + derwExpr(e.Lambda) + ")"}
		for _, arg := range e.Args {
			parts = append(parts, derwArgument(arg))
		}
		return strings.Join(parts, " ")
	case *compiler.IfStatement:
		return "if " + derwBranchPart(e.Predicate) + " then " + derwBranchPart(e.IfBody) + " else " + derwBranchPart(e.ElseBody)
	case *compiler.CaseStatement:
		return derwCase(e)
	case *compiler.Operation:
		return derwSide(e, e.Left, true) + " " + e.Operator.Symbol() + " " + derwSide(e, e.Right, false)
	case *compiler.LeftPipe:
		left := derwPipeOperand(e.Left)
		switch e.Left.(type) {
		case *compiler.LeftPipe, *compiler.RightPipe:
			left = derwExpr(e.Left)
		}
		right := derwPipeOperand(e.Right)
		if _, ok := e.Right.(*compiler.RightPipe); ok {
			right = derwExpr(e.Right)
		}
		return left + " |> " + right
	case *compiler.RightPipe:
		right := derwPipeOperand(e.Right)
		if _, ok := e.Right.(*compiler.RightPipe); ok {
			right = derwExpr(e.Right)
		}
		return derwPipeOperand(e.Left) + " <| " + right
	}
	return ""
}

// derwBranchPart prints one part of an inline if. Nested control forms,
// lambdas and pipes are bracketed so each part reads back whole.
func derwBranchPart(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.IfStatement, *compiler.CaseStatement, *compiler.Lambda,
		*compiler.LeftPipe, *compiler.RightPipe:
		return "(" + derwExpr(e) + ")"
	}
	return derwExpr(e)
}

// derwPipeOperand brackets operands that would otherwise split the pipe
// differently when read back.
func derwPipeOperand(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.LeftPipe, *compiler.RightPipe, *compiler.IfStatement, *compiler.CaseStatement, *compiler.Lambda:
		return "(" + derwExpr(e) + ")"
	}
	return derwExpr(e)
}

func derwSide(parent *compiler.Operation, child compiler.Expression, left bool) string {
	if op, ok := child.(*compiler.Operation); ok {
		if operandParens(parent.Operator, op, left) {
			return "(" + derwExpr(child) + ")"
		}
		return derwExpr(child)
	}
	return derwOperand(child)
}

// derwOperand brackets anything that is not a single term.
func derwOperand(e compiler.Expression) string {
	switch e.(type) {
	case *compiler.Operation, *compiler.LeftPipe, *compiler.RightPipe,
		*compiler.IfStatement, *compiler.CaseStatement, *compiler.Lambda:
		return "(" + derwExpr(e) + ")"
	}
	return derwExpr(e)
}

// derwArgument brackets call arguments that are not atoms.
func derwArgument(e compiler.Expression) string {
	switch e := e.(type) {
	case *compiler.Value:
		if strings.HasPrefix(e.Body, "-") {
			return "(" + e.Body + ")"
		}
	case *compiler.FunctionCall:
		if len(e.Args) > 0 {
			return "(" + derwExpr(e) + ")"
		}
	case *compiler.LambdaCall:
		return "(" + derwExpr(e) + ")"
	case *compiler.ModuleReference:
		if call, ok := e.Value.(*compiler.FunctionCall); ok && len(call.Args) > 0 {
			return "(" + derwExpr(e) + ")"
		}
	}
	return derwOperand(e)
}
