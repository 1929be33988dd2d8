package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type Checker: shallow, single-pass body validation
// ---------------------------------------------------------------------------
//
// The checker computes a best-effort type for a declaration body and compares
// it with the declared type. Anything it cannot narrow is Any, and Any is
// compatible with everything, so only obviously wrong bodies are rejected.

var (
	numberType  = FixedType{Name: "number"}
	stringType  = FixedType{Name: "string"}
	booleanType = FixedType{Name: "boolean"}
)

// ListOf returns List t.
func ListOf(t Type) Type {
	return FixedType{Name: "List", Args: []Type{t}}
}

// scope maps names visible in a body to their declared types.
type scope map[string]Type

func (s scope) with(names map[string]Type) scope {
	out := make(scope, len(s)+len(names))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range names {
		out[k] = v
	}
	return out
}

// bindings returns the names declared by a let block with their types.
func bindings(blocks []Block) map[string]Type {
	names := make(map[string]Type)
	for _, b := range blocks {
		switch b := b.(type) {
		case *Const:
			names[b.Name] = b.Type
		case *Function:
			names[b.Name] = functionType(b)
		}
	}
	return names
}

func functionType(f *Function) Type {
	ft := FunctionType{Return: f.ReturnType}
	for _, arg := range f.Args {
		ft.Args = append(ft.Args, arg.Type)
	}
	return ft
}

// ValidateType infers the type of a Const or Function body and checks it
// against the declared type. Other blocks have nothing to check: type
// declarations return their head and everything else returns Any.
func ValidateType(b Block) (Type, error) {
	switch b := b.(type) {
	case *Const:
		return check(b.Type, inferType(b.Body, b.Type, scope{}))
	case *Function:
		sc := scope{}
		for _, arg := range b.Args {
			sc[arg.Name] = arg.Type
		}
		sc = sc.with(bindings(b.LetBody))
		for _, local := range b.LetBody {
			if _, err := validateLocal(local, sc); err != nil {
				return nil, err
			}
		}
		return check(b.ReturnType, inferType(b.Body, b.ReturnType, sc))
	case *TypeAlias:
		return b.Type, nil
	case *UnionType:
		return b.Type, nil
	}
	return Any, nil
}

// validateLocal checks a let binding with the enclosing scope in view.
func validateLocal(b Block, sc scope) (Type, error) {
	switch b := b.(type) {
	case *Const:
		return check(b.Type, inferType(b.Body, b.Type, sc))
	case *Function:
		inner := sc.with(nil)
		for _, arg := range b.Args {
			inner[arg.Name] = arg.Type
		}
		inner = inner.with(bindings(b.LetBody))
		return check(b.ReturnType, inferType(b.Body, b.ReturnType, inner))
	}
	return Any, nil
}

func check(expected, actual Type) (Type, error) {
	if !compatible(expected, actual) {
		return nil, fmt.Errorf("Expected `%s` but got `%s`", expected, actual)
	}
	return actual, nil
}

// compatible reports whether a value of type actual may stand where expected
// is declared. Type variables on either side match anything.
func compatible(expected, actual Type) bool {
	if _, ok := expected.(GenericType); ok {
		return true
	}
	if _, ok := actual.(GenericType); ok {
		return true
	}
	switch e := expected.(type) {
	case FixedType:
		a, ok := actual.(FixedType)
		if !ok || a.Name != e.Name || len(a.Args) != len(e.Args) {
			return false
		}
		for i := range e.Args {
			if !compatible(e.Args[i], a.Args[i]) {
				return false
			}
		}
		return true
	case FunctionType:
		a, ok := actual.(FunctionType)
		if !ok || len(a.Args) != len(e.Args) {
			return false
		}
		for i := range e.Args {
			if !compatible(e.Args[i], a.Args[i]) {
				return false
			}
		}
		return compatible(e.Return, a.Return)
	}
	return false
}

// inferType computes the type of an expression. expected is the type the
// context declares, used for object literals, which take their declared
// record type.
func inferType(e Expression, expected Type, sc scope) Type {
	switch e := e.(type) {
	case *Value:
		return valueType(e.Body, sc)

	case *StringValue, *FormatStringValue:
		return stringType

	case *ListValue:
		if len(e.Items) == 0 {
			return ListOf(Any)
		}
		return ListOf(inferType(e.Items[0], listElement(expected), sc))

	case *ListRange:
		return ListOf(numberType)

	case *ObjectLiteral:
		if fixed, ok := expected.(FixedType); ok {
			return fixed
		}
		return Any

	case *IfStatement:
		return agree([]Type{
			inferType(e.IfBody, expected, sc),
			inferType(e.ElseBody, expected, sc),
		})

	case *CaseStatement:
		var types []Type
		for _, branch := range e.Branches {
			inner := sc.with(bindings(branch.LetBody))
			types = append(types, inferType(branch.Body, expected, inner))
		}
		return agree(types)

	case *Operation:
		return operationType(e, sc)
	}

	// calls, references, pipes and lambdas are not narrowed
	return Any
}

func listElement(t Type) Type {
	if fixed, ok := t.(FixedType); ok && fixed.Name == "List" && len(fixed.Args) == 1 {
		return fixed.Args[0]
	}
	return Any
}

func valueType(body string, sc scope) Type {
	switch body {
	case "true", "false":
		return booleanType
	}
	if isNumber(strings.TrimPrefix(body, "-")) {
		return numberType
	}
	if t, ok := sc[body]; ok {
		return t
	}
	if name, ok := strings.CutPrefix(body, "-"); ok {
		if t, ok := sc[name]; ok && TypesEqual(t, numberType) {
			return numberType
		}
	}
	return Any
}

// agree returns the common type of every branch, or Any when they differ.
func agree(types []Type) Type {
	if len(types) == 0 {
		return Any
	}
	for _, t := range types[1:] {
		if !TypesEqual(t, types[0]) {
			return Any
		}
	}
	return types[0]
}

func operationType(op *Operation, sc scope) Type {
	left := inferType(op.Left, Any, sc)
	right := inferType(op.Right, Any, sc)

	switch {
	case op.Operator == And || op.Operator == Or:
		return booleanType
	case op.Operator.IsComparison():
		if TypesEqual(left, right) {
			return booleanType
		}
		return Any
	}

	if !TypesEqual(left, right) {
		return Any
	}
	switch {
	case TypesEqual(left, numberType):
		return numberType
	case TypesEqual(left, stringType) && op.Operator == Addition:
		return stringType
	}
	return Any
}
