package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Derw
// ---------------------------------------------------------------------------
//
// Every variant set (Type, Expression, Block) is a sealed interface: the
// marker methods are unexported, so the variants listed here are the only
// ones, and every consumer handles them with a type switch.

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Type is the interface implemented by FixedType, GenericType and FunctionType.
type Type interface {
	String() string
	typeNode()
}

// FixedType is a concrete named type with ordered type arguments: number,
// List string, Maybe a.
type FixedType struct {
	Name string
	Args []Type
}

// GenericType is a type variable. GenericType{"any"} is the unconstrained
// top type.
type GenericType struct {
	Name string
}

// FunctionType is a function signature: a -> b -> c has Args [a, b] and
// Return c.
type FunctionType struct {
	Args   []Type
	Return Type
}

func (FixedType) typeNode()    {}
func (GenericType) typeNode()  {}
func (FunctionType) typeNode() {}

// Any is the universal top type used when validation cannot narrow further.
var Any Type = GenericType{Name: "any"}

func (t FixedType) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := []string{t.Name}
	for _, arg := range t.Args {
		parts = append(parts, typeArgString(arg))
	}
	return strings.Join(parts, " ")
}

func (t GenericType) String() string { return t.Name }

func (t FunctionType) String() string {
	var parts []string
	for _, arg := range t.Args {
		if _, ok := arg.(FunctionType); ok {
			parts = append(parts, "("+arg.String()+")")
			continue
		}
		parts = append(parts, arg.String())
	}
	parts = append(parts, t.Return.String())
	return strings.Join(parts, " -> ")
}

// typeArgString renders a type in argument position, adding parentheses
// where the argument would otherwise be ambiguous.
func typeArgString(t Type) string {
	switch t := t.(type) {
	case FixedType:
		if len(t.Args) > 0 {
			return "(" + t.String() + ")"
		}
	case FunctionType:
		return "(" + t.String() + ")"
	}
	return t.String()
}

// TypesEqual compares two types structurally.
func TypesEqual(a, b Type) bool {
	switch a := a.(type) {
	case FixedType:
		b, ok := b.(FixedType)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !TypesEqual(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case GenericType:
		b, ok := b.(GenericType)
		return ok && a.Name == b.Name
	case FunctionType:
		b, ok := b.(FunctionType)
		if !ok || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !TypesEqual(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return TypesEqual(a.Return, b.Return)
	}
	return false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expression is the interface for expression nodes.
type Expression interface {
	expr() // marker method
}

// Value is a bare word: a number, true/false, or a variable name.
type Value struct {
	Body string
}

// StringValue is a double-quoted string; Body excludes the quotes.
type StringValue struct {
	Body string
}

// FormatStringValue is a backtick string; Body is the raw text between the
// backticks, holes included. Holes are resolved by the generators.
type FormatStringValue struct {
	Body string
}

// ListValue is a list literal [ a, b ].
type ListValue struct {
	Items []Expression
}

// ListRange is a range literal [ a..b ].
type ListRange struct {
	Start Expression
	End   Expression
}

// Field is one name: value pair of an object literal.
type Field struct {
	Name  string
	Value Expression
}

// ObjectLiteral is { a: 1 } or the update form { base | a: 1 }. Base is nil
// when no record is copied.
type ObjectLiteral struct {
	Base   Expression
	Fields []Field
}

// FunctionCall is f a b, or f(a, b) in JS-style call position.
type FunctionCall struct {
	Name string
	Args []Expression
}

// ModuleReference is a qualified access: List.foldl add or person.name.
// Value is a *FunctionCall or a *Value.
type ModuleReference struct {
	Path  []string
	Value Expression
}

// Lambda is \a b -> body.
type Lambda struct {
	Args []string
	Body Expression
}

// LambdaCall is (\a -> body) x, a bracketed lambda applied in place.
type LambdaCall struct {
	Lambda *Lambda
	Args   []Expression
}

// IfStatement is if predicate then a else b.
type IfStatement struct {
	Predicate Expression
	IfBody    Expression
	ElseBody  Expression
}

// Destructure is a case pattern: a union tag plus an optional record
// pattern such as "{ name }". The wildcard pattern has Constructor
// "default".
type Destructure struct {
	Constructor string
	Pattern     string
}

// IsDefault reports whether the pattern matches anything.
func (d Destructure) IsDefault() bool {
	return d.Constructor == "default"
}

// Branch is one Pattern -> body arm of a case statement.
type Branch struct {
	Pattern Destructure
	Body    Expression
	LetBody []Block
}

// CaseStatement is case predicate of branches.
type CaseStatement struct {
	Predicate Expression
	Branches  []Branch
}

// Operator identifies a binary operator.
type Operator int

const (
	Addition Operator = iota
	Subtraction
	Multiplication
	Division
	Modulus
	Equality
	InEquality
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	And
	Or
)

var operatorSymbols = map[Operator]string{
	Addition:           "+",
	Subtraction:        "-",
	Multiplication:     "*",
	Division:           "/",
	Modulus:            "%",
	Equality:           "==",
	InEquality:         "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	And:                "&&",
	Or:                 "||",
}

// Symbol returns the Derw spelling of the operator.
func (o Operator) Symbol() string {
	return operatorSymbols[o]
}

func (o Operator) String() string {
	switch o {
	case Addition:
		return "Addition"
	case Subtraction:
		return "Subtraction"
	case Multiplication:
		return "Multiplication"
	case Division:
		return "Division"
	case Modulus:
		return "Modulus"
	case Equality:
		return "Equality"
	case InEquality:
		return "InEquality"
	case LessThan:
		return "LessThan"
	case LessThanOrEqual:
		return "LessThanOrEqual"
	case GreaterThan:
		return "GreaterThan"
	case GreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case And:
		return "And"
	case Or:
		return "Or"
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// IsComparison reports whether the operator yields a boolean from two
// operands of the same type.
func (o Operator) IsComparison() bool {
	switch o {
	case Equality, InEquality, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		return true
	}
	return false
}

// IsAssociative reports whether a op (b op c) equals (a op b) op c, which
// lets generators drop parentheses around a right operand.
func (o Operator) IsAssociative() bool {
	return o == Addition || o == Multiplication || o == And || o == Or
}

// operatorFromSymbol maps a lexed operator to its Operator.
func operatorFromSymbol(sym string) (Operator, bool) {
	for op, s := range operatorSymbols {
		if s == sym {
			return op, true
		}
	}
	return 0, false
}

// Operation is a binary operator applied to two operands.
type Operation struct {
	Operator Operator
	Left     Expression
	Right    Expression
}

// LeftPipe is value |> function: Left is the piped value, Right the function.
type LeftPipe struct {
	Left  Expression
	Right Expression
}

// RightPipe is function <| value: Left is the function, Right the value.
type RightPipe struct {
	Left  Expression
	Right Expression
}

func (*Value) expr()             {}
func (*StringValue) expr()       {}
func (*FormatStringValue) expr() {}
func (*ListValue) expr()         {}
func (*ListRange) expr()         {}
func (*ObjectLiteral) expr()     {}
func (*FunctionCall) expr()      {}
func (*ModuleReference) expr()   {}
func (*Lambda) expr()            {}
func (*LambdaCall) expr()        {}
func (*IfStatement) expr()       {}
func (*CaseStatement) expr()     {}
func (*Operation) expr()         {}
func (*LeftPipe) expr()          {}
func (*RightPipe) expr()         {}

// ---------------------------------------------------------------------------
// Blocks (top-level declarations)
// ---------------------------------------------------------------------------

// BlockKind tags a block before and after parsing.
type BlockKind int

const (
	UnknownBlock BlockKind = iota
	ConstBlock
	FunctionBlock
	TypeAliasBlock
	UnionTypeBlock
	ImportBlock
	CommentBlock
	MultilineCommentBlock
	ExportBlock
)

var blockKindNames = map[BlockKind]string{
	UnknownBlock:          "Unknown",
	ConstBlock:            "Const",
	FunctionBlock:         "Function",
	TypeAliasBlock:        "TypeAlias",
	UnionTypeBlock:        "UnionType",
	ImportBlock:           "Import",
	CommentBlock:          "Comment",
	MultilineCommentBlock: "MultilineComment",
	ExportBlock:           "Export",
}

func (k BlockKind) String() string {
	if name, ok := blockKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// Block is the interface for top-level declaration nodes.
type Block interface {
	Kind() BlockKind
	block() // marker method
}

// FunctionArg is one named, typed parameter.
type FunctionArg struct {
	Name string
	Type Type
}

// Function is name : A -> B -> R followed by name a b = body.
type Function struct {
	Name       string
	ReturnType Type
	Args       []FunctionArg
	LetBody    []Block
	Body       Expression
}

// Const is name : T followed by name = body.
type Const struct {
	Name string
	Type Type
	Body Expression
}

// Property is one field of a record shape.
type Property struct {
	Name string
	Type Type
}

// TypeAlias is type alias Name params = { fields }.
type TypeAlias struct {
	Type       FixedType
	Properties []Property
}

// Tag is one constructor of a union type.
type Tag struct {
	Name string
	Args []Property
}

// UnionType is type Name params = Tag1 { .. } | Tag2 { .. }.
type UnionType struct {
	Type FixedType
	Tags []Tag
}

// ImportNamespace distinguishes how an imported module is located.
type ImportNamespace int

const (
	// Global imports are ambient (import fs) and never resolved to a file.
	Global ImportNamespace = iota
	// Relative imports name a sibling file of the importing module.
	Relative
	// Package imports name a file inside an installed package.
	Package
)

func (n ImportNamespace) String() string {
	switch n {
	case Global:
		return "Global"
	case Relative:
		return "Relative"
	case Package:
		return "Package"
	}
	return fmt.Sprintf("ImportNamespace(%d)", int(n))
}

// ImportModule is one imported module. Name keeps its quotes for file
// imports ("./other") and is bare for global ones (fs).
type ImportModule struct {
	Name      string
	Alias     string
	Exposing  []string
	Namespace ImportNamespace
}

// Path returns the module name without quotes.
func (m ImportModule) Path() string {
	return strings.Trim(m.Name, `"`)
}

// Import is a run of import lines.
type Import struct {
	Modules []ImportModule
}

// Export is exposing ( a, b ).
type Export struct {
	Names []string
}

// Comment is a run of -- lines. Text is the source, markers included.
type Comment struct {
	Text string
}

// MultilineComment is a {- -} span. Text is the source, markers included.
type MultilineComment struct {
	Text string
}

func (*Function) Kind() BlockKind         { return FunctionBlock }
func (*Const) Kind() BlockKind            { return ConstBlock }
func (*TypeAlias) Kind() BlockKind        { return TypeAliasBlock }
func (*UnionType) Kind() BlockKind        { return UnionTypeBlock }
func (*Import) Kind() BlockKind           { return ImportBlock }
func (*Export) Kind() BlockKind           { return ExportBlock }
func (*Comment) Kind() BlockKind          { return CommentBlock }
func (*MultilineComment) Kind() BlockKind { return MultilineCommentBlock }

func (*Function) block()         {}
func (*Const) block()            {}
func (*TypeAlias) block()        {}
func (*UnionType) block()        {}
func (*Import) block()           {}
func (*Export) block()           {}
func (*Comment) block()          {}
func (*MultilineComment) block() {}

// BlockName returns the declared name of a block, or "" for blocks that do
// not declare one.
func BlockName(b Block) string {
	switch b := b.(type) {
	case *Function:
		return b.Name
	case *Const:
		return b.Name
	case *TypeAlias:
		return b.Type.Name
	case *UnionType:
		return b.Type.Name
	}
	return ""
}

// ---------------------------------------------------------------------------
// Unparsed blocks and modules
// ---------------------------------------------------------------------------

// UnparsedBlock is a contiguous slice of source lines. StartLine is
// 0-based.
type UnparsedBlock struct {
	Kind      BlockKind
	StartLine int
	Lines     []string
}

// Text joins the block's lines.
func (b UnparsedBlock) Text() string {
	return strings.Join(b.Lines, "\n")
}

// Module is the result of compiling one file. Errors holds every parse and
// type error; a Module is returned even when Errors is non-empty.
type Module struct {
	Name   string
	Body   []Block
	Errors []string
}

// MainModule is the module name given to entry files.
const MainModule = "Main"

// Imports returns the module's import blocks in order.
func (m *Module) Imports() []*Import {
	var out []*Import
	for _, b := range m.Body {
		if imp, ok := b.(*Import); ok {
			out = append(out, imp)
		}
	}
	return out
}
