package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Parser: block-at-a-time recursive descent for Derw
// ---------------------------------------------------------------------------
//
// The parser works on slices of positioned tokens. Expressions are found by
// splitting a slice at its lowest-binding top-level operator; only case
// branches and let blocks look at columns, so a construct spelled on one line
// or across several lines parses to the same tree.

// ptok is a non-whitespace, non-comment token with its position in the
// block text (0-based line and byte column).
type ptok struct {
	Token
	Line      int
	Col       int
	LineStart bool // first token on its line
	Adjacent  bool // no whitespace between this token and the previous one
}

// positioned tokenizes text and drops whitespace and comments, keeping
// where each remaining token sits.
func positioned(text string) []ptok {
	var out []ptok
	line, col := 0, 0
	lineStart, adjacent := true, false
	for _, tok := range Tokenize(text) {
		switch tok.Type {
		case TokenWhitespace, TokenComment, TokenMultilineComment:
			adjacent = false
		default:
			out = append(out, ptok{Token: tok, Line: line, Col: col, LineStart: lineStart, Adjacent: adjacent})
			lineStart, adjacent = false, true
		}
		if n := strings.Count(tok.Text, "\n"); n > 0 {
			line += n
			col = len(tok.Text) - strings.LastIndex(tok.Text, "\n") - 1
			if tok.Type == TokenWhitespace || tok.Type == TokenComment || tok.Type == TokenMultilineComment {
				lineStart = true
			}
		} else {
			col += len(tok.Text)
		}
	}
	return out
}

// render joins tokens back into readable source for error messages.
func render(toks []ptok) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && !t.Adjacent {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// matching returns the index of the bracket closing toks[i], or -1.
func matching(toks []ptok, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		switch {
		case isOpening(toks[j].Type):
			depth++
		case isClosing(toks[j].Type):
			depth--
			if depth == 0 {
				if closes[toks[i].Type] != toks[j].Type {
					return -1
				}
				return j
			}
		}
	}
	return -1
}

// topLevel calls visit for every token at bracket depth zero until visit
// returns false. Scanning stops at an if, case or lambda, which always
// extend to the end of the slice.
func topLevel(toks []ptok, visit func(i int) bool) {
	depth := 0
	for i, t := range toks {
		switch {
		case isOpening(t.Type):
			depth++
			continue
		case isClosing(t.Type):
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if i > 0 && (t.Is("if") || t.Is("case") || t.Type == TokenBackslash) {
			return
		}
		if !visit(i) {
			return
		}
	}
}

// splitTopLevel splits toks at every top-level token of the given type.
func splitTopLevel(toks []ptok, sep TokenType) [][]ptok {
	var parts [][]ptok
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case isOpening(t.Type):
			depth++
		case isClosing(t.Type):
			depth--
		case depth == 0 && t.Type == sep:
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseBlock parses one classified block. Grammar errors come back as
// diagnostics naming the block's lines. Passing a block whose Kind does not
// match its text is a programming error and panics.
func ParseBlock(b UnparsedBlock) (Block, error) {
	text := b.Text()
	actual, classifyErr := ClassifyBlock(text)
	if b.Kind == UnknownBlock || (classifyErr == nil && actual != b.Kind) {
		panic(fmt.Sprintf("compiler: ParseBlock given a %s block whose text is a %s block", b.Kind, actual))
	}

	block, err := parseKind(b.Kind, text)
	if err != nil {
		return nil, errors.New(FormatError(b, err.Error()))
	}
	return block, nil
}

func parseKind(kind BlockKind, text string) (Block, error) {
	switch kind {
	case ConstBlock, FunctionBlock:
		return parseDeclaration(positioned(text))
	case TypeAliasBlock:
		return parseTypeAlias(positioned(text))
	case UnionTypeBlock:
		return parseUnionType(positioned(text))
	case ImportBlock:
		return parseImport(positioned(text))
	case ExportBlock:
		return parseExport(positioned(text))
	case CommentBlock:
		return &Comment{Text: strings.TrimSpace(text)}, nil
	case MultilineCommentBlock:
		return &MultilineComment{Text: strings.TrimSpace(text)}, nil
	}
	return nil, fmt.Errorf("Unknown block type")
}

// parseDeclaration parses a Const (no arguments) or a Function.
func parseDeclaration(toks []ptok) (Block, error) {
	decl, err := findDeclaration(toks)
	if err != nil {
		return nil, err
	}
	if len(decl.signature) == 0 {
		return nil, fmt.Errorf("Missing type for `%s`", decl.name)
	}
	if len(decl.body) == 0 {
		return nil, fmt.Errorf("Missing body for `%s`", decl.name)
	}

	if len(decl.args) == 0 {
		typ, err := parseType(decl.signature)
		if err != nil {
			return nil, err
		}
		if decl.body[0].Is("let") {
			return nil, fmt.Errorf("let blocks are only allowed in functions and case branches")
		}
		body, err := parseExpression(decl.body)
		if err != nil {
			return nil, err
		}
		return &Const{Name: decl.name, Type: typ, Body: body}, nil
	}

	parts := splitTopLevel(decl.signature, TokenArrow)
	if len(parts) < len(decl.args)+1 {
		return nil, fmt.Errorf("`%s` takes %d arguments but its type has %d", decl.name, len(decl.args), len(parts)-1)
	}
	var args []FunctionArg
	for i, name := range decl.args {
		typ, err := parseType(parts[i])
		if err != nil {
			return nil, err
		}
		args = append(args, FunctionArg{Name: name, Type: typ})
	}
	ret, err := parseArrowTypes(parts[len(decl.args):])
	if err != nil {
		return nil, err
	}

	letBody, body, err := parseBody(decl.body)
	if err != nil {
		return nil, err
	}
	return &Function{Name: decl.name, ReturnType: ret, Args: args, LetBody: letBody, Body: body}, nil
}

// parseBody parses an optional let ... in prefix followed by an expression.
func parseBody(toks []ptok) ([]Block, Expression, error) {
	if len(toks) == 0 {
		return nil, nil, fmt.Errorf("Expected an expression")
	}
	if !toks[0].Is("let") {
		body, err := parseExpression(toks)
		return nil, body, err
	}

	in := -1
	nest := 0
	for i := 1; i < len(toks) && in < 0; i++ {
		switch {
		case toks[i].Is("let"):
			nest++
		case toks[i].Is("in") && nest == 0:
			in = i
		case toks[i].Is("in"):
			nest--
		}
	}
	if in < 0 {
		return nil, nil, fmt.Errorf("Missing `in` after `let`")
	}

	defs := toks[1:in]
	if len(defs) == 0 {
		return nil, nil, fmt.Errorf("Empty let block")
	}
	var letBody []Block
	col := defs[0].Col
	start := 0
	for i := 1; i <= len(defs); i++ {
		if i < len(defs) && !(defs[i].LineStart && defs[i].Col == col && i+1 < len(defs) && defs[i+1].Type == TokenColon) {
			continue
		}
		block, err := parseDeclaration(defs[start:i])
		if err != nil {
			return nil, nil, err
		}
		letBody = append(letBody, block)
		start = i
	}

	body, err := parseExpression(toks[in+1:])
	if err != nil {
		return nil, nil, err
	}
	return letBody, body, nil
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

var primitiveTypes = map[string]bool{
	"number":  true,
	"string":  true,
	"boolean": true,
	"void":    true,
}

// parseType parses a type, including a -> b function types.
func parseType(toks []ptok) (Type, error) {
	if len(toks) == 0 {
		return nil, fmt.Errorf("Expected a type")
	}
	parts := splitTopLevel(toks, TokenArrow)
	if len(parts) > 1 {
		return parseArrowTypes(parts)
	}

	if toks[0].Type == TokenOpenBracket {
		end := matching(toks, 0)
		if end == len(toks)-1 {
			return parseType(toks[1:end])
		}
	}

	head := toks[0]
	if head.Type != TokenIdentifier || keywords[head.Text] {
		return nil, fmt.Errorf("Expected a type name but found `%s`", head.Text)
	}

	var args []Type
	for i := 1; i < len(toks); i++ {
		switch toks[i].Type {
		case TokenIdentifier:
			arg, err := parseType(toks[i : i+1])
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		case TokenOpenBracket:
			end := matching(toks, i)
			if end < 0 {
				return nil, fmt.Errorf("Unbalanced brackets in type `%s`", render(toks))
			}
			arg, err := parseType(toks[i+1 : end])
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			i = end
		default:
			return nil, fmt.Errorf("Unexpected `%s` in type `%s`", toks[i].Text, render(toks))
		}
	}

	if len(args) == 0 && !primitiveTypes[head.Text] && isLower(head.Text) {
		return GenericType{Name: head.Text}, nil
	}
	return FixedType{Name: head.Text, Args: args}, nil
}

// parseArrowTypes builds a type from arrow-separated parts; a single part is
// returned as is.
func parseArrowTypes(parts [][]ptok) (Type, error) {
	var types []Type
	for _, part := range parts {
		t, err := parseType(part)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if len(types) == 1 {
		return types[0], nil
	}
	return FunctionType{Args: types[:len(types)-1], Return: types[len(types)-1]}, nil
}

func isLower(name string) bool {
	for _, r := range name {
		return unicode.IsLower(r)
	}
	return false
}

// parseTypeHead parses Name param param... up to (not including) =.
func parseTypeHead(toks []ptok) (FixedType, []ptok, error) {
	eq := -1
	for i, t := range toks {
		if t.Type == TokenAssign {
			eq = i
			break
		}
	}
	if eq < 1 {
		return FixedType{}, nil, fmt.Errorf("Expected `=` after the type name")
	}
	if toks[0].Type != TokenIdentifier {
		return FixedType{}, nil, fmt.Errorf("Expected a type name but found `%s`", toks[0].Text)
	}
	head := FixedType{Name: toks[0].Text}
	for _, t := range toks[1:eq] {
		if t.Type != TokenIdentifier || !isLower(t.Text) {
			return FixedType{}, nil, fmt.Errorf("Expected a lowercase type parameter but found `%s`", t.Text)
		}
		head.Args = append(head.Args, GenericType{Name: t.Text})
	}
	return head, toks[eq+1:], nil
}

// parseProperties parses { name: Type, ... }.
func parseProperties(toks []ptok) ([]Property, error) {
	if len(toks) < 2 || toks[0].Type != TokenOpenBrace || matching(toks, 0) != len(toks)-1 {
		return nil, fmt.Errorf("Expected a record like `{ name: Type }` but found `%s`", render(toks))
	}
	inner := toks[1 : len(toks)-1]
	if len(inner) == 0 {
		return nil, nil
	}
	var props []Property
	for _, field := range splitTopLevel(inner, TokenComma) {
		if len(field) < 3 || field[0].Type != TokenIdentifier || field[1].Type != TokenColon {
			return nil, fmt.Errorf("Expected `name: Type` but found `%s`", render(field))
		}
		typ, err := parseType(field[2:])
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Name: field[0].Text, Type: typ})
	}
	return props, nil
}

func parseTypeAlias(toks []ptok) (Block, error) {
	if len(toks) < 2 || !toks[0].Is("type") || !toks[1].Is("alias") {
		return nil, fmt.Errorf("Expected `type alias`")
	}
	head, rest, err := parseTypeHead(toks[2:])
	if err != nil {
		return nil, err
	}
	props, err := parseProperties(rest)
	if err != nil {
		return nil, err
	}
	return &TypeAlias{Type: head, Properties: props}, nil
}

func parseUnionType(toks []ptok) (Block, error) {
	if len(toks) < 1 || !toks[0].Is("type") {
		return nil, fmt.Errorf("Expected `type`")
	}
	head, rest, err := parseTypeHead(toks[1:])
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("Type `%s` has no tags", head.Name)
	}

	var tags []Tag
	for _, part := range splitTopLevel(rest, TokenPipe) {
		if len(part) == 0 || part[0].Type != TokenIdentifier || isLower(part[0].Text) {
			return nil, fmt.Errorf("Expected a capitalised tag name but found `%s`", render(part))
		}
		tag := Tag{Name: part[0].Text}
		if len(part) > 1 {
			tag.Args, err = parseProperties(part[1:])
			if err != nil {
				return nil, err
			}
		}
		tags = append(tags, tag)
	}
	return &UnionType{Type: head, Tags: tags}, nil
}

// ---------------------------------------------------------------------------
// Imports and exports
// ---------------------------------------------------------------------------

func parseImport(toks []ptok) (Block, error) {
	var starts []int
	for i, t := range toks {
		if t.Is("import") {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 || starts[0] != 0 {
		return nil, fmt.Errorf("Expected `import`")
	}

	imp := &Import{}
	for n, start := range starts {
		end := len(toks)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		module, err := parseImportModule(toks[start+1 : end])
		if err != nil {
			return nil, err
		}
		imp.Modules = append(imp.Modules, module)
	}
	return imp, nil
}

func parseImportModule(toks []ptok) (ImportModule, error) {
	if len(toks) == 0 {
		return ImportModule{}, fmt.Errorf("Expected a module name after `import`")
	}
	m := ImportModule{Name: toks[0].Text}
	switch {
	case toks[0].Type == TokenString && strings.HasPrefix(toks[0].Text, `".`):
		m.Namespace = Relative
	case toks[0].Type == TokenString:
		m.Namespace = Package
	case toks[0].Type == TokenIdentifier:
		m.Namespace = Global
	default:
		return ImportModule{}, fmt.Errorf("Expected a module name but found `%s`", toks[0].Text)
	}

	rest := toks[1:]
	for len(rest) > 0 {
		switch {
		case rest[0].Is("as") && len(rest) > 1 && rest[1].Type == TokenIdentifier:
			m.Alias = rest[1].Text
			rest = rest[2:]
		case rest[0].Is("exposing"):
			names, n, err := parseNameList(rest[1:])
			if err != nil {
				return ImportModule{}, err
			}
			m.Exposing = names
			rest = rest[1+n:]
		default:
			return ImportModule{}, fmt.Errorf("Unexpected `%s` in import", rest[0].Text)
		}
	}
	return m, nil
}

// parseNameList parses ( a, b ) and reports how many tokens it used.
func parseNameList(toks []ptok) ([]string, int, error) {
	if len(toks) == 0 || toks[0].Type != TokenOpenBracket {
		return nil, 0, fmt.Errorf("Expected `(` to start a list of names")
	}
	end := matching(toks, 0)
	if end < 0 {
		return nil, 0, fmt.Errorf("Unclosed list of names")
	}
	var names []string
	if end > 1 {
		for _, part := range splitTopLevel(toks[1:end], TokenComma) {
			if len(part) != 1 || part[0].Type != TokenIdentifier {
				return nil, 0, fmt.Errorf("Expected a name but found `%s`", render(part))
			}
			names = append(names, part[0].Text)
		}
	}
	return names, end + 1, nil
}

func parseExport(toks []ptok) (Block, error) {
	if len(toks) == 0 || !(toks[0].Is("exposing") || toks[0].Is("export")) {
		return nil, fmt.Errorf("Expected `exposing`")
	}
	names, n, err := parseNameList(toks[1:])
	if err != nil {
		return nil, err
	}
	if 1+n != len(toks) {
		return nil, fmt.Errorf("Unexpected `%s` after exposing list", toks[1+n].Text)
	}
	return &Export{Names: names}, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// operatorTiers lists binary operators from loosest to tightest. Within a
// tier the last occurrence splits, so a - b + c is (a - b) + c.
var operatorTiers = [][]string{
	{"||"},
	{"&&"},
	{"==", "!=", "<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

// parseExpression parses a complete expression.
func parseExpression(toks []ptok) (Expression, error) {
	if len(toks) == 0 {
		return nil, fmt.Errorf("Expected an expression")
	}

	switch {
	case toks[0].Is("if"):
		return parseIf(toks)
	case toks[0].Is("case"):
		return parseCase(toks)
	case toks[0].Is("let"):
		return nil, fmt.Errorf("let blocks must start a function or branch body")
	case toks[0].Type == TokenBackslash:
		return parseLambda(toks)
	}

	// |> chains to the left, so split at the last one
	if last := lastTopLevel(toks, func(t ptok, _ int) bool { return t.Type == TokenLeftPipe }); last >= 0 {
		return binary(toks, last, func(l, r Expression) Expression { return &LeftPipe{Left: l, Right: r} })
	}

	// <| chains to the right, so split at the first one
	if i := firstTopLevel(toks, func(t ptok, _ int) bool { return t.Type == TokenRightPipe }); i >= 0 {
		return binary(toks, i, func(l, r Expression) Expression { return &RightPipe{Left: l, Right: r} })
	}

	for _, tier := range operatorTiers {
		i := lastTopLevel(toks, func(t ptok, i int) bool {
			return t.Type == TokenOperator && slices.Contains(tier, t.Text) && !isUnaryMinus(toks, i)
		})
		if i < 0 {
			continue
		}
		op, _ := operatorFromSymbol(toks[i].Text)
		return binary(toks, i, func(l, r Expression) Expression {
			return &Operation{Operator: op, Left: l, Right: r}
		})
	}

	return parseApplication(toks)
}

func firstTopLevel(toks []ptok, match func(t ptok, i int) bool) int {
	found := -1
	topLevel(toks, func(i int) bool {
		if match(toks[i], i) {
			found = i
			return false
		}
		return true
	})
	return found
}

func lastTopLevel(toks []ptok, match func(t ptok, i int) bool) int {
	found := -1
	topLevel(toks, func(i int) bool {
		if match(toks[i], i) {
			found = i
		}
		return true
	})
	return found
}

// isUnaryMinus reports whether the - at toks[i] negates what follows rather
// than subtracting.
func isUnaryMinus(toks []ptok, i int) bool {
	if toks[i].Text != "-" {
		return false
	}
	if i == 0 {
		return true
	}
	switch toks[i-1].Type {
	case TokenOperator, TokenLeftPipe, TokenRightPipe, TokenOpenBracket, TokenOpenSquare,
		TokenOpenBrace, TokenComma, TokenColon, TokenArrow, TokenAssign:
		return true
	}
	return false
}

// binary parses both sides of the operator at toks[i].
func binary(toks []ptok, i int, build func(l, r Expression) Expression) (Expression, error) {
	if i == 0 || i == len(toks)-1 {
		return nil, fmt.Errorf("Operator `%s` is missing an operand in `%s`", toks[i].Text, render(toks))
	}
	left, err := parseExpression(toks[:i])
	if err != nil {
		return nil, err
	}
	right, err := parseExpression(toks[i+1:])
	if err != nil {
		return nil, err
	}
	return build(left, right), nil
}

func parseIf(toks []ptok) (Expression, error) {
	then, els := -1, -1
	nest := 0
	for i := 1; i < len(toks) && els < 0; i++ {
		switch {
		case toks[i].Is("if"):
			nest++
		case toks[i].Is("then") && nest == 0 && then < 0:
			then = i
		case toks[i].Is("else") && nest == 0:
			els = i
		case toks[i].Is("else"):
			nest--
		}
	}
	if then < 0 {
		return nil, fmt.Errorf("Missing `then` in if statement")
	}
	if els < 0 {
		return nil, fmt.Errorf("Missing `else` in if statement")
	}

	pred, err := parseExpression(toks[1:then])
	if err != nil {
		return nil, err
	}
	ifBody, err := parseExpression(toks[then+1 : els])
	if err != nil {
		return nil, err
	}
	elseBody, err := parseExpression(toks[els+1:])
	if err != nil {
		return nil, err
	}
	return &IfStatement{Predicate: pred, IfBody: ifBody, ElseBody: elseBody}, nil
}

func parseCase(toks []ptok) (Expression, error) {
	of := -1
	nest := 0
	for i := 1; i < len(toks) && of < 0; i++ {
		switch {
		case toks[i].Is("case"):
			nest++
		case toks[i].Is("of") && nest == 0:
			of = i
		case toks[i].Is("of"):
			nest--
		}
	}
	if of < 0 {
		return nil, fmt.Errorf("Missing `of` in case statement")
	}
	pred, err := parseExpression(toks[1:of])
	if err != nil {
		return nil, err
	}

	rest := toks[of+1:]
	if len(rest) == 0 {
		return nil, fmt.Errorf("Case statement has no branches")
	}

	// Branches start at the first branch's column. A deeper line continues
	// the current branch; nested cases live at deeper columns.
	col := rest[0].Col
	var branches []Branch
	start := 0
	for i := 1; i <= len(rest); i++ {
		if i < len(rest) && !(rest[i].LineStart && rest[i].Col <= col) {
			continue
		}
		branch, err := parseBranch(rest[start:i])
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
		start = i
	}
	return &CaseStatement{Predicate: pred, Branches: branches}, nil
}

func parseBranch(toks []ptok) (Branch, error) {
	arrow := firstTopLevel(toks, func(t ptok, _ int) bool { return t.Type == TokenArrow })
	if arrow < 0 {
		return Branch{}, fmt.Errorf("Expected `->` in case branch `%s`", render(toks))
	}
	pattern, err := parseDestructure(toks[:arrow])
	if err != nil {
		return Branch{}, err
	}
	letBody, body, err := parseBody(toks[arrow+1:])
	if err != nil {
		return Branch{}, err
	}
	return Branch{Pattern: pattern, Body: body, LetBody: letBody}, nil
}

// parseDestructure parses Tag, Tag { a, b }, default or _. The record
// pattern is stored in canonical "{ a, b }" spelling.
func parseDestructure(toks []ptok) (Destructure, error) {
	if len(toks) == 0 {
		return Destructure{}, fmt.Errorf("Missing pattern before `->`")
	}
	if len(toks) == 1 && (toks[0].Is("default") || toks[0].Is("_")) {
		return Destructure{Constructor: "default"}, nil
	}
	if toks[0].Type != TokenIdentifier || isLower(toks[0].Text) {
		return Destructure{}, fmt.Errorf("Malformed pattern `%s`", render(toks))
	}
	d := Destructure{Constructor: toks[0].Text}
	if len(toks) == 1 {
		return d, nil
	}
	if toks[1].Type != TokenOpenBrace || matching(toks, 1) != len(toks)-1 {
		return Destructure{}, fmt.Errorf("Malformed pattern `%s`", render(toks))
	}
	var names []string
	if inner := toks[2 : len(toks)-1]; len(inner) > 0 {
		for _, part := range splitTopLevel(inner, TokenComma) {
			if len(part) != 1 || part[0].Type != TokenIdentifier {
				return Destructure{}, fmt.Errorf("Malformed pattern `%s`", render(toks))
			}
			names = append(names, part[0].Text)
		}
	}
	if len(names) > 0 {
		d.Pattern = "{ " + strings.Join(names, ", ") + " }"
	}
	return d, nil
}

func parseLambda(toks []ptok) (Expression, error) {
	var args []string
	i := 1
	for i < len(toks) && toks[i].Type == TokenIdentifier {
		args = append(args, toks[i].Text)
		i++
	}
	if i >= len(toks) || toks[i].Type != TokenArrow {
		return nil, fmt.Errorf("Expected `->` in lambda `%s`", render(toks))
	}
	body, err := parseExpression(toks[i+1:])
	if err != nil {
		return nil, err
	}
	return &Lambda{Args: args, Body: body}, nil
}

// ---------------------------------------------------------------------------
// Application and atoms
// ---------------------------------------------------------------------------

// atoms splits toks into call-position operands.
func atoms(toks []ptok) ([][]ptok, error) {
	var out [][]ptok
	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case isOpening(t.Type):
			end := matching(toks, i)
			if end < 0 {
				return nil, fmt.Errorf("Unbalanced brackets in `%s`", render(toks))
			}
			out = append(out, toks[i:end+1])
			i = end + 1

		case t.Type == TokenIdentifier && !keywords[t.Text]:
			// f(a, b) with no space before the bracket is a JS-style call
			if i+1 < len(toks) && toks[i+1].Type == TokenOpenBracket && toks[i+1].Adjacent {
				end := matching(toks, i+1)
				if end < 0 {
					return nil, fmt.Errorf("Unbalanced brackets in `%s`", render(toks))
				}
				out = append(out, toks[i:end+1])
				i = end + 1
				continue
			}
			out = append(out, toks[i:i+1])
			i++

		case t.Type == TokenString || t.Type == TokenFormatString:
			out = append(out, toks[i:i+1])
			i++

		case t.Type == TokenOperator && t.Text == "-" && i+1 < len(toks) && toks[i+1].Type == TokenIdentifier:
			out = append(out, toks[i:i+2])
			i += 2

		default:
			return nil, fmt.Errorf("Unexpected `%s` in `%s`", t.Text, render(toks))
		}
	}
	return out, nil
}

// parseApplication parses f a b, List.map f xs, (\x -> x) y, or a single
// atom.
func parseApplication(toks []ptok) (Expression, error) {
	parts, err := atoms(toks)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return parseAtom(parts[0])
	}

	head := parts[0]
	var lambda *Lambda
	if head[0].Type == TokenOpenBracket {
		if fn, err := parseAtom(head); err == nil {
			lambda, _ = fn.(*Lambda)
		}
	}
	if lambda == nil && (len(head) != 1 || head[0].Type != TokenIdentifier || isNumber(head[0].Text)) {
		return nil, fmt.Errorf("Cannot call `%s` as a function", render(head))
	}

	var args []Expression
	for _, part := range parts[1:] {
		arg, err := parseAtom(part)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if lambda != nil {
		return &LambdaCall{Lambda: lambda, Args: args}, nil
	}
	return qualify(head[0].Text, func(name string) Expression {
		return &FunctionCall{Name: name, Args: args}
	}), nil
}

// qualify wraps a dotted name as a ModuleReference around build(last part).
func qualify(name string, build func(name string) Expression) Expression {
	if isNumber(name) || !strings.Contains(name, ".") {
		return build(name)
	}
	parts := strings.Split(name, ".")
	return &ModuleReference{Path: parts[:len(parts)-1], Value: build(parts[len(parts)-1])}
}

func isNumber(s string) bool {
	return s != "" && isDigit(rune(s[0]))
}

func parseAtom(toks []ptok) (Expression, error) {
	t := toks[0]
	switch {
	case len(toks) == 1 && t.Type == TokenIdentifier:
		if keywords[t.Text] {
			return nil, fmt.Errorf("Unexpected keyword `%s`", t.Text)
		}
		return qualify(t.Text, func(name string) Expression { return &Value{Body: name} }), nil

	case len(toks) == 1 && t.Type == TokenString:
		return &StringValue{Body: unquote(t.Text)}, nil

	case len(toks) == 1 && t.Type == TokenFormatString:
		return &FormatStringValue{Body: unquote(t.Text)}, nil

	case t.Type == TokenOperator && t.Text == "-":
		return &Value{Body: "-" + toks[1].Text}, nil

	case t.Type == TokenOpenBracket:
		inner := toks[1 : len(toks)-1]
		if len(inner) == 0 {
			return nil, fmt.Errorf("Empty brackets")
		}
		return parseExpression(inner)

	case t.Type == TokenOpenSquare:
		return parseList(toks[1 : len(toks)-1])

	case t.Type == TokenOpenBrace:
		return parseObjectLiteral(toks[1 : len(toks)-1])

	case t.Type == TokenIdentifier && len(toks) > 2 && toks[1].Type == TokenOpenBracket:
		args, err := parseCommaList(toks[2 : len(toks)-1])
		if err != nil {
			return nil, err
		}
		return qualify(t.Text, func(name string) Expression {
			return &FunctionCall{Name: name, Args: args}
		}), nil
	}
	return nil, fmt.Errorf("Unexpected `%s`", render(toks))
}

// unquote strips the delimiters from a string or format string token.
func unquote(s string) string {
	if len(s) >= 2 && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s[1:]
}

func parseCommaList(toks []ptok) ([]Expression, error) {
	if len(toks) == 0 {
		return nil, nil
	}
	var items []Expression
	for _, part := range splitTopLevel(toks, TokenComma) {
		item, err := parseExpression(part)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parseList(toks []ptok) (Expression, error) {
	if i := firstTopLevel(toks, func(t ptok, _ int) bool { return t.Type == TokenRange }); i >= 0 {
		return binary(toks, i, func(l, r Expression) Expression { return &ListRange{Start: l, End: r} })
	}
	items, err := parseCommaList(toks)
	if err != nil {
		return nil, err
	}
	return &ListValue{Items: items}, nil
}

func parseObjectLiteral(toks []ptok) (Expression, error) {
	obj := &ObjectLiteral{}
	if len(toks) == 0 {
		return obj, nil
	}

	if pipe := firstTopLevel(toks, func(t ptok, _ int) bool { return t.Type == TokenPipe }); pipe >= 0 {
		base, err := parseExpression(toks[:pipe])
		if err != nil {
			return nil, err
		}
		obj.Base = base
		toks = toks[pipe+1:]
	}

	for _, field := range splitTopLevel(toks, TokenComma) {
		if len(field) < 3 || field[0].Type != TokenIdentifier || field[1].Type != TokenColon {
			return nil, fmt.Errorf("Expected `name: value` but found `%s`", render(field))
		}
		value, err := parseExpression(field[2:])
		if err != nil {
			return nil, err
		}
		obj.Fields = append(obj.Fields, Field{Name: field[0].Text, Value: value})
	}
	return obj, nil
}
