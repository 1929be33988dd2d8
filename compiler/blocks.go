package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Block segmentation and classification
// ---------------------------------------------------------------------------

// lineState records what the lexer was doing when a line began.
type lineState struct {
	depth  int  // open brackets carried over from earlier lines
	inside bool // the line starts inside a multi-line token ({- -}, strings)
}

// scanLines tokenizes text once and reports, per line, the bracket depth
// and whether the line begins inside a token. It also returns the depth at
// the end of the text.
func scanLines(text string) ([]lineState, int) {
	states := make([]lineState, strings.Count(text, "\n")+1)
	line, depth := 0, 0
	for _, tok := range Tokenize(text) {
		for _, r := range tok.Text {
			if r != '\n' {
				continue
			}
			line++
			states[line] = lineState{depth: depth, inside: tok.Type != TokenWhitespace}
		}
		switch {
		case isOpening(tok.Type):
			depth++
		case isClosing(tok.Type):
			depth--
		}
	}
	return states, depth
}

// IntoBlocks splits source text into top-level blocks. Blocks begin at a
// non-blank line in column zero after a blank line; comments get blocks of
// their own; open brackets and multi-line comments carry a block across
// blank lines. Blank separator lines stay with the block before them, so
// joining every block's lines with "\n" gives back text exactly.
func IntoBlocks(text string) []UnparsedBlock {
	lines := strings.Split(text, "\n")
	states, _ := scanLines(text)

	var blocks []UnparsedBlock
	var cur *UnparsedBlock
	prevBlank := false

	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if cur != nil && startsBlock(cur, line, blank, prevBlank, states[i]) {
			blocks = append(blocks, *cur)
			cur = nil
		}
		if cur == nil {
			cur = &UnparsedBlock{StartLine: i}
		}
		cur.Lines = append(cur.Lines, line)
		prevBlank = blank
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}

	for i := range blocks {
		kind, err := ClassifyBlock(blocks[i].Text())
		if err != nil {
			kind = UnknownBlock
		}
		blocks[i].Kind = kind
	}
	return blocks
}

// startsBlock decides whether line opens a new block after cur.
func startsBlock(cur *UnparsedBlock, line string, blank, prevBlank bool, st lineState) bool {
	if blank || st.inside || st.depth > 0 {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return false
	}
	first := firstNonBlank(cur.Lines)
	if first == "" {
		// only leading blank lines so far
		return false
	}
	if prevBlank {
		return true
	}

	curIsLineComment := strings.HasPrefix(first, "--")
	curIsBlockComment := strings.HasPrefix(first, "{-")
	lineIsComment := strings.HasPrefix(line, "--")

	switch {
	case curIsBlockComment:
		// the comment has closed, since st.inside is false
		return true
	case curIsLineComment:
		return !lineIsComment
	default:
		return lineIsComment || strings.HasPrefix(line, "{-")
	}
}

func firstNonBlank(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

// trimmedLines drops trailing blank lines, which belong to a block only as
// separators.
func trimmedLines(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}

// unbalanced reports whether the block's brackets fail to close.
func unbalanced(b UnparsedBlock) bool {
	_, depth := scanLines(b.Text())
	return depth != 0
}

// Span returns the lines of the block that hold source, without leading
// or trailing blank lines, and the 0-based line the first of them is on.
func (b UnparsedBlock) Span() (start int, lines []string) {
	lines = trimmedLines(b.Lines)
	start = b.StartLine
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
		start++
	}
	return start, lines
}

// FormatError renders a diagnostic for a block the way every stage of the
// compiler reports it.
func FormatError(b UnparsedBlock, message string) string {
	start, lines := b.Span()
	return fmt.Sprintf("Error on lines %d - %d\n%s:\n```\n%s\n```",
		start, start+len(lines), message, strings.Join(lines, "\n"))
}

// ClassifyBlock determines a block's kind from its leading syntax.
func ClassifyBlock(text string) (BlockKind, error) {
	first := strings.TrimSpace(firstNonBlank(strings.Split(text, "\n")))

	switch {
	case first == "":
		return UnknownBlock, fmt.Errorf("Empty block")
	case hasWord(first, "import"):
		return ImportBlock, nil
	case hasWord(first, "type") && hasWord(strings.TrimSpace(first[len("type"):]), "alias"):
		return TypeAliasBlock, nil
	case hasWord(first, "type"):
		return UnionTypeBlock, nil
	case strings.HasPrefix(first, "{-"):
		return MultilineCommentBlock, nil
	case strings.HasPrefix(first, "--"):
		return CommentBlock, nil
	case hasWord(first, "exposing"), hasWord(first, "export"):
		return ExportBlock, nil
	}

	decl, err := findDeclaration(positioned(text))
	if err != nil {
		return UnknownBlock, err
	}
	if len(decl.args) > 0 {
		return FunctionBlock, nil
	}
	return ConstBlock, nil
}

// hasWord reports whether s starts with word followed by a non-identifier
// character or the end of s.
func hasWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	if len(s) == len(word) {
		return true
	}
	return !isIdentPart(rune(s[len(word)])) && s[len(word)] != '.'
}

// declaration locates the parts of a name : Type / name args = body block.
type declaration struct {
	name      string
	signature []ptok // the type tokens after the colon
	args      []string
	body      []ptok // the tokens after =
}

// findDeclaration splits a value or function declaration into its parts.
// The definition head must start its own line or share the signature's line.
func findDeclaration(toks []ptok) (declaration, error) {
	if len(toks) == 0 {
		return declaration{}, fmt.Errorf("Empty declaration")
	}
	head := toks[0]
	if head.Type != TokenIdentifier || keywords[head.Text] {
		return declaration{}, fmt.Errorf("Unknown block type starting with `%s`", head.Text)
	}
	if len(toks) < 2 || toks[1].Type != TokenColon {
		return declaration{}, fmt.Errorf("Expected a type signature like `%s: Type`", head.Text)
	}

	for j := 2; j < len(toks); j++ {
		t := toks[j]
		if !t.Is(head.Text) || !(t.LineStart || t.Line == head.Line) {
			continue
		}
		var args []string
		k := j + 1
		for k < len(toks) && toks[k].Type == TokenIdentifier && !keywords[toks[k].Text] {
			args = append(args, toks[k].Text)
			k++
		}
		if k < len(toks) && toks[k].Type == TokenAssign {
			return declaration{
				name:      head.Text,
				signature: toks[2:j],
				args:      args,
				body:      toks[k+1:],
			}, nil
		}
	}
	return declaration{}, fmt.Errorf("Missing definition for `%s`", head.Text)
}
