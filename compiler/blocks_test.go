package compiler

import (
	"strings"
	"testing"
)

func joinBlocks(blocks []UnparsedBlock) string {
	var parts []string
	for _, b := range blocks {
		parts = append(parts, b.Text())
	}
	return strings.Join(parts, "\n")
}

func TestIntoBlocks(t *testing.T) {
	src := "-- comment\n" +
		"main: string\n" +
		"main =\n" +
		"    \"hi\"\n" +
		"\n" +
		"\n" +
		"type alias Person = {\n" +
		"    name: string\n" +
		"}\n" +
		"\n" +
		"{- doc -}\n" +
		"x: number\n" +
		"x = 1\n"

	blocks := IntoBlocks(src)

	expected := []struct {
		kind  BlockKind
		start int
		first string
	}{
		{CommentBlock, 0, "-- comment"},
		{ConstBlock, 1, "main: string"},
		{TypeAliasBlock, 6, "type alias Person = {"},
		{MultilineCommentBlock, 10, "{- doc -}"},
		{ConstBlock, 11, "x: number"},
	}

	if len(blocks) != len(expected) {
		t.Fatalf("IntoBlocks() returned %d blocks, want %d: %#v", len(blocks), len(expected), blocks)
	}
	for i, exp := range expected {
		b := blocks[i]
		if b.Kind != exp.kind {
			t.Errorf("block[%d] kind = %v, want %v", i, b.Kind, exp.kind)
		}
		if b.StartLine != exp.start {
			t.Errorf("block[%d] start = %d, want %d", i, b.StartLine, exp.start)
		}
		if b.Lines[0] != exp.first {
			t.Errorf("block[%d] first line = %q, want %q", i, b.Lines[0], exp.first)
		}
	}

	if got := joinBlocks(blocks); got != src {
		t.Errorf("blocks do not partition the source:\n%q\nwant\n%q", got, src)
	}
}

func TestIntoBlocksSpansBlankLines(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		count int
	}{
		{
			name:  "open brace",
			src:   "x: Person\nx =\n    {\n\nname: \"a\"\n    }",
			count: 1,
		},
		{
			name:  "multiline comment",
			src:   "{- a\n\nb -}\nx: number\nx = 1",
			count: 2,
		},
		{
			name:  "indented after blank",
			src:   "f: number -> number\nf x =\n    let\n\n        y: number\n        y = 1\n    in\n        y",
			count: 1,
		},
		{
			name:  "comment run",
			src:   "-- one\n-- two\nx: number\nx = 1",
			count: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blocks := IntoBlocks(tc.src)
			if len(blocks) != tc.count {
				t.Errorf("got %d blocks, want %d: %#v", len(blocks), tc.count, blocks)
			}
			if got := joinBlocks(blocks); got != tc.src {
				t.Errorf("partition broken: %q", got)
			}
		})
	}
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		src  string
		want BlockKind
	}{
		{`import "./a"`, ImportBlock},
		{"import fs", ImportBlock},
		{"type alias A = {\n    a: number\n}", TypeAliasBlock},
		{"type A = B | C", UnionTypeBlock},
		{"{- x -}", MultilineCommentBlock},
		{"-- x", CommentBlock},
		{"exposing ( a )", ExportBlock},
		{"x: number\nx = 1", ConstBlock},
		{"x: number x = 1", ConstBlock},
		{"f: number -> number\nf x =\n    x", FunctionBlock},
		{"typeName: string\ntypeName = \"a\"", ConstBlock},
		{"important: boolean\nimportant = true", ConstBlock},
	}

	for _, tc := range tests {
		got, err := ClassifyBlock(tc.src)
		if err != nil {
			t.Errorf("ClassifyBlock(%q) error: %v", tc.src, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ClassifyBlock(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestClassifyBlockErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"hello world", "Expected a type signature like `hello: Type`"},
		{"x: number", "Missing definition for `x`"},
		{"= 5", "Unknown block type starting with `=`"},
		{"   ", "Empty block"},
	}

	for _, tc := range tests {
		kind, err := ClassifyBlock(tc.src)
		if err == nil {
			t.Errorf("ClassifyBlock(%q) = %v, want error", tc.src, kind)
			continue
		}
		if err.Error() != tc.want {
			t.Errorf("ClassifyBlock(%q) error = %q, want %q", tc.src, err.Error(), tc.want)
		}
	}
}

func TestFormatError(t *testing.T) {
	b := UnparsedBlock{
		Kind:      ConstBlock,
		StartLine: 3,
		Lines:     []string{"x: Animal", "x =", "    1", "", ""},
	}
	want := "Error on lines 3 - 6\nbad thing:\n```\nx: Animal\nx =\n    1\n```"
	if got := FormatError(b, "bad thing"); got != want {
		t.Errorf("FormatError() = %q, want %q", got, want)
	}
}
