package compiler

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseModule(t *testing.T) {
	src := "import \"./other\" exposing ( Person )\n" +
		"\n" +
		"type Animal =\n" +
		"    Dog { name: string }\n" +
		"    | Cat { lives: number }\n" +
		"\n" +
		"person: Person\n" +
		"person = { name: \"a\" }\n"

	m := Parse(src, MainModule)
	if m.Name != MainModule {
		t.Errorf("Name = %q, want %q", m.Name, MainModule)
	}
	if len(m.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", m.Errors)
	}
	if len(m.Body) != 3 {
		t.Fatalf("Body has %d blocks, want 3", len(m.Body))
	}
	kinds := []BlockKind{ImportBlock, UnionTypeBlock, ConstBlock}
	for i, b := range m.Body {
		if b.Kind() != kinds[i] {
			t.Errorf("Body[%d] kind = %v, want %v", i, b.Kind(), kinds[i])
		}
	}
}

func TestParseModuleKeepsGoing(t *testing.T) {
	src := "x: number\n" +
		"x = 1\n" +
		"\n" +
		"hello world\n" +
		"\n" +
		"y: number\n" +
		"y = \"two\"\n" +
		"\n" +
		"z: List number\n" +
		"z = [ 1, 2"

	m := Parse(src, "Other")

	if len(m.Body) != 2 {
		t.Errorf("Body has %d blocks, want 2 (x and y)", len(m.Body))
	}
	if len(m.Errors) != 3 {
		t.Fatalf("Errors has %d entries, want 3: %v", len(m.Errors), m.Errors)
	}

	want := "Error on lines 3 - 4\nExpected a type signature like `hello: Type`:\n```\nhello world\n```"
	if m.Errors[0] != want {
		t.Errorf("Errors[0] = %q, want %q", m.Errors[0], want)
	}
	if !strings.HasPrefix(m.Errors[1], "Error on lines 5 - 7\nExpected `number` but got `string`") {
		t.Errorf("Errors[1] = %q", m.Errors[1])
	}
	if !strings.Contains(m.Errors[2], "Unbalanced brackets") {
		t.Errorf("Errors[2] = %q", m.Errors[2])
	}
}

func TestParseModuleUnknownType(t *testing.T) {
	src := "sayHiToPet: Animal -> string\n" +
		"sayHiToPet pet =\n" +
		"    case pet of\n" +
		"        Dog { name } -> \"hi\"\n" +
		"        Cat { lives } -> \"meow\""

	m := Parse(src, MainModule)

	want := "Error on lines 0 - 5\nType Animal did not exist in the namespace:\n```\n" + src + "\n```"
	if len(m.Errors) != 1 || m.Errors[0] != want {
		t.Errorf("Errors = %q, want [%q]", m.Errors, want)
	}
	if len(m.Body) != 1 {
		t.Errorf("a block failing type checks should stay in Body")
	}
}

func TestImportPaths(t *testing.T) {
	src := "import \"./other\"\n" +
		"import \"../lib/Maybe\" exposing ( Maybe )\n" +
		"import fs"

	m := Parse(src, MainModule)
	got := m.ImportPaths("src/app")
	want := []string{"src/app/other", "src/lib/Maybe"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ImportPaths() = %v, want %v", got, want)
	}
}

func TestFilterBodyForName(t *testing.T) {
	m := Parse("a: number\na = 1\n\nb: number\nb = 2", MainModule)
	got := m.FilterBodyForName("b")
	if len(got) != 1 || BlockName(got[0]) != "b" {
		t.Errorf("FilterBodyForName(b) = %#v", got)
	}
	if got := m.FilterBodyForName("missing"); len(got) != 0 {
		t.Errorf("FilterBodyForName(missing) = %#v", got)
	}
}

func TestDump(t *testing.T) {
	m := Parse("x: List number\nx = [ 1, a + 2 ]", MainModule)
	got := Dump(m.Body)
	for _, want := range []string{
		"Const {",
		`Name: "x"`,
		"Type: List number",
		"Operator: Addition",
		`Body: "2"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Dump() is missing %q:\n%s", want, got)
		}
	}
	if got := Dump(nil); got != "nil" {
		t.Errorf("Dump(nil) = %q, want nil", got)
	}
}

func TestDeclarations(t *testing.T) {
	src := "a: number\na = 1\n\n\nb: number\nb =\n    2\n\nbroken (\n"
	decls := Declarations(src)
	if len(decls) != 2 {
		t.Fatalf("Declarations() returned %d blocks, want 2", len(decls))
	}
	tests := []struct {
		name       string
		start, end int
	}{
		{"a", 0, 2},
		{"b", 4, 7},
	}
	for i, tc := range tests {
		d := decls[i]
		if BlockName(d.Block) != tc.name || d.StartLine != tc.start || d.EndLine != tc.end {
			t.Errorf("decls[%d] = %s %d-%d, want %s %d-%d",
				i, BlockName(d.Block), d.StartLine, d.EndLine, tc.name, tc.start, tc.end)
		}
	}
}

func TestBlockVariants(t *testing.T) {
	tests := []struct {
		block Block
		kind  BlockKind
		name  string
	}{
		{&Function{Name: "f"}, FunctionBlock, "f"},
		{&Const{Name: "c"}, ConstBlock, "c"},
		{&TypeAlias{Type: FixedType{Name: "Person"}}, TypeAliasBlock, "Person"},
		{&UnionType{Type: FixedType{Name: "Animal"}}, UnionTypeBlock, "Animal"},
		{&Import{}, ImportBlock, ""},
		{&Export{Names: []string{"f"}}, ExportBlock, ""},
		{&Comment{Text: "-- hi"}, CommentBlock, ""},
		{&MultilineComment{Text: "{- hi -}"}, MultilineCommentBlock, ""},
	}
	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			if got := tc.block.Kind(); got != tc.kind {
				t.Errorf("Kind() = %v, want %v", got, tc.kind)
			}
			if got := BlockName(tc.block); got != tc.name {
				t.Errorf("BlockName() = %q, want %q", got, tc.name)
			}
		})
	}
}
