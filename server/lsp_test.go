package server

import (
	"reflect"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const testURI = protocol.DocumentUri("file:///project/src/Main.derw")

const testSource = "type Shape =\n" +
	"    Circle { r: number }\n" +
	"    | Square\n" +
	"\n" +
	"double: number -> number\n" +
	"double x =\n" +
	"    x * 2\n" +
	"\n" +
	"total: number\n" +
	"total =\n" +
	"    double 4\n"

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "total = double", protocol.Position{Line: 0, Character: 14}, "double"},
		{"at start", "dou", protocol.Position{Line: 0, Character: 3}, "dou"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nSha", protocol.Position{Line: 2, Character: 3}, "Sha"},
		{"after field access", "person.na", protocol.Position{Line: 0, Character: 9}, "na"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractPrefix(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractPrefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"at end", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nShape", protocol.Position{Line: 1, Character: 3}, "Shape"},
		{"underscore", "my_var", protocol.Position{Line: 0, Character: 3}, "my_var"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractWord(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractWord = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}
}

// ---------------------------------------------------------------------------
// Document analysis
// ---------------------------------------------------------------------------

func TestAnalyzeSymbols(t *testing.T) {
	doc := analyze(string(testURI), testSource)

	var names []string
	for _, sym := range doc.order {
		names = append(names, sym.name)
	}
	want := []string{"Shape", "Circle", "Square", "double", "total"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("symbols = %v, want %v", names, want)
	}

	if sym := doc.symbols["Square"]; sym.tag == nil || sym.union.Type.Name != "Shape" {
		t.Errorf("Square should be a tag of Shape: %+v", sym)
	}
}

func TestDiagnostics(t *testing.T) {
	doc := analyze(string(testURI), testSource)
	if got := doc.diagnostics(); len(got) != 0 {
		t.Errorf("clean document has diagnostics: %+v", got)
	}

	doc = analyze(string(testURI), "ok: number\nok =\n    1\n\nvalue: number\nvalue = \"hello\"\n")
	diagnostics := doc.diagnostics()
	if len(diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v, want one", diagnostics)
	}
	d := diagnostics[0]
	if d.Message != "Expected `number` but got `string`" {
		t.Errorf("Message = %q", d.Message)
	}
	if d.Range.Start.Line != 4 || d.Range.End.Line != 6 {
		t.Errorf("Range = %+v, want lines 4 to 6", d.Range)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("diagnostic should be an error")
	}
}

func TestComplete(t *testing.T) {
	doc := analyze(string(testURI), testSource)

	tests := []struct {
		prefix string
		label  string
		kind   protocol.CompletionItemKind
	}{
		{"dou", "double", protocol.CompletionItemKindFunction},
		{"to", "total", protocol.CompletionItemKindConstant},
		{"Sq", "Square", protocol.CompletionItemKindEnumMember},
		{"sha", "Shape", protocol.CompletionItemKindEnum},
		{"num", "number", protocol.CompletionItemKindClass},
		{"le", "let", protocol.CompletionItemKindKeyword},
	}

	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			var found *protocol.CompletionItem
			for _, item := range doc.complete(tc.prefix) {
				if item.Label == tc.label {
					found = &item
					break
				}
			}
			if found == nil {
				t.Fatalf("complete(%q) is missing %q", tc.prefix, tc.label)
			}
			if found.Kind == nil || *found.Kind != tc.kind {
				t.Errorf("%s kind = %v, want %v", tc.label, found.Kind, tc.kind)
			}
		})
	}

	items := doc.complete("dou")
	if len(items) != 1 || *items[0].Detail != "number -> number" {
		t.Errorf("complete(dou) = %+v", items)
	}
}

func TestCompleteImportedNames(t *testing.T) {
	doc := analyze(string(testURI), "import \"./other\" as Other exposing ( helper )\n")
	labels := map[string]bool{}
	for _, item := range doc.complete("h") {
		labels[item.Label] = true
	}
	for _, item := range doc.complete("O") {
		labels[item.Label] = true
	}
	if !labels["helper"] || !labels["Other"] {
		t.Errorf("imported names missing from completion: %v", labels)
	}
}

func TestHover(t *testing.T) {
	doc := analyze(string(testURI), testSource)

	tests := []struct {
		word string
		want string
	}{
		{"double", "```derw\ndouble: number -> number\n```"},
		{"total", "```derw\ntotal: number\n```"},
		{"Shape", "```derw\ntype Shape =\n    Circle { r: number }\n    | Square\n```"},
		{"Circle", "```derw\ntype Shape =\n    Circle { r: number }\n    | Square\n```\n\nTag of **Shape**"},
	}

	for _, tc := range tests {
		t.Run(tc.word, func(t *testing.T) {
			hover := doc.hover(tc.word)
			if hover == nil {
				t.Fatal("hover returned nil")
			}
			mc, ok := hover.Contents.(protocol.MarkupContent)
			if !ok {
				t.Fatal("hover contents should be MarkupContent")
			}
			if mc.Kind != protocol.MarkupKindMarkdown {
				t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
			}
			if mc.Value != tc.want {
				t.Errorf("hover = %q, want %q", mc.Value, tc.want)
			}
		})
	}

	if hover := doc.hover("nothingHere"); hover != nil {
		t.Errorf("hover for unknown word = %+v, want nil", hover)
	}
}

func TestDefinition(t *testing.T) {
	doc := analyze(string(testURI), testSource)

	locations := doc.definition(testURI, "double")
	if len(locations) != 1 {
		t.Fatalf("definition(double) = %+v", locations)
	}
	loc := locations[0]
	if loc.URI != testURI || loc.Range.Start.Line != 4 || loc.Range.End.Line != 7 {
		t.Errorf("definition(double) = %+v, want lines 4 to 7", loc)
	}

	if got := doc.definition(testURI, "Square"); len(got) != 1 || got[0].Range.Start.Line != 0 {
		t.Errorf("definition(Square) = %+v, want the union declaration", got)
	}
	if got := doc.definition(testURI, "missing"); len(got) != 0 {
		t.Errorf("definition(missing) = %+v", got)
	}
}

func TestReferences(t *testing.T) {
	src := testSource + "\n-- double in a comment\nlabel: string\nlabel =\n    \"double\"\n"
	doc := analyze(string(testURI), src)

	var got []protocol.Position
	for _, loc := range doc.references(testURI, "double") {
		got = append(got, loc.Range.Start)
	}
	want := []protocol.Position{
		{Line: 4, Character: 0},
		{Line: 5, Character: 0},
		{Line: 10, Character: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("references(double) = %v, want %v", got, want)
	}

	if refs := doc.references(testURI, "x"); len(refs) != 2 {
		t.Errorf("references(x) found %d, want 2", len(refs))
	}
}

func TestDocumentSymbols(t *testing.T) {
	doc := analyze(string(testURI), testSource)
	symbols := doc.documentSymbols()

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	if !reflect.DeepEqual(names, []string{"Shape", "double", "total"}) {
		t.Errorf("document symbols = %v", names)
	}
	if len(symbols[0].Children) != 2 || symbols[0].Kind != protocol.SymbolKindEnum {
		t.Errorf("Shape symbol = %+v", symbols[0])
	}
	if symbols[1].Kind != protocol.SymbolKindFunction {
		t.Errorf("double kind = %v, want function", symbols[1].Kind)
	}
}

func TestFormat(t *testing.T) {
	t.Run("canonical document", func(t *testing.T) {
		edits := analyze(string(testURI), testSource).format()
		if edits == nil || len(edits) != 0 {
			t.Errorf("format() = %+v, want no edits", edits)
		}
	})

	t.Run("rewrites layout", func(t *testing.T) {
		edits := analyze(string(testURI), "x: number\nx = 1").format()
		if len(edits) != 1 {
			t.Fatalf("format() = %+v, want one edit", edits)
		}
		if edits[0].NewText != "x: number\nx =\n    1\n" {
			t.Errorf("NewText = %q", edits[0].NewText)
		}
		end := edits[0].Range.End
		if end.Line != 1 || end.Character != 5 {
			t.Errorf("edit ends at %+v, want line 1 character 5", end)
		}
	})

	t.Run("documents with errors are left alone", func(t *testing.T) {
		if edits := analyze(string(testURI), "x: number\nx = \"a\"\n").format(); edits != nil {
			t.Errorf("format() = %+v, want nil", edits)
		}
	})
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestDocumentStore(t *testing.T) {
	lsp := NewLSP()

	lsp.open(testURI, "x: number\nx = 1")
	doc := lsp.document(testURI)
	if doc == nil {
		t.Fatal("document should be stored after open")
	}
	if !strings.HasPrefix(doc.text, "x: number") {
		t.Errorf("document text = %q", doc.text)
	}

	lsp.open(testURI, "y: number\ny = 2")
	if _, ok := lsp.document(testURI).symbols["y"]; !ok {
		t.Error("reopening should replace the analysis")
	}

	lsp.mu.Lock()
	delete(lsp.docs, string(testURI))
	lsp.mu.Unlock()

	if lsp.document(testURI) != nil {
		t.Error("document should be removed after close")
	}
}
