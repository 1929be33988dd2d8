// Package server implements a language server for Derw over stdio.
package server

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/generator"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "derw-lsp"

var log = commonlog.GetLogger("derw.server")

// LspServer answers editor requests from the parsed state of each open
// document.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analysed content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentReferences:     s.textDocumentReferences,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
		TextDocumentFormatting:     s.textDocumentFormatting,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("Derw LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.open(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.open(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// open analyses text and stores it as the current content of uri.
func (s *LspServer) open(uri protocol.DocumentUri, text string) *document {
	doc := analyze(string(uri), text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return doc.hover(word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.document(uri)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	if locations := doc.definition(uri, word); len(locations) > 0 {
		return locations, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.document(uri)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return doc.references(uri, word), nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.documentSymbols(), nil
}

func (s *LspServer) textDocumentFormatting(ctx *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.format(), nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	diagnostics := doc.diagnostics()
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// ---------------------------------------------------------------------------
// Document analysis
// ---------------------------------------------------------------------------

// symbol is a name declared at the top level of a document. Tags carry the
// union they belong to.
type symbol struct {
	name  string
	block compiler.Block
	union *compiler.UnionType
	tag   *compiler.Tag
	start int
	end   int
}

type document struct {
	text    string
	module  *compiler.Module
	symbols map[string]*symbol
	order   []*symbol
}

// analyze parses text. The module is named after the file so that
// diagnostics match what the compiler reports for it.
func analyze(uri, text string) *document {
	doc := &document{
		text:    text,
		module:  compiler.Parse(text, path.Base(uri)),
		symbols: make(map[string]*symbol),
	}
	for _, d := range compiler.Declarations(text) {
		name := compiler.BlockName(d.Block)
		if name != "" {
			doc.add(&symbol{name: name, block: d.Block, start: d.StartLine, end: d.EndLine})
		}
		if u, ok := d.Block.(*compiler.UnionType); ok {
			for i := range u.Tags {
				tag := &u.Tags[i]
				doc.add(&symbol{name: tag.Name, block: u, union: u, tag: tag, start: d.StartLine, end: d.EndLine})
			}
		}
	}
	return doc
}

func (d *document) add(sym *symbol) {
	if _, exists := d.symbols[sym.name]; exists {
		return
	}
	d.symbols[sym.name] = sym
	d.order = append(d.order, sym)
}

// diagnostics converts module errors into LSP diagnostics. The compiler
// reports each error against a line range in its first line.
func (d *document) diagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for _, msg := range d.module.Errors {
		var start, end int
		if _, err := fmt.Sscanf(msg, "Error on lines %d - %d", &start, &end); err != nil {
			start, end = 0, 0
		}
		message := msg
		if lines := strings.SplitN(msg, "\n", 3); len(lines) >= 2 {
			message = strings.TrimSuffix(lines[1], ":")
		}

		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lineRange(start, end),
			Severity: &severity,
			Source:   &source,
			Message:  message,
		})
	}
	return diagnostics
}

var keywords = []string{
	"alias", "as", "case", "default", "else", "exposing", "if", "import",
	"in", "let", "of", "then", "type",
}

var builtinTypes = []string{"List", "any", "boolean", "number", "string", "void"}

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	seen := make(map[string]bool)

	addItem := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	for _, sym := range d.order {
		kind, detail := sym.describe()
		addItem(sym.name, kind, detail)
	}

	// Names brought in by imports
	for _, imp := range d.module.Imports() {
		for _, module := range imp.Modules {
			for _, name := range module.Exposing {
				addItem(name, protocol.CompletionItemKindVariable, "from "+module.Name)
			}
			if module.Alias != "" {
				addItem(module.Alias, protocol.CompletionItemKindModule, "import "+module.Name)
			}
		}
	}

	for _, name := range builtinTypes {
		addItem(name, protocol.CompletionItemKindClass, "builtin type")
	}
	for _, kw := range keywords {
		addItem(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (sym *symbol) describe() (protocol.CompletionItemKind, string) {
	if sym.tag != nil {
		return protocol.CompletionItemKindEnumMember, "tag of " + sym.union.Type.String()
	}
	switch b := sym.block.(type) {
	case *compiler.Function:
		return protocol.CompletionItemKindFunction, signature(b)
	case *compiler.Const:
		return protocol.CompletionItemKindConstant, b.Type.String()
	case *compiler.TypeAlias:
		return protocol.CompletionItemKindStruct, "type alias"
	case *compiler.UnionType:
		return protocol.CompletionItemKindEnum, "union type"
	}
	return protocol.CompletionItemKindText, ""
}

func signature(f *compiler.Function) string {
	t := compiler.FunctionType{Return: f.ReturnType}
	for _, arg := range f.Args {
		t.Args = append(t.Args, arg.Type)
	}
	return t.String()
}

// hover shows the declaration of a top-level name in canonical form:
// signatures for values, the whole declaration for types.
func (d *document) hover(word string) *protocol.Hover {
	sym, ok := d.symbols[word]
	if !ok {
		return nil
	}

	var b strings.Builder
	b.WriteString("```derw\n")
	switch block := sym.block.(type) {
	case *compiler.Function:
		fmt.Fprintf(&b, "%s: %s", block.Name, signature(block))
	case *compiler.Const:
		fmt.Fprintf(&b, "%s: %s", block.Name, block.Type)
	default:
		b.WriteString(generator.GenerateDerw(&compiler.Module{Body: []compiler.Block{sym.block}}))
	}
	b.WriteString("\n```")

	if sym.tag != nil {
		fmt.Fprintf(&b, "\n\nTag of **%s**", sym.union.Type.Name)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (d *document) definition(uri protocol.DocumentUri, word string) []protocol.Location {
	sym, ok := d.symbols[word]
	if !ok {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: lineRange(sym.start, sym.end)}}
}

// references finds every occurrence of word as a whole identifier outside
// string literals and comments.
func (d *document) references(uri protocol.DocumentUri, word string) []protocol.Location {
	var locations []protocol.Location
	for i, line := range strings.Split(d.text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		inString := false
		for col := 0; col < len(line); col++ {
			ch := line[col]
			if ch == '"' || ch == '`' {
				inString = !inString
				continue
			}
			if inString || !strings.HasPrefix(line[col:], word) {
				continue
			}
			end := col + len(word)
			if (col > 0 && isIdentChar(rune(line[col-1]))) || (end < len(line) && isIdentChar(rune(line[end]))) {
				continue
			}
			locations = append(locations, protocol.Location{
				URI: uri,
				Range: protocol.Range{
					Start: protocol.Position{Line: uint32(i), Character: uint32(col)},
					End:   protocol.Position{Line: uint32(i), Character: uint32(end)},
				},
			})
			col = end - 1
		}
	}
	return locations
}

func (d *document) documentSymbols() []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	for _, sym := range d.order {
		if sym.tag != nil {
			continue
		}
		kind := protocol.SymbolKindConstant
		var children []protocol.DocumentSymbol
		switch b := sym.block.(type) {
		case *compiler.Function:
			kind = protocol.SymbolKindFunction
		case *compiler.TypeAlias:
			kind = protocol.SymbolKindStruct
		case *compiler.UnionType:
			kind = protocol.SymbolKindEnum
			for _, tag := range b.Tags {
				children = append(children, protocol.DocumentSymbol{
					Name:           tag.Name,
					Kind:           protocol.SymbolKindEnumMember,
					Range:          lineRange(sym.start, sym.end),
					SelectionRange: lineRange(sym.start, sym.start),
				})
			}
		}
		_, detail := sym.describe()
		out = append(out, protocol.DocumentSymbol{
			Name:           sym.name,
			Detail:         &detail,
			Kind:           kind,
			Range:          lineRange(sym.start, sym.end),
			SelectionRange: lineRange(sym.start, sym.start),
			Children:       children,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start.Line < out[j].Range.Start.Line })
	return out
}

// format rewrites the whole document in canonical layout. Documents with
// errors are left alone, since blocks that fail to parse would be lost.
func (d *document) format() []protocol.TextEdit {
	if len(d.module.Errors) > 0 {
		return nil
	}
	formatted := generator.GenerateDerw(d.module) + "\n"
	if formatted == d.text {
		return []protocol.TextEdit{}
	}

	lines := strings.Split(d.text, "\n")
	last := lines[len(lines)-1]
	return []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: uint32(len(lines) - 1), Character: uint32(len(last))},
		},
		NewText: formatted,
	}}
}

// lineRange covers lines [start, end) as whole lines.
func lineRange(start, end int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(start), Character: 0},
		End:   protocol.Position{Line: uint32(end), Character: 0},
	}
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
