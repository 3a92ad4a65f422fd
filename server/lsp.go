package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/microc/compiler"
)

const lspName = "microc-lsp"

// keywords are offered by completion in every position.
var keywords = []string{"bool", "else", "false", "if", "int", "read", "true", "void", "while", "write"}

// LspServer provides diagnostics and navigation for MicroC sources.
type LspServer struct {
	worker *Worker
	opts   compiler.Options

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server checking documents with opts.
func NewLSP(opts compiler.Options) *LspServer {
	s := &LspServer{
		worker:  NewWorker(1),
		opts:    opts,
		docs:    make(map[string]string),
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

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
		TextDocumentFormatting: s.textDocumentFormatting,
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
	log.Info("MicroC LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.DocumentFormattingProvider = true

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
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
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

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix, int(params.Position.Line)+1), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(text, word, int(params.Position.Line)+1), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	loc := definition(uri, text, word, int(params.Position.Line)+1)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return referenceLocations(uri, text, word), nil
}

func (s *LspServer) textDocumentFormatting(ctx *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return formatEdits(text)
}

// --- Source-backed logic ---

// parseLenient parses text, keeping whatever declarations survive syntax
// errors.
func parseLenient(text string) *compiler.Program {
	return compiler.NewParser(text).ParseProgram()
}

func complete(text, prefix string, line int) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)

	syms := collectSymbols(parseLenient(text))
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Name < syms[j].Name })
	for _, sym := range syms {
		if seen[sym.Name] || !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		best := lookupSymbol(syms, sym.Name, line)
		if best == nil {
			continue // local of another function
		}
		seen[sym.Name] = true
		kind := protocol.CompletionItemKindVariable
		if best.Kind == "function" {
			kind = protocol.CompletionItemKindFunction
		}
		detail := best.Detail
		name := best.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) && !seen[kw] {
			kind := protocol.CompletionItemKindKeyword
			label := kw
			items = append(items, protocol.CompletionItem{
				Label:      label,
				Kind:       &kind,
				InsertText: &label,
			})
		}
	}

	return items
}

func hover(text, word string, line int) *protocol.Hover {
	sym := lookupSymbol(collectSymbols(parseLenient(text)), word, line)
	if sym == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```c\n%s\n```\n\n%s", sym.Detail, sym.Kind)
	if sym.Scope != nil {
		fmt.Fprintf(&b, " of `%s`", sym.Scope.Name)
	}
	r := toRange(sym.Decl)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

func definition(uri protocol.DocumentUri, text, word string, line int) *protocol.Location {
	sym := lookupSymbol(collectSymbols(parseLenient(text)), word, line)
	if sym == nil {
		return nil
	}
	return &protocol.Location{URI: uri, Range: toRange(sym.Decl)}
}

func referenceLocations(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locs []protocol.Location
	for _, sp := range references(parseLenient(text), word) {
		locs = append(locs, protocol.Location{URI: uri, Range: toRange(sp)})
	}
	return locs
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(context.Background(), func(context.Context) (any, error) {
		return diagnose(text, s.opts), nil
	})
	if err != nil {
		log.Errorf("diagnosing %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// diagnose parses and checks text. Link errors are reported only when the
// document otherwise builds.
func diagnose(text string, opts compiler.Options) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	prog, err := compiler.Parse(text)
	if err == nil {
		_, err = compiler.Build(prog, opts)
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range Diagnose(err) {
		pos := protocol.Position{}
		if d.Line > 0 {
			pos = protocol.Position{Line: uint32(d.Line - 1), Character: uint32(d.Column - 1)}
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diags
}

// formatEdits returns a single edit replacing the whole document with its
// canonical layout, or nothing when it is already formatted. Documents that
// do not parse are left alone.
func formatEdits(text string) ([]protocol.TextEdit, error) {
	formatted, err := compiler.Format(text)
	if err != nil || formatted == text {
		return nil, nil
	}
	last := strings.LastIndexByte(text, '\n')
	end := protocol.Position{
		Line:      uint32(strings.Count(text, "\n")),
		Character: uint32(len(text) - last - 1),
	}
	return []protocol.TextEdit{{
		Range:   protocol.Range{End: end},
		NewText: formatted,
	}}, nil
}

func toRange(sp compiler.Span) protocol.Range {
	return protocol.Range{Start: toPosition(sp.Start), End: toPosition(sp.End)}
}

func toPosition(p compiler.Position) protocol.Position {
	if p.Line == 0 {
		return protocol.Position{}
	}
	return protocol.Position{Line: uint32(p.Line - 1), Character: uint32(p.Column - 1)}
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for
// completion.
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

	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
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
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	return line[start:end]
}

func isIdentChar(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
