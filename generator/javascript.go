package generator

import "github.com/chazu/derw/compiler"

// GenerateJavaScript renders m as plain JavaScript: the TypeScript output
// with every type removed.
func GenerateJavaScript(m *compiler.Module) string {
	g := &scriptGenerator{typed: false}
	return g.module(m)
}
