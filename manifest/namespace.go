package manifest

import "strings"

// ToPascalCase converts a string to PascalCase.
// "my-app" -> "MyApp", "models" -> "Models", "myApp" -> "MyApp"
func ToPascalCase(s string) string {
	var words []string
	current := ""
	for i, r := range s {
		if r == '-' || r == '_' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				words = append(words, current)
				current = ""
			}
		}
		current += string(r)
	}
	if current != "" {
		words = append(words, current)
	}

	var result string
	for _, w := range words {
		if w == "" {
			continue
		}
		result += strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return result
}

// elmCoreModules lists the modules every Elm program can already see. A
// Derw file compiled to Elm under one of these names shadows the core
// module.
var elmCoreModules = map[string]bool{
	"Array":    true,
	"Basics":   true,
	"Bitwise":  true,
	"Char":     true,
	"Debug":    true,
	"Dict":     true,
	"List":     true,
	"Maybe":    true,
	"Platform": true,
	"Process":  true,
	"Result":   true,
	"Set":      true,
	"String":   true,
	"Task":     true,
	"Tuple":    true,
}

// IsReservedModule reports whether name, once converted to an Elm module
// name, collides with an Elm core module. Only the root segment is
// checked: "Utils.List" is fine because the root is "Utils".
func IsReservedModule(name string) bool {
	root := name
	if idx := strings.Index(name, "."); idx >= 0 {
		root = name[:idx]
	}
	return elmCoreModules[ToPascalCase(root)]
}
