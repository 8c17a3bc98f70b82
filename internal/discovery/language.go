package discovery

import "strings"

// LanguageFromExtension maps a file extension (including the leading dot)
// to the language name used to select an AST adapter. Returns "" for
// extensions with no registered adapter — such files are still discovered
// but skipped at the parse stage.
func LanguageFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".cs":
		return "csharp"
	case ".cpp", ".cc", ".cxx", ".c", ".h", ".hpp":
		return "cpp"
	case ".php":
		return "php"
	case ".rs":
		return "rust"
	case ".zig":
		return "zig"
	default:
		return ""
	}
}
