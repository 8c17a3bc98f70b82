// Package ast wraps tree-sitter grammars behind a small per-language
// capability interface and a content-addressed cache of parsed trees,
// grounded on the teacher's internal/parser.TreeSitterParser (lazy
// per-language setup) and internal/cache.MetricsCache (sync.Map-keyed
// cache with striped locking).
package ast

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
)

// Adapter binds one language's tree-sitter grammar plus the queries used
// to locate entities of interest (functions, methods, classes and types).
type Adapter struct {
	Language    string
	tsLanguage  *tree_sitter.Language
	EntityQuery string
}

// registry is built once at package init; lookups are by language name as
// returned by discovery.LanguageFromExtension.
var registry = map[string]*Adapter{
	"go":         {Language: "go", tsLanguage: tree_sitter.NewLanguage(tree_sitter_go.Language()), EntityQuery: goQuery},
	"python":     {Language: "python", tsLanguage: tree_sitter.NewLanguage(tree_sitter_python.Language()), EntityQuery: pythonQuery},
	"javascript": {Language: "javascript", tsLanguage: tree_sitter.NewLanguage(tree_sitter_javascript.Language()), EntityQuery: javascriptQuery},
	"typescript": {Language: "typescript", tsLanguage: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), EntityQuery: javascriptQuery},
	"java":       {Language: "java", tsLanguage: tree_sitter.NewLanguage(tree_sitter_java.Language()), EntityQuery: javaQuery},
	"csharp":     {Language: "csharp", tsLanguage: tree_sitter.NewLanguage(tree_sitter_csharp.Language()), EntityQuery: csharpQuery},
	"cpp":        {Language: "cpp", tsLanguage: tree_sitter.NewLanguage(tree_sitter_cpp.Language()), EntityQuery: cppQuery},
	"php":        {Language: "php", tsLanguage: tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()), EntityQuery: phpQuery},
	"rust":       {Language: "rust", tsLanguage: tree_sitter.NewLanguage(tree_sitter_rust.Language()), EntityQuery: rustQuery},
	"zig":        {Language: "zig", tsLanguage: tree_sitter.NewLanguage(tree_sitter_zig.Language()), EntityQuery: zigQuery},
}

// ForLanguage returns the registered Adapter, or nil if no grammar is
// registered for the given language name.
func ForLanguage(language string) *Adapter {
	return registry[language]
}

// TSLanguage exposes the underlying tree_sitter.Language so callers (the
// entity extractor) can compile their own queries against it.
func (a *Adapter) TSLanguage() *tree_sitter.Language {
	return a.tsLanguage
}

// NewParser returns a fresh tree_sitter.Parser configured for this
// adapter's language. Parsers are not safe for concurrent use, so callers
// obtain one per goroutine rather than sharing.
func (a *Adapter) NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(a.tsLanguage); err != nil {
		return nil, err
	}
	return parser, nil
}

// Parse parses content and returns the resulting tree. Caller owns the
// returned tree and must call tree.Close() (or route it through the
// Cache, which manages that lifecycle via reference counting).
func (a *Adapter) Parse(content []byte) (*tree_sitter.Tree, error) {
	parser, err := a.NewParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return parser.Parse(content, nil), nil
}

const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
    receiver: (parameter_list)
    name: (field_identifier) @method.name) @method
(type_declaration (type_spec name: (type_identifier) @type.name)) @type
(func_literal) @function
`

const pythonQuery = `
(function_definition name: (identifier) @function.name) @function
(class_definition name: (identifier) @class.name) @class
`

const javascriptQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_definition name: (property_identifier) @method.name) @method
(class_declaration name: (_) @class.name) @class
(arrow_function) @function
`

const javaQuery = `
(method_declaration name: (identifier) @method.name) @method
(class_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @class.name) @class
`

const csharpQuery = `
(method_declaration name: (identifier) @method.name) @method
(class_declaration name: (identifier) @class.name) @class
(interface_declaration name: (identifier) @class.name) @class
`

const cppQuery = `
(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
(class_specifier name: (type_identifier) @class.name) @class
(struct_specifier name: (type_identifier) @class.name) @class
`

const phpQuery = `
(function_definition name: (name) @function.name) @function
(method_declaration name: (name) @method.name) @method
(class_declaration name: (name) @class.name) @class
`

const rustQuery = `
(function_item name: (identifier) @function.name) @function
(impl_item type: (type_identifier) @class.name) @class
(struct_item name: (type_identifier) @class.name) @class
`

const zigQuery = `
(FnProto name: (IDENTIFIER) @function.name) @function
`
