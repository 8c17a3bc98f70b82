// Package extract walks a parsed tree and emits Entity records into the
// shared arena, generalizing the teacher's
// internal/parser.UnifiedExtractor traversal-and-emit pattern from
// LCI's symbol-table extraction to entity-arena extraction.
package extract

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sibyllinesoft/valknut/internal/ast"
	"github.com/sibyllinesoft/valknut/internal/entity"
)

// FunctionLike carries the entity plus the matched function node and its
// name, so later detectors (complexity, clones) can start from the node
// without re-running the query.
type FunctionLike struct {
	ID   entity.ID
	Node *tree_sitter.Node
	Name string
}

// Result is one file's extraction output.
type Result struct {
	FileEntity entity.ID
	Functions  []FunctionLike
}

// Extract runs the language adapter's entity query over tree and inserts
// one arena Entity per function/method/class/type match, linked as a
// child of the file entity. Entities are inserted in source-position
// order within the file so sibling order is deterministic.
func Extract(arena *entity.Arena, adapter *ast.Adapter, tree *tree_sitter.Tree, content []byte, path string) (Result, error) {
	fileID := arena.Insert(entity.KindFile, path, path, spanOf(tree.RootNode()), entity.Invalid)
	result := Result{FileEntity: fileID}

	query, err := tree_sitter.NewQuery(adapter.TSLanguage(), adapter.EntityQuery)
	if err != nil {
		return result, err
	}
	defer query.Close()

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	captureNames := query.CaptureNames()
	matches := cursor.Matches(query, tree.RootNode(), content)

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var nameNode, bodyNode *tree_sitter.Node
		var kindTag string
		for _, c := range match.Captures {
			name := captureNames[c.Index]
			node := c.Node
			switch {
			case strings.HasSuffix(name, ".name"):
				nameNode = &node
			case name == "function" || name == "method" || name == "class" || name == "type":
				kindTag = name
				bodyNode = &node
			}
		}
		if bodyNode == nil {
			continue
		}

		kind := kindFromTag(kindTag)
		name := "anonymous"
		if nameNode != nil {
			name = string(content[nameNode.StartByte():nameNode.EndByte()])
		}

		id := arena.Insert(kind, name, path, spanOf(*bodyNode), fileID)
		arena.AddChild(fileID, id)

		if kind == entity.KindFunction || kind == entity.KindMethod {
			result.Functions = append(result.Functions, FunctionLike{ID: id, Node: bodyNode, Name: name})
		}
	}

	return result, nil
}

func kindFromTag(tag string) entity.Kind {
	switch tag {
	case "function":
		return entity.KindFunction
	case "method":
		return entity.KindMethod
	case "class":
		return entity.KindClass
	case "type":
		return entity.KindClass
	default:
		return entity.KindBlock
	}
}

func spanOf(n tree_sitter.Node) entity.Span {
	start, end := n.StartPosition(), n.EndPosition()
	return entity.Span{
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartLine: int(start.Row) + 1,
		EndLine:   int(end.Row) + 1,
	}
}

// FunctionSourceLen returns a cheap proxy for function size in source
// lines, used by the complexity extractor's LOC field.
func FunctionSourceLen(n *tree_sitter.Node) int {
	start, end := n.StartPosition(), n.EndPosition()
	return int(end.Row-start.Row) + 1
}

// NodeText slices content to the byte range covered by n.
func NodeText(n *tree_sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

// FormatSpan renders a span as "line:startLine-endLine" for diagnostics.
func FormatSpan(s entity.Span) string {
	return "line:" + strconv.Itoa(s.StartLine) + "-" + strconv.Itoa(s.EndLine)
}
