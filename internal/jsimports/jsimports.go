// Package jsimports extracts CommonJS require() dependency edges from
// JavaScript source, feeding the dependency-graph detector's edge list for
// files the tree-sitter query pass doesn't resolve import targets for.
// Grounded on the teacher's internal/analysis.JavaScriptGoFastAnalyzer,
// which uses go-fAST instead of tree-sitter for JS-specific parsing;
// go-fAST does not support ES6 modules, so ES6 import/export edges still
// come from the tree-sitter pass and this extractor only adds require()
// edges on top.
package jsimports

import (
	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"
)

// Extract returns the string literal arguments of every top-level-reachable
// require(...) call in content. A parse failure (e.g. ES6 syntax go-fAST
// doesn't support) yields an empty, non-error result: this extractor is a
// supplementary signal, not a required one.
func Extract(content string) []string {
	program, err := parser.ParseFile(content)
	if err != nil {
		return nil
	}

	var requires []string
	var visitExpr func(e ast.Expr)
	var visitStmt func(s ast.Stmt)

	visitExpr = func(e ast.Expr) {
		switch v := e.(type) {
		case *ast.CallExpression:
			if v.Callee != nil && v.Callee.Expr != nil {
				if ident, ok := v.Callee.Expr.(*ast.Identifier); ok && ident.Name == "require" {
					if len(v.ArgumentList) > 0 && v.ArgumentList[0].Expr != nil {
						if lit, ok := v.ArgumentList[0].Expr.(*ast.StringLiteral); ok {
							requires = append(requires, lit.Value)
						}
					}
				}
			}
			for _, arg := range v.ArgumentList {
				if arg.Expr != nil {
					visitExpr(arg.Expr)
				}
			}
		}
	}

	visitStmt = func(s ast.Stmt) {
		switch v := s.(type) {
		case *ast.ExpressionStatement:
			if v.Expression != nil && v.Expression.Expr != nil {
				visitExpr(v.Expression.Expr)
			}
		case *ast.VariableDeclaration:
			for _, decl := range v.List {
				if decl.Initializer != nil && decl.Initializer.Expr != nil {
					visitExpr(decl.Initializer.Expr)
				}
			}
		case *ast.BlockStatement:
			for _, inner := range v.List {
				if inner.Stmt != nil {
					visitStmt(inner.Stmt)
				}
			}
		}
	}

	for _, stmt := range program.Body {
		visitStmt(stmt.Stmt)
	}
	return requires
}
