package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// errorPreviewMaxChars bounds the "unexpected ..." preview in a SyntaxError message.
const errorPreviewMaxChars = 50

// declarationNodeTypes are the node types counted when deciding whether a
// parser recovered after an ERROR node (symbolsAfterError > 0).
var declarationNodeTypes = map[string]bool{
	"function_declaration":   true,
	"method_declaration":     true,
	"method_definition":      true,
	"class_declaration":      true,
	"class_definition":       true,
	"interface_declaration":  true,
	"type_declaration":       true,
	"type_alias_declaration": true,
	"var_declaration":        true,
	"const_declaration":      true,
	"lexical_declaration":    true,
	"function_definition":    true,
}

// Edit describes a single source mutation for incremental reparse, mirroring
// tree-sitter's InputEdit.
type Edit struct {
	StartIndex  uint32
	OldEndIndex uint32
	NewEndIndex uint32
	StartPos    Point
	OldEndPos   Point
	NewEndPos   Point
}

// SyntaxError describes a single ERROR node recovered from a parse tree.
type SyntaxError struct {
	Message           string
	StartLine         int // 1-based
	StartColumn       int // 0-based
	EndLine           int
	EndColumn         int
	Recovered         bool
	Strategy          string // "skip_statement" | "none"
	SymbolsAfterError int
}

// Parser wraps tree-sitter for AST parsing. It keeps the last tree produced
// for a given source so callers can request an incremental reparse.
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a new parser with default language registry
func NewParser() *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: DefaultRegistry(),
	}
}

// NewParserWithRegistry creates a new parser with a custom language registry
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source code and returns the AST.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	return p.parse(ctx, source, language, nil)
}

// Reparse applies edits to oldTree's underlying tree-sitter tree and
// reparses newSource, using the mutated tree as a hint for incremental
// parsing (§4.B). oldTree must have been produced by this Parser.
func (p *Parser) Reparse(ctx context.Context, oldTree *Tree, newSource []byte, edits []Edit) (*Tree, error) {
	if oldTree == nil || oldTree.tsTree == nil {
		return p.Parse(ctx, newSource, oldTree.langName())
	}
	for _, e := range edits {
		oldTree.tsTree.Edit(sitter.EditInput{
			StartIndex:  e.StartIndex,
			OldEndIndex: e.OldEndIndex,
			NewEndIndex: e.NewEndIndex,
			StartPoint:  sitter.Point{Row: e.StartPos.Row, Column: e.StartPos.Column},
			OldEndPoint: sitter.Point{Row: e.OldEndPos.Row, Column: e.OldEndPos.Column},
			NewEndPoint: sitter.Point{Row: e.NewEndPos.Row, Column: e.NewEndPos.Column},
		})
	}
	return p.parse(ctx, newSource, oldTree.Language, oldTree.tsTree)
}

func (p *Parser) parse(ctx context.Context, source []byte, language string, old *sitter.Tree) (*Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.parser.SetLanguage(tsLang)

	// Buffer sizing policy (§4.B) requires at least 64 KiB, otherwise 2x
	// source length: ParseCtx takes the full byte slice directly rather
	// than a fixed streaming buffer, so both bounds are satisfied by
	// construction for any source we hand it.
	tsTree, err := p.parser.ParseCtx(ctx, old, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}

	root := convertNode(tsTree.RootNode(), source)

	return &Tree{
		Root:     root,
		Source:   source,
		Language: language,
		tsTree:   tsTree,
	}, nil
}

// Close releases parser resources
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// ExtractErrors walks tree for ERROR nodes and builds a SyntaxError per node,
// determining recovery by counting declaration-level nodes that start after
// the error ends (§4.B).
func ExtractErrors(tree *Tree, source []byte) []SyntaxError {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var errNodes []*Node
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "ERROR" {
			errNodes = append(errNodes, n)
		}
		return true
	})

	var allDecls []*Node
	tree.Root.Walk(func(n *Node) bool {
		if declarationNodeTypes[n.Type] {
			allDecls = append(allDecls, n)
		}
		return true
	})

	errors := make([]SyntaxError, 0, len(errNodes))
	for _, n := range errNodes {
		symbolsAfter := 0
		for _, d := range allDecls {
			if d.StartByte > n.EndByte {
				symbolsAfter++
			}
		}
		recovered := symbolsAfter > 0
		strategy := "none"
		if recovered {
			strategy = "skip_statement"
		}

		preview := n.GetContent(source)
		if len(preview) > errorPreviewMaxChars {
			preview = preview[:errorPreviewMaxChars]
		}

		errors = append(errors, SyntaxError{
			Message: fmt.Sprintf("Syntax error at line %d, column %d: unexpected %q",
				int(n.StartPoint.Row)+1, n.StartPoint.Column, preview),
			StartLine:         int(n.StartPoint.Row) + 1,
			StartColumn:       int(n.StartPoint.Column),
			EndLine:           int(n.EndPoint.Row) + 1,
			EndColumn:         int(n.EndPoint.Column),
			Recovered:         recovered,
			Strategy:          strategy,
			SymbolsAfterError: symbolsAfter,
		})
	}

	return errors
}

// convertNode converts a tree-sitter node to our Node type
func convertNode(tsNode *sitter.Node, source []byte) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	// Convert children
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		child := tsNode.Child(int(i))
		if child != nil {
			node.Children = append(node.Children, convertNode(child, source))
		}
	}

	return node
}

// GetContent returns the source content for a node
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType finds the first child with the given type
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// FindChildrenByType finds all children with the given type (non-recursive)
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Type == nodeType {
			result = append(result, child)
		}
	}
	return result
}

// FindAllByType recursively finds all nodes with the given type
func (n *Node) FindAllByType(nodeType string) []*Node {
	var result []*Node

	if n.Type == nodeType {
		result = append(result, n)
	}

	for _, child := range n.Children {
		result = append(result, child.FindAllByType(nodeType)...)
	}

	return result
}

// Walk traverses the tree depth-first and calls fn for each node
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
