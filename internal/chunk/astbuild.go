package chunk

import (
	"strings"

	"github.com/codeindex-dev/codeindex/internal/astdoc"
)

// astDocParserVersion is recorded on every Document so a later reindex can
// tell whether a cached call graph was built by a different tree-sitter
// grammar pin and should be rebuilt rather than trusted as-is.
const astDocParserVersion = "go-tree-sitter-20240827"

// BuildDocument walks a parsed tree and populates an astdoc.Builder with
// every symbol category, import/export, comment, and call the tree
// contains, then finalizes it. It is the bridge between the syntax parser
// and the AST document builder: the chunker calls this once per file and
// uses the result to enrich the chunks it creates from the same tree.
func BuildDocument(tree *Tree, source []byte, path string, parserVersion string) *astdoc.Document {
	b := astdoc.NewBuilder(path, tree.Language, len(source))

	ex := &docExtraction{builder: b, source: source, language: tree.Language}
	ex.walk(tree.Root, nil, "")
	ex.collectComments(tree.Root)

	lineCount := strings.Count(string(source), "\n") + 1
	return b.Build(lineCount, parserVersion)
}

type docExtraction struct {
	builder  *astdoc.Builder
	source   []byte
	language string
}

var astDeclNodeTypesByLanguage = map[string]map[string]string{
	"go": {
		"function_declaration": "function",
		"method_declaration":   "method",
		"type_declaration":     "type",
		"const_declaration":    "constant",
	},
	"typescript": {
		"function_declaration":  "function",
		"method_definition":     "method",
		"class_declaration":     "class",
		"interface_declaration": "interface",
		"enum_declaration":      "enum",
	},
	"tsx": {
		"function_declaration":  "function",
		"method_definition":     "method",
		"class_declaration":     "class",
		"interface_declaration": "interface",
		"enum_declaration":      "enum",
	},
	"javascript": {
		"function_declaration": "function",
		"method_definition":    "method",
		"class_declaration":    "class",
	},
	"jsx": {
		"function_declaration": "function",
		"method_definition":    "method",
		"class_declaration":    "class",
	},
	"python": {
		"function_definition": "function",
		"class_definition":    "class",
	},
}

// walk recursively visits node, tracking the nearest enclosing function key
// (for call attribution) and class name (for method/context association).
func (e *docExtraction) walk(n *Node, enclosingFuncKey *string, className string) {
	if n == nil {
		return
	}

	kinds := astDeclNodeTypesByLanguage[e.language]
	currentFuncKey := enclosingFuncKey
	currentClass := className

	if kind, ok := kinds[n.Type]; ok {
		name := e.extractName(n)
		if name != "" {
			// Go has no enclosing class node — a method's receiver type
			// plays that role and must be read off the method node itself.
			symClass := currentClass
			if kind == "method" && e.language == "go" {
				symClass = e.goReceiverTypeName(n)
			}

			key := name
			if symClass != "" {
				key = symClass + "." + name
			}
			isTopLevel := enclosingFuncKey == nil
			sym := astdoc.NewSymbol(name, int(n.StartPoint.Row)+1, int(n.EndPoint.Row)+1, e.extractSignature(n), isTopLevel)
			sym.ClassName = symClass

			switch kind {
			case "function":
				if currentClass != "" {
					e.builder.AddMethod(key, sym)
				} else {
					e.builder.AddFunction(key, sym)
				}
			case "method":
				e.builder.AddMethod(key, sym)
			case "class":
				e.builder.AddClass(key, sym)
				currentClass = name
			case "interface":
				e.builder.AddInterface(key, sym)
			case "type":
				e.builder.AddType(key, sym)
			case "constant":
				e.builder.AddConstant(key, sym)
			case "enum":
				e.builder.AddEnum(key, &astdoc.Enum{Symbol: *sym})
			}

			if kind == "function" || kind == "method" {
				k := key
				currentFuncKey = &k
			}
		}
	}

	if n.Type == "call_expression" || n.Type == "call" {
		e.recordCall(n, currentFuncKey)
	}

	if imp, ok := e.extractImport(n); ok {
		e.builder.AddImport(imp)
	}
	if exp, ok := e.extractExport(n); ok {
		e.builder.AddExport(exp)
	}

	for _, child := range n.Children {
		e.walk(child, currentFuncKey, currentClass)
	}
}

// goReceiverTypeName reads the type name off a Go method_declaration's
// receiver (the first parameter_list), unwrapping a pointer receiver.
func (e *docExtraction) goReceiverTypeName(n *Node) string {
	for _, child := range n.Children {
		if child.Type != "parameter_list" {
			continue
		}
		for _, param := range child.Children {
			if param.Type != "parameter_declaration" {
				continue
			}
			for _, t := range param.Children {
				switch t.Type {
				case "type_identifier":
					return t.GetContent(e.source)
				case "pointer_type":
					if pt := t.FindChildByType("type_identifier"); pt != nil {
						return pt.GetContent(e.source)
					}
				}
			}
		}
		break // the first parameter_list on a method_declaration is the receiver
	}
	return ""
}

func (e *docExtraction) extractName(n *Node) string {
	nameFieldTypes := map[string]bool{
		"identifier": true, "field_identifier": true, "type_identifier": true,
		"property_identifier": true,
	}
	for _, child := range n.Children {
		if nameFieldTypes[child.Type] {
			return child.GetContent(e.source)
		}
	}
	// Go const/var/type specs nest one level deeper.
	for _, child := range n.Children {
		for _, gc := range child.Children {
			if nameFieldTypes[gc.Type] {
				return gc.GetContent(e.source)
			}
		}
	}
	return ""
}

func (e *docExtraction) extractSignature(n *Node) string {
	content := n.GetContent(e.source)
	if idx := strings.IndexAny(content, "{:"); idx != -1 {
		return strings.TrimSpace(content[:idx])
	}
	lines := strings.SplitN(content, "\n", 2)
	return strings.TrimSpace(lines[0])
}

// recordCall classifies and records a single call node per the kind rules:
// new X(...) -> constructor; super(...) -> super; obj.m(...) -> method;
// obj[k](...) -> dynamic; plain identifier -> function.
func (e *docExtraction) recordCall(n *Node, callerKey *string) {
	var calleeName string
	kind := astdoc.CallKindFunction

	callee := n.Children
	if len(callee) == 0 {
		return
	}
	head := callee[0]

	switch {
	case head.Type == "new_expression":
		kind = astdoc.CallKindConstructor
		calleeName = e.extractName(head)
		if calleeName == "" {
			calleeName = "<unknown>"
		}
	case head.GetContent(e.source) == "super":
		kind = astdoc.CallKindSuper
		calleeName = "super"
	case head.Type == "member_expression" || head.Type == "attribute" || head.Type == "selector_expression":
		kind = astdoc.CallKindMethod
		calleeName = e.rightmostIdentifier(head)
		if calleeName == "" {
			calleeName = "<unknown>"
		}
	case head.Type == "subscript_expression" || head.Type == "index_expression":
		kind = astdoc.CallKindDynamic
		calleeName = "<dynamic>"
	case head.Type == "identifier":
		calleeName = head.GetContent(e.source)
	default:
		calleeName = "<unknown>"
	}

	argCount := 0
	if len(n.Children) > 1 {
		args := n.Children[len(n.Children)-1]
		for _, c := range args.Children {
			if !isASTPunctuation(c.Type) {
				argCount++
			}
		}
	}

	var caller string
	if callerKey != nil {
		caller = *callerKey
	}

	var parentNode *Node
	// The receiver of a member/call expression is itself a call node when
	// chaining (e.g. a().b()); record it for chain linking.
	if head.Type == "call_expression" || head.Type == "call" {
		parentNode = head
	} else if (head.Type == "member_expression" || head.Type == "attribute") && len(head.Children) > 0 {
		obj := head.Children[0]
		if obj.Type == "call_expression" || obj.Type == "call" {
			parentNode = obj
		}
	}

	var parentID astdoc.NodeID
	if parentNode != nil {
		parentID = parentNode
	}
	e.builder.RecordCall(caller, calleeName, kind, argCount, int(n.StartPoint.Row)+1, n, parentID)
}

func (e *docExtraction) rightmostIdentifier(n *Node) string {
	if len(n.Children) == 0 {
		return n.GetContent(e.source)
	}
	last := n.Children[len(n.Children)-1]
	return last.GetContent(e.source)
}

func isASTPunctuation(nodeType string) bool {
	switch nodeType {
	case "(", ")", ",", "[", "]":
		return true
	}
	return false
}

func (e *docExtraction) extractImport(n *Node) (astdoc.Import, bool) {
	switch n.Type {
	case "import_declaration": // Go
		var specs []string
		var source string
		for _, spec := range n.FindAllByType("import_spec") {
			if path := spec.FindChildByType("interpreted_string_literal"); path != nil {
				source = strings.Trim(path.GetContent(e.source), `"`)
			}
		}
		return astdoc.Import{Source: source, Specifiers: specs, StartLine: int(n.StartPoint.Row) + 1}, source != ""
	case "import_statement": // JS/TS/Python
		var source string
		var specs []string
		for _, child := range n.Children {
			if child.Type == "string" {
				source = strings.Trim(child.GetContent(e.source), `"'`)
			}
			if child.Type == "import_clause" {
				for _, id := range child.FindAllByType("identifier") {
					specs = append(specs, id.GetContent(e.source))
				}
			}
			if child.Type == "dotted_name" {
				source = child.GetContent(e.source)
			}
		}
		return astdoc.Import{Source: source, Specifiers: specs, StartLine: int(n.StartPoint.Row) + 1}, source != ""
	case "import_from_statement": // Python
		var source string
		var specs []string
		for _, child := range n.Children {
			if child.Type == "dotted_name" && source == "" {
				source = child.GetContent(e.source)
			}
		}
		for _, id := range n.FindAllByType("identifier") {
			specs = append(specs, id.GetContent(e.source))
		}
		return astdoc.Import{Source: source, Specifiers: specs, StartLine: int(n.StartPoint.Row) + 1}, source != ""
	}
	return astdoc.Import{}, false
}

func (e *docExtraction) extractExport(n *Node) (astdoc.Export, bool) {
	if n.Type != "export_statement" {
		return astdoc.Export{}, false
	}
	var specs []string
	var source string
	for _, id := range n.FindAllByType("identifier") {
		specs = append(specs, id.GetContent(e.source))
	}
	if s := n.FindChildByType("string"); s != nil {
		source = strings.Trim(s.GetContent(e.source), `"'`)
	}
	return astdoc.Export{Source: source, Specifiers: specs, StartLine: int(n.StartPoint.Row) + 1}, len(specs) > 0 || source != ""
}

// collectComments walks for comment nodes and classifies them, per language,
// as jsdoc/docstring (association-eligible) or line/block (never
// associated).
func (e *docExtraction) collectComments(root *Node) {
	root.Walk(func(n *Node) bool {
		switch n.Type {
		case "comment":
			text := n.GetContent(e.source)
			kind := astdoc.CommentKindLine
			switch e.language {
			case "typescript", "tsx", "javascript", "jsx":
				if strings.HasPrefix(text, "/**") {
					kind = astdoc.CommentKindJSDoc
				} else if strings.HasPrefix(text, "/*") {
					kind = astdoc.CommentKindBlock
				}
			case "go":
				kind = astdoc.CommentKindLine
			}
			e.builder.AddComment(astdoc.Comment{
				Kind:      kind,
				Text:      text,
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
			})
		case "string":
			// Python docstring: a bare string expression as the first
			// statement of a function/class body is handled by the
			// chunker's documentation-linking policy, not here.
		}
		return true
	})
}
