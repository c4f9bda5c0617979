package astdoc

import "sort"

// commentAssociationMaxGap is the upper bound (inclusive) on
// startLine - comment.startLine for a doc comment to associate with a
// symbol; the lower bound is exclusive zero, i.e. the comment must start
// on a line strictly before the symbol starts.
const commentAssociationMaxGap = 5

// Builder accumulates extractor output for a single file and produces a
// finalized Document via Build.
type Builder struct {
	doc *Document

	pendingCalls []pendingCall
}

type pendingCall struct {
	callerKey  string
	calleeName string
	kind       CallKind
	argCount   int
	startLine  int
	node       NodeID
	parentNode NodeID
}

// NewBuilder constructs a Builder for the given file, mirroring the AST
// Document Builder's constructor signature `(path, language, fileSize)`.
func NewBuilder(path, language string, fileSize int) *Builder {
	return &Builder{doc: newDocument(path, language, fileSize)}
}

// AddFunction records a top-level or nested function symbol. Nested
// (non-top-level) functions are still recorded here for call-graph
// resolution even though the chunker will not emit a separate chunk for
// them (inner functions are not chunks, per the chunker's own policy).
func (b *Builder) AddFunction(key string, s *Symbol) { b.doc.Functions[key] = s }

// AddMethod records a method symbol, keyed distinctly from free functions.
func (b *Builder) AddMethod(key string, s *Symbol) { b.doc.Methods[key] = s }

// AddClass records a class/struct symbol.
func (b *Builder) AddClass(key string, s *Symbol) { b.doc.Classes[key] = s }

// AddInterface records an interface/protocol symbol.
func (b *Builder) AddInterface(key string, s *Symbol) { b.doc.Interfaces[key] = s }

// AddType records a type alias/definition symbol.
func (b *Builder) AddType(key string, s *Symbol) { b.doc.Types[key] = s }

// AddEnum records an enum declaration with its members.
func (b *Builder) AddEnum(key string, e *Enum) { b.doc.Enums[key] = e }

// AddConstant records a constant/immutable variable symbol.
func (b *Builder) AddConstant(key string, s *Symbol) { b.doc.Constants[key] = s }

// AddComponent records a UI component symbol (e.g. a JSX/TSX function
// component), distinguished from a plain function by the extractor.
func (b *Builder) AddComponent(key string, s *Symbol) { b.doc.Components[key] = s }

// AddImport records a single import/require statement.
func (b *Builder) AddImport(imp Import) { b.doc.Imports = append(b.doc.Imports, imp) }

// AddExport records a single export statement.
func (b *Builder) AddExport(exp Export) { b.doc.Exports = append(b.doc.Exports, exp) }

// AddComment records a comment node. Association with a nearby symbol
// happens later, in Build, for doc-comment kinds only.
func (b *Builder) AddComment(c Comment) { b.doc.Comments = append(b.doc.Comments, c) }

// AddError records a parse error recovered from the syntax tree.
func (b *Builder) AddError(e ParseError) { b.doc.Errors = append(b.doc.Errors, e) }

// RecordCall queues a (caller, callee) pair for call-graph construction and
// chain linking, performed in Build. callerKey is empty for a call made at
// module scope (outside any function/method).
func (b *Builder) RecordCall(callerKey, calleeName string, kind CallKind, argCount, startLine int, node, parentNode NodeID) {
	b.pendingCalls = append(b.pendingCalls, pendingCall{
		callerKey:  callerKey,
		calleeName: calleeName,
		kind:       kind,
		argCount:   argCount,
		startLine:  startLine,
		node:       node,
		parentNode: parentNode,
	})
}

// Build performs the two fix-up passes — comment association and call-graph
// construction — and returns the finalized Document.
func (b *Builder) Build(lineCount int, parserVersion string) *Document {
	b.doc.LineCount = lineCount
	b.doc.ParserVersion = parserVersion

	b.associateComments()
	b.buildCallGraph()

	return b.doc
}

// associateComments implements the comment-association pass: for each
// jsdoc/docstring comment, find the nearest function/class/interface symbol
// whose startLine - comment.startLine falls in (0, 5]. Line/block comments
// are never associated.
func (b *Builder) associateComments() {
	type candidate struct {
		key string
		sym *Symbol
	}

	var candidates []candidate
	for key, s := range b.doc.Functions {
		candidates = append(candidates, candidate{key, s})
	}
	for key, s := range b.doc.Classes {
		candidates = append(candidates, candidate{key, s})
	}
	for key, s := range b.doc.Interfaces {
		candidates = append(candidates, candidate{key, s})
	}

	for i := range b.doc.Comments {
		c := &b.doc.Comments[i]
		if c.Kind != CommentKindJSDoc && c.Kind != CommentKindDocstring {
			continue
		}

		bestKey := ""
		bestGap := commentAssociationMaxGap + 1
		for _, cand := range candidates {
			gap := cand.sym.StartLine - c.StartLine
			if gap > 0 && gap <= commentAssociationMaxGap && gap < bestGap {
				bestGap = gap
				bestKey = cand.key
			}
		}
		c.AssociatedSymbol = bestKey
	}
}

// buildCallGraph implements the call-graph construction and call-chain
// passes described for the builder: first resolve caller/callee adjacency,
// then link chains by node identity.
func (b *Builder) buildCallGraph() {
	for _, pc := range b.pendingCalls {
		b.doc.Calls = append(b.doc.Calls, Call{
			Node:       pc.node,
			ParentNode: pc.parentNode,
			CallerKey:  pc.callerKey,
			CalleeName: pc.calleeName,
			Kind:       pc.kind,
			ArgCount:   pc.argCount,
			StartLine:  pc.startLine,
		})
	}

	// Adjacency: append callee to caller.calls (dedup), caller to
	// callee.called_by (dedup). Only resolved when the callee name matches
	// a known symbol in this file; cross-file callees are left unresolved
	// here and reconciled by the symbol index at query time.
	for _, call := range b.doc.Calls {
		if call.CallerKey == "" {
			continue
		}
		caller := b.doc.lookupSymbol(call.CallerKey)
		if caller == nil {
			continue
		}
		callee := b.doc.lookupSymbol(call.CalleeName)
		caller.addCall(call.CalleeName)
		if callee != nil {
			callee.addCalledBy(call.CallerKey)
		}
	}

	b.linkCallChains()
}

// linkCallChains builds chain.previous/chain.next by node identity: a call
// is chained to its parent when the parent is itself a call node (i.e. its
// receiver/object expression is a call), in two passes — collect, then
// link — per the builder's two-pass chain rule.
func (b *Builder) linkCallChains() {
	byNode := make(map[NodeID]int, len(b.doc.Calls))
	for i, c := range b.doc.Calls {
		byNode[c.Node] = i
	}

	for i := range b.doc.Calls {
		b.doc.Calls[i].ChainPrevious = -1
		b.doc.Calls[i].ChainNext = -1
	}

	for i, c := range b.doc.Calls {
		if c.ParentNode == nil {
			continue
		}
		prevIdx, ok := byNode[c.ParentNode]
		if !ok {
			continue
		}
		b.doc.Calls[i].ChainPrevious = prevIdx
		b.doc.Calls[prevIdx].ChainNext = i
	}

	// chain.position = previousPosition + 1, or 0 for chain heads. Resolve
	// heads first (stable order), then walk forward so position is always
	// computed from an already-resolved predecessor.
	resolved := make([]bool, len(b.doc.Calls))
	var heads []int
	for i, c := range b.doc.Calls {
		if c.ChainPrevious == -1 {
			heads = append(heads, i)
		}
	}
	sort.Ints(heads)

	for _, h := range heads {
		b.doc.Calls[h].ChainPosition = 0
		resolved[h] = true
		cur := h
		for b.doc.Calls[cur].ChainNext != -1 {
			next := b.doc.Calls[cur].ChainNext
			b.doc.Calls[next].ChainPosition = b.doc.Calls[cur].ChainPosition + 1
			resolved[next] = true
			cur = next
		}
	}
}
