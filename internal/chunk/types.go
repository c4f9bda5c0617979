package chunk

import (
	"context"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// Chunk size defaults (based on 2025 RAG research)
const (
	DefaultMaxChunkTokens = 512 // Optimal for 85-90% recall
	DefaultOverlapTokens  = 64  // ~12.5% overlap
	MinChunkTokens        = 100 // Minimum viable chunk
	TokensPerChar         = 4   // Rough approximation: 4 chars = 1 token
)

// ContentType represents the type of content in a chunk
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// Kind is the chunk kind, one of the nine symbol shapes the chunker
// recognizes (§4.D).
type Kind string

const (
	KindFunction      Kind = "function"
	KindMethod        Kind = "method"
	KindConstructor   Kind = "constructor"
	KindProperty      Kind = "property"
	KindClass         Kind = "class"
	KindModule        Kind = "module"
	KindAsyncFunction Kind = "async_function"
	KindAsyncMethod   Kind = "async_method"
	KindGenerator     Kind = "generator"
)

// ChunkContext is the context bundle a chunk carries alongside its raw
// content (§4.D): everything needed to make sense of the chunk without
// re-reading the whole file.
type ChunkContext struct {
	ClassName        string // enclosing class/struct name, if any
	ClassInheritance []string
	ModulePath       string // package/module path the chunk lives in
	Namespace        string
	MethodSignature  string
	IsTopLevel       bool
	ParentChunkHash  string // hash of the enclosing chunk, if nested
}

// Chunk is a retrievable unit of content
type Chunk struct {
	ID            string            // SHA256(file_path + ":" + content hash)[:16], see generateChunkID
	Hash          string            // stable content hash, see ComputeHash
	Kind          Kind              // function, method, class, module, ...
	FilePath      string            // Relative to project root
	Content       string            // Full content with context
	RawContent    string            // Just the symbol, no context (code only)
	Context       string            // Imports, package decl (code only)
	Bundle        ChunkContext      // structured context (§4.D)
	ContentType   ContentType       // code, markdown, text
	Language      string            // go, typescript, python, etc.
	StartLine     int               // 1-indexed
	EndLine       int               // Inclusive
	LineCount     int               // EndLine - StartLine + 1
	Name          string            // symbol name, empty for module-level chunks
	Documentation string            // associated doc comment, if any
	Signature     string            // extracted signature, empty for non-callables
	Symbols       []*Symbol         // Functions, classes, etc.
	Metadata      map[string]string // Custom metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FileInput is input for the Chunker interface
type FileInput struct {
	Path     string // Relative path
	Content  []byte // File content
	Language string // go, typescript, python, etc.
}

// Chunker is the interface for splitting files into chunks
type Chunker interface {
	// Chunk splits a file into semantic chunks
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles
	SupportedExtensions() []string
}

// SymbolType represents the kind of code symbol
type SymbolType string

const (
	SymbolTypeFunction    SymbolType = "function"
	SymbolTypeClass       SymbolType = "class"
	SymbolTypeInterface   SymbolType = "interface"
	SymbolTypeType        SymbolType = "type"
	SymbolTypeVariable    SymbolType = "variable"
	SymbolTypeConstant    SymbolType = "constant"
	SymbolTypeMethod      SymbolType = "method"
	SymbolTypeConstructor SymbolType = "constructor"
	SymbolTypeProperty    SymbolType = "property"
	SymbolTypeComponent   SymbolType = "component"
	SymbolTypeEnum        SymbolType = "enum"
)

// Symbol represents a code symbol extracted from parsing
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST
type Tree struct {
	Root     *Node
	Source   []byte
	Language string

	// tsTree is the underlying tree-sitter tree, kept so Parser.Reparse can
	// apply edits and reuse it as an incremental-parse hint.
	tsTree *sitter.Tree
}

func (t *Tree) langName() string {
	if t == nil {
		return ""
	}
	return t.Language
}

// Node represents a node in the AST
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that indicate function declarations
	FunctionTypes []string

	// Node types that indicate class/struct definitions
	ClassTypes []string

	// Node types that indicate interface definitions
	InterfaceTypes []string

	// Node types that indicate method definitions
	MethodTypes []string

	// Node types that indicate type definitions
	TypeDefTypes []string

	// Node types that indicate constant declarations
	ConstantTypes []string

	// Node types that indicate variable declarations
	VariableTypes []string

	// Node type for name identifier
	NameField string
}
