package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize applies the stable-hash normalization rule (§4.D): strip leading
// and trailing blank lines, strip the minimum common leading-whitespace
// indent shared by every non-blank line, then trim the result. This makes
// the hash insensitive to re-indentation (e.g. moving a function into a
// class) while still sensitive to any change in actual code shape.
func Normalize(content string) string {
	lines := strings.Split(content, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]
	if len(lines) == 0 {
		return ""
	}

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	stripped := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= minIndent {
			stripped[i] = line[minIndent:]
		} else {
			stripped[i] = strings.TrimLeft(line, " \t")
		}
	}

	return strings.TrimSpace(strings.Join(stripped, "\n"))
}

// ComputeHash computes the stable SHA-256 content hash of a chunk:
// SHA256(normalize(content) ⊕ documentation ⊕ signature), where ⊕ is
// concatenation with a separator that cannot appear inside any one field
// on its own (§4.D). The hash changes only when the normalized body, the
// associated documentation, or the signature actually changes — whitespace
// reflow alone leaves it untouched.
func ComputeHash(content, documentation, signature string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(content)))
	h.Write([]byte{0})
	h.Write([]byte(documentation))
	h.Write([]byte{0})
	h.Write([]byte(signature))
	return hex.EncodeToString(h.Sum(nil))
}

// mapSymbolKind maps an extracted SymbolType plus async/generator flags to
// one of the nine chunk kinds named in §4.D.
func mapSymbolKind(symType SymbolType, isAsync, isGenerator, isTopLevel bool) Kind {
	switch symType {
	case SymbolTypeFunction:
		switch {
		case isGenerator:
			return KindGenerator
		case isAsync:
			return KindAsyncFunction
		default:
			return KindFunction
		}
	case SymbolTypeMethod:
		switch {
		case isGenerator:
			return KindGenerator
		case isAsync:
			return KindAsyncMethod
		default:
			return KindMethod
		}
	case SymbolTypeConstructor:
		return KindConstructor
	case SymbolTypeProperty:
		return KindProperty
	case SymbolTypeClass, SymbolTypeInterface, SymbolTypeComponent, SymbolTypeEnum:
		return KindClass
	default:
		if isTopLevel {
			return KindModule
		}
		return KindProperty
	}
}
