package ranking

import (
	"strings"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// filterFunc checks if a search result matches filter criteria.
type filterFunc func(result *SearchResult) bool

// applyFilters filters results based on search options; filters combine
// with AND logic — a result must match every specified criterion.
func applyFilters(results []*SearchResult, opts SearchOptions) []*SearchResult {
	if (opts.Filter == "" || opts.Filter == "all") && opts.Language == "" && opts.SymbolType == "" && len(opts.Scopes) == 0 {
		return results
	}

	filters := buildFilters(opts)
	if len(filters) == 0 {
		return results
	}

	filtered := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		if matchesAllFilters(r, filters) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func buildFilters(opts SearchOptions) []filterFunc {
	var filters []filterFunc

	if opts.Filter != "" && opts.Filter != "all" {
		filters = append(filters, contentTypeFilter(opts.Filter))
	}
	if opts.Language != "" {
		filters = append(filters, languageFilter(opts.Language))
	}
	if opts.SymbolType != "" {
		filters = append(filters, symbolTypeFilter(opts.SymbolType))
	}
	if len(opts.Scopes) > 0 {
		filters = append(filters, scopeFilter(opts.Scopes))
	}
	return filters
}

func matchesAllFilters(result *SearchResult, filters []filterFunc) bool {
	for _, f := range filters {
		if !f(result) {
			return false
		}
	}
	return true
}

func contentTypeFilter(filter string) filterFunc {
	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		switch filter {
		case "code":
			return r.Chunk.ContentType == store.ContentTypeCode
		case "docs":
			return r.Chunk.ContentType == store.ContentTypeMarkdown ||
				r.Chunk.ContentType == store.ContentTypeText
		default:
			return true
		}
	}
}

func languageFilter(lang string) filterFunc {
	return func(r *SearchResult) bool {
		return r.Chunk != nil && r.Chunk.Language == lang
	}
}

func symbolTypeFilter(symbolType string) filterFunc {
	return func(r *SearchResult) bool {
		if r.Chunk == nil || len(r.Chunk.Symbols) == 0 {
			return false
		}
		target := store.SymbolType(symbolType)
		for _, s := range r.Chunk.Symbols {
			if s.Type == target {
				return true
			}
		}
		return false
	}
}

func scopeFilter(scopes []string) filterFunc {
	normalized := make([]string, len(scopes))
	for i, s := range scopes {
		normalized[i] = normalizeScope(s)
	}
	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		for _, s := range normalized {
			if strings.HasPrefix(r.Chunk.FilePath, s) {
				return true
			}
		}
		return false
	}
}

// normalizeScope strips leading and trailing slashes for consistent prefix
// matching against chunk file paths.
func normalizeScope(scope string) string {
	return strings.Trim(scope, "/")
}

// calculateHighlights finds text ranges for matched terms, case-insensitive,
// capped per term to bound highlight volume on pathological matches.
func calculateHighlights(content string, matchedTerms []string) []Range {
	if len(matchedTerms) == 0 || len(content) == 0 {
		return []Range{}
	}

	const maxMatchesPerTerm = 10
	highlights := make([]Range, 0, len(matchedTerms)*3)
	lowerContent := strings.ToLower(content)

	for _, term := range matchedTerms {
		if term == "" {
			continue
		}
		lowerTerm := strings.ToLower(term)
		start := 0
		matchCount := 0
		for matchCount < maxMatchesPerTerm {
			idx := strings.Index(lowerContent[start:], lowerTerm)
			if idx == -1 {
				break
			}
			absStart := start + idx
			highlights = append(highlights, Range{Start: absStart, End: absStart + len(term)})
			start = absStart + len(lowerTerm)
			matchCount++
		}
	}
	return highlights
}
