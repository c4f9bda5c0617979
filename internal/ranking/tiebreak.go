package ranking

import (
	"regexp"
	"strings"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// tieThreshold is the score band within which consecutive results (by
// score, after sorting) are considered a tie cluster eligible for
// tie-breaking.
const tieThreshold = 0.01

// symbolTypePriority assigns each symbol type a priority in [0,100],
// divided by 100 to land in [0,1] before weighting.
var symbolTypePriority = map[store.SymbolType]float64{
	store.SymbolTypeFunction:  90,
	store.SymbolTypeMethod:    85,
	store.SymbolTypeClass:     75,
	store.SymbolTypeInterface: 70,
	store.SymbolTypeType:      60,
	store.SymbolTypeConstant:  45,
	store.SymbolTypeVariable:  40,
}

// identifierPattern matches query tokens eligible for identifier matching:
// alphanumeric plus underscore, length > 2.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,}$`)

// tieBreak clusters consecutive results whose Score lies within
// tieThreshold of each other, computes four weighted sub-scores within each
// cluster, and folds 0.1x their weighted sum back into Score before a final
// re-sort and re-numbering of ranks.
func tieBreak(results []*SearchResult, query string, cfg TieBreakersConfig) []*SearchResult {
	if len(results) == 0 {
		return results
	}

	identifiers := queryIdentifiers(query)

	start := 0
	for start < len(results) {
		end := start + 1
		for end < len(results) && results[start].Score-results[end].Score <= tieThreshold {
			end++
		}

		applyTieBreakCluster(results[start:end], identifiers, cfg)
		start = end
	}

	sortByScoreDesc(results)
	return results
}

// primarySymbol returns the symbol that best represents the chunk — the
// first one recorded, since chunkers emit one dominant symbol per chunk.
func primarySymbol(c *store.Chunk) *store.Symbol {
	if c == nil || len(c.Symbols) == 0 {
		return nil
	}
	return c.Symbols[0]
}

func applyTieBreakCluster(cluster []*SearchResult, identifiers map[string]bool, cfg TieBreakersConfig) {
	for _, r := range cluster {
		sym := primarySymbol(r.Chunk)

		symPrio := 0.5
		if sym != nil {
			if p, ok := symbolTypePriority[sym.Type]; ok {
				symPrio = p / 100
			}
		}

		pathPrio := pathPriority(r.Chunk.FilePath)

		langMatch := 0.0
		if identifiers[strings.ToLower(r.Chunk.Language)] {
			langMatch = 1
		}

		idMatch := 0.0
		if sym != nil && sym.Name != "" && identifiers[sym.Name] {
			idMatch = 1
		}

		combined := symPrio*cfg.SymbolTypeWeight +
			pathPrio*cfg.PathPriorityWeight +
			langMatch*cfg.LanguageMatchWeight +
			idMatch*cfg.IdentifierMatchWeight

		contribution := combined * 0.1

		r.Breakdown.SymbolTypePriority = symPrio
		r.Breakdown.PathPriority = pathPrio
		r.Breakdown.LanguageMatch = langMatch
		r.Breakdown.IdentifierMatch = idMatch
		r.Breakdown.TieBreakerContribution = contribution
		r.Score += contribution
	}
}

// pathPriority scores a file path by its directory role: src/ 1.0, lib/ 0.9,
// test paths 0.6, docs 0.4, unclassified 0.5.
func pathPriority(path string) float64 {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "/src/") || strings.HasPrefix(lower, "src/"):
		return 1.0
	case strings.Contains(lower, "/lib/") || strings.HasPrefix(lower, "lib/"):
		return 0.9
	case strings.Contains(lower, "test"):
		return 0.6
	case strings.Contains(lower, "/docs/") || strings.HasPrefix(lower, "docs/") || strings.HasSuffix(lower, ".md"):
		return 0.4
	default:
		return 0.5
	}
}

// queryIdentifiers extracts exact-match-eligible identifier tokens from the
// query: alphanumeric-plus-underscore runs longer than two characters,
// compared case-sensitively against symbol names.
func queryIdentifiers(query string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(query) {
		tok = strings.Trim(tok, ".,()[]{}:;\"'")
		if identifierPattern.MatchString(tok) {
			out[tok] = true
		}
	}
	return out
}
