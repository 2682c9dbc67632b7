// Package terms extracts identifier-like tokens from a search query.
//
// Technical identifiers (SelectEditor, param_watch, pn.widgets.Tabulator)
// and bare component names (Scatter) embed poorly: their nearest neighbors
// in embedding space are rarely the pages that define them. The retrieval
// engine uses these terms to decide when lexical and metadata lookups
// should run alongside semantic search.
package terms

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenPattern matches words, optionally dot-qualified (a.b.c).
var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`)

// capitalizedPattern matches a single capitalized word such as "Scatter".
var capitalizedPattern = regexp.MustCompile(`^[A-Z][a-z0-9]+$`)

// commonWords are capitalized words that usually start a sentence or a
// question rather than name a component.
var commonWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		A About Above After Again All Also Am An And Any Are As At
		Be Because Been Before Being Below Between Both But By
		Can Could Create Creating
		Describe Did Do Does Doing Done
		Each Example Examples Explain
		Few Find For From
		Get Give Guide
		Had Has Have Having Help Her Here Hi His How However
		I If In Into Is It Its
		Just
		Let List Like
		Make Many May Me Might More Most Much Must My
		No Nor Not Now
		Of Off On Once Only Or Other Our Out Over Own
		Please
		Same Shall She Should Show So Some Such
		Tell Than Thanks That The Their Them Then There These They This Those Through To Too
		Under Until Up Use Used Using
		Very
		Want Was We Were What When Where Which While Who Whom Why Will With Would
		Yes You Your`) {
		commonWords[w] = struct{}{}
	}
}

// ExtractCompoundTerms returns mixed-case identifiers, underscore-joined
// words and dot-qualified names found in query, in first-occurrence order.
// Terms equal to project (case-insensitively) are dropped.
func ExtractCompoundTerms(query, project string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, tok := range tokenPattern.FindAllString(query, -1) {
		if !isCompound(tok) {
			continue
		}
		out = appendTerm(out, seen, tok, project)
	}
	return out
}

// ExtractCapitalizedTerms returns single capitalized words that are not
// common sentence-initial English words and not compound identifiers.
// Terms equal to project (case-insensitively) are dropped.
func ExtractCapitalizedTerms(query, project string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, tok := range tokenPattern.FindAllString(query, -1) {
		if !capitalizedPattern.MatchString(tok) {
			continue
		}
		if _, common := commonWords[tok]; common {
			continue
		}
		out = appendTerm(out, seen, tok, project)
	}
	return out
}

// KeywordTerms is the ordered union of compound and capitalized terms.
func KeywordTerms(query, project string) []string {
	compound := ExtractCompoundTerms(query, project)
	seen := make(map[string]struct{}, len(compound))
	for _, t := range compound {
		seen[t] = struct{}{}
	}
	out := compound
	for _, t := range ExtractCapitalizedTerms(query, project) {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func appendTerm(out []string, seen map[string]struct{}, term, project string) []string {
	if project != "" && strings.EqualFold(term, project) {
		return out
	}
	if _, dup := seen[term]; dup {
		return out
	}
	seen[term] = struct{}{}
	return append(out, term)
}

func isCompound(tok string) bool {
	if strings.Contains(tok, ".") {
		return true
	}
	if strings.Contains(strings.Trim(tok, "_"), "_") {
		return true
	}
	return hasInternalCapital(tok)
}

// hasInternalCapital reports a lower-to-upper transition (selectEditor,
// SelectEditor) or an upper run followed by upper+lower (HTMLPane).
func hasInternalCapital(tok string) bool {
	runes := []rune(tok)
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prev := runes[i-1]
		if unicode.IsLower(prev) || unicode.IsDigit(prev) {
			return true
		}
		if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			return true
		}
	}
	return false
}
