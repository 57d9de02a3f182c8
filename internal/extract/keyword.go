package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
)

var methodCallRegex = regexp.MustCompile(`\b([a-z_]+)\([^)]*\)`)

// KeywordExtractor is the pattern/keyword fallback strategy: curated
// technology keywords matched as whole words, curated CJK concept terms
// matched as substrings, and call-like tokens registered as methods.
type KeywordExtractor struct {
	automaton *ahocorasick.Automaton
	// pattern id -> original cased keyword
	patternNames []string
}

func NewKeywordExtractor() *KeywordExtractor {
	patterns := make([]string, 0, len(techKeywords))
	names := make([]string, 0, len(techKeywords))
	for _, kw := range techKeywords {
		canon := canonicalize(kw)
		if canon == "" {
			continue
		}
		patterns = append(patterns, canon)
		names = append(names, kw)
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		// The pattern set is static; a build failure is a programming error.
		panic(fmt.Sprintf("build keyword automaton: %v", err))
	}
	return &KeywordExtractor{automaton: automaton, patternNames: names}
}

func (k *KeywordExtractor) Name() string {
	return StrategyKeyword
}

func (k *KeywordExtractor) Extract(text string, role string, wantRelationships bool) ([]Entity, []Relationship) {
	idx := newEntityIndex()

	for _, name := range k.matchTechKeywords(text) {
		idx.add(Entity{
			Type:        "technology",
			Name:        name,
			Description: fmt.Sprintf("Technology/Tool: %s", name),
		})
	}

	for _, term := range cjkConceptTerms {
		if strings.Contains(text, term) {
			idx.add(Entity{
				Type:        "concept",
				Name:        term,
				Description: fmt.Sprintf("概念: %s", term),
			})
		}
	}

	for _, m := range methodCallRegex.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			continue
		}
		idx.add(Entity{
			Type:        "method",
			Name:        name,
			Description: fmt.Sprintf("Method/Function: %s", name),
		})
	}

	entities := idx.entities
	var relationships []Relationship
	if wantRelationships && len(entities) > 1 {
		relationships = windowRelationships(entities)
	}
	return entities, relationships
}

// matchTechKeywords returns matched keywords in text order. Matching runs
// over a canonicalized copy of the text; a hit counts only when it sits on
// word boundaries.
func (k *KeywordExtractor) matchTechKeywords(text string) []string {
	canon := canonicalize(text)
	if canon == "" {
		return nil
	}
	matches := k.automaton.FindAllOverlapping([]byte(canon))
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})
	var result []string
	for _, m := range matches {
		if !isWordBoundary(canon, m.Start, m.End) {
			continue
		}
		if m.PatternID < 0 || m.PatternID >= len(k.patternNames) {
			continue
		}
		result = append(result, k.patternNames[m.PatternID])
	}
	return result
}

// windowRelationships connects each entity to the next two in extraction
// order with a mentioned_with edge. This is a nearby-in-the-list heuristic,
// not a semantic relation.
func windowRelationships(entities []Entity) []Relationship {
	var relationships []Relationship
	for i := 0; i < len(entities)-1; i++ {
		for j := i + 1; j <= i+2 && j < len(entities); j++ {
			relationships = append(relationships, Relationship{
				SourceName: entities[i].Name,
				TargetName: entities[j].Name,
				Type:       "mentioned_with",
				Weight:     1.0,
			})
		}
	}
	return relationships
}

// canonicalize lowercases and collapses everything except letters, digits
// and the few symbols that occur inside keyword surface forms ("C++", "C#",
// "snake_case") into single spaces.
func canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '_' {
			out.WriteRune(r)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimRight(out.String(), " ")
}

func isWordBoundary(s string, start, end int) bool {
	if start > 0 && s[start-1] != ' ' {
		return false
	}
	if end < len(s) && s[end] != ' ' {
		return false
	}
	return true
}

func lowerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
