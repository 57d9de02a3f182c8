package extract

import (
	"fmt"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// NER label to entity type vocabulary. Unknown labels default to concept.
var entityLabelTypes = map[string]string{
	"PERSON":      "person",
	"ORG":         "organization",
	"GPE":         "location",
	"LOC":         "location",
	"PRODUCT":     "product",
	"EVENT":       "event",
	"WORK_OF_ART": "work",
	"LAW":         "law",
	"LANGUAGE":    "language",
	"DATE":        "date",
	"TIME":        "time",
	"PERCENT":     "metric",
	"MONEY":       "metric",
	"QUANTITY":    "metric",
	"ORDINAL":     "metric",
	"CARDINAL":    "metric",
}

// LinguisticExtractor runs tokenization, POS tagging and named-entity
// recognition over the text. It keeps a keyword fallback for inputs the
// language model cannot process.
type LinguisticExtractor struct {
	fallback *KeywordExtractor
}

func NewLinguisticExtractor(fallback *KeywordExtractor) (*LinguisticExtractor, error) {
	// Probe the model once at startup; prose loads its English model lazily
	// on first document construction.
	if _, err := prose.NewDocument("startup probe"); err != nil {
		return nil, fmt.Errorf("construct language model: %w", err)
	}
	return &LinguisticExtractor{fallback: fallback}, nil
}

func (l *LinguisticExtractor) Name() string {
	return StrategyLinguistic
}

func (l *LinguisticExtractor) Extract(text string, role string, wantRelationships bool) ([]Entity, []Relationship) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		if l.fallback != nil {
			return l.fallback.Extract(text, role, wantRelationships)
		}
		return nil, nil
	}

	idx := newEntityIndex()
	var namedEntities []Entity

	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if len(name) <= 1 {
			continue
		}
		entityType := entityLabelTypes[ent.Label]
		if entityType == "" {
			entityType = "concept"
		}
		e := Entity{
			Type:        entityType,
			Name:        name,
			Description: fmt.Sprintf("%s: %s (mentioned in %s message)", entityType, name, role),
		}
		if idx.add(e) {
			namedEntities = append(namedEntities, e)
		}
	}

	sentences := splitTokenSentences(doc.Tokens())

	for _, phrase := range nounPhrases(sentences) {
		if len(phrase) <= 2 {
			continue
		}
		idx.add(Entity{
			Type:        "concept",
			Name:        phrase,
			Description: fmt.Sprintf("Concept: %s", phrase),
		})
	}

	var relationships []Relationship
	if wantRelationships {
		relationships = l.extractRelationships(sentences, idx, namedEntities)
	}
	return idx.entities, relationships
}

// extractRelationships pairs each verb's nearest preceding and following
// extracted entity into a typed edge, and links named entities co-occurring
// in the same sentence.
func (l *LinguisticExtractor) extractRelationships(sentences [][]prose.Token, idx *entityIndex, namedEntities []Entity) []Relationship {
	var relationships []Relationship

	for _, sent := range sentences {
		for pos, tok := range sent {
			if !strings.HasPrefix(tok.Tag, "VB") {
				continue
			}
			subject, okSubj := nearestEntityToken(sent, idx, pos, -1)
			object, okObj := nearestEntityToken(sent, idx, pos, +1)
			if !okSubj || !okObj || lowerKey(subject.Name) == lowerKey(object.Name) {
				continue
			}
			relationships = append(relationships, Relationship{
				SourceName: subject.Name,
				TargetName: object.Name,
				Type:       verbBase(tok.Text, tok.Tag),
				Weight:     1.5,
			})
		}
	}

	for _, sent := range sentences {
		var present []Entity
		for _, e := range namedEntities {
			if sentenceContainsEntity(sent, e.Name) {
				present = append(present, e)
			}
		}
		for i := 0; i < len(present)-1; i++ {
			for j := i + 1; j < len(present); j++ {
				relationships = append(relationships, Relationship{
					SourceName: present[i].Name,
					TargetName: present[j].Name,
					Type:       "co_occurs_with",
					Weight:     1.0,
				})
			}
		}
	}
	return relationships
}

// nearestEntityToken walks from the verb outward in the given direction and
// returns the first token whose text resolves to an already-extracted entity.
func nearestEntityToken(sent []prose.Token, idx *entityIndex, verbPos, dir int) (Entity, bool) {
	for pos := verbPos + dir; pos >= 0 && pos < len(sent); pos += dir {
		if e, ok := idx.lookup(sent[pos].Text); ok {
			return e, true
		}
	}
	return Entity{}, false
}

// nounPhrases collects runs of consecutive noun tokens per sentence, capped
// at four words.
func nounPhrases(sentences [][]prose.Token) []string {
	var phrases []string
	for _, sent := range sentences {
		var run []string
		flush := func() {
			if len(run) > 0 && len(run) <= 4 {
				phrases = append(phrases, strings.Join(run, " "))
			}
			run = nil
		}
		for _, tok := range sent {
			if strings.HasPrefix(tok.Tag, "NN") {
				run = append(run, tok.Text)
				continue
			}
			flush()
		}
		flush()
	}
	return phrases
}

// splitTokenSentences groups the flat token stream into sentences on
// sentence-final punctuation tags.
func splitTokenSentences(tokens []prose.Token) [][]prose.Token {
	var sentences [][]prose.Token
	var current []prose.Token
	for _, tok := range tokens {
		if tok.Tag == "." {
			if len(current) > 0 {
				sentences = append(sentences, current)
				current = nil
			}
			continue
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		sentences = append(sentences, current)
	}
	return sentences
}

var irregularVerbBases = map[string]string{
	"is":  "be",
	"are": "be",
	"was": "be",
	"has": "have",
}

// verbBase strips third-person singular inflection from present-tense
// verbs. Other tags keep their surface form since tense carries meaning
// for relationship types.
func verbBase(text, tag string) string {
	w := strings.ToLower(text)
	if base, ok := irregularVerbBases[w]; ok {
		return base
	}
	if tag != "VBZ" {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "xes") ||
		strings.HasSuffix(w, "zes") || strings.HasSuffix(w, "oes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 2:
		return w[:len(w)-1]
	}
	return w
}

// sentenceContainsEntity reports whether the entity name appears in the
// sentence as a contiguous run of whole tokens, so "Go" never matches
// inside "Google".
func sentenceContainsEntity(sent []prose.Token, name string) bool {
	words := strings.Fields(strings.ToLower(name))
	if len(words) == 0 {
		return false
	}
	for start := 0; start+len(words) <= len(sent); start++ {
		matched := true
		for k, w := range words {
			if strings.ToLower(sent[start+k].Text) != w {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
