// Package extract turns raw conversation text into knowledge-graph
// fragments: typed entities and weighted relationships, both referenced
// by name. Store identifiers are assigned later, on write.
package extract

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Entity struct {
	Type        string `json:"entity_type"`
	Name        string `json:"entity_name"`
	Description string `json:"description"`
}

type Relationship struct {
	SourceName string  `json:"source_entity_name"`
	TargetName string  `json:"target_entity_name"`
	Type       string  `json:"relationship_type"`
	Weight     float64 `json:"weight"`
}

// Extractor is safe for concurrent use; implementations hold no per-call
// state.
type Extractor interface {
	Name() string
	Extract(text string, role string, wantRelationships bool) ([]Entity, []Relationship)
}

const (
	StrategyLinguistic = "linguistic"
	StrategyKeyword    = "keyword"
)

// New selects the extraction strategy once at startup. The linguistic
// strategy degrades to the keyword strategy when the language model cannot
// be constructed.
func New(strategy string) Extractor {
	fallback := NewKeywordExtractor()
	if strategy != StrategyLinguistic {
		return fallback
	}
	ling, err := NewLinguisticExtractor(fallback)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("linguistic extractor unavailable, using keyword strategy", zap.Error(err))
		return fallback
	}
	return ling
}

// entityIndex tracks emitted entities by case-insensitive name, preserving
// first-seen order.
type entityIndex struct {
	entities []Entity
	byName   map[string]int
}

func newEntityIndex() *entityIndex {
	return &entityIndex{byName: make(map[string]int)}
}

func (idx *entityIndex) add(e Entity) bool {
	key := lowerKey(e.Name)
	if _, ok := idx.byName[key]; ok {
		return false
	}
	idx.byName[key] = len(idx.entities)
	idx.entities = append(idx.entities, e)
	return true
}

func (idx *entityIndex) lookup(name string) (Entity, bool) {
	pos, ok := idx.byName[lowerKey(name)]
	if !ok {
		return Entity{}, false
	}
	return idx.entities[pos], true
}
