package model

// Relationship is a directed, typed, weighted edge between two entities.
// Endpoint ownership is not enforced at write time; callers keep both ends
// within one user's entity set.
type Relationship struct {
	ID               int64   `json:"id"`
	SourceEntityID   int64   `json:"source_entity_id"`
	TargetEntityID   int64   `json:"target_entity_id"`
	RelationshipType string  `json:"relationship_type"`
	Weight           float64 `json:"weight"`
	Metadata         string  `json:"metadata,omitempty"`
	CreatedAt        int64   `json:"created_at"`
}
