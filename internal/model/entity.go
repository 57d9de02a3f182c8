package model

// Entity is a named concept extracted from exactly one conversation turn.
// Created only during extraction (or via the manual add operation), never
// updated, removed only by cascade when its conversation is deleted.
type Entity struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID int64     `json:"conversation_id"`
	EntityType     string    `json:"entity_type"`
	EntityName     string    `json:"entity_name"`
	Description    string    `json:"description,omitempty"`
	Embedding      []float32 `json:"-"`
	CreatedAt      int64     `json:"created_at"`
}
