package model

// Conversation is one stored message turn. Immutable after insert except
// Metadata; deleting it cascades its extracted entities.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Platform  string    `json:"platform,omitempty"`
	Embedding []float32 `json:"-"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt int64     `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
