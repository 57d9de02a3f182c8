package model

type Summary struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id,omitempty"`
	SummaryText string    `json:"summary_text"`
	SummaryType string    `json:"summary_type,omitempty"`
	Embedding   []float32 `json:"-"`
	StartTime   int64     `json:"start_time,omitempty"`
	EndTime     int64     `json:"end_time,omitempty"`
	CreatedAt   int64     `json:"created_at"`
}

const (
	SummaryTypeSession = "session"
	SummaryTypeDaily   = "daily"
	SummaryTypeTopic   = "topic"
)
