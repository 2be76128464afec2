package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is an ingested lecture artifact. Documents are immutable after
// creation and looked up by their auto-assigned integer ID.
type Document struct {
	ID            int64
	Filename      string
	Filetype      string
	ExtractedText string
	UploaderID    string
	CreatedAt     time.Time
}

// Interaction is the audit record of one answered request. The json tags
// match the snake_case shape of the other ops API payloads.
type Interaction struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
