// Package gateway is the chat-platform client: a websocket stream for
// inbound events and a small REST surface for outbound sends. The bot
// layer depends on it only through narrow interfaces.
package gateway

import "encoding/json"

// Interaction is a slash-command invocation delivered by the platform.
type Interaction struct {
	ID          string      `json:"id"`
	Command     string      `json:"command"`
	Arg         string      `json:"arg"`
	ChannelID   string      `json:"channel_id"`
	ChannelName string      `json:"channel_name"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name"`
	Roles       []string    `json:"roles"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	DM          bool        `json:"dm"`
}

// Message is a raw message event. The bot only consumes direct messages.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	UserID      string       `json:"user_id"`
	UserName    string       `json:"user_name"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	DM          bool         `json:"dm"`
}

// Attachment is a file attached to a message or interaction.
type Attachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// envelope is the wire frame around every gateway event.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	eventInteractionCreate = "interaction_create"
	eventMessageCreate     = "message_create"
)
