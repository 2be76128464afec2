// Package bot translates inbound platform events into queue entries.
// Access checks and acknowledgements happen here; anything admitted past
// this layer is owned by the dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/coursebot/coursebot/internal/dispatch"
	"github.com/coursebot/coursebot/internal/gateway"
	"github.com/coursebot/coursebot/internal/storage"
)

// ErrAccessDenied marks a failed role or channel check. It never reaches
// the queue; the user sees an ephemeral rejection.
var ErrAccessDenied = errors.New("access denied")

// accessError pairs ErrAccessDenied with the user-facing denial text.
type accessError struct{ msg string }

func (e *accessError) Error() string { return e.msg }
func (e *accessError) Unwrap() error { return ErrAccessDenied }

// requireHelpChannel gates a command to the configured help channel.
// Direct messages always pass.
func (b *Bot) requireHelpChannel(in gateway.Interaction) error {
	if in.DM || strings.EqualFold(in.ChannelName, b.opts.HelpChannel) {
		return nil
	}
	return &accessError{msg: fmt.Sprintf("Please use the #%s channel to interact with the bot.", b.opts.HelpChannel)}
}

// requireRole gates a command to members holding the configured admin role.
func (b *Bot) requireRole(in gateway.Interaction, role string) error {
	if hasRole(in.Roles, role) {
		return nil
	}
	return &accessError{msg: fmt.Sprintf("You need the %s role to upload documents.", role)}
}

// Platform is the slice of the chat-platform client the bot needs.
type Platform interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
	RespondEphemeral(ctx context.Context, interactionID, content string) error
	Defer(ctx context.Context, interactionID string) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]gateway.Message, error)
	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
}

// Describer turns an image into text.
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType, question string) (string, error)
}

// DocumentStore persists ingested lecture documents.
type DocumentStore interface {
	SaveDocument(d storage.Document) (int64, error)
	GetDocument(id int64) (storage.Document, error)
	ListDocuments() ([]storage.Document, error)
}

// AnswerCache serves previously answered questions.
type AnswerCache interface {
	Lookup(question string) (string, bool)
}

// Options are the static access-control and scanning knobs.
type Options struct {
	HelpChannel   string // only channel where the ask command is accepted
	AdminRole     string // role required for document ingestion
	HistoryWindow int    // messages scanned when looking for an image
}

// Bot is the command/event surface.
type Bot struct {
	queue     *dispatch.Queue
	platform  Platform
	describer Describer
	docs      DocumentStore
	cache     AnswerCache
	opts      Options
	logger    *slog.Logger
}

// New creates a Bot. cache and docs may be nil, disabling the cache
// lookup and the document commands respectively.
func New(q *dispatch.Queue, p Platform, d Describer, docs DocumentStore, c AnswerCache, opts Options) *Bot {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 50
	}
	return &Bot{
		queue:     q,
		platform:  p,
		describer: d,
		docs:      docs,
		cache:     c,
		opts:      opts,
		logger:    slog.Default(),
	}
}

// Register wires the bot's handlers into a gateway client.
func (b *Bot) Register(c *gateway.Client) {
	c.OnInteraction(b.HandleInteraction)
	c.OnMessage(b.HandleMessage)
}

// send delivers text to a reply target with the same prefixing and
// chunking rules the dispatcher applies, used for cache hits and
// user-visible failure notices.
func (b *Bot) send(ctx context.Context, mode dispatch.Mode, channelID, userID, userName, text string) {
	if mode == dispatch.ModeChannel && userName != "" {
		text = userName + ": " + text
	}
	for _, chunk := range dispatch.SplitMessage(text, dispatch.MaxMessageLength) {
		var err error
		if mode == dispatch.ModeDirect {
			err = b.platform.SendDirectMessage(ctx, userID, chunk)
		} else {
			err = b.platform.SendChannelMessage(ctx, channelID, chunk)
		}
		if err != nil {
			b.logger.Error("send failed", "user_id", userID, "error", err)
			return
		}
	}
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

func isImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func imageMIME(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
