package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/coursebot/coursebot/internal/dispatch"
	"github.com/coursebot/coursebot/internal/extract"
	"github.com/coursebot/coursebot/internal/gateway"
	"github.com/coursebot/coursebot/internal/storage"
)

// HandleInteraction routes a slash-command invocation.
func (b *Bot) HandleInteraction(ctx context.Context, in gateway.Interaction) {
	switch in.Command {
	case "ask":
		b.handleAsk(ctx, in)
	case "read":
		b.handleRead(ctx, in)
	case "upload":
		b.handleUpload(ctx, in)
	case "summarize":
		b.handleSummarize(ctx, in)
	case "docs":
		b.handleDocs(ctx, in)
	default:
		b.logger.Debug("ignoring unknown command", "command", in.Command)
	}
}

// HandleMessage turns a direct message into a question. Channel chatter
// is ignored; channels go through slash commands.
func (b *Bot) HandleMessage(ctx context.Context, msg gateway.Message) {
	if !msg.DM {
		return
	}
	question := strings.TrimSpace(msg.Content)
	if question == "" {
		return
	}

	if answer, ok := b.lookupCached(question); ok {
		b.send(ctx, dispatch.ModeDirect, msg.ChannelID, msg.UserID, msg.UserName, answer)
		return
	}

	b.queue.Push(dispatch.Entry{
		ID:       uuid.New().String(),
		Prompt:   question,
		Question: question,
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Mode:     dispatch.ModeDirect,
	})
}

func (b *Bot) handleAsk(ctx context.Context, in gateway.Interaction) {
	if err := b.requireHelpChannel(in); err != nil {
		b.deny(ctx, in, err)
		return
	}

	question := strings.TrimSpace(in.Arg)
	if question == "" {
		b.reject(ctx, in, "Ask a question, e.g. /ask What is a stack?")
		return
	}

	b.acknowledge(ctx, in)

	mode := dispatch.ModeChannel
	if in.DM {
		mode = dispatch.ModeDirect
	}

	if answer, ok := b.lookupCached(question); ok {
		b.send(ctx, mode, in.ChannelID, in.UserID, in.UserName, answer)
		return
	}

	b.queue.Push(dispatch.Entry{
		ID:        uuid.New().String(),
		Prompt:    question,
		Question:  question,
		ChannelID: in.ChannelID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Mode:      mode,
	})
}

// handleRead finds the most recent image in the channel's history, runs
// it through image-to-text, and enqueues a composite prompt. Failures
// surface as user-visible messages and nothing is enqueued.
func (b *Bot) handleRead(ctx context.Context, in gateway.Interaction) {
	b.acknowledge(ctx, in)

	mode := dispatch.ModeChannel
	if in.DM {
		mode = dispatch.ModeDirect
	}

	msgs, err := b.platform.RecentMessages(ctx, in.ChannelID, b.opts.HistoryWindow)
	if err != nil {
		b.logger.Warn("history fetch failed", "channel_id", in.ChannelID, "error", err)
		b.send(ctx, mode, in.ChannelID, in.UserID, in.UserName, "I couldn't read the channel history. Try again in a moment.")
		return
	}

	att := latestImage(msgs)
	if att == nil {
		b.send(ctx, mode, in.ChannelID, in.UserID, in.UserName,
			fmt.Sprintf("I couldn't find an image in the last %d messages.", b.opts.HistoryWindow))
		return
	}

	data, err := b.platform.DownloadAttachment(ctx, att.URL)
	if err != nil {
		b.logger.Warn("attachment download failed", "url", att.URL, "error", err)
		b.send(ctx, mode, in.ChannelID, in.UserID, in.UserName, "I couldn't download that image.")
		return
	}

	text, err := b.describer.Describe(ctx, data, imageMIME(att.Filename), "Transcribe all text visible in this image.")
	if err != nil || strings.TrimSpace(text) == "" {
		b.logger.Warn("image transcription failed", "filename", att.Filename, "error", err)
		b.send(ctx, mode, in.ChannelID, in.UserID, in.UserName, "I couldn't read any text out of that image.")
		return
	}

	question := strings.TrimSpace(in.Arg)
	prompt := compositePrompt(text, question)
	if question == "" {
		question = "explain screenshot " + att.Filename
	}

	b.queue.Push(dispatch.Entry{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Question:  question,
		ChannelID: in.ChannelID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Mode:      mode,
	})
}

func (b *Bot) handleUpload(ctx context.Context, in gateway.Interaction) {
	if err := b.requireRole(in, b.opts.AdminRole); err != nil {
		b.deny(ctx, in, err)
		return
	}
	if in.Attachment == nil {
		b.reject(ctx, in, "Attach a document to upload (pdf, docx, pptx, txt, md, html).")
		return
	}
	if !extract.Supported(in.Attachment.Filename) {
		b.reject(ctx, in, fmt.Sprintf("Unsupported file type: %s", in.Attachment.Filename))
		return
	}

	b.acknowledge(ctx, in)

	data, err := b.platform.DownloadAttachment(ctx, in.Attachment.URL)
	if err != nil {
		b.logger.Warn("attachment download failed", "url", in.Attachment.URL, "error", err)
		b.send(ctx, dispatch.ModeChannel, in.ChannelID, in.UserID, in.UserName, "I couldn't download that file.")
		return
	}

	text, err := extract.Text(data, in.Attachment.Filename)
	if err != nil {
		b.logger.Warn("extraction failed", "filename", in.Attachment.Filename, "error", err)
		b.send(ctx, dispatch.ModeChannel, in.ChannelID, in.UserID, in.UserName,
			fmt.Sprintf("Could not extract text from %s.", in.Attachment.Filename))
		return
	}

	id, err := b.docs.SaveDocument(storage.Document{
		Filename:      in.Attachment.Filename,
		Filetype:      strings.TrimPrefix(strings.ToLower(filepath.Ext(in.Attachment.Filename)), "."),
		ExtractedText: text,
		UploaderID:    in.UserID,
	})
	if err != nil {
		b.logger.Error("saving document failed", "filename", in.Attachment.Filename, "error", err)
		b.send(ctx, dispatch.ModeChannel, in.ChannelID, in.UserID, in.UserName, "Something went wrong storing that document.")
		return
	}

	b.send(ctx, dispatch.ModeChannel, in.ChannelID, in.UserID, in.UserName,
		fmt.Sprintf("Stored document #%d (%s).", id, in.Attachment.Filename))
}

func (b *Bot) handleSummarize(ctx context.Context, in gateway.Interaction) {
	id, err := strconv.ParseInt(strings.TrimSpace(in.Arg), 10, 64)
	if err != nil {
		b.reject(ctx, in, "Give me a document number, e.g. /summarize 3 — see /docs for the list.")
		return
	}

	doc, err := b.docs.GetDocument(id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reject(ctx, in, fmt.Sprintf("There is no document #%d. See /docs for the list.", id))
		return
	}
	if err != nil {
		b.logger.Error("document lookup failed", "id", id, "error", err)
		b.reject(ctx, in, "Something went wrong looking that document up.")
		return
	}

	b.acknowledge(ctx, in)

	mode := dispatch.ModeChannel
	if in.DM {
		mode = dispatch.ModeDirect
	}
	b.queue.Push(dispatch.Entry{
		ID: uuid.New().String(),
		Prompt: fmt.Sprintf("Summarize the following lecture document (%s) for a student:\n\n%s",
			doc.Filename, doc.ExtractedText),
		Question:  "summarize " + doc.Filename,
		ChannelID: in.ChannelID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Mode:      mode,
	})
}

func (b *Bot) handleDocs(ctx context.Context, in gateway.Interaction) {
	docs, err := b.docs.ListDocuments()
	if err != nil {
		b.logger.Error("listing documents failed", "error", err)
		b.reject(ctx, in, "Something went wrong listing documents.")
		return
	}
	if len(docs) == 0 {
		b.reject(ctx, in, "No documents uploaded yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Uploaded documents:\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "#%d %s (%s)\n", d.ID, d.Filename, d.Filetype)
	}
	b.reject(ctx, in, sb.String())
}

// acknowledge defers the interaction so the platform's response deadline
// is met before the real answer exists.
func (b *Bot) acknowledge(ctx context.Context, in gateway.Interaction) {
	if err := b.platform.Defer(ctx, in.ID); err != nil {
		b.logger.Warn("defer failed", "interaction_id", in.ID, "error", err)
	}
}

// deny maps a failed access check to its ephemeral rejection. The queue
// is never touched on this path.
func (b *Bot) deny(ctx context.Context, in gateway.Interaction, err error) {
	if errors.Is(err, ErrAccessDenied) {
		b.logger.Debug("access denied", "command", in.Command, "user_id", in.UserID)
	}
	b.reject(ctx, in, err.Error())
}

// reject sends an ephemeral notice without touching the queue.
func (b *Bot) reject(ctx context.Context, in gateway.Interaction, text string) {
	if err := b.platform.RespondEphemeral(ctx, in.ID, text); err != nil {
		b.logger.Warn("ephemeral response failed", "interaction_id", in.ID, "error", err)
	}
}

func (b *Bot) lookupCached(question string) (string, bool) {
	if b.cache == nil {
		return "", false
	}
	return b.cache.Lookup(question)
}

// latestImage scans messages (newest first, as the platform returns them)
// for the first attachment with an image extension.
func latestImage(msgs []gateway.Message) *gateway.Attachment {
	for _, m := range msgs {
		for i := range m.Attachments {
			if isImage(m.Attachments[i].Filename) {
				return &m.Attachments[i]
			}
		}
	}
	return nil
}

func compositePrompt(extracted, question string) string {
	if question == "" {
		return "The following text was extracted from a screenshot. Explain it:\n\n" + extracted
	}
	return "The following text was extracted from a screenshot:\n\n" + extracted +
		"\n\nQuestion: " + question
}
