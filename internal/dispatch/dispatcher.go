package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// FallbackText is delivered in place of an answer when the completion
// provider fails. Internal detail is only logged, never shown to users.
const FallbackText = "There was an error processing your request."

// Completer obtains a generated answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Messenger delivers finished answers back to the chat platform.
type Messenger interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// Recorder observes successfully answered requests.
type Recorder interface {
	Record(question, response, userID string)
}

// Dispatcher drains the request queue one entry at a time for the lifetime
// of the process. Entries reach the Completer in strict arrival order; a
// failed entry yields exactly one fallback delivery attempt and the loop
// moves on. Per-entry failures never terminate the loop.
type Dispatcher struct {
	queue     *Queue
	completer Completer
	messenger Messenger
	recorder  Recorder
	poll      time.Duration
	logger    *slog.Logger

	dispatched atomic.Uint64
	failed     atomic.Uint64
}

// NewDispatcher creates a Dispatcher with the given dependencies.
// If pollInterval is <= 0, it defaults to 1s. recorder may be nil.
func NewDispatcher(q *Queue, c Completer, m Messenger, r Recorder, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Dispatcher{
		queue:     q,
		completer: c,
		messenger: m,
		recorder:  r,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run processes queue entries until ctx is cancelled. When the queue is
// empty it waits on the queue's wake signal, with a poll-interval fallback.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if d.RunOnce(ctx) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-d.queue.Wake():
		case <-time.After(d.poll):
		}
	}
}

// RunOnce pops and fully processes a single entry. Returns true if an
// entry was processed, regardless of outcome.
func (d *Dispatcher) RunOnce(ctx context.Context) bool {
	entry, ok := d.queue.Pop()
	if !ok {
		return false
	}

	answer, err := d.completer.Complete(ctx, entry.Prompt)
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("completion failed",
			"entry_id", entry.ID,
			"user_id", entry.UserID,
			"error", err)
		if dErr := d.deliver(ctx, entry, FallbackText); dErr != nil {
			d.logger.Error("fallback delivery failed", "entry_id", entry.ID, "error", dErr)
		}
		return true
	}

	if err := d.deliver(ctx, entry, answer); err != nil {
		// One attempt only; the entry is dropped after logging.
		d.failed.Add(1)
		d.logger.Error("delivery failed", "entry_id", entry.ID, "error", err)
		return true
	}

	d.dispatched.Add(1)
	if d.recorder != nil {
		question := entry.Question
		if question == "" {
			question = entry.Prompt
		}
		d.recorder.Record(question, answer, entry.UserID)
	}
	return true
}

// deliver routes text to the entry's reply target, splitting it into
// transport-sized chunks. Chunks are sent sequentially so chunk order
// matches text order; a failed chunk aborts the remainder.
func (d *Dispatcher) deliver(ctx context.Context, entry Entry, text string) error {
	if entry.Mode == ModeChannel && entry.UserName != "" {
		text = entry.UserName + ": " + text
	}

	for i, chunk := range SplitMessage(text, MaxMessageLength) {
		var err error
		switch entry.Mode {
		case ModeDirect:
			err = d.messenger.SendDirectMessage(ctx, entry.UserID, chunk)
		default:
			err = d.messenger.SendChannelMessage(ctx, entry.ChannelID, chunk)
		}
		if err != nil {
			return fmt.Errorf("sending chunk %d: %w", i+1, err)
		}
	}
	return nil
}

// Stats is a point-in-time snapshot of dispatcher activity.
type Stats struct {
	QueueDepth int    `json:"queue_depth"`
	Dispatched uint64 `json:"dispatched"`
	Failed     uint64 `json:"failed"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth: d.queue.Len(),
		Dispatched: d.dispatched.Load(),
		Failed:     d.failed.Load(),
	}
}
