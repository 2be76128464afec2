package dispatch

// Mode selects how a finished answer is routed back to its origin.
type Mode int

const (
	// ModeChannel delivers to the originating channel, prefixed with the
	// asking user's display name.
	ModeChannel Mode = iota
	// ModeDirect delivers to the asking user's private channel.
	ModeDirect
)

// Entry is one unit of pending work: a fully-constructed prompt plus
// everything needed to deliver the answer. Entries are consumed exactly
// once and never re-enqueued.
type Entry struct {
	ID        string
	Prompt    string
	Question  string // original user question; recorded on success (Prompt may be a composite)
	ChannelID string
	UserID    string
	UserName  string
	Mode      Mode
}
