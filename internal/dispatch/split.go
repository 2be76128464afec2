package dispatch

// MaxMessageLength is the chat platform's per-message size limit.
const MaxMessageLength = 2000

// SplitMessage splits text into ordered chunks of at most limit characters.
// Splitting is rune-based so multi-byte characters are never cut mid-sequence.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
