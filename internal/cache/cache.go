// Package cache reuses answers for questions similar to ones already
// answered, trading exactness for a saved provider round trip.
package cache

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

const defaultThreshold = 0.7

type record struct {
	question string // lower-cased at record time
	response string
	userID   string
}

// Cache holds previously answered questions and their responses.
// Lookup scans records in insertion order and returns the first whose
// similarity to the query meets the threshold; it deliberately does not
// search for the best match, so earlier answers win ties.
type Cache struct {
	mu        sync.Mutex
	records   []record
	threshold float64
	capacity  int // 0 = unbounded
}

// New creates a Cache. A threshold <= 0 defaults to 0.7. capacity bounds
// the number of retained records with oldest-first eviction; 0 keeps
// everything, matching the reference deployment's behavior.
func New(threshold float64, capacity int) *Cache {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Cache{threshold: threshold, capacity: capacity}
}

// Lookup returns the cached response for the first recorded question whose
// similarity ratio to question meets the threshold, or false on a miss.
func (c *Cache) Lookup(question string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if similarity(q, r.question) >= c.threshold {
			return r.response, true
		}
	}
	return "", false
}

// Record appends unconditionally; no deduplication. When a capacity is
// configured the oldest record is evicted to make room.
func (c *Cache) Record(question, response, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record{
		question: strings.ToLower(strings.TrimSpace(question)),
		response: response,
		userID:   userID,
	})
	if c.capacity > 0 && len(c.records) > c.capacity {
		c.records = c.records[len(c.records)-c.capacity:]
	}
}

// Len returns the number of retained records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// similarity is a normalized Levenshtein ratio in [0, 1]: 1 means equal
// strings, 0 means nothing in common. Inputs are assumed lower-cased.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
