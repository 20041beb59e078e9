package testutil

import (
	"fmt"
	"sync"
)

// QueueGenerator hands out ids queued with Push, then falls back to
// "<prefix>-1", "<prefix>-2", ...
//
// Scenario runs push the id a fixture names right before the operation
// that generates one, so stored ids match the scenario file.
//
// Thread-safety: QueueGenerator is safe for concurrent use via internal mutex.
type QueueGenerator struct {
	mu     sync.Mutex
	prefix string
	queue  []string
	n      int
}

// NewQueueGenerator creates a generator with the given fallback prefix.
// If prefix is empty, "id" is used.
func NewQueueGenerator(prefix string) *QueueGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &QueueGenerator{prefix: prefix}
}

// Push queues ids to be returned before any generated ones. Empty ids are
// skipped.
func (g *QueueGenerator) Push(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			g.queue = append(g.queue, id)
		}
	}
}

// Generate returns the oldest queued id, or the next fallback id.
//
// Implements ir.IDGenerator.
func (g *QueueGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
