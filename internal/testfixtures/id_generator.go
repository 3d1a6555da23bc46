package testfixtures

import (
	"fmt"
	"slices"
	"sync"
)

// IDGenerator hands out predictable identifiers ("id-1", "id-2", ...) and
// remembers them, so a test can look up the ID a service just assigned.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewIDGenerator returns a generator for prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// NextFunc returns g.Next for injection into services. A nil generator
// yields empty IDs.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Last returns the most recently issued ID, or "" before the first call.
func (g *IDGenerator) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.issued) == 0 {
		return ""
	}
	return g.issued[len(g.issued)-1]
}

// Issued returns every ID handed out so far in order.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.issued)
}

// Reset forgets issued IDs and switches to prefix.
func (g *IDGenerator) Reset(prefix string) {
	if prefix == "" {
		prefix = "id"
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefix = prefix
	g.issued = nil
}
