package mocks

import (
	"fmt"

	"github.com/mcoot/tablebank/internal/dependencies/idgen"
)

// MockIDGenerator returns queued IDs, then sequential ones
type MockIDGenerator struct {
	Prefix string
	queued []string
	next   int
}

// Ensure MockIDGenerator implements Generator
var _ idgen.Generator = (*MockIDGenerator)(nil)

// NewMockIDGenerator creates a MockIDGenerator producing "<prefix>-1", "<prefix>-2", ...
func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{Prefix: prefix}
}

// NewID returns the next queued ID, or the next sequential ID if none are queued
func (g *MockIDGenerator) NewID() string {
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.next++
	return fmt.Sprintf("%s-%d", g.Prefix, g.next)
}

// Queue adds IDs to be returned before falling back to sequential IDs
func (g *MockIDGenerator) Queue(ids ...string) {
	g.queued = append(g.queued, ids...)
}
