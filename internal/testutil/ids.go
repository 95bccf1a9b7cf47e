package testutil

import "fmt"

// SequenceIDGenerator generates compilation ids "test-0001", "test-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario compiled with a fresh generator produces byte-identical
// output.
//
// Implements query.IDGenerator.
type SequenceIDGenerator struct {
	prefix string
	seq    *Counter
}

// NewSequenceIDGenerator creates a generator. If prefix is empty, "test"
// is used.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceIDGenerator{prefix: prefix, seq: NewCounter()}
}

// NewID returns the next id.
func (g *SequenceIDGenerator) NewID() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next())
}

// Reset restarts the sequence at 1.
func (g *SequenceIDGenerator) Reset() {
	g.seq.Reset()
}
