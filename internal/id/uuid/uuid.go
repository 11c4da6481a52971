// Package uuid generates run and task identifiers.
package uuid

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator issues time-ordered UUID v7 strings, so run IDs sort by start time.
type Generator struct{}

// New returns a Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a fresh UUID v7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Sequence issues name-based UUIDs (v5) derived from a namespace and a
// counter. Two sequences with the same namespace yield the same IDs, which
// makes run reports reproducible in tests and dry runs.
type Sequence struct {
	namespace uuid.UUID
	next      atomic.Uint64
}

// NewSequence builds a Sequence rooted at the given namespace name.
func NewSequence(name string) *Sequence {
	return &Sequence{namespace: uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))}
}

// NewID returns the next ID in the sequence.
func (s *Sequence) NewID() (string, error) {
	n := s.next.Add(1)
	return uuid.NewSHA1(s.namespace, []byte(strconv.FormatUint(n, 10))).String(), nil
}
