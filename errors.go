package wikigraph

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSealed is returned when adding to a sealed NodeIndex.
	ErrSealed = errors.New("node index is sealed")
	// ErrPhaseOrder is returned when an assembler phase runs out of turn.
	ErrPhaseOrder = errors.New("assembler phase out of order")
)

// An IndexEntryError is a malformed line in a multistream index.
type IndexEntryError struct {
	Line int
	Text string
	Err  error
}

func (e *IndexEntryError) Error() string {
	return fmt.Sprintf("malformed index entry at line %d (%q): %v",
		e.Line, e.Text, e.Err)
}

func (e *IndexEntryError) Unwrap() error { return e.Err }

// A ChunkDecompressionError means nothing at all could be decoded from a
// block.
type ChunkDecompressionError struct {
	Range BlockRange
	Err   error
}

func (e *ChunkDecompressionError) Error() string {
	return fmt.Sprintf("decompressing block %v: %v", e.Range, e.Err)
}

func (e *ChunkDecompressionError) Unwrap() error { return e.Err }

// A PageFieldError is an article page missing its title or id.
type PageFieldError struct {
	Field string
	Title string
	ID    int64
}

func (e *PageFieldError) Error() string {
	return fmt.Sprintf("article page (title=%q id=%d) missing %s",
		e.Title, e.ID, e.Field)
}

// A ChunkError records a block that failed during a phase.  The run
// carries on without it.
type ChunkError struct {
	Range BlockRange
	Phase Phase
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%v phase, block %v: %v", e.Phase, e.Range, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
