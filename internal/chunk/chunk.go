// Package chunk splits oversized payloads into sequential chunks and
// threads the set of already produced names from chunk to chunk.
package chunk

import (
	"strings"

	"github.com/gumaertl2/PPT-sub001/internal/prepare"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
)

// Mode selects the chunk threshold.
type Mode int

const (
	Auto Mode = iota
	Manual
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

// Chunk is one slice of a payload. Index is zero-based.
type Chunk struct {
	Index   int
	Total   int
	Payload prepare.Payload
}

// Last reports whether this is the final chunk.
func (c Chunk) Last() bool {
	return c.Index == c.Total-1
}

// Split cuts p into consecutive chunks of at most the task's threshold for
// mode. Non-chunkable tasks, thresholds <= 0 and payloads at or below the
// threshold yield a single chunk. Concatenating the chunks' candidates
// restores the original order.
func Split(p prepare.Payload, task tasks.AgentTask, mode Mode) []Chunk {
	size := task.ChunkSize(mode == Manual)
	n := p.Len()
	if size <= 0 || n <= size {
		return []Chunk{{Index: 0, Total: 1, Payload: p}}
	}

	total := (n + size - 1) / size
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		lo := i * size
		hi := lo + size
		if hi > n {
			hi = n
		}
		chunks = append(chunks, Chunk{Index: i, Total: total, Payload: p.Slice(lo, hi)})
	}
	return chunks
}

// Count returns how many chunks Split would produce.
func Count(p prepare.Payload, task tasks.AgentTask, mode Mode) int {
	size := task.ChunkSize(mode == Manual)
	n := p.Len()
	if size <= 0 || n <= size {
		return 1
	}
	return (n + size - 1) / size
}

// Seen accumulates produced names across chunks. Names compare
// case-insensitively with surrounding space ignored.
type Seen struct {
	names []string
	keys  map[string]bool
}

// NewSeen returns an accumulator seeded with initial names.
func NewSeen(initial []string) *Seen {
	s := &Seen{keys: make(map[string]bool)}
	s.Add(initial...)
	return s
}

// Add records names, ignoring blanks and repeats.
func (s *Seen) Add(names ...string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || s.keys[key] {
			continue
		}
		s.keys[key] = true
		s.names = append(s.names, n)
	}
}

// Contains reports whether name was recorded.
func (s *Seen) Contains(name string) bool {
	return s.keys[strings.ToLower(strings.TrimSpace(name))]
}

// Names returns a copy of the recorded names in insertion order.
func (s *Seen) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of recorded names.
func (s *Seen) Len() int {
	return len(s.names)
}

// Apply returns the chunk's payload carrying the current seen set.
func (s *Seen) Apply(c Chunk) prepare.Payload {
	if s.Len() == 0 {
		return c.Payload
	}
	return c.Payload.WithSeen(s.Names())
}
