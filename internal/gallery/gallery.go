// Package gallery holds the in-memory set of enrolled face embeddings.
//
// A Gallery is built once at startup through a Builder and is read-only
// afterwards, so concurrent readers need no locking.
package gallery

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrDimension  = errors.New("embedding dimension mismatch")
	ErrZeroVector = errors.New("embedding has zero norm")
)

// Entry is the embedding set of one person. Every vector has unit norm.
type Entry struct {
	PersonID string
	Vectors  [][]float32
}

// Gallery is an immutable snapshot of all enrolled embeddings.
// Entries are ordered by ascending person id.
type Gallery struct {
	dim     int
	entries []Entry
	vectors int
}

// Dim returns the embedding dimensionality D.
func (g *Gallery) Dim() int { return g.dim }

// Entries returns the per-person embedding sets in ascending id order.
// Callers must not modify the returned slices.
func (g *Gallery) Entries() []Entry { return g.entries }

// Persons returns the number of persons with an embedding set, including empty ones.
func (g *Gallery) Persons() int { return len(g.entries) }

// Vectors returns the total number of stored vectors.
func (g *Gallery) Vectors() int { return g.vectors }

// Builder accumulates vectors before freezing them into a Gallery.
type Builder struct {
	dim  int
	sets map[string][][]float32
}

func NewBuilder(dim int) *Builder {
	return &Builder{dim: dim, sets: make(map[string][][]float32)}
}

// Ensure registers a person with a possibly empty embedding set.
func (b *Builder) Ensure(personID string) {
	if _, ok := b.sets[personID]; !ok {
		b.sets[personID] = nil
	}
}

// Add normalizes a copy of vec and appends it to the person's set.
func (b *Builder) Add(personID string, vec []float32) error {
	if len(vec) != b.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), b.dim)
	}
	unit, ok := Normalize(vec)
	if !ok {
		return ErrZeroVector
	}
	b.sets[personID] = append(b.sets[personID], unit)
	return nil
}

// Build freezes the accumulated sets. The Builder may not be reused.
func (b *Builder) Build() *Gallery {
	ids := make([]string, 0, len(b.sets))
	for id := range b.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &Gallery{dim: b.dim, entries: make([]Entry, 0, len(ids))}
	for _, id := range ids {
		vecs := b.sets[id]
		g.entries = append(g.entries, Entry{PersonID: id, Vectors: vecs})
		g.vectors += len(vecs)
	}
	b.sets = nil
	return g
}

// Normalize returns a unit-length copy of v. ok is false for a zero vector.
func Normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}
