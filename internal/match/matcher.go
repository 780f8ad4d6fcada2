// Package match classifies a face embedding against the enrolled gallery.
package match

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/your-org/roomgate/internal/gallery"
	"github.com/your-org/roomgate/internal/observability"
)

// ErrDimensionMismatch is returned for a query whose length differs from the
// gallery dimension. It is a caller bug, never a missing face.
var ErrDimensionMismatch = errors.New("query embedding dimension mismatch")

// Kind classifies a per-frame verdict.
type Kind int

const (
	NoFace Kind = iota
	Matched
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case NoFace:
		return "no-face"
	case Matched:
		return "match"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Verdict is the ephemeral result for one frame.
//
// For Matched, PersonID is the identified person. For Ambiguous, PersonID is
// the nearest rejected candidate (empty when the gallery had none) and must
// never be treated as an authenticated identity.
type Verdict struct {
	Kind     Kind
	PersonID string
	Distance float64
}

// HasCandidate reports whether an ambiguous verdict names a nearest person.
func (v Verdict) HasCandidate() bool {
	return v.PersonID != ""
}

// NoFaceVerdict is emitted upstream when the analyzer finds no face.
func NoFaceVerdict() Verdict {
	return Verdict{Kind: NoFace, Distance: math.Inf(1)}
}

// Matcher runs an exhaustive L2 nearest-neighbour search over a gallery.
type Matcher struct {
	gallery   *gallery.Gallery
	threshold float64
}

func NewMatcher(g *gallery.Gallery, threshold float64) *Matcher {
	return &Matcher{gallery: g, threshold: threshold}
}

// Match finds the closest enrolled vector to query.
//
// Ties at the minimum distance go to the lowest person id: entries are
// scanned in ascending id order and only a strictly smaller distance
// replaces the current best.
func (m *Matcher) Match(query []float32) (Verdict, error) {
	if len(query) != m.gallery.Dim() {
		return Verdict{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), m.gallery.Dim())
	}

	start := time.Now()
	defer func() {
		observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	}()

	unit, ok := gallery.Normalize(query)
	if !ok {
		return Verdict{Kind: Ambiguous, Distance: math.Inf(1)}, nil
	}

	bestDist := math.Inf(1)
	bestID := ""
	for _, e := range m.gallery.Entries() {
		for _, v := range e.Vectors {
			if d := l2(unit, v); d < bestDist {
				bestDist, bestID = d, e.PersonID
			}
		}
	}

	switch {
	case bestID == "":
		return Verdict{Kind: Ambiguous, Distance: bestDist}, nil
	case bestDist <= m.threshold:
		return Verdict{Kind: Matched, PersonID: bestID, Distance: bestDist}, nil
	default:
		return Verdict{Kind: Ambiguous, PersonID: bestID, Distance: bestDist}, nil
	}
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
